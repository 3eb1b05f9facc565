package idempotency

import "strconv"

// UpdateKey identifies a Telegram update. Update ids are unique per bot.
func UpdateKey(updateID int) string {
	return "update:" + strconv.Itoa(updateID)
}

// MessageKey identifies an inbound message when no update id is available.
func MessageKey(chatID int64, messageID int) string {
	return "msg:" + strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}
