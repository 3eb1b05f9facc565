package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/bot/keyboard"
	"github.com/Proton-105/worklog-bot/internal/dialog"
)

// MaxMessageLength is Telegram's limit for one text message, in characters.
const MaxMessageLength = 4096

// Messenger is the subset of *telebot.Bot used to deliver messages.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Sender renders dialog messages into Telegram messages.
type Sender struct {
	api Messenger
	log *slog.Logger
}

func NewSender(api Messenger, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{api: api, log: log}
}

// SendResponse delivers every message of resp in order and stops at the first failure.
func (s *Sender) SendResponse(ctx context.Context, chatID int64, resp dialog.Response) error {
	for _, msg := range resp.Messages {
		if err := s.Send(ctx, chatID, msg); err != nil {
			return err
		}
	}
	return nil
}

// Send delivers one message. Long texts are split on line boundaries and the keyboard
// is attached to the last part.
func (s *Sender) Send(ctx context.Context, chatID int64, msg dialog.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := telebot.ChatID(chatID)
	var opts []interface{}
	if markup := keyboard.Reply(msg.Menu); markup != nil {
		opts = append(opts, markup)
	}

	if doc := msg.Document; doc != nil {
		file := &telebot.Document{
			File:     telebot.FromReader(bytes.NewReader(doc.Data)),
			FileName: doc.FileName,
			Caption:  doc.Caption,
			MIME:     doc.MIME,
		}
		if _, err := s.api.Send(to, file, opts...); err != nil {
			return fmt.Errorf("send document %s: %w", doc.FileName, err)
		}
		return nil
	}

	parts := SplitMessage(msg.Text, MaxMessageLength)
	for i, part := range parts {
		var partOpts []interface{}
		if i == len(parts)-1 {
			partOpts = opts
		}
		if _, err := s.api.Send(to, part, partOpts...); err != nil {
			return fmt.Errorf("send message part %d/%d: %w", i+1, len(parts), err)
		}
	}

	s.log.Debug("message sent", slog.Int64("chat_id", chatID), slog.Int("parts", len(parts)))
	return nil
}

// SplitMessage cuts text into chunks of at most limit runes, preferring line breaks.
// Lines longer than limit are hard-wrapped.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		for utf8.RuneCountInString(line) > limit {
			flush()
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
		}

		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		current.WriteString(line)
		size += n
	}
	flush()

	for i := range chunks {
		if trimmed := strings.TrimRight(chunks[i], "\n"); trimmed != "" {
			chunks[i] = trimmed
		}
	}
	return chunks
}
