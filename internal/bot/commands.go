package bot

// Command constants for Telegram bot commands.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
)

// commandList is what Telegram shows in the command menu.
var commandList = []struct {
	Text        string
	Description string
}{
	{Text: "start", Description: "Начать заново"},
	{Text: "cancel", Description: "Отменить текущее действие"},
}
