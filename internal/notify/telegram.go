package notify

import (
	"context"
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"
)

// sender is the part of *telebot.Bot used to deliver messages.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Raw(method string, payload interface{}) ([]byte, error)
}

// TelegramNotifier posts admin events to a Telegram chat.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

// NewTelegramNotifier creates a send-only bot for the admin chat. The bot never polls for updates.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Notify implements Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := n.bot.Send(&telebot.Chat{ID: n.chatID}, FormatMessage(event)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// HealthCheck calls getMe to verify the token and the Bot API reachability.
func (n *TelegramNotifier) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := n.bot.Raw("getMe", nil); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	return nil
}

// FormatMessage renders an event as a plain-text chat message.
func FormatMessage(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", event.Action, event.Notification.Title)
	if event.Notification.Description != "" {
		b.WriteString("\n")
		b.WriteString(event.Notification.Description)
	}
	if event.AdminID != "" {
		fmt.Fprintf(&b, "\nadmin: %s", event.AdminID)
	}
	if !event.OccurredAt.IsZero() {
		fmt.Fprintf(&b, "\n%s", event.OccurredAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return b.String()
}
