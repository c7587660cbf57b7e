package telegram

import (
	"context"
	"log/slog"
)

// Notifier mirrors operational events into the admin chat. A zero chat id
// disables it without callers having to care.
type Notifier struct {
	log    *slog.Logger
	client *Client
	chatID int64
}

func NewNotifier(log *slog.Logger, client *Client, chatID int64) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		log:    log.With(slog.String("component", "notifier")),
		client: client,
		chatID: chatID,
	}
}

// NotifyAdmin sends text to the admin chat. Failures are logged, never fatal.
func (n *Notifier) NotifyAdmin(ctx context.Context, text string) {
	if n == nil || n.chatID == 0 {
		return
	}
	if _, err := n.client.SendMessage(ctx, n.chatID, text); err != nil {
		n.log.Warn("admin notification failed", slog.Any("error", err))
	}
}
