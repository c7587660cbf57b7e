// Package intake is the frontend identity's inbound side: it classifies user
// submissions, opens a job for each accepted attachment, and hands the bytes
// off to the backend identity by forwarding plus a reply-linked envelope.
package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uplinkbot/uplink/internal/relay"
	"github.com/uplinkbot/uplink/internal/telegram"
)

const (
	welcomeText = "👋 Hi! Send me a file of any size (document, video, audio, photo, voice note or static sticker) " +
		"and I will host it on Gofile.io and hand you the download link. Large files can take a while, please be patient."
	unsupportedText  = "Sorry, I can only relay documents, videos, audio, photos, voice notes and static stickers."
	animatedText     = "Animated and video stickers cannot be relayed. Send a static sticker or another file type."
	receivedText     = "🔄 Got your file, preparing it for processing..."
	queuedText       = "✅ Handed off for processing. The download link will appear here when it is ready."
	forwardFailText  = "❌ Could not hand your file off for processing. Please resend it."
	envelopeFailText = "❌ Something went wrong while queueing your file. Please resend it."
)

// Messenger is the frontend identity's outbound surface.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (relay.MessageRef, error)
	Reply(ctx context.Context, chatID int64, replyTo int, text string) (relay.MessageRef, error)
	EditMessage(ctx context.Context, handle relay.StatusHandle, text string) error
	ForwardMessage(ctx context.Context, toChat, fromChat int64, messageID int) (relay.MessageRef, error)
}

// Intake consumes the frontend identity's update stream.
type Intake struct {
	log       *slog.Logger
	store     *relay.Store
	bot       Messenger
	relayChat int64
}

// New creates an Intake forwarding accepted submissions into relayChat.
func New(log *slog.Logger, store *relay.Store, bot Messenger, relayChat int64) *Intake {
	if log == nil {
		log = slog.Default()
	}
	return &Intake{
		log:       log.With(slog.String("component", "intake")),
		store:     store,
		bot:       bot,
		relayChat: relayChat,
	}
}

// Run dispatches every inbound update to its own goroutine so one slow
// submission never stalls the others.
func (i *Intake) Run(ctx context.Context, updates <-chan telegram.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			go i.Handle(ctx, msg)
		}
	}
}

// Handle processes one inbound frontend update.
func (i *Intake) Handle(ctx context.Context, msg telegram.Message) {
	switch {
	case msg.Command == "start":
		if _, err := i.bot.SendMessage(ctx, msg.ChatID, welcomeText); err != nil {
			i.log.Error("send welcome failed", slog.Int64("chat", msg.ChatID), slog.Any("error", err))
		}
	case msg.Attachment != nil && msg.Attachment.Animated:
		i.reject(ctx, msg, animatedText)
	case msg.Attachment != nil:
		i.accept(ctx, msg, *msg.Attachment)
	case msg.HasMedia:
		i.reject(ctx, msg, unsupportedText)
	default:
		// Free-form chatter; nothing to relay.
		i.log.Debug("ignoring non-submission message", slog.Int64("chat", msg.ChatID))
	}
}

// reject notifies the user directly; no job is created.
func (i *Intake) reject(ctx context.Context, msg telegram.Message, text string) {
	if _, err := i.bot.Reply(ctx, msg.ChatID, msg.MessageID, text); err != nil {
		i.log.Error("send rejection failed", slog.Int64("chat", msg.ChatID), slog.Any("error", err))
	}
}

func (i *Intake) accept(ctx context.Context, msg telegram.Message, att relay.Attachment) {
	job := i.store.Create(msg.ChatID, att)
	log := i.log.With(
		slog.String("correlation_id", job.CorrelationID),
		slog.Int64("origin_chat", msg.ChatID),
		slog.String("file", att.DisplayName()),
	)
	log.Info("submission accepted", slog.String("kind", att.Kind.String()), slog.Int64("size", att.Size))

	statusRef, err := i.bot.Reply(ctx, msg.ChatID, msg.MessageID, receivedText)
	if err != nil {
		log.Error("send status message failed", slog.Any("error", err))
		i.store.Fail(job.CorrelationID, fmt.Sprintf("status message: %v", err))
		return
	}
	status := relay.StatusHandle{ChatID: statusRef.ChatID, MessageID: statusRef.MessageID}
	if err := i.store.SetStatus(job.CorrelationID, status); err != nil {
		log.Error("record status handle failed", slog.Any("error", err))
		return
	}

	forwarded, err := i.bot.ForwardMessage(ctx, i.relayChat, msg.ChatID, msg.MessageID)
	if err != nil {
		log.Error("forward failed", slog.Any("error", err))
		i.failWithStatus(ctx, job.CorrelationID, status, fmt.Sprintf("forward: %v", err), forwardFailText)
		return
	}
	if _, err := i.store.Transition(job.CorrelationID, relay.StateForwardRequested); err != nil {
		log.Error("transition forward_requested failed", slog.Any("error", err))
		return
	}

	envelope := relay.Envelope{
		CorrelationID: job.CorrelationID,
		OriginChat:    msg.ChatID,
		Status:        status,
	}
	// The reply linkage to the forwarded copy is what lets the backend side
	// bind this envelope to its attachment; without it the job is unresolvable.
	if _, err := i.bot.Reply(ctx, i.relayChat, forwarded.MessageID, envelope.Encode()); err != nil {
		log.Error("send envelope failed", slog.Any("error", err))
		// The orphaned forwarded copy is left in place; the sweep reclaims the job.
		i.failWithStatus(ctx, job.CorrelationID, status, fmt.Sprintf("envelope: %v", err), envelopeFailText)
		return
	}

	if err := i.bot.EditMessage(ctx, status, queuedText); err != nil {
		log.Warn("edit queued status failed", slog.Any("error", err))
	}
	log.Info("submission handed off", slog.Int("backend_message", forwarded.MessageID))
}

func (i *Intake) failWithStatus(ctx context.Context, correlationID string, status relay.StatusHandle, reason, userText string) {
	i.store.Fail(correlationID, reason)
	if err := i.bot.EditMessage(ctx, status, userText); err != nil {
		i.log.Error("edit failure status failed",
			slog.String("correlation_id", correlationID), slog.Any("error", err))
	}
}
