// Package coordinator consumes the backend identity's inbox. It binds relay
// envelopes to their forwarded attachments through the reply link, guards the
// at-most-once dispatch, and hands bound jobs to the worker. Attachments the
// owner drops into the relay chat directly are processed without an envelope.
package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/uplinkbot/uplink/internal/relay"
	"github.com/uplinkbot/uplink/internal/telegram"
	"github.com/uplinkbot/uplink/internal/worker"
)

const (
	staleEnvelopeText = "❌ This job expired before processing started. Please resend the file."
	lostForwardText   = "❌ The forwarded copy of your file went missing. Please resend it."
	directStatusText  = "🔄 Got it, processing..."
)

// Backend is the backend identity's outbound surface inside the relay chat.
type Backend interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string) (relay.MessageRef, error)
	EditMessage(ctx context.Context, handle relay.StatusHandle, text string) error
}

// Processor runs a bound job to completion.
type Processor interface {
	Process(ctx context.Context, job relay.Job, editor worker.StatusEditor)
}

// Coordinator routes backend inbox traffic. Run is the only consumer of the
// update stream; everything per job happens in the worker's goroutine.
type Coordinator struct {
	log        *slog.Logger
	store      *relay.Store
	backend    Backend
	frontend   worker.StatusEditor
	processor  Processor
	frontendID int64
	relayChat  int64
}

// New creates a Coordinator. frontendID is the frontend identity's own user id
// and tells forwarded copies apart from direct submissions in the relay chat.
func New(log *slog.Logger, store *relay.Store, backend Backend, frontend worker.StatusEditor, processor Processor, frontendID, relayChat int64) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		log:        log.With(slog.String("component", "coordinator")),
		store:      store,
		backend:    backend,
		frontend:   frontend,
		processor:  processor,
		frontendID: frontendID,
		relayChat:  relayChat,
	}
}

// Run consumes the backend update stream until the context ends.
func (c *Coordinator) Run(ctx context.Context, updates <-chan telegram.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			c.Handle(ctx, msg)
		}
	}
}

// Handle routes one backend inbox message.
func (c *Coordinator) Handle(ctx context.Context, msg telegram.Message) {
	if msg.ChatID != c.relayChat {
		return
	}
	switch {
	case relay.IsEnvelope(msg.Text):
		c.handleEnvelope(ctx, msg)
	case msg.SenderID == c.frontendID:
		// Forwarded copy from the frontend identity. Its envelope arrives as a
		// separate reply; nothing to do until then.
	case msg.Attachment != nil:
		c.handleDirect(ctx, msg)
	default:
		c.log.Debug("ignoring relay chat message", slog.Int("message", msg.MessageID))
	}
}

func (c *Coordinator) handleEnvelope(ctx context.Context, msg telegram.Message) {
	env, err := relay.ParseEnvelope(msg.Text)
	if err != nil {
		c.log.Error("malformed envelope", slog.Int("message", msg.MessageID), slog.Any("error", err))
		return
	}
	log := c.log.With(slog.String("correlation_id", env.CorrelationID))

	if _, ok := c.store.Get(env.CorrelationID); !ok {
		// The job was already swept; the status handle is all that is left.
		log.Warn("envelope for unknown job")
		c.editFrontend(ctx, env.Status, staleEnvelopeText)
		return
	}
	if msg.ReplyTo == nil || msg.ReplyTo.Attachment == nil {
		log.Error("envelope reply link does not reach an attachment")
		c.store.Fail(env.CorrelationID, relay.ErrAttachmentMissing.Error())
		c.editFrontend(ctx, env.Status, lostForwardText)
		return
	}

	ref := relay.MessageRef{ChatID: msg.ReplyTo.ChatID, MessageID: msg.ReplyTo.MessageID}
	if err := c.store.BindBackendRef(env.CorrelationID, ref); err != nil {
		if errors.Is(err, relay.ErrAlreadyBound) {
			// Replayed envelope; the first delivery owns the job.
			log.Warn("duplicate envelope ignored")
			return
		}
		log.Warn("bind failed", slog.Any("error", err))
		c.editFrontend(ctx, env.Status, staleEnvelopeText)
		return
	}
	if _, err := c.store.Transition(env.CorrelationID, relay.StateForwardAcked); err != nil {
		log.Error("transition forward_acked failed", slog.Any("error", err))
		return
	}
	job, err := c.store.Transition(env.CorrelationID, relay.StateFetching)
	if err != nil {
		log.Error("transition fetching failed", slog.Any("error", err))
		return
	}

	// File ids are scoped to the identity that saw them. The store carries the
	// frontend's id; the download must use the backend's view of the forwarded
	// copy, reached through the reply link.
	job.Attachment.FileID = msg.ReplyTo.Attachment.FileID
	log.Info("envelope bound",
		slog.Int("backend_message", ref.MessageID),
		slog.String("file", job.Attachment.DisplayName()))
	go c.processor.Process(ctx, job, c.frontend)
}

// handleDirect serves the owner dropping a file into the relay chat without
// going through the frontend. The backend owns the status message here.
func (c *Coordinator) handleDirect(ctx context.Context, msg telegram.Message) {
	job := c.store.Create(msg.ChatID, *msg.Attachment)
	log := c.log.With(
		slog.String("correlation_id", job.CorrelationID),
		slog.String("file", job.Attachment.DisplayName()))
	log.Info("direct submission accepted")

	statusRef, err := c.backend.Reply(ctx, msg.ChatID, msg.MessageID, directStatusText)
	if err != nil {
		log.Error("send status message failed", slog.Any("error", err))
		c.store.Fail(job.CorrelationID, "status message: "+err.Error())
		return
	}
	status := relay.StatusHandle{ChatID: statusRef.ChatID, MessageID: statusRef.MessageID}
	if err := c.store.SetStatus(job.CorrelationID, status); err != nil {
		log.Error("record status handle failed", slog.Any("error", err))
		return
	}
	if err := c.store.BindBackendRef(job.CorrelationID, relay.MessageRef{ChatID: msg.ChatID, MessageID: msg.MessageID}); err != nil {
		log.Error("bind failed", slog.Any("error", err))
		return
	}
	job, err = c.store.Transition(job.CorrelationID, relay.StateFetching)
	if err != nil {
		log.Error("transition fetching failed", slog.Any("error", err))
		return
	}
	go c.processor.Process(ctx, job, c.backend)
}

func (c *Coordinator) editFrontend(ctx context.Context, handle relay.StatusHandle, text string) {
	if handle.Zero() {
		return
	}
	if err := c.frontend.EditMessage(ctx, handle, text); err != nil {
		c.log.Warn("frontend status edit failed", slog.Any("error", err))
	}
}
