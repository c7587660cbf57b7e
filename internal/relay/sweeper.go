package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const timeoutStatusText = "⌛ Timed out waiting for processing. Please resend the file."

// StatusNotifier edits a status message in place. Implemented by the frontend
// identity's client.
type StatusNotifier interface {
	EditMessage(ctx context.Context, handle StatusHandle, text string) error
}

// Sweeper periodically reclaims orphaned jobs from the store, reporting the
// timeout on each job's status message when one was recorded.
type Sweeper struct {
	log      *slog.Logger
	store    *Store
	notifier StatusNotifier
	cron     *cron.Cron
	every    time.Duration
}

// NewSweeper creates a Sweeper running every `every` (falls back to one minute).
func NewSweeper(log *slog.Logger, store *Store, notifier StatusNotifier, every time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if every <= 0 {
		every = time.Minute
	}
	return &Sweeper{
		log:      log.With(slog.String("component", "sweeper")),
		store:    store,
		notifier: notifier,
		cron:     cron.New(),
		every:    every,
	}
}

// Start schedules the sweep and starts the cron runner.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.every)
	if _, err := s.cron.AddFunc(spec, func() {
		s.SweepOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOnce runs a single sweep pass and returns the number of reclaimed jobs.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	timedOut := s.store.Sweep(time.Now())
	for _, job := range timedOut {
		s.log.Warn("job reclaimed by timeout",
			slog.String("correlation_id", job.CorrelationID),
			slog.Int64("origin_chat", job.OriginChat),
			slog.String("file", job.Attachment.DisplayName()),
		)
		if job.Status.Zero() || s.notifier == nil {
			continue
		}
		if err := s.notifier.EditMessage(ctx, job.Status, timeoutStatusText); err != nil {
			s.log.Error("edit timeout status failed",
				slog.String("correlation_id", job.CorrelationID),
				slog.Any("error", err),
			)
		}
	}
	return len(timedOut)
}
