// Package worker executes the backend half of a relay job: pull the bytes out
// of Telegram, stage them on disk, push them to the upstream store, and keep
// the user's status message honest the whole way through.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/uplinkbot/uplink/internal/gofile"
	"github.com/uplinkbot/uplink/internal/relay"
)

// Job outcomes shown to the user by editing the status message in place.
const (
	downloadingText = "⬇️ Downloading your file from Telegram..."
	uploadingFormat = "⬆️ Uploading %s (%.1f MB) to Gofile.io..."
	doneFormat      = "✅ Done!\n\n🔗 Download: %s\n🔑 Admin code: %s"
	doneNoAdmin     = "✅ Done!\n\n🔗 Download: %s"
	expiredText     = "❌ Telegram no longer has this file. Please resend it."
	fetchFailText   = "❌ Could not download your file from Telegram. Please resend it."
	uploadFailText  = "❌ Gofile.io rejected the upload. Please try again later."
)

// StatusEditor edits the user-facing status message. The frontend and backend
// identities each own their status messages, so the editor is chosen per job.
type StatusEditor interface {
	EditMessage(ctx context.Context, handle relay.StatusHandle, text string) error
}

// Fetcher pulls file bytes out of Telegram into a local path.
type Fetcher interface {
	DownloadFile(ctx context.Context, fileID, dst string) (int64, error)
}

// Uploader pushes a staged file to the upstream store.
type Uploader interface {
	Upload(ctx context.Context, path, filename string) (gofile.Result, error)
}

// AdminNotifier mirrors job outcomes into the operator's log chat. May be nil.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string)
}

// Worker runs relay jobs to completion. Safe for concurrent Process calls.
type Worker struct {
	log     *slog.Logger
	store   *relay.Store
	fetcher Fetcher
	upload  Uploader
	admin   AdminNotifier
	staging string
}

// New creates a Worker staging downloads under stagingDir.
func New(log *slog.Logger, store *relay.Store, fetcher Fetcher, upload Uploader, admin AdminNotifier, stagingDir string) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Worker{
		log:     log.With(slog.String("component", "worker")),
		store:   store,
		fetcher: fetcher,
		upload:  upload,
		admin:   admin,
		staging: stagingDir,
	}
}

// Process runs one job end to end. It owns the job's terminal state: every
// return path leaves the job Completed or Failed and the status message edited
// to match. Panics are contained to the job.
func (w *Worker) Process(ctx context.Context, job relay.Job, editor StatusEditor) {
	log := w.log.With(
		slog.String("correlation_id", job.CorrelationID),
		slog.String("file", job.Attachment.DisplayName()),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", slog.Any("panic", r))
			w.fail(ctx, job, editor, fmt.Sprintf("panic: %v", r), fetchFailText)
		}
	}()

	filename := sanitizeFilename(job.Attachment.DisplayName())
	staged := stagedPath(w.staging, job.CorrelationID, filename)
	log.Info("processing job", slog.String("staged", staged))

	// Covers partial writes too: the staged file must be gone on every exit
	// path, not only after a completed download.
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			log.Warn("staged file cleanup failed", slog.Any("error", err))
		}
	}()

	w.edit(ctx, editor, job.Status, downloadingText)
	size, err := w.fetch(ctx, job, staged)
	if err != nil {
		log.Error("download failed", slog.Any("error", err))
		text := fetchFailText
		if errors.Is(err, relay.ErrExpiredReference) {
			text = expiredText
		}
		w.fail(ctx, job, editor, fmt.Sprintf("download: %v", err), text)
		return
	}

	if _, err := w.store.Transition(job.CorrelationID, relay.StateUploading); err != nil {
		log.Error("transition uploading failed", slog.Any("error", err))
		return
	}
	w.edit(ctx, editor, job.Status, fmt.Sprintf(uploadingFormat, filename, float64(size)/(1024*1024)))

	result, err := w.upload.Upload(ctx, staged, filename)
	if err != nil {
		log.Error("upload failed", slog.Any("error", err))
		w.fail(ctx, job, editor, fmt.Sprintf("upload: %v", err), uploadFailText)
		return
	}

	if _, err := w.store.Transition(job.CorrelationID, relay.StateCompleted); err != nil {
		log.Error("transition completed failed", slog.Any("error", err))
	}
	final := fmt.Sprintf(doneNoAdmin, result.DownloadPage)
	if result.AdminCode != "" {
		final = fmt.Sprintf(doneFormat, result.DownloadPage, result.AdminCode)
	}
	w.edit(ctx, editor, job.Status, final)
	w.notify(ctx, fmt.Sprintf("📤 %s (%.1f MB) → %s", filename, float64(size)/(1024*1024), result.DownloadPage))
	log.Info("job completed", slog.Int64("size", size), slog.String("download_page", result.DownloadPage))
}

// fetch downloads the attachment, retrying once after the wait Telegram asks
// for when it rate limits the file endpoint. The retry wait happens inside the
// job's own goroutine and never blocks other jobs.
func (w *Worker) fetch(ctx context.Context, job relay.Job, staged string) (int64, error) {
	if job.Attachment.FileID == "" {
		return 0, relay.ErrAttachmentMissing
	}
	w.store.RecordAttempt(job.CorrelationID)
	size, err := w.fetcher.DownloadFile(ctx, job.Attachment.FileID, staged)
	var limited *relay.RateLimitError
	if !errors.As(err, &limited) {
		return size, err
	}
	w.log.Warn("rate limited, retrying after wait",
		slog.String("correlation_id", job.CorrelationID),
		slog.Duration("retry_after", limited.RetryAfter))
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(limited.RetryAfter):
	}
	w.store.RecordAttempt(job.CorrelationID)
	return w.fetcher.DownloadFile(ctx, job.Attachment.FileID, staged)
}

func (w *Worker) fail(ctx context.Context, job relay.Job, editor StatusEditor, reason, userText string) {
	if _, failed := w.store.Fail(job.CorrelationID, reason); !failed {
		return
	}
	w.edit(ctx, editor, job.Status, userText)
	w.notify(ctx, fmt.Sprintf("⚠️ %s failed: %s", job.Attachment.DisplayName(), reason))
}

func (w *Worker) edit(ctx context.Context, editor StatusEditor, handle relay.StatusHandle, text string) {
	if handle.Zero() {
		return
	}
	if err := editor.EditMessage(ctx, handle, text); err != nil {
		w.log.Warn("status edit failed", slog.Any("error", err))
	}
}

func (w *Worker) notify(ctx context.Context, text string) {
	if w.admin == nil {
		return
	}
	w.admin.NotifyAdmin(ctx, text)
}
