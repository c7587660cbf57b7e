package relay

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobNotFound indicates the correlation id does not map to a live job.
	ErrJobNotFound = errors.New("relay job not found")
	// ErrAlreadyBound indicates a backend reference was already bound to the job.
	ErrAlreadyBound = errors.New("backend reference already bound")
	// ErrInvalidTransition indicates a state change that violates the job lifecycle.
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrNotEnvelope indicates a message text that does not carry the envelope marker.
	ErrNotEnvelope = errors.New("not a relay envelope")
	// ErrExpiredReference indicates the attachment is no longer retrievable.
	ErrExpiredReference = errors.New("attachment reference expired")
	// ErrAttachmentMissing indicates the replied-to message carries no retrievable media.
	ErrAttachmentMissing = errors.New("replied-to message has no attachment")
	// ErrUpstreamStore indicates a content store failure (non-ok status, timeout, bad response).
	ErrUpstreamStore = errors.New("content store upload failed")
)

// RateLimitError is returned when the transport asks for a cooldown before
// the operation may be retried.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
