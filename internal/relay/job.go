// Package relay holds the cross-identity relay protocol: the job model, the
// correlation store that tracks in-flight submissions, and the envelope codec
// that binds a forwarded attachment to its originating chat.
package relay

import (
	"strings"
	"time"
)

// Kind identifies the attachment type of a submission.
type Kind string

const (
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindPhoto    Kind = "photo"
	KindVoice    Kind = "voice"
	KindSticker  Kind = "sticker"
)

// String returns the kind as a plain string.
func (k Kind) String() string {
	return string(k)
}

// Attachment describes one submitted file as seen on the messaging platform.
type Attachment struct {
	Kind         Kind
	FileID       string
	FileUniqueID string
	Name         string // declared filename, may be empty
	Size         int64
	Animated     bool // animated/video stickers are rejected at intake
}

// DisplayName returns the declared filename, or a synthesized one derived
// from the attachment kind and its platform-assigned unique identifier.
func (a Attachment) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	uid := strings.TrimSpace(a.FileUniqueID)
	if uid == "" {
		uid = strings.TrimSpace(a.FileID)
	}
	switch a.Kind {
	case KindPhoto:
		return "photo_" + uid + ".jpg"
	case KindVideo:
		return "video_" + uid + ".mp4"
	case KindAudio:
		return "audio_" + uid + ".mp3"
	case KindVoice:
		return "voice_" + uid + ".ogg"
	case KindSticker:
		return "sticker_" + uid + ".webp"
	default:
		return "file_" + uid
	}
}

// StatusHandle references the single mutable status message shown to the
// submitting user. All progress and result reporting edits this message in place.
type StatusHandle struct {
	ChatID    int64
	MessageID int
}

// Zero reports whether the handle has not been assigned yet.
func (h StatusHandle) Zero() bool {
	return h.ChatID == 0 && h.MessageID == 0
}

// MessageRef identifies a message inside a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// State is a job's position in its lifecycle.
type State string

const (
	StateCreated          State = "created"
	StateForwardRequested State = "forward_requested"
	StateForwardAcked     State = "forward_acked"
	StateFetching         State = "fetching"
	StateUploading        State = "uploading"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

var stateRank = map[State]int{
	StateCreated:          0,
	StateForwardRequested: 1,
	StateForwardAcked:     2,
	StateFetching:         3,
	StateUploading:        4,
	StateCompleted:        5,
}

// Terminal reports whether the state ends the job's lifecycle.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether a job may move from one state to another.
// Progress is forward-only; Failed is reachable from any non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	fromRank, ok := stateRank[from]
	if !ok {
		return false
	}
	toRank, ok := stateRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Job is one correlation-tracked user submission moving through the pipeline.
type Job struct {
	CorrelationID string
	OriginChat    int64
	Status        StatusHandle
	Attachment    Attachment
	BackendRef    *MessageRef
	State         State
	FailReason    string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
