package relay

import (
	"fmt"
	"strconv"
	"strings"
)

// Envelope text format, one KEY:VALUE field per line:
//
//	UPLINK_RELAY:<correlation_id>
//	ORIGIN_CHAT:<chat_id>
//	STATUS_MESSAGE:<chat_id>:<message_id>
//
// The envelope is always sent as a reply to the forwarded attachment; the
// reply link is what binds it to its attachment, never message recency.
const (
	envelopeMarker    = "UPLINK_RELAY"
	envelopeKeyOrigin = "ORIGIN_CHAT"
	envelopeKeyStatus = "STATUS_MESSAGE"
)

// Envelope carries a job's correlation data across identities.
type Envelope struct {
	CorrelationID string
	OriginChat    int64
	Status        StatusHandle
}

// Encode renders the envelope in its wire format.
func (e Envelope) Encode() string {
	return fmt.Sprintf("%s:%s\n%s:%d\n%s:%d:%d",
		envelopeMarker, e.CorrelationID,
		envelopeKeyOrigin, e.OriginChat,
		envelopeKeyStatus, e.Status.ChatID, e.Status.MessageID,
	)
}

// IsEnvelope reports whether the text carries the envelope marker.
func IsEnvelope(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), envelopeMarker+":")
}

// ParseEnvelope decodes an envelope message. Text without the marker returns
// ErrNotEnvelope; text with the marker but a broken body returns a decode error.
func ParseEnvelope(text string) (Envelope, error) {
	trimmed := strings.TrimSpace(text)
	if !IsEnvelope(trimmed) {
		return Envelope{}, ErrNotEnvelope
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) != 3 {
		return Envelope{}, fmt.Errorf("envelope has %d lines, want 3", len(lines))
	}
	var env Envelope
	env.CorrelationID = strings.TrimSpace(strings.TrimPrefix(lines[0], envelopeMarker+":"))
	if env.CorrelationID == "" {
		return Envelope{}, fmt.Errorf("envelope missing correlation id")
	}
	originRaw, ok := envelopeValue(lines[1], envelopeKeyOrigin)
	if !ok {
		return Envelope{}, fmt.Errorf("envelope missing %s", envelopeKeyOrigin)
	}
	origin, err := strconv.ParseInt(originRaw, 10, 64)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope origin chat: %w", err)
	}
	env.OriginChat = origin
	statusRaw, ok := envelopeValue(lines[2], envelopeKeyStatus)
	if !ok {
		return Envelope{}, fmt.Errorf("envelope missing %s", envelopeKeyStatus)
	}
	chatRaw, msgRaw, found := strings.Cut(statusRaw, ":")
	if !found {
		return Envelope{}, fmt.Errorf("envelope status handle %q is not chat:message", statusRaw)
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatRaw), 10, 64)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope status chat: %w", err)
	}
	messageID, err := strconv.Atoi(strings.TrimSpace(msgRaw))
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope status message id: %w", err)
	}
	env.Status = StatusHandle{ChatID: chatID, MessageID: messageID}
	return env, nil
}

func envelopeValue(line, key string) (string, bool) {
	gotKey, value, found := strings.Cut(line, ":")
	if !found || strings.TrimSpace(gotKey) != key {
		return "", false
	}
	return strings.TrimSpace(value), true
}
