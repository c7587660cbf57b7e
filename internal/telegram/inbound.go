package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/uplinkbot/uplink/internal/relay"
)

// Message is an inbound message converted to the relay's view of the world.
type Message struct {
	ChatID     int64
	MessageID  int
	SenderID   int64
	SenderName string
	Text       string
	Command    string
	HasMedia   bool
	Attachment *relay.Attachment
	ReplyTo    *Message
}

func fromTGMessage(msg *tgbotapi.Message) Message {
	converted := Message{
		MessageID: msg.MessageID,
		Text:      strings.TrimSpace(msg.Text),
	}
	if msg.Chat != nil {
		converted.ChatID = msg.Chat.ID
	}
	if msg.From != nil {
		converted.SenderID = msg.From.ID
		converted.SenderName = strings.TrimSpace(msg.From.FirstName)
		if converted.SenderName == "" {
			converted.SenderName = strings.TrimSpace(msg.From.UserName)
		}
	}
	if msg.IsCommand() {
		converted.Command = msg.Command()
	}
	converted.Attachment, converted.HasMedia = extractAttachment(msg)
	if msg.ReplyToMessage != nil {
		replied := fromTGMessage(msg.ReplyToMessage)
		converted.ReplyTo = &replied
	}
	return converted
}

// extractAttachment maps the message media to a relay attachment. The second
// return value reports whether the message carried media at all; media with a
// false attachment (nil) is of an unsupported kind.
func extractAttachment(msg *tgbotapi.Message) (*relay.Attachment, bool) {
	switch {
	case msg.Document != nil:
		return &relay.Attachment{
			Kind:         relay.KindDocument,
			FileID:       msg.Document.FileID,
			FileUniqueID: msg.Document.FileUniqueID,
			Name:         strings.TrimSpace(msg.Document.FileName),
			Size:         int64(msg.Document.FileSize),
		}, true
	case msg.Video != nil:
		return &relay.Attachment{
			Kind:         relay.KindVideo,
			FileID:       msg.Video.FileID,
			FileUniqueID: msg.Video.FileUniqueID,
			Name:         strings.TrimSpace(msg.Video.FileName),
			Size:         int64(msg.Video.FileSize),
		}, true
	case msg.Audio != nil:
		return &relay.Attachment{
			Kind:         relay.KindAudio,
			FileID:       msg.Audio.FileID,
			FileUniqueID: msg.Audio.FileUniqueID,
			Name:         strings.TrimSpace(msg.Audio.FileName),
			Size:         int64(msg.Audio.FileSize),
		}, true
	case len(msg.Photo) > 0:
		photo := pickPhoto(msg.Photo)
		return &relay.Attachment{
			Kind:         relay.KindPhoto,
			FileID:       photo.FileID,
			FileUniqueID: photo.FileUniqueID,
			Size:         int64(photo.FileSize),
		}, true
	case msg.Voice != nil:
		return &relay.Attachment{
			Kind:         relay.KindVoice,
			FileID:       msg.Voice.FileID,
			FileUniqueID: msg.Voice.FileUniqueID,
			Size:         int64(msg.Voice.FileSize),
		}, true
	case msg.Sticker != nil:
		return &relay.Attachment{
			Kind:         relay.KindSticker,
			FileID:       msg.Sticker.FileID,
			FileUniqueID: msg.Sticker.FileUniqueID,
			Size:         int64(msg.Sticker.FileSize),
			// The pinned Bot API library predates the is_video sticker
			// field, so .tgs detection via IsAnimated is all it exposes.
			Animated:     msg.Sticker.IsAnimated,
		}, true
	case msg.Animation != nil, msg.VideoNote != nil:
		// Media the relay does not carry; intake rejects it directly.
		return nil, true
	default:
		return nil, false
	}
}

// pickPhoto selects the largest rendition of a photo.
func pickPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
