package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/uplinkbot/uplink/internal/relay"
)

func TestFromTGMessageDocument(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		MessageID: 7,
		Chat:      &tgbotapi.Chat{ID: 100},
		From:      &tgbotapi.User{ID: 55, FirstName: "Alice"},
		Document:  &tgbotapi.Document{FileID: "f1", FileUniqueID: "u1", FileName: " report.pdf ", FileSize: 5 << 20},
	})
	if msg.ChatID != 100 || msg.MessageID != 7 || msg.SenderID != 55 {
		t.Fatalf("unexpected message identity: %+v", msg)
	}
	if msg.Attachment == nil || !msg.HasMedia {
		t.Fatal("expected attachment")
	}
	att := msg.Attachment
	if att.Kind != relay.KindDocument || att.Name != "report.pdf" || att.Size != 5<<20 {
		t.Fatalf("unexpected attachment: %+v", att)
	}
}

func TestFromTGMessagePhotoPicksLargest(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileSize: 100, Width: 90, Height: 90},
			{FileID: "large", FileSize: 9000, Width: 800, Height: 600},
			{FileID: "medium", FileSize: 900, Width: 320, Height: 240},
		},
	})
	if msg.Attachment == nil || msg.Attachment.FileID != "large" {
		t.Fatalf("expected largest photo, got %+v", msg.Attachment)
	}
	if msg.Attachment.Kind != relay.KindPhoto {
		t.Fatalf("unexpected kind: %s", msg.Attachment.Kind)
	}
}

func TestFromTGMessageAnimatedSticker(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 1},
		Sticker: &tgbotapi.Sticker{FileID: "s1", FileUniqueID: "su1", IsAnimated: true},
	})
	if msg.Attachment == nil || !msg.Attachment.Animated {
		t.Fatalf("expected animated sticker flag: %+v", msg.Attachment)
	}

	static := fromTGMessage(&tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 1},
		Sticker: &tgbotapi.Sticker{FileID: "s2", FileUniqueID: "su2"},
	})
	if static.Attachment == nil || static.Attachment.Animated {
		t.Fatalf("static sticker should not be animated: %+v", static.Attachment)
	}
}

func TestFromTGMessageUnsupportedMedia(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		Chat:      &tgbotapi.Chat{ID: 1},
		Animation: &tgbotapi.Animation{FileID: "a1"},
	})
	if msg.Attachment != nil {
		t.Fatalf("animation should not map to an attachment: %+v", msg.Attachment)
	}
	if !msg.HasMedia {
		t.Fatal("animation is still media")
	}
}

func TestFromTGMessagePlainText(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 1},
		Text: "  hello  ",
	})
	if msg.HasMedia || msg.Attachment != nil {
		t.Fatal("text message should carry no media")
	}
	if msg.Text != "hello" {
		t.Fatalf("text not trimmed: %q", msg.Text)
	}
}

func TestFromTGMessageCommand(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	})
	if msg.Command != "start" {
		t.Fatalf("command = %q, want start", msg.Command)
	}
}

func TestFromTGMessageReplyChain(t *testing.T) {
	t.Parallel()

	msg := fromTGMessage(&tgbotapi.Message{
		MessageID: 20,
		Chat:      &tgbotapi.Chat{ID: 9},
		Text:      "UPLINK_RELAY:abc\nORIGIN_CHAT:1\nSTATUS_MESSAGE:1:2",
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 19,
			Chat:      &tgbotapi.Chat{ID: 9},
			Document:  &tgbotapi.Document{FileID: "f9", FileUniqueID: "u9", FileName: "big.iso"},
		},
	})
	if msg.ReplyTo == nil {
		t.Fatal("reply link lost")
	}
	if msg.ReplyTo.MessageID != 19 || msg.ReplyTo.Attachment == nil {
		t.Fatalf("unexpected replied-to message: %+v", msg.ReplyTo)
	}
	if msg.ReplyTo.Attachment.Name != "big.iso" {
		t.Fatalf("unexpected replied-to attachment: %+v", msg.ReplyTo.Attachment)
	}
}

func TestTruncateTextRuneBoundary(t *testing.T) {
	t.Parallel()

	long := ""
	for range maxMessageLength {
		long += "日"
	}
	got := truncateText(long)
	if len(got) > maxMessageLength {
		t.Fatalf("still too long: %d", len(got))
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("missing truncation suffix: %q", got[len(got)-10:])
	}
}
