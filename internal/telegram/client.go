// Package telegram wraps the Bot API for both relay identities: the public
// frontend bot and the privileged backend client used for large-payload
// retrieval. Both expose the same send/edit/forward/download surface.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/uplinkbot/uplink/internal/relay"
)

const maxMessageLength = 4096

// Client is one chat identity on the platform.
type Client struct {
	log      *slog.Logger
	bot      *tgbotapi.BotAPI
	download *http.Client
}

// New connects a Client with the given token against the public Bot API.
func New(log *slog.Logger, token, name string) (*Client, error) {
	return NewWithEndpoint(log, token, tgbotapi.APIEndpoint, name)
}

// NewWithEndpoint connects a Client against a specific API endpoint. The
// backend identity points at a self-hosted endpoint with raised file limits.
func NewWithEndpoint(log *slog.Logger, token, endpoint, name string) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s identity: %w", name, err)
	}
	return &Client{
		log:      log.With(slog.String("identity", name), slog.String("username", bot.Self.UserName)),
		bot:      bot,
		download: &http.Client{Timeout: 30 * time.Minute},
	}, nil
}

// Username returns the identity's account name.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SelfID returns the identity's account id.
func (c *Client) SelfID() int64 {
	return c.bot.Self.ID
}

// SendMessage sends plain text to a chat and returns the sent message's location.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (relay.MessageRef, error) {
	return c.send(ctx, chatID, 0, text)
}

// Reply sends text as a reply to an existing message.
func (c *Client) Reply(ctx context.Context, chatID int64, replyTo int, text string) (relay.MessageRef, error) {
	return c.send(ctx, chatID, replyTo, text)
}

func (c *Client) send(ctx context.Context, chatID int64, replyTo int, text string) (relay.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return relay.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(chatID, truncateText(sanitizeText(text)))
	msg.DisableWebPagePreview = true
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}
	sent, err := c.bot.Send(msg)
	if err != nil {
		return relay.MessageRef{}, classifyError(err)
	}
	ref := relay.MessageRef{ChatID: chatID, MessageID: sent.MessageID}
	if sent.Chat != nil {
		ref.ChatID = sent.Chat.ID
	}
	return ref, nil
}

// EditMessage replaces the text of a previously sent message. "Message is not
// modified" responses are swallowed; rate limits surface as relay.RateLimitError.
func (c *Client) EditMessage(ctx context.Context, handle relay.StatusHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(handle.ChatID, handle.MessageID, truncateText(sanitizeText(text)))
	edit.DisableWebPagePreview = true
	if _, err := c.bot.Send(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return classifyError(err)
	}
	return nil
}

// ForwardMessage forwards a message into another chat, preserving the
// platform back-reference to the original so the forwarded copy alone is
// enough to fetch the bytes later.
func (c *Client) ForwardMessage(ctx context.Context, toChat, fromChat int64, messageID int) (relay.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return relay.MessageRef{}, err
	}
	fwd := tgbotapi.NewForward(toChat, fromChat, messageID)
	sent, err := c.bot.Send(fwd)
	if err != nil {
		return relay.MessageRef{}, classifyError(err)
	}
	ref := relay.MessageRef{ChatID: toChat, MessageID: sent.MessageID}
	if sent.Chat != nil {
		ref.ChatID = sent.Chat.ID
	}
	return ref, nil
}

// DownloadFile fetches the attachment bytes behind fileID into dst and
// returns the byte count. Expired references and rate limits come back as
// their relay error kinds.
func (c *Client) DownloadFile(ctx context.Context, fileID, dst string) (int64, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return 0, classifyError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download attachment: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, relay.ErrExpiredReference
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &relay.RateLimitError{RetryAfter: retryAfterHeader(resp)}
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("download attachment status: %d", resp.StatusCode)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create staging file: %w", err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("write staging file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("close staging file: %w", closeErr)
	}
	return written, nil
}

// Updates long-polls the identity's inbox and emits converted messages until
// the context is cancelled. The platform channel is drained on stop so the
// old getUpdates session can terminate cleanly.
func (c *Client) Updates(ctx context.Context) <-chan Message {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := c.bot.GetUpdatesChan(cfg)
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				for range updates {
				}
				return
			case update, ok := <-updates:
				if !ok {
					c.log.Info("updates channel closed")
					return
				}
				if update.Message == nil {
					continue
				}
				msg := fromTGMessage(update.Message)
				select {
				case out <- msg:
				case <-ctx.Done():
					c.bot.StopReceivingUpdates()
					for range updates {
					}
					return
				}
			}
		}
	}()
	return out
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	// The library hands API failures back as *tgbotapi.Error.
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			retryAfter := time.Duration(apiErr.RetryAfter) * time.Second
			return &relay.RateLimitError{RetryAfter: retryAfter}
		}
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "wrong file_id") ||
			strings.Contains(lower, "file is temporarily unavailable") ||
			strings.Contains(lower, "file not found") {
			return fmt.Errorf("%w: %s", relay.ErrExpiredReference, apiErr.Message)
		}
	}
	return err
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}

func retryAfterHeader(resp *http.Response) time.Duration {
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	seconds, err := time.ParseDuration(raw + "s")
	if err != nil {
		return 0
	}
	return seconds
}

// sanitizeText strips invalid UTF-8 byte sequences for the API.
func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText caps text at the platform message limit on a rune boundary.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}
