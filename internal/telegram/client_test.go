package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/uplinkbot/uplink/internal/relay"
)

func TestClassifyErrorRateLimit(t *testing.T) {
	t.Parallel()

	err := classifyError(&tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5},
	})

	var limited *relay.RateLimitError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if limited.RetryAfter != 5*time.Second {
		t.Fatalf("retry after = %s, want 5s", limited.RetryAfter)
	}
}

func TestClassifyErrorExpiredReference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		message string
	}{
		{"wrong file id", "Bad Request: wrong file_id or the file is temporarily unavailable"},
		{"file not found", "Bad Request: file not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := classifyError(&tgbotapi.Error{Code: 400, Message: tc.message})
			if !errors.Is(err, relay.ErrExpiredReference) {
				t.Fatalf("expected ErrExpiredReference, got %v", err)
			}
		})
	}
}

func TestClassifyErrorPassthrough(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"plain error", fmt.Errorf("network error")},
		{"other api error", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tc.err); !errors.Is(got, tc.err) {
				t.Fatalf("classifyError(%v) = %v, want passthrough", tc.err, got)
			}
		})
	}
}

func TestClassifyErrorWrapped(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("send: %w", &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 2},
	})
	var limited *relay.RateLimitError
	if !errors.As(classifyError(wrapped), &limited) {
		t.Fatal("wrapped 429 must still classify as RateLimitError")
	}
}

func TestIsNotModified(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", fmt.Errorf("network error"), false},
		{"not modified", &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}, true},
		{"same text but code 500", &tgbotapi.Error{Code: 500, Message: "message is not modified"}, false},
		{"other 400", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, false},
		{"wrapped", fmt.Errorf("edit: %w", &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isNotModified(tc.err); got != tc.want {
				t.Fatalf("isNotModified(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryAfterHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"absent", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"garbage", "later", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{Header: http.Header{}}
			if tc.value != "" {
				resp.Header.Set("Retry-After", tc.value)
			}
			if got := retryAfterHeader(resp); got != tc.want {
				t.Fatalf("retryAfterHeader = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTruncateTextCapsAtLimit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", maxMessageLength+50)
	got := truncateText(long)
	if len(got) != maxMessageLength {
		t.Fatalf("len = %d, want %d", len(got), maxMessageLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("truncated text must end with ellipsis")
	}
}
