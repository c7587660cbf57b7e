// Package gofile is a client for the Gofile.io content store: it picks an
// upload server and posts file bytes as a multipart upload, returning the
// shareable download page.
package gofile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/uplinkbot/uplink/internal/relay"
)

const (
	// DefaultAPIBase is the Gofile API host used to pick an upload server.
	DefaultAPIBase = "https://api.gofile.io"
	// DefaultServer is used when the assign-server call fails.
	DefaultServer = "store1"
	// DefaultUploadTimeout bounds a single upload. Generous, large files are slow.
	DefaultUploadTimeout = 30 * time.Minute

	apiTimeout = 10 * time.Second
)

// uploadURLForTest overrides the upload endpoint in tests.
var uploadURLForTest func(server string) string

// Result is a successful upload's outcome.
type Result struct {
	DownloadPage string
	FileName     string
	AdminCode    string
}

// Client talks to the Gofile.io API.
type Client struct {
	log           *slog.Logger
	apiBase       string
	defaultServer string
	api           *http.Client
	upload        *http.Client
}

// New creates a Client. Empty arguments fall back to the package defaults.
func New(log *slog.Logger, apiBase, defaultServer string, uploadTimeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if defaultServer == "" {
		defaultServer = DefaultServer
	}
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &Client{
		log:           log.With(slog.String("component", "gofile")),
		apiBase:       apiBase,
		defaultServer: defaultServer,
		api:           &http.Client{Timeout: apiTimeout},
		upload:        &http.Client{Timeout: uploadTimeout},
	}
}

type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		Server       string `json:"server"`
		DownloadPage string `json:"downloadPage"`
		FileName     string `json:"fileName"`
		AdminCode    string `json:"adminCode"`
	} `json:"data"`
}

// GetServer asks the API for the upload server to use. Any failure falls back
// to the configured default server; upload is still attempted.
func (c *Client) GetServer(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/getServer", nil)
	if err != nil {
		return c.defaultServer
	}
	resp, err := c.api.Do(req)
	if err != nil {
		c.log.Warn("assign server failed, using default",
			slog.String("server", c.defaultServer), slog.Any("error", err))
		return c.defaultServer
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("assign server status, using default",
			slog.Int("status", resp.StatusCode), slog.String("server", c.defaultServer))
		return c.defaultServer
	}
	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.log.Warn("assign server decode failed, using default", slog.Any("error", err))
		return c.defaultServer
	}
	if decoded.Status != "ok" || decoded.Data.Server == "" {
		c.log.Warn("assign server not ok, using default", slog.String("status", decoded.Status))
		return c.defaultServer
	}
	return decoded.Data.Server
}

// Upload posts the file at path to the store under the given filename and
// returns the download reference. The upload is attempted once.
func (c *Client) Upload(ctx context.Context, path, filename string) (Result, error) {
	server := c.GetServer(ctx)
	url := fmt.Sprintf("https://%s.gofile.io/uploadFile", server)
	if uploadURLForTest != nil {
		url = uploadURLForTest(server)
	}

	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open staged file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	// Stream the multipart body so large files never sit in memory whole.
	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		part, err := form.CreateFormFile("file", filename)
		if err != nil {
			_ = writer.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			_ = writer.CloseWithError(err)
			return
		}
		_ = writer.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.upload.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", relay.ErrUpstreamStore, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("%w: status %d from %s", relay.ErrUpstreamStore, resp.StatusCode, server)
	}
	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %w", relay.ErrUpstreamStore, err)
	}
	if decoded.Status != "ok" {
		return Result{}, fmt.Errorf("%w: status %q", relay.ErrUpstreamStore, decoded.Status)
	}
	if decoded.Data.DownloadPage == "" {
		return Result{}, fmt.Errorf("%w: response has no download page", relay.ErrUpstreamStore)
	}
	name := decoded.Data.FileName
	if name == "" {
		name = filename
	}
	return Result{
		DownloadPage: decoded.Data.DownloadPage,
		FileName:     name,
		AdminCode:    decoded.Data.AdminCode,
	}, nil
}
