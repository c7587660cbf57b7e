package gofile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uplinkbot/uplink/internal/relay"
)

func stageFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func withUploadServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	prev := uploadURLForTest
	uploadURLForTest = func(string) string { return srv.URL + "/uploadFile" }
	t.Cleanup(func() { uploadURLForTest = prev })
	return srv
}

func TestGetServerUsesAssignedServer(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getServer", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","data":{"server":"store42"}}`))
	}))
	defer api.Close()

	client := New(nil, api.URL, "store1", time.Minute)
	assert.Equal(t, "store42", client.GetServer(context.Background()))
}

func TestGetServerFallsBackToDefault(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-ok status": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error"}`))
		},
		"missing server": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok","data":{}}`))
		},
		"http error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			api := httptest.NewServer(handler)
			defer api.Close()
			client := New(nil, api.URL, "store1", time.Minute)
			assert.Equal(t, "store1", client.GetServer(context.Background()))
		})
	}
}

func TestGetServerUnreachableAPI(t *testing.T) {
	client := New(nil, "http://127.0.0.1:1", "store1", time.Minute)
	assert.Equal(t, "store1", client.GetServer(context.Background()))
}

func TestUploadSuccess(t *testing.T) {
	var gotFilename string
	withUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		_, _ = w.Write([]byte(`{"status":"ok","data":{"downloadPage":"https://gofile.io/d/abc123","fileName":"report.pdf","adminCode":"secret"}}`))
	})

	client := New(nil, "http://127.0.0.1:1", "store1", time.Minute)
	path := stageFile(t, "report.pdf", "pdf bytes")
	result, err := client.Upload(context.Background(), path, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", gotFilename)
	assert.Equal(t, "https://gofile.io/d/abc123", result.DownloadPage)
	assert.Equal(t, "report.pdf", result.FileName)
	assert.Equal(t, "secret", result.AdminCode)
}

func TestUploadNonOKStatus(t *testing.T) {
	withUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error-rateLimit"}`))
	})
	client := New(nil, "http://127.0.0.1:1", "store1", time.Minute)
	path := stageFile(t, "a.bin", "x")
	_, err := client.Upload(context.Background(), path, "a.bin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, relay.ErrUpstreamStore))
}

func TestUploadMissingDownloadPage(t *testing.T) {
	withUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":{"fileName":"a.bin"}}`))
	})
	client := New(nil, "http://127.0.0.1:1", "store1", time.Minute)
	path := stageFile(t, "a.bin", "x")
	_, err := client.Upload(context.Background(), path, "a.bin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, relay.ErrUpstreamStore))
}

func TestUploadHTTPFailure(t *testing.T) {
	withUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := New(nil, "http://127.0.0.1:1", "store1", time.Minute)
	path := stageFile(t, "a.bin", "x")
	_, err := client.Upload(context.Background(), path, "a.bin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, relay.ErrUpstreamStore))
}

func TestUploadMissingStagedFile(t *testing.T) {
	client := New(nil, "http://127.0.0.1:1", "store1", time.Minute)
	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.bin"), "gone.bin")
	require.Error(t, err)
	assert.False(t, errors.Is(err, relay.ErrUpstreamStore))
}
