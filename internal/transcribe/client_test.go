package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/cutline-api/internal/timeline"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3 fake audio"), 0644))
	return path
}

func newTestClient(t *testing.T, url string, opts ...ClientOption) *OpenAIClient {
	t.Helper()
	opts = append([]ClientOption{WithAPIKey("test-key"), WithBaseURL(url)}, opts...)
	c, err := NewOpenAIClient(opts...)
	require.NoError(t, err)
	return c
}

func TestNewOpenAIClient_APIKey(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := NewOpenAIClient()
		assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "env-key")
		c, err := NewOpenAIClient()
		require.NoError(t, err)
		assert.Equal(t, "env-key", c.apiKey)
		assert.Equal(t, 0, c.maxRetries)
		assert.Equal(t, "whisper-1", c.model)
	})

	t.Run("option overrides env", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "env-key")
		c, err := NewOpenAIClient(WithAPIKey("opt-key"), WithBaseURL("http://example.test/v1/"))
		require.NoError(t, err)
		assert.Equal(t, "opt-key", c.apiKey)
		assert.Equal(t, "http://example.test/v1", c.baseURL)
	})
}

func TestTranscribe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "es", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "speech.mp3", hdr.Filename)
		assert.Equal(t, "ID3 fake audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"language": "spanish",
			"duration": 7.2,
			"segments": [
				{"id": 0, "start": 0.0, "end": 2.48, "text": " Hola a todos."},
				{"id": 1, "start": 2.48, "end": 2.48, "text": " "},
				{"id": 2, "start": 2.48, "end": 7.2, "text": " Empezamos."}
			]
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithModel("whisper-large"))
	got, err := c.Transcribe(context.Background(), writeAudio(t), "es")
	require.NoError(t, err)

	assert.Equal(t, []timeline.Segment{
		{ID: 0, Start: 0, End: 2.48, Text: "Hola a todos."},
		{ID: 2, Start: 2.48, End: 7.2, Text: "Empezamos."},
	}, got)
}

func TestTranscribe_OmitsEmptyLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["language"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"segments": []}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server.URL).Transcribe(context.Background(), writeAudio(t), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTranscribe_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		c := newTestClient(t, "http://127.0.0.1:1")
		_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"), "en")
		assert.Error(t, err)
	})

	t.Run("file too large", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.mp3")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, f.Truncate(MaxUploadBytes+1))
		require.NoError(t, f.Close())

		c := newTestClient(t, "http://127.0.0.1:1")
		_, err = c.Transcribe(context.Background(), path, "en")
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("client error carries api message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "Invalid file format.", "type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Transcribe(context.Background(), writeAudio(t), "en")
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Contains(t, err.Error(), "Invalid file format.")
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Transcribe(context.Background(), writeAudio(t), "en")
		assert.Error(t, err)
	})

	t.Run("context cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"segments": []}`))
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := newTestClient(t, server.URL).Transcribe(ctx, writeAudio(t), "en")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRetry_DefaultIsNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Transcribe(context.Background(), writeAudio(t), "en")
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetry_TransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"segments": [{"id": 0, "start": 0, "end": 1, "text": "ok"}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithMaxRetries(3), WithBaseBackoff(10*time.Millisecond))
	got, err := c.Transcribe(context.Background(), writeAudio(t), "en")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_RateLimitedThenExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithMaxRetries(2), WithBaseBackoff(5*time.Millisecond))
	_, err := c.Transcribe(context.Background(), writeAudio(t), "en")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_NonRetryableError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithMaxRetries(3), WithBaseBackoff(5*time.Millisecond))
	_, err := c.Transcribe(context.Background(), writeAudio(t), "en")
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, int32(1), calls.Load())
}
