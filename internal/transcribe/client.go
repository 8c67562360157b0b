package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/cutline-api/internal/timeline"
)

// Static errors for transcription client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("transcribe: OPENAI_API_KEY environment variable is not set")
	// ErrFileTooLarge is returned for uploads above the API limit.
	ErrFileTooLarge = errors.New("transcribe: audio file exceeds upload limit")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("transcribe: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("transcribe: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("transcribe: request failed")
)

// MaxUploadBytes is the largest file the transcription endpoint accepts.
const MaxUploadBytes = 25 << 20

// OpenAIClient is the HTTP implementation of Transcriber.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an OpenAIClient.
type ClientOption func(*OpenAIClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *OpenAIClient) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *OpenAIClient) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) ClientOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the transcription model.
func WithModel(model string) ClientOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
// The default is no retry: callers re-run a failed transcription themselves.
func WithMaxRetries(n int) ClientOption {
	return func(c *OpenAIClient) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *OpenAIClient) {
		c.baseBackoff = d
	}
}

// NewOpenAIClient creates a new transcription client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable OPENAI_API_KEY.
func NewOpenAIClient(opts ...ClientOption) (*OpenAIClient, error) {
	c := &OpenAIClient{
		baseURL:     "https://api.openai.com/v1",
		model:       "whisper-1",
		httpClient:  &http.Client{Timeout: 10 * time.Minute},
		maxRetries:  0,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Transcribe uploads the audio at path and returns its segments in order.
// language is an ISO-639-1 code; empty lets the service detect it.
// Segments without positive duration are dropped.
func (c *OpenAIClient) Transcribe(ctx context.Context, path, language string) ([]timeline.Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: stat audio: %w", err)
	}
	if info.Size() > MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	body, contentType, err := c.buildForm(path, language)
	if err != nil {
		return nil, err
	}

	var resp verboseResponse
	url := c.baseURL + "/audio/transcriptions"
	if err := c.doRequestWithRetry(ctx, url, body, contentType, &resp); err != nil {
		return nil, err
	}

	return toSegments(resp.Segments), nil
}

func (c *OpenAIClient) buildForm(path, language string) ([]byte, string, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the render cache
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("transcribe: copy audio: %w", err)
	}

	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", fmt.Errorf("transcribe: write model: %w", err)
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", fmt.Errorf("transcribe: write response_format: %w", err)
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", fmt.Errorf("transcribe: write language: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("transcribe: close form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func toSegments(in []verboseSegment) []timeline.Segment {
	out := make([]timeline.Segment, 0, len(in))
	for _, s := range in {
		if !s.End.GreaterThan(s.Start) || s.Start.IsNegative() {
			continue
		}
		out = append(out, timeline.Segment{
			ID:    s.ID,
			Start: s.Start.InexactFloat64(),
			End:   s.End.InexactFloat64(),
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return out
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *OpenAIClient) doRequestWithRetry(ctx context.Context, url string, body []byte, contentType string, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("transcribe: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, contentType, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	if c.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("transcribe: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *OpenAIClient) doRequest(ctx context.Context, url string, body []byte, contentType string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transcribe: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("transcribe: request failed: %w", ctx.Err())
		}
		return &retryableError{err: fmt.Errorf("transcribe: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("transcribe: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(respBody)
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, msg)}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, msg)}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("transcribe: unmarshal response: %w", err)
	}

	return nil
}

// errorMessage extracts the API error message, falling back to the raw body.
func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Verify interface implementation at compile time.
var _ Transcriber = (*OpenAIClient)(nil)
