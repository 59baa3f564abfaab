// Package extract talks to the remote extraction service that turns an
// event poster image into the model's raw JSON response.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/hpungsan/cap2cal/internal/errors"
)

// MaxImageBytes caps the size of an uploaded image.
const MaxImageBytes = 20 << 20

const (
	maxRetries = 3

	// maxRetryAfter caps a server-requested wait.
	maxRetryAfter = 60 * time.Second

	// maxResponseBytes caps the size of a response body read into memory.
	maxResponseBytes = 8 << 20
)

// Client is an HTTP client for the extraction endpoint with Bearer auth and
// retry logic.
type Client struct {
	endpoint    string
	token       string
	defaultLang string
	httpClient  *http.Client

	// baseDelay is the first backoff step; it doubles per retry
	baseDelay time.Duration
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLanguage sets the language used when Extract is called without one.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.defaultLang = lang
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for endpoint authenticated with token.
func New(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		token:       token,
		defaultLang: "en",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type request struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
	Language string `json:"language"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Extract uploads image and returns the text to feed to event.Parse.
//
// The service wraps the model output in {"data": ...}. A string payload is
// returned as is; any other JSON value is returned in its raw encoding.
// Errors are *errors.AppError: LIMIT_REACHED for 403, CANCELLED when ctx
// ends, EXTRACTION_FAILED for everything else.
func (c *Client) Extract(ctx context.Context, image []byte, mimeType, lang string) (string, error) {
	if c.endpoint == "" {
		return "", errors.NewInvalidRequest("extract_endpoint is not configured")
	}
	if len(image) == 0 {
		return "", errors.NewInvalidRequest("image is empty")
	}
	if len(image) > MaxImageBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("image exceeds %d bytes", MaxImageBytes))
	}

	tag, err := CanonicalLanguage(lang, c.defaultLang)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", errors.NewInvalidRequest(fmt.Sprintf("unsupported content type %q", mimeType))
	}

	body, err := json.Marshal(request{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
		Language: tag,
	})
	if err != nil {
		return "", errors.NewInternal(err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}

	return decodeEnvelope(respBody)
}

// post sends body and retries on 429 (honouring Retry-After) and 5xx with
// exponential backoff.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffDelay(attempt, lastErr)
			slog.Debug("retrying extraction", "attempt", attempt, "wait", wait, "status", lastErr.StatusCode)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, errors.NewCancelled(ctx.Err())
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if cErr := errors.FromContext(ctx.Err()); cErr != nil {
				return nil, cErr
			}
			return nil, errors.NewExtractionFailed(0, err)
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		resp.Body.Close()
		if err != nil {
			return nil, errors.NewExtractionFailed(resp.StatusCode, err)
		}
		if len(respBody) > maxResponseBytes {
			return nil, errors.NewExtractionFailed(resp.StatusCode, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes))
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		bodyStr := string(respBody)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}

		switch {
		case resp.StatusCode == http.StatusForbidden:
			return nil, errors.NewLimitReached()
		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
		case resp.StatusCode >= 500:
			lastErr = apiErr
		default:
			return nil, errors.NewExtractionFailed(resp.StatusCode, apiErr)
		}
	}

	return nil, errors.NewExtractionFailed(lastErr.StatusCode, lastErr)
}

// backoffDelay returns the wait duration before a retry attempt.
func (c *Client) backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return c.baseDelay << (attempt - 1)
}

func decodeEnvelope(body []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", errors.NewExtractionFailed(http.StatusOK, fmt.Errorf("decode response: %w", err))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return "", errors.NewExtractionFailed(http.StatusOK, fmt.Errorf("response has no data"))
	}

	var text string
	if err := json.Unmarshal(env.Data, &text); err == nil {
		return text, nil
	}
	return string(env.Data), nil
}

// CanonicalLanguage validates a BCP 47 language code and returns its
// canonical form. An empty lang falls back to def.
func CanonicalLanguage(lang, def string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = def
	}
	if lang == "" {
		lang = "en"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid language %q", lang))
	}
	return tag.String(), nil
}
