package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// DefaultRequestTimeout bounds one outbound request.
const DefaultRequestTimeout = 30 * time.Second

// maxResponseBytes bounds the response body read into a script.
const maxResponseBytes = 1 << 20

// StatusError is returned when a request completes with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s responded with status %d %s",
		e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPRequester performs the outbound requests of scripts: the post API
// method and the request global. Bodies are sent and read as JSON; a
// response that is not JSON is returned as a string.
type HTTPRequester struct {
	client *http.Client
}

var _ script.Requester = (*HTTPRequester)(nil)

// NewHTTPRequester creates a requester. A nil client uses one with
// DefaultRequestTimeout.
func NewHTTPRequester(client *http.Client) *HTTPRequester {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &HTTPRequester{client: client}
}

// Do sends one request. body is encoded as JSON unless it is nil or null.
func (h *HTTPRequester) Do(ctx context.Context, method, rawURL string, body ir.Value) (ir.Value, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s %s: unsupported scheme %q", method, rawURL, u.Scheme)
	}

	var bodyReader io.Reader
	if body != nil {
		if _, null := body.(ir.Null); !null {
			data, err := ir.MarshalValue(body)
			if err != nil {
				return nil, fmt.Errorf("%s %s: encoding body: %w", method, rawURL, err)
			}
			bodyReader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, cleanedURLString(u), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: cleanedURLString(u), StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", method, cleanedURLString(u), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ir.Null{}, nil
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if v, err := ir.UnmarshalValue(data); err == nil {
			return v, nil
		}
	}
	return ir.String(data), nil
}

func cleanedURLString(u *url.URL) string {
	dup := *u
	dup.User = nil
	return dup.String()
}
