package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/retry"
)

// DefaultHTTPTimeout bounds a single HTTP delivery attempt.
const DefaultHTTPTimeout = 30 * time.Second

// NewHTTPClient returns the client used by the HTTP-based senders.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// PostJSON marshals body and POSTs it to url. A non-2xx response is returned
// as *retry.StatusError so the dispatcher can decide whether to retry.
func PostJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", MaskURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// IsHTTPURL reports whether s is an http or https URL.
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// MaskURL shortens a URL for logs so webhook secrets are not printed in full.
func MaskURL(url string) string {
	if len(url) > 50 {
		return url[:30] + "..." + url[len(url)-10:]
	}
	return url
}
