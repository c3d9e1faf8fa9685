package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"SalesReportAnalyzer/internal/ports"
)

const defaultTimeout = 10 * time.Second

// HTTPFetcher downloads report documents over HTTP with a bounded timeout.
type HTTPFetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.ReportFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher wires an HTTP client; a nil client gets the default timeout.
func NewHTTPFetcher(client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{client: client, logger: logger}
}

// Fetch retrieves the document body as text. Non-200 status, transport
// errors, timeouts and undecodable bodies are each logged with their cause
// and collapse to a plain error for the caller; retries are left to the
// dispatch layer.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Error("invalid report request", "url", url, "error", err)
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.logger.Error("report request timed out", "url", url)
		} else {
			f.logger.Error("network error fetching report", "url", url, "error", err)
		}
		return "", fmt.Errorf("request report: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("read report body failed", "url", url, "error", err)
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("report request failed", "url", url, "status", resp.Status, "body", truncate(string(body), 256))
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	if !utf8.Valid(body) {
		f.logger.Error("report body is not valid text", "url", url)
		return "", fmt.Errorf("decode body: invalid utf-8")
	}

	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
