package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// ActionSink performs the externally-visible hook actions. Tests swap it
// for a recorder so hook behavior can be asserted without network or
// process side effects.
type ActionSink interface {
	HTTPRequest(ctx context.Context, method, url, body string) error
	Command(ctx context.Context, name string, args []string) error
}

// DefaultSink executes http_request actions with a shared client and
// command actions through the local shell environment.
type DefaultSink struct {
	client *http.Client
	logger *slog.Logger
}

// NewDefaultSink creates a sink. A non-positive timeout falls back to 30s.
func NewDefaultSink(logger *slog.Logger, timeout time.Duration) *DefaultSink {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DefaultSink{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *DefaultSink) HTTPRequest(ctx context.Context, method, url, body string) error {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building hook request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("hook request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("hook request to %s returned %d", url, resp.StatusCode)
	}
	s.logger.Debug("hook request completed",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode))
	return nil
}

func (s *DefaultSink) Command(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("hook command %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	s.logger.Debug("hook command completed",
		slog.String("command", name),
		slog.Int("output_bytes", len(out)))
	return nil
}
