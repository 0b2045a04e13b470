package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// newHTTPClient returns the HTTP client shared by the llama.cpp-facing
// clients. Embedding batches and long completions need headroom, hence
// the generous timeout.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 2 * time.Minute,
	}
}

// Probe checks reachability of the inference services backing the engine.
type Probe struct {
	client *http.Client
}

// NewProbe creates a new service probe.
func NewProbe() *Probe {
	return &Probe{
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Ping issues a GET against baseURL's /health endpoint and reports
// whether the service answered with a non-5xx status.
func (p *Probe) Ping(ctx context.Context, baseURL string) error {
	url := fmt.Sprintf("%s/health", baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// WaitReady polls baseURL until it answers or the deadline passes.
// Used at startup so indexing does not race a still-booting embedder.
func (p *Probe) WaitReady(ctx context.Context, baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := p.Ping(ctx, baseURL); err == nil {
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("service not ready after %s: %w", timeout, lastErr)
}
