// Package liveness sends the external "still alive" signal after each tick.
package liveness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"xb-go/internal/config"
	"xb-go/internal/xb"
)

// DefaultTimeout applies when the configured timeout is empty.
const DefaultTimeout = 10 * time.Second

// HTTPPinger issues a GET to a fixed URL, healthchecks.io style.
type HTTPPinger struct {
	url    string
	client *http.Client
}

var _ xb.Pinger = (*HTTPPinger)(nil)

func NewHTTPPinger(url string, timeout time.Duration) *HTTPPinger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPPinger{url: url, client: &http.Client{Timeout: timeout}}
}

// NewPingerFromConfig returns nil when no URL is configured.
func NewPingerFromConfig(cfg config.LivenessConfig) (xb.Pinger, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	timeout := DefaultTimeout
	if cfg.Timeout != "" {
		d, err := config.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("liveness.timeout: %w", err)
		}
		timeout = d
	}
	return NewHTTPPinger(cfg.URL, timeout), nil
}

// Ping returns *xb.LivenessPingError on transport failure or a non-2xx status.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return &xb.LivenessPingError{URL: p.url, Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return &xb.LivenessPingError{URL: p.url, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &xb.LivenessPingError{URL: p.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return nil
}
