// Package resolver follows a single redirect hop to resolve a search
// result's landing URL, reusing the teacher's tuned HTTP client
// posture (bounded idle conns, TLS floor, capped redirects).
package resolver

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

func New(logger *slog.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 2 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: logger.With("component", "resolver"),
	}
}

// Result is the URL resolver contract: the status code the final hop
// reported, the URL the request landed on, and whether a redirect was
// followed to get there.
type Result struct {
	StatusCode int
	FinalURL   string
	Redirected bool
}

// Resolve issues a HEAD request, following at most one redirect, and
// reports the status code and URL the request landed on so the caller
// can detect a 404 and skip the row.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("resolver: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.WarnContext(ctx, "resolve.failed", "url", rawURL, "error", err)
		return Result{}, fmt.Errorf("%w: %s", domain.ErrNetworkFailure, err.Error())
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	finalURL := rawURL
	redirected := false
	if loc := resp.Header.Get("Location"); loc != "" {
		finalURL = loc
		redirected = true
	} else if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
		redirected = finalURL != rawURL
	}

	return Result{StatusCode: resp.StatusCode, FinalURL: finalURL, Redirected: redirected}, nil
}
