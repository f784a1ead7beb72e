// Package htmlfetch fetches a URL's HTML body and extracts its visible
// text, reusing the teacher's tuned HTTP client posture.
package htmlfetch

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

type Fetcher struct {
	client  *http.Client
	dataDir string
	logger  *slog.Logger
}

// New builds a Fetcher that persists every fetched page's raw HTML
// under <dataDir>/html/raw/<runId>/<sha256(url)>.html.
func New(dataDir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		dataDir: dataDir,
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
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "htmlfetch"),
	}
}

const maxBodyBytes = 2 << 20 // 2MiB

// FetchAndExtract downloads rawURL, writes its raw HTML body to a
// content-addressed file under the run's directory, and returns the
// file path alongside the visible (script/style-stripped) text. fetchErr
// and extractErr are reported separately so the caller can persist the
// row with the right error column populated rather than dropping it.
func (f *Fetcher) FetchAndExtract(ctx context.Context, runID, rawURL string) (htmlPath string, visibleText string, fetchErr error, extractErr error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("htmlfetch: build request: %w", err), nil
	}
	req.Header.Set("User-Agent", "jobato-ml-ingestion/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", domain.ErrNetworkFailure, err.Error()), nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("htmlfetch: read body: %w", err), nil
	}

	rawHTML := string(body)
	htmlPath = f.persist(ctx, runID, rawURL, rawHTML)

	text, err := extractVisibleText(rawHTML)
	if err != nil {
		f.logger.WarnContext(ctx, "htmlfetch.extract_failed", "url", rawURL, "error", err)
		return htmlPath, "", nil, fmt.Errorf("htmlfetch: extract: %w", err)
	}
	return htmlPath, text, nil, nil
}

// persist writes rawHTML to <dataDir>/html/raw/<runId>/<sha256(url)>.html
// and returns the path it wrote, or "" if persistence is disabled or fails.
func (f *Fetcher) persist(ctx context.Context, runID, rawURL, rawHTML string) string {
	if f.dataDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(rawURL))
	dir := filepath.Join(f.dataDir, "html", "raw", runID)
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+".html")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.logger.WarnContext(ctx, "htmlfetch.persist_mkdir_failed", "url", rawURL, "error", err)
		return ""
	}
	if err := os.WriteFile(path, []byte(rawHTML), 0o644); err != nil {
		f.logger.WarnContext(ctx, "htmlfetch.persist_write_failed", "url", rawURL, "error", err)
		return ""
	}
	return path
}

func extractVisibleText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(sb.String()), nil
}
