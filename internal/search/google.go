package search

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const googleSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleClient queries the Google Programmable Search API.
type GoogleClient struct {
	apiKey string
	cx     string
	client *http.Client
}

func NewGoogleClient(apiKey, cx string) *GoogleClient {
	return &GoogleClient{
		apiKey: apiKey,
		cx:     cx,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

func (c *GoogleClient) Search(ctx context.Context, query string) ([]Result, error) {
	values := url.Values{}
	values.Set("key", c.apiKey)
	values.Set("cx", c.cx)
	values.Set("q", query)

	endpoint := googleSearchEndpoint + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("google: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: unexpected status %d", resp.StatusCode)
	}

	var parsed googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("google: decode response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, Result{Title: item.Title, Snippet: item.Snippet, URL: item.Link})
	}
	return results, nil
}

// BuildSiteQuery builds a "site:domain query" search string.
func BuildSiteQuery(domain, queryText string) string {
	return fmt.Sprintf("site:%s %s", domain, queryText)
}
