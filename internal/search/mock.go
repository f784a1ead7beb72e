package search

import (
	"context"
	"fmt"
)

// MockClient returns deterministic synthetic results, used in
// ENV=local and in tests — mirrors the teacher's LogSender used for
// local dev.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Search(ctx context.Context, query string) ([]Result, error) {
	return []Result{
		{
			Title:   fmt.Sprintf("Mock result for %q", query),
			Snippet: "Deterministic snippet used for local development and tests.",
			URL:     "https://example.com/mock-result",
		},
	}, nil
}
