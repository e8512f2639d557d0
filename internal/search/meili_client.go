// Package search keeps the city and its districts in a Meilisearch index
// for typo-tolerant suggestions.
package search

import (
	"fmt"

	ms "github.com/meilisearch/meilisearch-go"
)

// ClientWrapper narrows the Meilisearch client to the calls this package makes.
type ClientWrapper struct {
	cli ms.ServiceManager
}

// NewClientWrapper creates a client for url.
func NewClientWrapper(url, key string) *ClientWrapper {
	return &ClientWrapper{cli: ms.New(url, ms.WithAPIKey(key))}
}

// Healthy fails when the server does not answer.
func (c *ClientWrapper) Healthy() error {
	if _, err := c.cli.Health(); err != nil {
		return fmt.Errorf("meilisearch is unreachable: %w", err)
	}
	return nil
}

// SearchIndex runs q against index, optionally filtered.
func (c *ClientWrapper) SearchIndex(index, q, filter string, limit int64) (*ms.SearchResponse, error) {
	req := &ms.SearchRequest{Limit: limit}
	if filter != "" {
		req.Filter = filter
	}
	return c.cli.Index(index).Search(q, req)
}

// FilterLevel restricts a search to one level.
func FilterLevel(level int) string {
	return fmt.Sprintf("level = %d", level)
}
