// Package lexical implements the keyword side of hybrid retrieval: an
// OpenSearch index over index units with multi-field BM25 scoring. Reindex
// jobs build a fresh generation index and swap an alias atomically, so
// queries always read a consistent snapshot.
package lexical

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Config holds the OpenSearch connection settings. Alias is the stable name
// queries read; generation indexes hang off it as "<alias>_<gen>".
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Alias    string
}

// Client wraps the OpenSearch client with alias-aware index management.
type Client struct {
	client *opensearch.Client
	alias  string
}

// NewClient creates an OpenSearch client and verifies connectivity.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("OpenSearch host is required")
	}

	protocol := "http"
	if cfg.UseSSL {
		protocol = "https"
	}
	url := fmt.Sprintf("%s://%s:%d", protocol, cfg.Host, cfg.Port)

	opensearchConfig := opensearch.Config{
		Addresses: []string{url},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // managed clusters present self-signed chains
			},
		},
	}
	if cfg.Username != "" && cfg.Password != "" {
		opensearchConfig.Username = cfg.Username
		opensearchConfig.Password = cfg.Password
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	c := &Client{client: client, alias: cfg.Alias}
	if err := c.ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to OpenSearch: %w", err)
	}
	return c, nil
}

// Alias returns the read alias queries go through.
func (c *Client) Alias() string { return c.alias }

// Raw returns the underlying OpenSearch client.
func (c *Client) Raw() *opensearch.Client { return c.client }

func (c *Client) ping(ctx context.Context) error {
	req := opensearchapi.InfoRequest{}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ping failed with status: %s", res.Status())
	}
	return nil
}

// IndexExists checks whether a concrete index (or the alias) exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{name}}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, fmt.Errorf("index exists check failed: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	}
	return false, fmt.Errorf("unexpected status code: %d", res.StatusCode)
}

// CreateIndex creates a concrete generation index with the unit mapping.
func (c *Client) CreateIndex(ctx context.Context, name string, mapping map[string]interface{}) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  buildRequestBody(mapping),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("create index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index failed with status: %s", res.Status())
	}
	return nil
}

// DeleteIndex removes a concrete generation index. Missing indexes are fine.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	req := opensearchapi.IndicesDeleteRequest{Index: []string{name}}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("delete index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete index failed with status: %s", res.Status())
	}
	return nil
}

// SwapAlias atomically points the read alias at a new generation index.
// Concurrent queries keep reading the previous generation until the swap
// lands cluster-side.
func (c *Client) SwapAlias(ctx context.Context, newIndex string) error {
	current, err := c.AliasedIndexes(ctx)
	if err != nil {
		return err
	}

	actions := make([]map[string]interface{}, 0, len(current)+1)
	for _, idx := range current {
		actions = append(actions, map[string]interface{}{
			"remove": map[string]interface{}{"index": idx, "alias": c.alias},
		})
	}
	actions = append(actions, map[string]interface{}{
		"add": map[string]interface{}{"index": newIndex, "alias": c.alias},
	})

	req := opensearchapi.IndicesUpdateAliasesRequest{
		Body: buildRequestBody(map[string]interface{}{"actions": actions}),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("alias swap request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("alias swap failed with status: %s", res.Status())
	}
	return nil
}

// AliasedIndexes lists the concrete indexes the alias currently points at.
func (c *Client) AliasedIndexes(ctx context.Context) ([]string, error) {
	req := opensearchapi.IndicesGetAliasRequest{Name: []string{c.alias}}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("get alias request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get alias failed with status: %s", res.Status())
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse alias response: %w", err)
	}

	indexes := make([]string, 0, len(payload))
	for idx := range payload {
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// RefreshIndex makes recent writes searchable.
func (c *Client) RefreshIndex(ctx context.Context, name string) error {
	req := opensearchapi.IndicesRefreshRequest{Index: []string{name}}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("refresh index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("refresh index failed with status: %s", res.Status())
	}
	return nil
}

// IsHealthy reports whether the cluster responds within a short deadline.
func (c *Client) IsHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.ping(ctx) == nil
}

func buildRequestBody(data interface{}) *strings.Reader {
	if data == nil {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return strings.NewReader(string(jsonData))
}

func parseResponse(res *opensearchapi.Response, target interface{}) error {
	return json.NewDecoder(res.Body).Decode(target)
}
