package lexical

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statutelink/pkg/errs"
	"statutelink/pkg/search"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	raw, err := opensearch.NewClient(opensearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	return &Client{client: raw, alias: "legal_units"}, server
}

func TestSearchParsesHits(t *testing.T) {
	var capturedBody map[string]interface{}
	client, server := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/_search") {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"hits": {
					"hits": [
						{"_id": "statute_s2", "_score": 4.2, "_source": {"unit_id": "statute_s2"}},
						{"_id": "case_c", "_score": 2.1, "_source": {"unit_id": "case_c"}}
					]
				}
			}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})
	defer server.Close()

	hits, err := client.Search(context.Background(), "misrepresentation contract", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, search.Hit{UnitID: "statute_s2", Score: 4.2, Source: search.SourceLexical}, hits[0])
	assert.Equal(t, "case_c", hits[1].UnitID)

	// The query carries the multi-field boosts of the unit shape.
	query := capturedBody["query"].(map[string]interface{})
	multiMatch := query["multi_match"].(map[string]interface{})
	assert.Equal(t, "best_fields", multiMatch["type"])
	assert.Equal(t, 0.3, multiMatch["tie_breaker"])
	fields := multiMatch["fields"].([]interface{})
	assert.Contains(t, fields, "title^2")
	assert.Contains(t, fields, "citation^1.5")
}

func TestSearchUnavailableIndex(t *testing.T) {
	client, server := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer server.Close()

	_, err := client.Search(context.Background(), "query", 10)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindIndexUnavailable))
}

func TestSearchZeroK(t *testing.T) {
	client, server := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for k=0")
	})
	defer server.Close()

	hits, err := client.Search(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeID("a/b\\c"))
}

func TestUnitMappingShape(t *testing.T) {
	mapping := unitMapping()

	props := mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	for _, field := range []string{"unit_id", "doc_type", "title", "text", "citation", "court", "year", "para_no"} {
		assert.Contains(t, props, field)
	}

	analysis := mapping["settings"].(map[string]interface{})["analysis"].(map[string]interface{})
	analyzer := analysis["analyzer"].(map[string]interface{})["legal_analyzer"].(map[string]interface{})
	assert.Equal(t, "custom", analyzer["type"])
}
