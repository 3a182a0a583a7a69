package lexical

import (
	"context"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"golang.org/x/text/unicode/norm"

	"statutelink/pkg/errs"
	"statutelink/pkg/search"
)

// Search runs a multi-field BM25 query over the live generation. Field
// boosts follow the unit shape: title x2.0, text x1.0, citation x1.5, with
// best-field scoring and a 0.3 tie-breaker between fields.
func (c *Client) Search(ctx context.Context, query string, k int) ([]search.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":       norm.NFKC.String(query),
				"fields":      []string{"title^2", "text", "citation^1.5"},
				"type":        "best_fields",
				"tie_breaker": 0.3,
			},
		},
		"size":    k,
		"_source": []string{"unit_id"},
	}

	req := opensearchapi.SearchRequest{
		Index: []string{c.alias},
		Body:  buildRequestBody(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.E(errs.KindTimeout, err)
		}
		return nil, errs.E(errs.KindIndexUnavailable, fmt.Errorf("lexical search failed: %w", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errs.E(errs.KindIndexUnavailable, fmt.Errorf("lexical search failed with status: %s", res.Status()))
	}

	var searchResponse struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source struct {
					UnitID string `json:"unit_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := parseResponse(res, &searchResponse); err != nil {
		return nil, errs.E(errs.KindIndexUnavailable, fmt.Errorf("failed to parse search response: %w", err))
	}

	hits := make([]search.Hit, 0, len(searchResponse.Hits.Hits))
	for _, h := range searchResponse.Hits.Hits {
		unitID := h.Source.UnitID
		if unitID == "" {
			unitID = h.ID
		}
		hits = append(hits, search.Hit{UnitID: unitID, Score: h.Score, Source: search.SourceLexical})
	}
	return hits, nil
}
