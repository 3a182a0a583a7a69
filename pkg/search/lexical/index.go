package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"statutelink/pkg/models"
)

// legalStopWords is the small stop-word list applied at analysis time. The
// corpus is English legal text; terms of art like "shall" stay searchable.
var legalStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if",
	"in", "into", "is", "it", "no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these", "they", "this",
	"to", "was", "will", "with",
}

// unitMapping is the index mapping for the IndexUnit projection.
func unitMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"unit_id":  map[string]interface{}{"type": "keyword"},
				"doc_type": map[string]interface{}{"type": "keyword"},
				"title": map[string]interface{}{
					"type":     "text",
					"analyzer": "legal_analyzer",
					"fields":   map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256}},
				},
				"text": map[string]interface{}{
					"type":     "text",
					"analyzer": "legal_analyzer",
				},
				"citation": map[string]interface{}{
					"type":   "text",
					"fields": map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword"}},
				},
				"court":   map[string]interface{}{"type": "keyword"},
				"year":    map[string]interface{}{"type": "integer"},
				"para_no": map[string]interface{}{"type": "integer"},
			},
		},
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis": map[string]interface{}{
				"filter": map[string]interface{}{
					"legal_stop": map[string]interface{}{
						"type":      "stop",
						"stopwords": legalStopWords,
					},
				},
				"analyzer": map[string]interface{}{
					"legal_analyzer": map[string]interface{}{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "legal_stop"},
					},
				},
			},
		},
	}
}

// Reindex builds a new generation index from the given units and atomically
// swaps the read alias onto it. Returns the new generation's index name.
func (c *Client) Reindex(ctx context.Context, units []models.IndexUnit) (string, error) {
	gen := time.Now().UTC().Format("20060102150405")
	indexName := fmt.Sprintf("%s_%s", c.alias, gen)

	if err := c.CreateIndex(ctx, indexName, unitMapping()); err != nil {
		return "", err
	}

	const batchSize = 500
	for start := 0; start < len(units); start += batchSize {
		end := start + batchSize
		if end > len(units) {
			end = len(units)
		}
		if err := c.bulkIndex(ctx, indexName, units[start:end]); err != nil {
			return "", err
		}
	}

	if err := c.RefreshIndex(ctx, indexName); err != nil {
		return "", err
	}

	if err := c.SwapAlias(ctx, indexName); err != nil {
		return "", err
	}

	log.Printf("[LEXICAL] reindexed %d units into %s", len(units), indexName)
	return indexName, nil
}

// bulkIndex writes one batch of units into a concrete generation index.
func (c *Client) bulkIndex(ctx context.Context, indexName string, units []models.IndexUnit) error {
	var bulkBody strings.Builder
	for _, u := range units {
		if u.UnitID == "" {
			continue
		}

		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": indexName,
				"_id":    sanitizeID(u.UnitID),
			},
		}
		actionJSON, _ := json.Marshal(action)
		bulkBody.Write(actionJSON)
		bulkBody.WriteString("\n")

		docJSON, _ := json.Marshal(u)
		bulkBody.Write(docJSON)
		bulkBody.WriteString("\n")
	}

	bulkReq := opensearchapi.BulkRequest{Body: strings.NewReader(bulkBody.String())}
	res, err := bulkReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk indexing failed with status: %s", res.Status())
	}

	var bulkResponse struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := parseResponse(res, &bulkResponse); err != nil {
		return fmt.Errorf("failed to parse bulk response: %w", err)
	}

	if bulkResponse.Errors {
		failed := 0
		for _, item := range bulkResponse.Items {
			for _, op := range item {
				if op.Status >= 300 {
					failed++
					if op.Error != nil {
						log.Printf("[LEXICAL] failed to index %s: %s", op.ID, op.Error.Reason)
					}
				}
			}
		}
		return fmt.Errorf("bulk indexing reported %d failed units", failed)
	}
	return nil
}

// PruneGenerations deletes generation indexes beyond the newest keep, never
// touching the one the alias points at.
func (c *Client) PruneGenerations(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}

	req := opensearchapi.CatIndicesRequest{
		Index:  []string{c.alias + "_*"},
		Format: "json",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("cat indices request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("cat indices failed with status: %s", res.Status())
	}

	var listing []struct {
		Index string `json:"index"`
	}
	if err := parseResponse(res, &listing); err != nil {
		return fmt.Errorf("failed to parse indices listing: %w", err)
	}

	live, err := c.AliasedIndexes(ctx)
	if err != nil {
		return err
	}
	liveSet := make(map[string]bool, len(live))
	for _, idx := range live {
		liveSet[idx] = true
	}

	names := make([]string, 0, len(listing))
	for _, entry := range listing {
		names = append(names, entry.Index)
	}
	// Generation suffixes are timestamps, so lexicographic order is age order.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for i, name := range names {
		if i < keep || liveSet[name] {
			continue
		}
		if err := c.DeleteIndex(ctx, name); err != nil {
			return err
		}
		log.Printf("[LEXICAL] pruned generation %s", name)
	}
	return nil
}

// sanitizeID makes a document id safe for the OpenSearch URL path.
func sanitizeID(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	return strings.ReplaceAll(id, "\\", "_")
}
