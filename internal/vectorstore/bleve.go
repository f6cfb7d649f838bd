package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
)

// BackendBleve is the name of the in-memory Bleve backend.
const BackendBleve = "bleve"

// defaultTopK is used when a query asks for a non-positive number of results.
const defaultTopK = 10

// resultFields are the stored fields loaded for every hit.
var resultFields = []string{"text", "metadata", "seq"}

// BleveCollection stores documents in an in-memory Bleve index and ranks them
// with a full-text match query on the document text. Documents that share no
// term with the query score zero and are returned in insertion order.
type BleveCollection struct {
	name  string
	index bleve.Index
	mu    sync.RWMutex
	ids   map[string]struct{}
	seq   uint64
}

// NewBleveCollection creates an empty in-memory collection.
func NewBleveCollection(name string) (*BleveCollection, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &BleveCollection{
		name:  name,
		index: index,
		ids:   make(map[string]struct{}),
	}, nil
}

// buildIndexMapping creates the Bleve mapping for fragment documents.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Text: analysed and searchable
	docMapping.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())

	// Seq: insertion order, used as the tie-break sort key
	docMapping.AddFieldMappingsAt("seq", bleve.NewNumericFieldMapping())

	// Metadata: stored JSON, never searched
	metaMapping := bleve.NewTextFieldMapping()
	metaMapping.Index = false
	metaMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("metadata", metaMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Name returns the collection name.
func (c *BleveCollection) Name() string {
	return c.name
}

// Add indexes all documents in one Bleve batch.
func (c *BleveCollection) Add(ctx context.Context, docs []string, metas []Metadata, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkBatch(docs, metas, ids, c.has); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := c.index.NewBatch()
	seq := c.seq
	for i, doc := range docs {
		meta, err := json.Marshal(cloneMetadata(metas[i]))
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", ids[i], err)
		}

		if err := batch.Index(ids[i], map[string]interface{}{
			"text":     doc,
			"seq":      float64(seq),
			"metadata": string(meta),
		}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", ids[i], err)
		}
		seq++
	}

	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index documents: %w", err)
	}

	c.seq = seq
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return nil
}

func (c *BleveCollection) has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// Query runs a match query and, when fewer than topK documents match, fills
// the remainder with zero-score documents in insertion order.
func (c *BleveCollection) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if topK <= 0 {
		topK = defaultTopK
	}

	var results []Result
	matched := make(map[string]struct{})

	if strings.TrimSpace(text) != "" {
		matchQuery := bleve.NewMatchQuery(text)
		matchQuery.SetField("text")

		req := bleve.NewSearchRequestOptions(matchQuery, topK, 0, false)
		req.Fields = resultFields
		req.SortBy([]string{"-_score", "seq"})

		res, err := c.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("bleve search failed: %w", err)
		}
		for _, hit := range res.Hits {
			results = append(results, convertHit(hit, hit.Score))
			matched[hit.ID] = struct{}{}
		}
	}

	if len(results) >= topK {
		return results, nil
	}

	// Pad with the earliest non-matching documents
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), topK+len(results), 0, false)
	req.Fields = resultFields
	req.SortBy([]string{"seq"})

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	for _, hit := range res.Hits {
		if len(results) >= topK {
			break
		}
		if _, ok := matched[hit.ID]; ok {
			continue
		}
		results = append(results, convertHit(hit, 0))
	}

	return results, nil
}

// convertHit converts a Bleve hit into a Result.
func convertHit(hit *search.DocumentMatch, score float64) Result {
	text, _ := hit.Fields["text"].(string)

	meta := Metadata{}
	if raw, ok := hit.Fields["metadata"].(string); ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &meta)
	}

	return Result{
		ID:       hit.ID,
		Document: text,
		Metadata: meta,
		Score:    score,
	}
}

// Count returns the number of indexed documents.
func (c *BleveCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docCount, err := c.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return int(docCount), nil
}

// Close closes the index and releases resources.
func (c *BleveCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil {
		return c.index.Close()
	}
	return nil
}
