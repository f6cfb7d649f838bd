/*
Package vectorstore implements the nearest-neighbour collections that fragments
are stored in and matched against.

Every backend satisfies Collection. The service treats a collection as a black
box: documents go in with metadata and an ID, and a query returns the closest
documents under whatever similarity the backend defines. Backends agree on two
conventions so that results stay comparable:

  - a document sharing nothing with the query has similarity zero, and
  - among equally similar documents the one inserted first is returned first.
*/
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// Metadata is the key/value payload stored alongside each document.
type Metadata map[string]string

// Result is a single query hit.
type Result struct {
	ID       string
	Document string
	Metadata Metadata
	// Score is backend-specific; higher is closer.
	Score float64
}

// Collection is an append-only set of documents searchable by similarity.
// Implementations must be safe for concurrent use.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Add inserts documents in a single batch. The three slices must have
	// equal length. Either every document is inserted or none is.
	Add(ctx context.Context, docs []string, metas []Metadata, ids []string) error

	// Query returns up to topK documents nearest to text, closest first.
	Query(ctx context.Context, text string, topK int) ([]Result, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases the backend.
	Close() error
}

var (
	// ErrDuplicateID is returned when an added ID already exists in the collection.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrBatchShape is returned when Add receives slices of different lengths.
	ErrBatchShape = errors.New("documents, metadatas and ids differ in length")
)

// checkBatch validates the arguments of an Add call against the IDs already
// present (as reported by exists).
func checkBatch(docs []string, metas []Metadata, ids []string, exists func(string) bool) error {
	if len(docs) != len(metas) || len(docs) != len(ids) {
		return fmt.Errorf("%w: %d documents, %d metadatas, %d ids", ErrBatchShape, len(docs), len(metas), len(ids))
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || exists(id) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func cloneMetadata(m Metadata) Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
