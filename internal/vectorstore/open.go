package vectorstore

import (
	"context"
	"fmt"

	"github.com/khanglvm/tooldb/internal/embeddings"
)

// DefaultCollectionName is the collection every service instance uses.
const DefaultCollectionName = "connected-agents"

// Options selects and configures a backend.
type Options struct {
	// Backend is one of BackendBleve, BackendMemory or BackendPgvector.
	// Empty means BackendBleve.
	Backend string

	// Name is the collection name. Empty means DefaultCollectionName.
	Name string

	// PostgresDSN is required by BackendPgvector.
	PostgresDSN string

	// Provider embeds text for BackendMemory and BackendPgvector.
	Provider embeddings.Provider
}

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendBleve, BackendMemory, BackendPgvector}
}

// Open creates a fresh, empty collection on the selected backend.
func Open(ctx context.Context, opts Options) (Collection, error) {
	name := opts.Name
	if name == "" {
		name = DefaultCollectionName
	}

	switch opts.Backend {
	case "", BackendBleve:
		return NewBleveCollection(name)

	case BackendMemory:
		if opts.Provider == nil {
			return nil, fmt.Errorf("backend %q requires an embeddings provider", BackendMemory)
		}
		return NewMemoryCollection(name, opts.Provider), nil

	case BackendPgvector:
		if opts.Provider == nil {
			return nil, fmt.Errorf("backend %q requires an embeddings provider", BackendPgvector)
		}
		if opts.PostgresDSN == "" {
			return nil, fmt.Errorf("backend %q requires a postgres dsn", BackendPgvector)
		}
		return NewPgvectorCollection(ctx, name, opts.PostgresDSN, opts.Provider)

	default:
		return nil, fmt.Errorf("unknown vector store backend %q", opts.Backend)
	}
}

// NeedsEmbeddings reports whether backend embeds text through a provider.
func NeedsEmbeddings(backend string) bool {
	return backend == BackendMemory || backend == BackendPgvector
}
