package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/khanglvm/tooldb/internal/embeddings"
)

// BackendPgvector is the name of the PostgreSQL/pgvector backend.
const BackendPgvector = "pgvector"

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

func ddlFragments(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS fragments (
    seq         BIGSERIAL    PRIMARY KEY,
    collection  TEXT         NOT NULL,
    id          TEXT         NOT NULL,
    document    TEXT         NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_fragments_collection
    ON fragments (collection);`, dimensions)
}

// PgvectorCollection stores fragments in a PostgreSQL table with a pgvector
// column and ranks them by cosine distance. The collection's rows are cleared
// when it is opened; the table is shared by all collections.
type PgvectorCollection struct {
	name     string
	pool     *pgxpool.Pool
	provider embeddings.Provider
}

// NewPgvectorCollection connects to dsn, creates the schema if needed and
// clears any rows left over under name.
func NewPgvectorCollection(ctx context.Context, name, dsn string, provider embeddings.Provider) (*PgvectorCollection, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector collection: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector collection: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector collection: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlFragments(provider.Dimensions())); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector collection: migrate: %w", err)
	}

	if _, err := pool.Exec(ctx, `DELETE FROM fragments WHERE collection = $1`, name); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector collection: reset: %w", err)
	}

	return &PgvectorCollection{name: name, pool: pool, provider: provider}, nil
}

// Name returns the collection name.
func (c *PgvectorCollection) Name() string {
	return c.name
}

// Add embeds the documents and inserts them in one transaction.
func (c *PgvectorCollection) Add(ctx context.Context, docs []string, metas []Metadata, ids []string) error {
	noneStored := func(string) bool { return false }
	if err := checkBatch(docs, metas, ids, noneStored); err != nil {
		return err
	}

	vectors, err := embedAll(ctx, c.provider, docs)
	if err != nil {
		return err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector collection: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const q = `
		INSERT INTO fragments (collection, id, document, metadata, embedding)
		VALUES ($1, $2, $3, $4::jsonb, $5)`

	for i, doc := range docs {
		meta, err := json.Marshal(cloneMetadata(metas[i]))
		if err != nil {
			return fmt.Errorf("pgvector collection: encode metadata: %w", err)
		}

		var vec any
		if vectors[i] != nil {
			vec = pgvector.NewVector(vectors[i])
		}

		if _, err := tx.Exec(ctx, q, c.name, ids[i], doc, string(meta), vec); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", ErrDuplicateID, ids[i])
			}
			return fmt.Errorf("pgvector collection: insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector collection: commit: %w", err)
	}
	return nil
}

// Query returns the topK rows closest to text by cosine distance. Rows with
// empty text sit at distance 1, or 0 when the query is empty as well.
func (c *PgvectorCollection) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	query, err := embedOne(ctx, c.provider, text)
	if err != nil {
		return nil, err
	}

	var queryVec any
	if query != nil {
		queryVec = pgvector.NewVector(query)
	}

	const q = `
		SELECT id, document, metadata::text,
		       CASE
		           WHEN embedding IS NULL AND $2::vector IS NULL THEN 0
		           WHEN embedding IS NULL OR $2::vector IS NULL THEN 1
		           ELSE embedding <=> $2::vector
		       END AS distance
		FROM   fragments
		WHERE  collection = $1
		ORDER  BY distance, seq
		LIMIT  $3`

	rows, err := c.pool.Query(ctx, q, c.name, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector collection: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var (
			r        Result
			rawMeta  string
			distance float64
		)
		if err := row.Scan(&r.ID, &r.Document, &rawMeta, &distance); err != nil {
			return Result{}, err
		}
		r.Metadata = Metadata{}
		if err := json.Unmarshal([]byte(rawMeta), &r.Metadata); err != nil {
			return Result{}, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
		r.Score = 1 - distance
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector collection: scan rows: %w", err)
	}
	return results, nil
}

// Count returns the number of rows in this collection.
func (c *PgvectorCollection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, `SELECT count(*) FROM fragments WHERE collection = $1`, c.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgvector collection: count: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (c *PgvectorCollection) Close() error {
	c.pool.Close()
	return nil
}
