package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"perf-evidence-service/internal/client"
)

// EvidenceRepository stores work artifacts pulled by the sync jobs.
// Upsert on (source, external_id) so a re-run of the same window is idempotent.
type EvidenceRepository struct {
	pool *pgxpool.Pool
}

func NewEvidenceRepository(pool *pgxpool.Pool) *EvidenceRepository {
	return &EvidenceRepository{pool: pool}
}

func (r *EvidenceRepository) Insert(ctx context.Context, source string, item client.SourceItem) error {
	const q = `
INSERT INTO evidence (source, external_id, title, url, author, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source, external_id) DO UPDATE
SET title = EXCLUDED.title, url = EXCLUDED.url, author = EXCLUDED.author,
    occurred_at = EXCLUDED.occurred_at;
`
	_, err := r.pool.Exec(ctx, q, source, item.ExternalID, item.Title, item.URL, item.Author, item.OccurredAt)
	return err
}
