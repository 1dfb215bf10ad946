package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func newBatch() *pgx.Batch { return &pgx.Batch{} }

// sendBatch runs a queued batch and drains every result, returning the
// first error encountered.
func (r *Repository) sendBatch(ctx context.Context, b *pgx.Batch) error {
	results := r.db.Pool.SendBatch(ctx, b)
	defer results.Close()
	for i := 0; i < b.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}
