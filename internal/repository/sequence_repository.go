package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository hands out gap-tolerant, strictly increasing counters.
// Calls inside a transaction hold the counter row lock until commit, so
// concurrent callers for the same key serialise.
type SequenceRepository struct {
	base
}

// NewSequenceRepository creates a SequenceRepository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{base{db: db}}
}

// Next increments and returns the counter for key, starting at 1.
func (r *SequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	const query = `INSERT INTO sequence_counters (key, value, updated_at) VALUES ($1, 1, NOW())
ON CONFLICT (key) DO UPDATE SET value = sequence_counters.value + 1, updated_at = NOW()
RETURNING value`
	var value int64
	if err := r.get(ctx, &value, query, key); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return value, nil
}
