package peers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Watermark returns 0 for a (peer, group) pair that has never synced.
func (r *PostgresRepository) Watermark(ctx context.Context, peer, group string) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx,
		`SELECT seq FROM peer_watermarks WHERE peer = $1 AND group_name = $2`,
		peer, group).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

// SetWatermark upserts the watermark. GREATEST keeps it monotonic even if
// a cancelled run races a newer one: the stored value never moves backward.
func (r *PostgresRepository) SetWatermark(ctx context.Context, peer, group string, seq int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO peer_watermarks (peer, group_name, seq, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (peer, group_name)
		 DO UPDATE SET seq = GREATEST(peer_watermarks.seq, EXCLUDED.seq), updated_at = EXCLUDED.updated_at`,
		peer, group, seq, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
