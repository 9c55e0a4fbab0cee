package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/dbx"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name string, moderated bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (name, moderated, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING`,
		name, moderated, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the group; its index rows go with it via ON DELETE
// CASCADE. Messages left without any group reference are purged separately
// by the articles repository.
func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM groups WHERE name = $1 LIMIT 1`, name).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) IsModerated(ctx context.Context, name string) (bool, error) {
	var moderated bool
	err := r.db.QueryRowContext(ctx,
		`SELECT moderated FROM groups WHERE name = $1`, name).Scan(&moderated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return moderated, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Newsgroup, error) {
	return r.list(ctx,
		`SELECT name, moderated, created_at FROM groups ORDER BY name`)
}

func (r *PostgresRepository) ListSince(ctx context.Context, since time.Time) ([]models.Newsgroup, error) {
	return r.list(ctx,
		`SELECT name, moderated, created_at FROM groups WHERE created_at > $1 ORDER BY name`,
		since)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Newsgroup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Newsgroup
	for rows.Next() {
		var g models.Newsgroup
		if err := rows.Scan(&g.Name, &g.Moderated, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
