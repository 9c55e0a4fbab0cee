package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/dbx"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {

	query :=
		`INSERT INTO users (username, password_hash, salt, pgp_public_key, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`

	_, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.Salt, user.PGPPublicKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT username, password_hash, salt, COALESCE(pgp_public_key, ''), created_at
		 FROM users
		 WHERE username = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username, &user.PasswordHash, &user.Salt, &user.PGPPublicKey, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) SetAdminKey(ctx context.Context, username, armoredKey string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET pgp_public_key = $2 WHERE username = $1`,
		username, armoredKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Grants(ctx context.Context, username string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pattern FROM moderator_grants WHERE username = $1 ORDER BY pattern`,
		username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (r *PostgresRepository) Grant(ctx context.Context, username, pattern string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO moderator_grants (username, pattern)
		 VALUES ($1, $2)
		 ON CONFLICT (username, pattern) DO NOTHING`,
		username, pattern)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, username, pattern string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM moderator_grants WHERE username = $1 AND pattern = $2`,
		username, pattern)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
