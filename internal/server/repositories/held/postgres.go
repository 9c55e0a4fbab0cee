package held

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Put(ctx context.Context, h *models.HeldArticle) error {

	headers, err := json.Marshal(h.Article.Headers)
	if err != nil {
		return fmt.Errorf("encoding headers: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO held_articles (message_id, headers, body, reason, held_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (message_id) DO NOTHING`,
		h.MessageID, string(headers), h.Article.Body, h.Reason, h.HeldAt, h.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, messageID string) (*models.HeldArticle, error) {

	var (
		headers string
		body    []byte
		h       models.HeldArticle
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT message_id, headers, body, reason, held_at, expires_at
		 FROM held_articles WHERE message_id = $1`,
		messageID).Scan(&h.MessageID, &headers, &body, &h.Reason, &h.HeldAt, &h.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	var hdrs models.Headers
	if err := json.Unmarshal([]byte(headers), &hdrs); err != nil {
		return nil, fmt.Errorf("decoding headers: %w", err)
	}

	h.Article = &models.Article{Headers: hdrs, Body: body, Size: int64(len(body))}
	return &h, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM held_articles WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM held_articles WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
