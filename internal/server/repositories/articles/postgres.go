package articles

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

// PostgresRepository persists articles in the messages/group_articles
// tables. Unlike the other repositories it holds the *sql.DB rather than a
// DBTX, because Put must run its message row and per-group index rows in
// one transaction: a reader (peer sync, sweeper) must never observe an
// index row without its message, or a half-indexed crosspost.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func encodeHeaders(h models.Headers) (string, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encoding headers: %w", err)
	}
	return string(b), nil
}

func decodeHeaders(s string) (models.Headers, error) {
	var h models.Headers
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("decoding headers: %w", err)
	}
	return h, nil
}

func (r *PostgresRepository) Put(ctx context.Context, article *models.Article) (bool, error) {

	msgID := article.MessageID()
	if msgID == "" {
		return false, fmt.Errorf("missing Message-ID")
	}

	headers, err := encodeHeaders(article.Headers)
	if err != nil {
		return false, err
	}

	created := false

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {

		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (message_id, headers, body, size, received_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (message_id) DO NOTHING`,
			msgID, headers, article.Body, article.Size, article.ReceivedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			// Duplicate submission: idempotent no-op.
			return nil
		}
		created = true

		for _, group := range article.Newsgroups() {
			var next int64
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(seq), 0) + 1 FROM group_articles WHERE group_name = $1`,
				group).Scan(&next)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO group_articles (group_name, seq, message_id, inserted_at)
				 VALUES ($1, $2, $3, $4)`,
				group, next, msgID, article.ReceivedAt)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, messageID string) (*models.Article, error) {

	var (
		headers    string
		body       []byte
		size       int64
		receivedAt time.Time
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT headers, body, size, received_at FROM messages WHERE message_id = $1`,
		messageID).Scan(&headers, &body, &size, &receivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	h, err := decodeHeaders(headers)
	if err != nil {
		return nil, err
	}

	return &models.Article{Headers: h, Body: body, Size: size, ReceivedAt: receivedAt}, nil
}

func (r *PostgresRepository) ListSince(ctx context.Context, group string, watermark int64, fn func(seq int64, a *models.Article) error) error {

	rows, err := r.db.QueryContext(ctx,
		`SELECT g.seq, m.headers, m.body, m.size, m.received_at
		 FROM group_articles g
		 JOIN messages m ON m.message_id = g.message_id
		 WHERE g.group_name = $1 AND g.seq > $2
		 ORDER BY g.seq`,
		group, watermark)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq        int64
			headers    string
			body       []byte
			size       int64
			receivedAt time.Time
		)
		if err := rows.Scan(&seq, &headers, &body, &size, &receivedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		h, err := decodeHeaders(headers)
		if err != nil {
			return err
		}

		a := &models.Article{Headers: h, Body: body, Size: size, ReceivedAt: receivedAt}
		if err := fn(seq, a); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, messageID string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM group_articles WHERE message_id = $1`, messageID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE message_id = $1`, messageID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) PurgeGroupBefore(ctx context.Context, group string, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_articles WHERE group_name = $1 AND inserted_at < $2`,
		group, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListGroupBefore(ctx context.Context, group string, before time.Time, fn func(a *models.Article) error) error {

	rows, err := r.db.QueryContext(ctx,
		`SELECT m.headers, m.body, m.size, m.received_at
		 FROM group_articles g
		 JOIN messages m ON m.message_id = g.message_id
		 WHERE g.group_name = $1 AND g.inserted_at < $2
		 ORDER BY g.seq`,
		group, before)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			headers    string
			body       []byte
			size       int64
			receivedAt time.Time
		)
		if err := rows.Scan(&headers, &body, &size, &receivedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		h, err := decodeHeaders(headers)
		if err != nil {
			return err
		}

		if err := fn(&models.Article{Headers: h, Body: body, Size: size, ReceivedAt: receivedAt}); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *PostgresRepository) PurgeOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages
		 WHERE message_id NOT IN (SELECT DISTINCT message_id FROM group_articles)`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
