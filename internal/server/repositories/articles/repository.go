package articles

import (
	"context"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// Repository is the persistence contract for articles.
//
// Put is idempotent on duplicate Message-ID. ListSince streams articles for
// one group strictly after the given watermark, ascending by the per-group
// arrival sequence; it is restartable from any watermark value.
type Repository interface {
	Put(ctx context.Context, article *models.Article) (created bool, err error)
	GetByID(ctx context.Context, messageID string) (*models.Article, error)
	ListSince(ctx context.Context, group string, watermark int64, fn func(seq int64, a *models.Article) error) error
	Delete(ctx context.Context, messageID string) error
	PurgeGroupBefore(ctx context.Context, group string, before time.Time) (int64, error)
	ListGroupBefore(ctx context.Context, group string, before time.Time, fn func(a *models.Article) error) error
	PurgeOrphans(ctx context.Context) (int64, error)
}
