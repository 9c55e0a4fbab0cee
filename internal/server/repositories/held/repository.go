package held

import (
	"context"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// Repository stores articles parked by the moderation filter. Held articles
// live outside the public spool until approved or expired.
type Repository interface {
	Put(ctx context.Context, h *models.HeldArticle) error
	Get(ctx context.Context, messageID string) (*models.HeldArticle, error)
	Delete(ctx context.Context, messageID string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
