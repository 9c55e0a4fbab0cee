package groups

import (
	"context"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, name string, moderated bool) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	IsModerated(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]models.Newsgroup, error)
	ListSince(ctx context.Context, since time.Time) ([]models.Newsgroup, error)
}
