package users

import (
	"context"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SetAdminKey(ctx context.Context, username, armoredKey string) error
	Grants(ctx context.Context, username string) ([]string, error)
	Grant(ctx context.Context, username, pattern string) error
	Revoke(ctx context.Context, username, pattern string) error
}
