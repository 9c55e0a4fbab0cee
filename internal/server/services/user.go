// Package services contains server-side business logic on top of the
// repositories: account handling and the article submission boundary.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/server/auth"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/users"
)

// argon2id parameters for password hashing.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword derives the stored argon2id hash for a password and salt.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// UserService handles local accounts: registration, credential checks, and
// issuing access tokens for authenticated posting sessions.
type UserService struct {
	users         users.Repository
	jwtSecret     []byte
	tokenValidity time.Duration
}

func NewUserService(repo users.Repository, cfg *config.Config) *UserService {
	return &UserService{
		users:         repo,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidity,
	}
}

// Register creates a new account with a freshly salted argon2id hash.
func (s *UserService) Register(ctx context.Context, username, password string) error {
	salt := common.GenerateRandByteArray(saltLen)
	user := &models.User{
		Username:     username,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

// Authenticate verifies the credentials and returns a signed access token.
// Unknown usernames and wrong passwords are indistinguishable to the
// caller; a hash comparison runs in both cases.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			dummy := common.GenerateRandByteArray(saltLen)
			HashPassword(password, dummy)
			return "", common.ErrUnauthorized
		}
		return "", common.ErrInternal
	}

	candidate := HashPassword(password, user.Salt)
	if subtle.ConstantTimeCompare(user.PasswordHash, candidate) != 1 {
		return "", common.ErrUnauthorized
	}

	return auth.GenerateToken(username, s.jwtSecret, s.tokenValidity)
}

// VerifyToken returns the username carried by a valid access token.
func (s *UserService) VerifyToken(tokenString string) (string, error) {
	return auth.GetUsernameFromToken(tokenString, s.jwtSecret)
}
