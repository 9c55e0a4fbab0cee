// Package authority decides who may do what: it verifies detached
// cryptographic signatures on control messages against registered
// administrator keys and resolves moderator authority from granted
// wildmat patterns.
package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/wildmat"
)

// SignatureVerifier is the narrow seam to the cryptographic scheme, so the
// surrounding pipeline stays agnostic to it and tests can stub it.
type SignatureVerifier interface {
	Verify(armoredPublicKey string, payload, armoredSignature []byte) error
}

// UserSource is the read-only slice of the user repository the verifier
// needs. The verifier never mutates user records.
type UserSource interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Grants(ctx context.Context, username string) ([]string, error)
}

type Verifier struct {
	users  UserSource
	sig    SignatureVerifier
	logger logging.Logger
}

func NewVerifier(users UserSource, sig SignatureVerifier, logger logging.Logger) *Verifier {
	return &Verifier{
		users:  users,
		sig:    sig,
		logger: logger.With("module", "authority"),
	}
}

// VerifyAdmin checks the detached signature over payload against the
// registered public key of username. It fails closed: an unknown user, a
// user without a registered key, a malformed signature block, or a
// verification failure all yield common.ErrUntrustedSigner. A store
// failure is returned as-is so callers can distinguish "unauthorized"
// from "cannot tell right now".
func (v *Verifier) VerifyAdmin(ctx context.Context, username string, payload, signature []byte) (err error) {
	// A malformed key or signature block must degrade to "unauthorized",
	// never take down an intake worker.
	defer func() {
		if p := recover(); p != nil {
			v.logger.Error(ctx, "signature verification panic", "username", username, "panic", p)
			err = common.ErrUntrustedSigner
		}
	}()

	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUntrustedSigner
		}
		return fmt.Errorf("loading user %q: %w", username, err)
	}

	if user.PGPPublicKey == "" {
		return common.ErrUntrustedSigner
	}

	if err := v.sig.Verify(user.PGPPublicKey, payload, signature); err != nil {
		v.logger.Warn(ctx, "rejected control signature", "username", username, "error", err.Error())
		return common.ErrUntrustedSigner
	}

	return nil
}

// HasModeratorAuthority reports whether any of the user's granted patterns
// matches the newsgroup. An unknown user simply has no grants.
func (v *Verifier) HasModeratorAuthority(ctx context.Context, username, group string) (bool, error) {
	patterns, err := v.users.Grants(ctx, username)
	if err != nil {
		return false, fmt.Errorf("loading grants for %q: %w", username, err)
	}
	return wildmat.MatchAny(patterns, group), nil
}
