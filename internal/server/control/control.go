// Package control parses and applies administrative control messages:
// specially-typed articles whose Control header carries a group or
// permission mutation, authorized either by a detached admin signature or,
// for cancels, by a Cancel-Key matching the target's Cancel-Lock.
package control

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/groups"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/users"
)

// Command is a parsed Control header.
type Command struct {
	Verb string
	Args []string
}

// Parse extracts the control command from the article's Control header.
func Parse(a *models.Article) (*Command, error) {
	v := strings.TrimSpace(a.Headers.Get("Control"))
	if v == "" {
		return nil, fmt.Errorf("%w: empty Control header", common.ErrRejected)
	}
	fields := strings.Fields(v)
	return &Command{Verb: strings.ToLower(fields[0]), Args: fields[1:]}, nil
}

// AdminVerifier is the authority seam: implemented by authority.Verifier.
type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, username string, payload, signature []byte) error
}

// Applier authorizes and executes control commands against the store.
type Applier struct {
	groups   groups.Repository
	articles articles.Repository
	users    users.Repository
	verifier AdminVerifier
	logger   logging.Logger
}

func NewApplier(g groups.Repository, a articles.Repository, u users.Repository, v AdminVerifier, logger logging.Logger) *Applier {
	return &Applier{
		groups:   g,
		articles: a,
		users:    u,
		verifier: v,
		logger:   logger.With("module", "control"),
	}
}

// ControlPayload is the canonical byte string an administrator signs:
// the Control header value and the Message-ID, newline-separated. Binding
// the Message-ID prevents replaying the signature on a new message.
func ControlPayload(a *models.Article) []byte {
	return []byte(a.Headers.Get("Control") + "\n" + a.MessageID())
}

// Apply parses, authorizes, and executes the control message. It returns
// common.ErrUntrustedSigner when authorization fails and common.ErrRejected
// for unknown or malformed commands; the mutation runs only after
// authorization passed, never partially.
func (ap *Applier) Apply(ctx context.Context, a *models.Article) error {

	cmd, err := Parse(a)
	if err != nil {
		return err
	}

	authorized, err := ap.authorize(ctx, a, cmd)
	if err != nil {
		return err
	}
	if !authorized {
		ap.logger.Warn(ctx, "unauthorized control message",
			"message_id", a.MessageID(), "verb", cmd.Verb, "signer", a.Headers.Get("X-Signer"))
		return common.ErrUntrustedSigner
	}

	switch cmd.Verb {
	case "newgroup":
		if len(cmd.Args) < 1 {
			return fmt.Errorf("%w: newgroup requires a group name", common.ErrRejected)
		}
		moderated := len(cmd.Args) > 1 && cmd.Args[1] == "moderated"
		return ap.groups.Create(ctx, cmd.Args[0], moderated)

	case "rmgroup":
		if len(cmd.Args) < 1 {
			return fmt.Errorf("%w: rmgroup requires a group name", common.ErrRejected)
		}
		if err := ap.groups.Delete(ctx, cmd.Args[0]); err != nil {
			return err
		}
		_, err := ap.articles.PurgeOrphans(ctx)
		return err

	case "cancel":
		if len(cmd.Args) < 1 {
			return fmt.Errorf("%w: cancel requires a message id", common.ErrRejected)
		}
		return ap.articles.Delete(ctx, cmd.Args[0])

	case "grantmod":
		if len(cmd.Args) < 2 {
			return fmt.Errorf("%w: grantmod requires a username and pattern", common.ErrRejected)
		}
		return ap.users.Grant(ctx, cmd.Args[0], cmd.Args[1])

	case "revokemod":
		if len(cmd.Args) < 2 {
			return fmt.Errorf("%w: revokemod requires a username and pattern", common.ErrRejected)
		}
		return ap.users.Revoke(ctx, cmd.Args[0], cmd.Args[1])

	default:
		return fmt.Errorf("%w: unknown control verb %q", common.ErrRejected, cmd.Verb)
	}
}

func (ap *Applier) authorize(ctx context.Context, a *models.Article, cmd *Command) (bool, error) {

	// Cancels may authenticate with a Cancel-Key matching the target
	// article's Cancel-Lock, no admin signature needed.
	if cmd.Verb == "cancel" && len(cmd.Args) > 0 {
		ok, err := ap.cancelKeyAuthorized(ctx, a, cmd.Args[0])
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	signer := a.Headers.Get("X-Signer")
	sig := a.Headers.Get("X-Control-Signature")
	if signer == "" || sig == "" {
		return false, nil
	}

	err := ap.verifier.VerifyAdmin(ctx, signer, ControlPayload(a), []byte(sig))
	if err != nil {
		if errors.Is(err, common.ErrUntrustedSigner) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (ap *Applier) cancelKeyAuthorized(ctx context.Context, a *models.Article, targetID string) (bool, error) {
	key := a.Headers.Get("Cancel-Key")
	if key == "" {
		return false, nil
	}

	target, err := ap.articles.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	for _, lock := range target.Headers.Values("Cancel-Lock") {
		if CancelKeyMatches(lock, key) {
			return true, nil
		}
	}
	return false, nil
}

// CancelKeyMatches checks a "sha256:<b64key>" Cancel-Key against a
// "sha256:<b64(sha256(b64key))>" Cancel-Lock.
func CancelKeyMatches(lock, key string) bool {
	const scheme = "sha256:"
	if !strings.HasPrefix(lock, scheme) || !strings.HasPrefix(key, scheme) {
		return false
	}
	keyB64 := strings.TrimPrefix(key, scheme)
	digest := sha256.Sum256([]byte(keyB64))
	return base64.StdEncoding.EncodeToString(digest[:]) == strings.TrimPrefix(lock, scheme)
}
