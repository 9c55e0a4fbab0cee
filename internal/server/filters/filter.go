// Package filters implements the ordered validation chain every submitted
// article passes through before it reaches the store.
//
// The set of filters is closed: each kind is a concrete type dispatched
// through the Filter interface, and new kinds are added by extending the
// set, not by reflection over configured names.
package filters

import (
	"context"

	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// VerdictKind orders verdicts by restrictiveness: Reject > Hold > Accept.
type VerdictKind int

const (
	KindAccept VerdictKind = iota
	KindHold
	KindReject
)

// Verdict is a filter's decision for an article. Hold means "not stored,
// parked for explicit moderator approval" and is distinct from rejection.
type Verdict struct {
	Kind   VerdictKind
	Reason string
}

func Accept() Verdict              { return Verdict{Kind: KindAccept} }
func Hold(reason string) Verdict   { return Verdict{Kind: KindHold, Reason: reason} }
func Reject(reason string) Verdict { return Verdict{Kind: KindReject, Reason: reason} }

// Worst returns the more restrictive of the two verdicts. For equal kinds
// the receiver wins, so the first group to produce a verdict names the
// reason.
func (v Verdict) Worst(o Verdict) Verdict {
	if o.Kind > v.Kind {
		return o
	}
	return v
}

// GroupInfo is the slice of the group repository the filters need.
type GroupInfo interface {
	Exists(ctx context.Context, name string) (bool, error)
	IsModerated(ctx context.Context, name string) (bool, error)
}

// Authority resolves moderator grants and verifies approval signatures.
type Authority interface {
	HasModeratorAuthority(ctx context.Context, username, group string) (bool, error)
	VerifyAdmin(ctx context.Context, username string, payload, signature []byte) error
}

// Context carries the per-submission environment: the configuration
// snapshot taken when the submission was dequeued, the group store, the
// authority verifier, and the authenticated submitter ("" for anonymous
// peer feeds).
type Context struct {
	Cfg       *config.Config
	Groups    GroupInfo
	Authority Authority
	Submitter string
}

// Filter validates one aspect of an article. A returned error is an
// infrastructure failure (store unreachable), not a verdict; the pipeline
// retries it rather than rejecting the article.
type Filter interface {
	Name() string
	Evaluate(ctx context.Context, fc *Context, a *models.Article) (Verdict, error)
}

// Chain runs filters in configured order and short-circuits on the first
// non-Accept verdict: later filters never see the article.
type Chain struct {
	filters []Filter
	logger  logging.Logger
}

func NewChain(logger logging.Logger, filters ...Filter) *Chain {
	return &Chain{filters: filters, logger: logger.With("module", "filters")}
}

// DefaultChain is the standard order: header sanity, size limits, group
// existence, moderation.
func DefaultChain(logger logging.Logger) *Chain {
	return NewChain(logger,
		&HeaderFilter{},
		&SizeFilter{},
		&GroupExistenceFilter{},
		&ModerationFilter{},
	)
}

func (c *Chain) Run(ctx context.Context, fc *Context, a *models.Article) (Verdict, error) {
	for _, f := range c.filters {
		v, err := f.Evaluate(ctx, fc, a)
		if err != nil {
			return Verdict{}, err
		}
		if v.Kind != KindAccept {
			c.logger.Debug(ctx, "filter verdict", "filter", f.Name(),
				"message_id", a.MessageID(), "kind", int(v.Kind), "reason", v.Reason)
			return v, nil
		}
	}
	return Accept(), nil
}
