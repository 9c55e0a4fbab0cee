// Package intake implements the article intake pipeline: a bounded
// submission queue drained by a fixed worker pool. Each submission moves
// through Received, Queued, Filtering, and ends Stored, Held, or Rejected.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/control"
	"github.com/dmitrijs2005/newsflow/internal/server/filters"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/held"
)

// Disposition is the terminal state of a processed submission.
type Disposition int

const (
	DispositionAccepted Disposition = iota
	DispositionHeld
	DispositionRejected
)

func (d Disposition) String() string {
	switch d {
	case DispositionAccepted:
		return "accepted"
	case DispositionHeld:
		return "held"
	case DispositionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is reported back to the submitter once processing finished.
type Result struct {
	Disposition Disposition
	Reason      string
}

type outcome struct {
	res Result
	err error
}

type submission struct {
	article   *models.Article
	submitter string
	done      chan outcome
}

// Pipeline accepts submissions, applies the filter chain, dispatches
// control messages, and stores accepted articles. The queue depth and
// worker count are fixed at construction; they are restart-only settings.
type Pipeline struct {
	provider *config.Provider
	chain    *filters.Chain
	control  *control.Applier

	articles  articles.Repository
	groups    filters.GroupInfo
	held      held.Repository
	authority filters.Authority

	logger logging.Logger
	queue  chan *submission
}

func NewPipeline(provider *config.Provider, chain *filters.Chain, ctl *control.Applier,
	ar articles.Repository, gr filters.GroupInfo, hr held.Repository,
	auth filters.Authority, logger logging.Logger) *Pipeline {

	cfg := provider.Snapshot()
	return &Pipeline{
		provider:  provider,
		chain:     chain,
		control:   ctl,
		articles:  ar,
		groups:    gr,
		held:      hr,
		authority: auth,
		logger:    logger.With("module", "intake"),
		queue:     make(chan *submission, cfg.QueueCapacity),
	}
}

// Run drains the queue with the configured number of workers until ctx is
// cancelled. Submissions already dequeued are finished before return.
func (p *Pipeline) Run(ctx context.Context) error {
	workers := p.provider.Snapshot().Workers
	done := make(chan struct{})

	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case sub := <-p.queue:
					sub.done <- p.processSafe(ctx, sub)
				}
			}
		}()
	}

	for i := 0; i < workers; i++ {
		<-done
	}
	return ctx.Err()
}

// Submit enqueues an article and waits for the worker's verdict. If the
// queue stays full for longer than the configured wait, it reports
// common.ErrCapacity so the caller can signal a retryable condition
// instead of silently dropping the article.
func (p *Pipeline) Submit(ctx context.Context, a *models.Article, submitter string) (Result, error) {
	cfg := p.provider.Snapshot()

	sub := &submission{article: a, submitter: submitter, done: make(chan outcome, 1)}

	wait := time.NewTimer(cfg.QueueWait)
	defer wait.Stop()

	select {
	case p.queue <- sub:
	case <-wait.C:
		return Result{}, fmt.Errorf("intake queue full: %w", common.ErrCapacity)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case out := <-sub.done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// processSafe contains a panic to the submission that caused it: the
// worker survives and the submitter gets a retryable failure.
func (p *Pipeline) processSafe(ctx context.Context, sub *submission) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(ctx, "panic processing submission",
				"message_id", sub.article.MessageID(), "panic", r)
			out = outcome{err: fmt.Errorf("%w: panic during processing", common.ErrInternal)}
		}
	}()

	res, err := p.process(ctx, sub)
	return outcome{res: res, err: err}
}

// normalize stamps the article for this site. It runs in the worker, not
// in Submit, so an article handed back with a transient failure is
// untouched and can be resubmitted as-is. Every step is idempotent: a
// reprocessed article keeps its minted Message-ID and the Path trail is
// never stamped twice.
func (p *Pipeline) normalize(a *models.Article, cfg *config.Config) {
	// Locally posted articles may arrive without a Message-ID; mint one.
	if a.MessageID() == "" {
		a.Headers = append(a.Headers, models.Header{
			Name:  "Message-ID",
			Value: fmt.Sprintf("<%s@%s>", uuid.New(), cfg.SiteName),
		})
	}

	if a.ReceivedAt.IsZero() {
		a.ReceivedAt = time.Now().UTC()
	}
	if a.Size == 0 {
		a.Size = int64(len(a.Body))
	}

	if path := a.Path(); len(path) == 0 || path[0] != cfg.SiteName {
		a.PrependPath(cfg.SiteName)
	}
}

// process runs one submission to its terminal state. A returned error is
// an infrastructure failure: the article was neither stored nor rejected
// and the submitter should retry. Control messages pass the same filter
// chain as ordinary articles; their mutation is applied only after the
// chain accepted and the authority check passed.
func (p *Pipeline) process(ctx context.Context, sub *submission) (Result, error) {
	cfg := p.provider.Snapshot()
	a := sub.article

	p.normalize(a, cfg)

	fc := &filters.Context{
		Cfg:       cfg,
		Groups:    p.groups,
		Authority: p.authority,
		Submitter: sub.submitter,
	}

	verdict, err := p.chain.Run(ctx, fc, a)
	if err != nil {
		return Result{}, fmt.Errorf("filter chain: %w", err)
	}

	switch verdict.Kind {
	case filters.KindReject:
		p.logger.Info(ctx, "article rejected",
			"message_id", a.MessageID(), "reason", verdict.Reason)
		return Result{Disposition: DispositionRejected, Reason: verdict.Reason}, nil

	case filters.KindHold:
		h := &models.HeldArticle{
			MessageID: a.MessageID(),
			Article:   a,
			Reason:    verdict.Reason,
			HeldAt:    time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(cfg.HeldTTL),
		}
		if err := p.held.Put(ctx, h); err != nil {
			return Result{}, fmt.Errorf("parking held article: %w", err)
		}
		p.logger.Info(ctx, "article held",
			"message_id", a.MessageID(), "reason", verdict.Reason)
		return Result{Disposition: DispositionHeld, Reason: verdict.Reason}, nil
	}

	if a.IsControl() {
		return p.processControl(ctx, a)
	}

	created, err := p.store(ctx, a)
	if err != nil {
		return Result{}, err
	}
	if !created {
		// Duplicate Message-ID: the article is already in the spool, so the
		// submission succeeded from the sender's point of view.
		p.logger.Debug(ctx, "duplicate article", "message_id", a.MessageID())
		return Result{Disposition: DispositionAccepted}, nil
	}

	// An approved re-submission releases the parked copy.
	if err := p.held.Delete(ctx, a.MessageID()); err != nil && !errors.Is(err, common.ErrNotFound) {
		p.logger.Warn(ctx, "releasing held copy failed",
			"message_id", a.MessageID(), "error", err)
	}

	p.logger.Info(ctx, "article stored",
		"message_id", a.MessageID(), "groups", a.Headers.Get("Newsgroups"))
	return Result{Disposition: DispositionAccepted}, nil
}

func (p *Pipeline) processControl(ctx context.Context, a *models.Article) (Result, error) {
	err := p.control.Apply(ctx, a)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrUntrustedSigner):
		return Result{Disposition: DispositionRejected, Reason: "untrusted control signer"}, nil
	case errors.Is(err, common.ErrRejected):
		return Result{Disposition: DispositionRejected, Reason: err.Error()}, nil
	default:
		return Result{}, fmt.Errorf("applying control message: %w", err)
	}

	// Control messages are ordinary articles too: store them so downstream
	// peers receive and apply the same mutation.
	if _, err := p.store(ctx, a); err != nil {
		return Result{}, err
	}
	return Result{Disposition: DispositionAccepted}, nil
}

// store persists the article, retrying transient database failures with
// exponential backoff before giving up.
func (p *Pipeline) store(ctx context.Context, a *models.Article) (bool, error) {
	var created bool

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		created, err = p.articles.Put(ctx, a)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("storing article %s: %w", a.MessageID(), err)
	}
	return created, nil
}
