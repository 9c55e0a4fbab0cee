package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/intake"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/groups"
)

// SubmitStatus is the submission outcome reported to the client protocol
// layer. TransientFailure means "nothing happened, try again": the article
// was neither stored nor rejected.
type SubmitStatus int

const (
	SubmitAccepted SubmitStatus = iota
	SubmitHeld
	SubmitRejected
	SubmitTransientFailure
)

func (s SubmitStatus) String() string {
	switch s {
	case SubmitAccepted:
		return "accepted"
	case SubmitHeld:
		return "held"
	case SubmitRejected:
		return "rejected"
	case SubmitTransientFailure:
		return "transient failure"
	default:
		return "unknown"
	}
}

type SubmitResult struct {
	Status SubmitStatus
	Reason string
}

// Submitter is the intake pipeline seam.
type Submitter interface {
	Submit(ctx context.Context, a *models.Article, submitter string) (intake.Result, error)
}

// NewsService is the read and submit surface over the spool.
type NewsService struct {
	pipeline Submitter
	provider *config.Provider
	articles articles.Repository
	groups   groups.Repository
	logger   logging.Logger
}

func NewNewsService(pipeline Submitter, provider *config.Provider,
	ar articles.Repository, gr groups.Repository, logger logging.Logger) *NewsService {
	return &NewsService{
		pipeline: pipeline,
		provider: provider,
		articles: ar,
		groups:   gr,
		logger:   logger.With("module", "news"),
	}
}

// Submit runs the article through the intake pipeline. Infrastructure
// failures surface as TransientFailure, never as rejection, so senders
// retry instead of discarding.
func (s *NewsService) Submit(ctx context.Context, a *models.Article, submitter string) SubmitResult {
	res, err := s.pipeline.Submit(ctx, a, submitter)
	if err != nil {
		s.logger.Error(ctx, "submission failed", "message_id", a.MessageID(), "error", err)
		return SubmitResult{Status: SubmitTransientFailure, Reason: err.Error()}
	}

	switch res.Disposition {
	case intake.DispositionHeld:
		return SubmitResult{Status: SubmitHeld, Reason: res.Reason}
	case intake.DispositionRejected:
		return SubmitResult{Status: SubmitRejected, Reason: res.Reason}
	default:
		return SubmitResult{Status: SubmitAccepted}
	}
}

// Article fetches one article by Message-ID.
func (s *NewsService) Article(ctx context.Context, messageID string) (*models.Article, error) {
	return s.articles.GetByID(ctx, messageID)
}

// Groups lists all carried newsgroups.
func (s *NewsService) Groups(ctx context.Context) ([]models.Newsgroup, error) {
	return s.groups.List(ctx)
}

// GroupsSince lists newsgroups created after the given time, for NEWGROUPS
// style queries.
func (s *NewsService) GroupsSince(ctx context.Context, since time.Time) ([]models.Newsgroup, error) {
	return s.groups.ListSince(ctx, since)
}

// GroupExists reports whether the group is carried.
func (s *NewsService) GroupExists(ctx context.Context, name string) (bool, error) {
	return s.groups.Exists(ctx, name)
}

// GroupModerated reports the group's moderation flag.
func (s *NewsService) GroupModerated(ctx context.Context, name string) (bool, error) {
	return s.groups.IsModerated(ctx, name)
}

// Capabilities are the optional engine features a session layer announces.
type Capabilities struct {
	Posting    bool
	Moderation bool
	Holds      bool
}

// Capabilities reports what the engine currently has active: moderation
// when any carried group is moderated, holds when parked articles have a
// nonzero TTL.
func (s *NewsService) Capabilities(ctx context.Context) (Capabilities, error) {
	caps := Capabilities{
		Posting: true,
		Holds:   s.provider.Snapshot().HeldTTL > 0,
	}

	all, err := s.groups.List(ctx)
	if err != nil {
		return Capabilities{}, err
	}
	for _, g := range all {
		if g.Moderated {
			caps.Moderation = true
			break
		}
	}
	return caps, nil
}
