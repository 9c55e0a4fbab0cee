// Package sweep enforces retention: on a cron schedule it purges articles
// older than their group's retention window, drops index rows left behind
// by removed groups, and expires parked held articles.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/policy"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/groups"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/held"
)

// Archiver receives expired articles before they are purged. A nil
// archiver means articles are deleted without a copy.
type Archiver interface {
	Archive(ctx context.Context, group string, a *models.Article) error
}

type Sweeper struct {
	provider *config.Provider
	articles articles.Repository
	groups   groups.Repository
	held     held.Repository
	archiver Archiver
	logger   logging.Logger

	now func() time.Time
}

func NewSweeper(provider *config.Provider, ar articles.Repository, gr groups.Repository,
	hr held.Repository, archiver Archiver, logger logging.Logger) *Sweeper {

	return &Sweeper{
		provider: provider,
		articles: ar,
		groups:   gr,
		held:     hr,
		archiver: archiver,
		logger:   logger.With("module", "sweep"),
		now:      time.Now,
	}
}

// Run executes the sweep on the configured schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.provider.Snapshot().SweepSchedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error(ctx, "sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// RunOnce performs a full retention pass. Groups are swept independently;
// a failure in one group aborts the pass so the next run retries it.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cfg := s.provider.Snapshot()
	now := s.now().UTC()

	all, err := s.groups.List(ctx)
	if err != nil {
		return fmt.Errorf("listing groups: %w", err)
	}

	for _, g := range all {
		p := policy.Resolve(g.Name, cfg)
		if p.RetentionDays <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -p.RetentionDays)

		if s.archiver != nil {
			err := s.articles.ListGroupBefore(ctx, g.Name, cutoff, func(a *models.Article) error {
				return s.archiver.Archive(ctx, g.Name, a)
			})
			if err != nil {
				return fmt.Errorf("archiving %s: %w", g.Name, err)
			}
		}

		purged, err := s.articles.PurgeGroupBefore(ctx, g.Name, cutoff)
		if err != nil {
			return fmt.Errorf("purging %s: %w", g.Name, err)
		}
		if purged > 0 {
			s.logger.Info(ctx, "group swept", "group", g.Name,
				"purged", purged, "retention_days", p.RetentionDays)
		}
	}

	orphans, err := s.articles.PurgeOrphans(ctx)
	if err != nil {
		return fmt.Errorf("purging orphans: %w", err)
	}

	expired, err := s.held.SweepExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("expiring held articles: %w", err)
	}

	if orphans > 0 || expired > 0 {
		s.logger.Info(ctx, "sweep finished", "orphans", orphans, "expired_held", expired)
	}
	return nil
}
