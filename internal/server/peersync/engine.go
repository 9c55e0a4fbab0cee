// Package peersync pushes stored articles to configured downstream peers.
//
// Delivery is at-least-once: a per-(peer, group) watermark records the
// arrival sequence of the last acknowledged article, and it only advances
// after the peer answered the offer or transfer. A crashed run re-offers
// from the watermark; duplicate offers are cheap because the peer answers
// "already have it".
package peersync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/groups"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/peers"
	"github.com/dmitrijs2005/newsflow/internal/wildmat"
)

// ErrDeferred is returned by a connection when the peer asked to retry the
// article later. It ends the group's run without advancing the watermark.
var ErrDeferred = errors.New("peer deferred article")

// ErrRefused is returned by a connection when the peer permanently refused
// an article it had asked for. The watermark still advances: a refusal must
// not wedge the whole feed behind one article.
var ErrRefused = errors.New("peer refused article")

// PeerConnection is one established session with a peer.
type PeerConnection interface {
	// Offer asks whether the peer wants the article.
	Offer(ctx context.Context, messageID string) (wanted bool, err error)
	// SendArticle transfers a previously offered article.
	SendArticle(ctx context.Context, a *models.Article) error
	Close() error
}

// Connector dials a peer. Implemented by the NNTP client; replaced by a
// fake in tests.
type Connector interface {
	Connect(ctx context.Context, peer config.PeerConfig) (PeerConnection, error)
}

// Engine schedules and runs per-peer synchronization.
type Engine struct {
	provider  *config.Provider
	articles  articles.Repository
	groups    groups.Repository
	peers     peers.Repository
	connector Connector
	logger    logging.Logger

	cron *cron.Cron

	mu      sync.Mutex
	running map[string]*sync.Mutex
}

func NewEngine(provider *config.Provider, ar articles.Repository, gr groups.Repository,
	pr peers.Repository, connector Connector, logger logging.Logger) *Engine {

	return &Engine{
		provider:  provider,
		articles:  ar,
		groups:    gr,
		peers:     pr,
		connector: connector,
		logger:    logger.With("module", "peersync"),
		running:   make(map[string]*sync.Mutex),
	}
}

// Run registers one cron entry per configured peer, using the peer's own
// schedule when set and the global one otherwise, then blocks until ctx is
// cancelled. Peer schedules are read once here; adding a peer or changing
// its schedule takes effect on restart, while patterns and addresses come
// from the live snapshot on every run.
func (e *Engine) Run(ctx context.Context) error {
	cfg := e.provider.Snapshot()
	e.cron = cron.New()

	for _, p := range cfg.Peers {
		spec := p.Schedule
		if spec == "" {
			spec = cfg.SyncSchedule
		}
		name := p.SiteName
		_, err := e.cron.AddFunc(spec, func() {
			if err := e.SyncPeer(ctx, name); err != nil {
				e.logger.Error(ctx, "peer sync failed", "peer", name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling peer %s: %w", name, err)
		}
	}

	e.cron.Start()
	<-ctx.Done()
	<-e.cron.Stop().Done()
	return ctx.Err()
}

// SyncPeer runs one synchronization pass for the named peer. Overlapping
// runs for the same peer coalesce: if one is already in flight the call
// returns immediately, the running pass will pick up the new articles.
func (e *Engine) SyncPeer(ctx context.Context, name string) error {
	lock := e.lockFor(name)
	if !lock.TryLock() {
		e.logger.Debug(ctx, "sync already in flight", "peer", name)
		return nil
	}
	defer lock.Unlock()

	cfg := e.provider.Snapshot()
	peer, ok := findPeer(cfg, name)
	if !ok {
		e.logger.Warn(ctx, "peer no longer configured", "peer", name)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.SyncTimeout)
	defer cancel()

	conn, err := e.connect(ctx, peer)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", peer.Addr, err)
	}
	defer conn.Close()

	all, err := e.groups.List(ctx)
	if err != nil {
		return fmt.Errorf("listing groups: %w", err)
	}

	for _, g := range all {
		if !wildmat.MatchAny(peer.Patterns, g.Name) {
			continue
		}
		if err := e.syncGroup(ctx, conn, peer, g.Name); err != nil {
			return fmt.Errorf("syncing %s to %s: %w", g.Name, name, err)
		}
	}
	return nil
}

func (e *Engine) connect(ctx context.Context, peer config.PeerConfig) (PeerConnection, error) {
	var conn PeerConnection

	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		conn, err = e.connector.Connect(ctx, peer)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return conn, err
}

// syncGroup streams the group's backlog past the watermark. The watermark
// advances per article, only after the peer acknowledged it one way or
// another, so an aborted run never skips anything.
func (e *Engine) syncGroup(ctx context.Context, conn PeerConnection, peer config.PeerConfig, group string) error {
	wm, err := e.peers.Watermark(ctx, peer.SiteName, group)
	if err != nil {
		return err
	}

	sent := 0
	err = e.articles.ListSince(ctx, group, wm, func(seq int64, a *models.Article) error {
		// Never feed an article back to a site it already passed through.
		if !slices.Contains(a.Path(), peer.SiteName) {
			if err := e.deliver(ctx, conn, a); err != nil {
				return err
			}
			sent++
		}
		return e.peers.SetWatermark(ctx, peer.SiteName, group, seq)
	})
	if errors.Is(err, ErrDeferred) {
		e.logger.Info(ctx, "peer deferred, stopping group run",
			"peer", peer.SiteName, "group", group)
		err = nil
	}
	if err != nil {
		return err
	}

	if sent > 0 {
		e.logger.Info(ctx, "group synced", "peer", peer.SiteName, "group", group, "sent", sent)
	}
	return nil
}

func (e *Engine) deliver(ctx context.Context, conn PeerConnection, a *models.Article) error {
	wanted, err := conn.Offer(ctx, a.MessageID())
	if err != nil {
		return err
	}
	if !wanted {
		return nil
	}

	err = conn.SendArticle(ctx, a)
	if errors.Is(err, ErrRefused) {
		e.logger.Warn(ctx, "peer refused article", "message_id", a.MessageID())
		return nil
	}
	return err
}

func (e *Engine) lockFor(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.running[name]; !ok {
		e.running[name] = &sync.Mutex{}
	}
	return e.running[name]
}

func findPeer(cfg *config.Config, name string) (config.PeerConfig, bool) {
	for _, p := range cfg.Peers {
		if p.SiteName == name {
			return p, true
		}
	}
	return config.PeerConfig{}, false
}
