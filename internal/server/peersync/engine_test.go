package peersync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/logging"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memArticle struct {
	seq int64
	a   *models.Article
}

type fakeArticles struct {
	byGroup map[string][]memArticle
}

func (f *fakeArticles) Put(ctx context.Context, a *models.Article) (bool, error) { return true, nil }
func (f *fakeArticles) GetByID(ctx context.Context, id string) (*models.Article, error) {
	return nil, nil
}
func (f *fakeArticles) ListSince(ctx context.Context, group string, watermark int64, fn func(int64, *models.Article) error) error {
	list := f.byGroup[group]
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	for _, m := range list {
		if m.seq <= watermark {
			continue
		}
		if err := fn(m.seq, m.a); err != nil {
			return err
		}
	}
	return nil
}
func (f *fakeArticles) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeArticles) PurgeGroupBefore(ctx context.Context, group string, before time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeArticles) ListGroupBefore(ctx context.Context, group string, before time.Time, fn func(*models.Article) error) error {
	return nil
}
func (f *fakeArticles) PurgeOrphans(ctx context.Context) (int64, error) { return 0, nil }

type fakeGroups struct {
	names []string
}

func (f *fakeGroups) Create(ctx context.Context, name string, moderated bool) error { return nil }
func (f *fakeGroups) Delete(ctx context.Context, name string) error                 { return nil }
func (f *fakeGroups) Exists(ctx context.Context, name string) (bool, error)         { return false, nil }
func (f *fakeGroups) IsModerated(ctx context.Context, name string) (bool, error)    { return false, nil }
func (f *fakeGroups) List(ctx context.Context) ([]models.Newsgroup, error) {
	var out []models.Newsgroup
	for _, n := range f.names {
		out = append(out, models.Newsgroup{Name: n})
	}
	return out, nil
}
func (f *fakeGroups) ListSince(ctx context.Context, since time.Time) ([]models.Newsgroup, error) {
	return nil, nil
}

type fakePeers struct {
	mu         sync.Mutex
	watermarks map[string]int64 // peer|group -> seq
}

func newFakePeers() *fakePeers { return &fakePeers{watermarks: map[string]int64{}} }

func (f *fakePeers) Watermark(ctx context.Context, peer, group string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watermarks[peer+"|"+group], nil
}
func (f *fakePeers) SetWatermark(ctx context.Context, peer, group string, seq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq > f.watermarks[peer+"|"+group] {
		f.watermarks[peer+"|"+group] = seq
	}
	return nil
}

type fakeConn struct {
	offered  []string
	sent     []string
	sendErr  map[string]error // message id -> error for SendArticle
	offerErr map[string]error
	unwanted map[string]bool
	closed   bool
}

func (f *fakeConn) Offer(ctx context.Context, id string) (bool, error) {
	f.offered = append(f.offered, id)
	if err := f.offerErr[id]; err != nil {
		return false, err
	}
	return !f.unwanted[id], nil
}

func (f *fakeConn) SendArticle(ctx context.Context, a *models.Article) error {
	id := a.MessageID()
	if err := f.sendErr[id]; err != nil {
		return err
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type fakeConnector struct {
	conn *fakeConn
	err  error
}

func (f *fakeConnector) Connect(ctx context.Context, peer config.PeerConfig) (PeerConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func article(id string, path string) *models.Article {
	h := models.Headers{
		{Name: "Message-ID", Value: id},
		{Name: "Newsgroups", Value: "misc.test"},
	}
	if path != "" {
		h = append(h, models.Header{Name: "Path", Value: path})
	}
	return &models.Article{Headers: h, Body: []byte("Body")}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Peers = []config.PeerConfig{
		{SiteName: "peer.example", Addr: "peer.example:119", Patterns: []string{"misc.*"}},
	}
	return cfg
}

func newEngine(conn *fakeConn, ar *fakeArticles, pr *fakePeers) *Engine {
	return NewEngine(config.NewProvider(testConfig()), ar, &fakeGroups{names: []string{"misc.test", "comp.lang"}},
		pr, &fakeConnector{conn: conn}, testLogger())
}

func TestSyncPeer_SendsBacklogAndAdvancesWatermark(t *testing.T) {
	ar := &fakeArticles{byGroup: map[string][]memArticle{
		"misc.test": {
			{seq: 1, a: article("<a@test>", "")},
			{seq: 2, a: article("<b@test>", "")},
		},
		"comp.lang": {
			{seq: 1, a: article("<c@test>", "")},
		},
	}}
	pr := newFakePeers()
	conn := &fakeConn{}

	require.NoError(t, newEngine(conn, ar, pr).SyncPeer(context.Background(), "peer.example"))

	// comp.lang does not match the peer's patterns.
	assert.Equal(t, []string{"<a@test>", "<b@test>"}, conn.sent)
	wm, _ := pr.Watermark(context.Background(), "peer.example", "misc.test")
	assert.Equal(t, int64(2), wm)
	assert.True(t, conn.closed)
}

func TestSyncPeer_FailureKeepsWatermarkAtLastAck(t *testing.T) {
	ar := &fakeArticles{byGroup: map[string][]memArticle{
		"misc.test": {
			{seq: 1, a: article("<a@test>", "")},
			{seq: 2, a: article("<b@test>", "")},
		},
	}}
	pr := newFakePeers()
	conn := &fakeConn{sendErr: map[string]error{"<b@test>": errors.New("connection reset")}}

	e := newEngine(conn, ar, pr)
	require.Error(t, e.SyncPeer(context.Background(), "peer.example"))

	wm, _ := pr.Watermark(context.Background(), "peer.example", "misc.test")
	assert.Equal(t, int64(1), wm)

	// The next run re-offers only the unacknowledged article.
	conn2 := &fakeConn{}
	e2 := NewEngine(config.NewProvider(testConfig()), ar, &fakeGroups{names: []string{"misc.test"}},
		pr, &fakeConnector{conn: conn2}, testLogger())
	require.NoError(t, e2.SyncPeer(context.Background(), "peer.example"))
	assert.Equal(t, []string{"<b@test>"}, conn2.offered)
}

func TestSyncPeer_UnwantedArticleStillAdvances(t *testing.T) {
	ar := &fakeArticles{byGroup: map[string][]memArticle{
		"misc.test": {{seq: 1, a: article("<a@test>", "")}},
	}}
	pr := newFakePeers()
	conn := &fakeConn{unwanted: map[string]bool{"<a@test>": true}}

	require.NoError(t, newEngine(conn, ar, pr).SyncPeer(context.Background(), "peer.example"))

	assert.Empty(t, conn.sent)
	wm, _ := pr.Watermark(context.Background(), "peer.example", "misc.test")
	assert.Equal(t, int64(1), wm)
}

func TestSyncPeer_RefusedArticleDoesNotWedgeFeed(t *testing.T) {
	ar := &fakeArticles{byGroup: map[string][]memArticle{
		"misc.test": {
			{seq: 1, a: article("<a@test>", "")},
			{seq: 2, a: article("<b@test>", "")},
		},
	}}
	pr := newFakePeers()
	conn := &fakeConn{sendErr: map[string]error{"<a@test>": ErrRefused}}

	require.NoError(t, newEngine(conn, ar, pr).SyncPeer(context.Background(), "peer.example"))

	assert.Equal(t, []string{"<b@test>"}, conn.sent)
	wm, _ := pr.Watermark(context.Background(), "peer.example", "misc.test")
	assert.Equal(t, int64(2), wm)
}

func TestSyncPeer_DeferredStopsRunWithoutAdvancing(t *testing.T) {
	ar := &fakeArticles{byGroup: map[string][]memArticle{
		"misc.test": {
			{seq: 1, a: article("<a@test>", "")},
			{seq: 2, a: article("<b@test>", "")},
		},
	}}
	pr := newFakePeers()
	conn := &fakeConn{offerErr: map[string]error{"<a@test>": ErrDeferred}}

	require.NoError(t, newEngine(conn, ar, pr).SyncPeer(context.Background(), "peer.example"))

	assert.Empty(t, conn.sent)
	wm, _ := pr.Watermark(context.Background(), "peer.example", "misc.test")
	assert.Equal(t, int64(0), wm)
}

func TestSyncPeer_SkipsArticlesAlreadyThroughPeer(t *testing.T) {
	ar := &fakeArticles{byGroup: map[string][]memArticle{
		"misc.test": {{seq: 1, a: article("<a@test>", "peer.example!origin")}},
	}}
	pr := newFakePeers()
	conn := &fakeConn{}

	require.NoError(t, newEngine(conn, ar, pr).SyncPeer(context.Background(), "peer.example"))

	assert.Empty(t, conn.offered)
	wm, _ := pr.Watermark(context.Background(), "peer.example", "misc.test")
	assert.Equal(t, int64(1), wm)
}

func TestSyncPeer_UnknownPeerIsNoop(t *testing.T) {
	pr := newFakePeers()
	e := newEngine(&fakeConn{}, &fakeArticles{}, pr)
	assert.NoError(t, e.SyncPeer(context.Background(), "nobody"))
}
