package peers

import "context"

// Repository tracks per-(peer, group) synchronization watermarks: the
// per-group arrival sequence of the last article the peer acknowledged.
// The sync engine is the only writer, one run per peer at a time.
type Repository interface {
	Watermark(ctx context.Context, peer, group string) (int64, error)
	SetWatermark(ctx context.Context, peer, group string, seq int64) error
}
