package config

import "sync/atomic"

// Provider holds the current configuration snapshot and swaps it atomically
// on reload. Readers call Snapshot once per unit of work (one submission,
// one sync run) and keep the returned pointer; they never observe a
// half-applied reload.
type Provider struct {
	cur atomic.Pointer[Config]
}

func NewProvider(cfg *Config) *Provider {
	p := &Provider{}
	p.cur.Store(cfg)
	return p
}

// Snapshot returns the current immutable configuration.
func (p *Provider) Snapshot() *Config {
	return p.cur.Load()
}

// Reload rebuilds the configuration from defaults, the JSON file, and
// flags, then swaps it in. Restart-only settings keep their running values:
// the listen address and DSN because the sockets and pool are already open,
// the queue capacity and worker count because the channel and pool are
// sized at startup.
func (p *Provider) Reload() *Config {
	old := p.cur.Load()
	cfg := LoadConfig()

	cfg.EndpointAddr = old.EndpointAddr
	cfg.DatabaseDSN = old.DatabaseDSN
	cfg.QueueCapacity = old.QueueCapacity
	cfg.Workers = old.Workers

	p.cur.Store(cfg)
	return cfg
}
