package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProvider_SnapshotAndReload(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddr = ":8119"
	cfg.QueueCapacity = 7
	cfg.Workers = 2
	cfg.DatabaseDSN = "postgres://running"

	p := NewProvider(cfg)
	assert.Same(t, cfg, p.Snapshot())

	reloaded := p.Reload()
	assert.Same(t, reloaded, p.Snapshot())
	assert.NotSame(t, cfg, reloaded)

	// Restart-only settings survive the reload untouched.
	assert.Equal(t, ":8119", reloaded.EndpointAddr)
	assert.Equal(t, "postgres://running", reloaded.DatabaseDSN)
	assert.Equal(t, 7, reloaded.QueueCapacity)
	assert.Equal(t, 2, reloaded.Workers)
}
