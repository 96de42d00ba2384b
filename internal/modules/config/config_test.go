package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockTTLBand(t *testing.T) {
	t.Parallel()

	cfg := &Config{}

	assert.Equal(t, 30*time.Second, cfg.LockTTL("1m", time.Minute), "floor")
	assert.Equal(t, 150*time.Second, cfg.LockTTL("5m", 5*time.Minute))
	assert.Equal(t, 5*time.Minute, cfg.LockTTL("1h", time.Hour), "ceiling")
	assert.Equal(t, 5*time.Minute, cfg.LockTTL("1d", 24*time.Hour), "ceiling")
}

func TestLockTTLOverride(t *testing.T) {
	t.Parallel()

	cfg := &Config{lockTTLs: map[string]time.Duration{"1h": 45 * time.Second}}

	assert.Equal(t, 45*time.Second, cfg.LockTTL("1h", time.Hour))
	assert.Equal(t, 150*time.Second, cfg.LockTTL("5m", 5*time.Minute), "other timeframes keep the default")
}
