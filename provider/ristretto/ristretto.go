package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/sessiontx/provider"
)

// Provider keeps session entries in a ristretto cache. Admission can refuse a
// new key under pressure; the kv store reports that as store.ErrRejected and
// the commit fails for that key instead of silently losing the session.
type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

// Config sizes the cache. Zero fields take the defaults below; MaxCost is in
// bytes because the kv store charges every entry its framed size.
type Config struct {
	NumCounters int64 // 0 => 10x the expected entries for MaxCost/512B entries
	MaxCost     int64 // 0 => 64 MiB
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto: negative config")
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = 64 << 20
	}
	if cfg.NumCounters == 0 {
		cfg.NumCounters = 10 * (cfg.MaxCost / 512)
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set blocks until ristretto applied the write; conditional writes in the kv
// store read back what they just stored.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	ok := p.c.SetWithTTL(key, value, cost, max(ttl, 0))
	p.c.Wait()
	if !ok {
		return false, nil
	}
	// a buffered set can still lose admission after Wait
	_, ok = p.c.Get(key)
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Close()
	return nil
}

// Metrics exposes hit/miss and admission counters; nil unless Config.Metrics.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
