// Package bigcache backs the kv store with an allocation-light sharded cache.
// Good fit for caches with many short-lived entries, such as login failures
// or single-use action tokens.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/sessiontx/provider"
)

var ErrNoLifeWindow = errors.New("bigcache: LifeWindow must be positive")

// Config sizes the cache. LifeWindow is the only eviction clock bigcache
// has, so it must be at least the longest lifespan any realm grants;
// entries older than that vanish regardless of their own deadline.
type Config struct {
	LifeWindow  time.Duration
	CleanWindow time.Duration // 0 => LifeWindow/4, at least one second

	Shards             int // power of two; 0 => 256
	MaxEntriesInWindow int // sizing hint for the initial allocation
	MaxEntrySize       int // bytes; sizing hint
	HardMaxCacheSizeMB int // 0 => unbounded
}

type Provider struct {
	c *bc.BigCache
}

var _ pr.Provider = (*Provider)(nil)

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, ErrNoLifeWindow
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.CleanWindow = cfg.CleanWindow
	if conf.CleanWindow <= 0 {
		conf.CleanWindow = max(cfg.LifeWindow/4, time.Second)
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	conf.Verbose = false

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	switch b, err := p.c.Get(key); {
	case errors.Is(err, bc.ErrEntryNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	default:
		return b, true, nil
	}
}

// Set ignores cost and ttl. The kv store checks each entry's own deadline
// from its header; LifeWindow only bounds how long dead bytes linger.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Len counts resident entries, expired ones included until the next clean.
func (p *Provider) Len() int { return p.c.Len() }

func (p *Provider) Close(_ context.Context) error { return p.c.Close() }
