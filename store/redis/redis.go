// Package redis is a sessiontx.Store on Redis. Each entity is a hash
// (version, payload, lifespan deadline, max idle); conditional writes run as
// Lua scripts so compare-and-swap is atomic across every process sharing the
// server. Versions come from one sequence key per namespace, hash-tagged with
// the namespace so scripts touch a single cluster slot.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/sessiontx"
	c "github.com/unkn0wn-root/sessiontx/codec"
	"github.com/unkn0wn-root/sessiontx/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// write(k, seq, payload, now, lifespan, maxIdle) -> new version
const writeFn = `
local function write(k, seq, d, now, ls, mi)
  local v = redis.call('INCR', seq)
  local deadline = 0
  if ls > 0 then deadline = now + ls end
  redis.call('DEL', k)
  redis.call('HSET', k, 'v', v, 'd', d, 'ls', deadline, 'mi', mi)
  local ttl = 0
  if ls > 0 then ttl = ls end
  if mi > 0 and (ttl == 0 or mi < ttl) then ttl = mi end
  if ttl > 0 then redis.call('PEXPIRE', k, ttl) end
  return v
end
`

// live(k, now) drops k once its lifespan deadline passed. Idle expiry is left
// to PEXPIRE.
const liveFn = `
local function live(k, now)
  local deadline = tonumber(redis.call('HGET', k, 'ls')) or 0
  if deadline > 0 and deadline <= now then
    redis.call('DEL', k)
    return false
  end
  return true
end
`

var (
	// KEYS: entity; ARGV: now. Returns {version, payload} or nil; refreshes
	// the idle window.
	getScript = goredis.NewScript(`
local r = redis.call('HMGET', KEYS[1], 'v', 'd', 'ls', 'mi')
if not r[1] then return false end
local mi = tonumber(r[4]) or 0
local deadline = tonumber(r[3]) or 0
local now = tonumber(ARGV[1])
if deadline > 0 and deadline <= now then
  redis.call('DEL', KEYS[1])
  return false
end
if mi > 0 then
  local ttl = mi
  if deadline > 0 and deadline - now < ttl then ttl = deadline - now end
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return {r[1], r[2]}
`)

	// KEYS: entity, seq; ARGV: payload, now, lifespan, maxIdle.
	putScript = goredis.NewScript(writeFn + `
return write(KEYS[1], KEYS[2], ARGV[1], tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]))
`)

	// KEYS: entity, seq; ARGV: payload, now, lifespan, maxIdle.
	// Returns {version, payload} of the existing entry, or the new version.
	putIfAbsentScript = goredis.NewScript(writeFn + liveFn + `
local r = redis.call('HMGET', KEYS[1], 'v', 'd')
if r[1] and live(KEYS[1], tonumber(ARGV[2])) then return r end
return write(KEYS[1], KEYS[2], ARGV[1], tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]))
`)

	// KEYS: entity, seq; ARGV: expected, payload, now, lifespan, maxIdle.
	// Returns 1 when replaced, 0 otherwise.
	replaceScript = goredis.NewScript(writeFn + liveFn + `
local cur = redis.call('HGET', KEYS[1], 'v')
if not cur or cur ~= ARGV[1] then return 0 end
if not live(KEYS[1], tonumber(ARGV[3])) then return 0 end
write(KEYS[1], KEYS[2], ARGV[2], tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5]))
return 1
`)
)

// Options configure a Redis Store.
// Only Name and Client are required.
type Options[K comparable, V any] struct {
	Name   string // cache name
	Client goredis.UniversalClient

	Namespace string                   // key prefix; "" => Name
	Codec     c.Codec[store.Record[V]] // nil => msgpack
	Key       store.KeyFunc[K]         // nil => store.DefaultKey
	Now       func() time.Time         // nil => time.Now
}

type Store[K comparable, V any] struct {
	name  string
	rdb   goredis.UniversalClient
	ns    string
	codec c.Codec[store.Record[V]]
	key   store.KeyFunc[K]
	now   func() time.Time
}

func New[K comparable, V any](opts Options[K, V]) (*Store[K, V], error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if opts.Name == "" {
		return nil, errors.New("redis store: name is required")
	}
	s := &Store[K, V]{
		name:  opts.Name,
		rdb:   opts.Client,
		ns:    opts.Namespace,
		codec: opts.Codec,
		key:   opts.Key,
		now:   opts.Now,
	}
	if s.ns == "" {
		s.ns = opts.Name
	}
	if s.codec == nil {
		s.codec = c.Msgpack[store.Record[V]]{}
	}
	if s.key == nil {
		s.key = store.DefaultKey[K]
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Store[K, V]) Name() string { return s.name }

func (s *Store[K, V]) entityKey(key K) string { return "{" + s.ns + "}:" + s.key(key) }
func (s *Store[K, V]) seqKey() string         { return "{" + s.ns + "}:__seq" }

func (s *Store[K, V]) Get(ctx context.Context, key K) (*sessiontx.Wrapper[V], error) {
	res, err := getScript.Run(ctx, s.rdb, []string{s.entityKey(key)}, s.now().UnixMilli()).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodePair(res)
}

func (s *Store[K, V]) Put(ctx context.Context, key K, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) error {
	payload, err := s.codec.Encode(store.FromWrapper(w))
	if err != nil {
		return err
	}
	return putScript.Run(ctx, s.rdb, []string{s.entityKey(key), s.seqKey()},
		payload, s.now().UnixMilli(), exp.LifespanMs, exp.MaxIdleMs).Err()
}

func (s *Store[K, V]) PutIfAbsent(ctx context.Context, key K, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) (*sessiontx.Wrapper[V], error) {
	payload, err := s.codec.Encode(store.FromWrapper(w))
	if err != nil {
		return nil, err
	}
	res, err := putIfAbsentScript.Run(ctx, s.rdb, []string{s.entityKey(key), s.seqKey()},
		payload, s.now().UnixMilli(), exp.LifespanMs, exp.MaxIdleMs).Result()
	if err != nil {
		return nil, err
	}
	if _, wrote := res.(int64); wrote {
		return nil, nil
	}
	return s.decodePair(res)
}

func (s *Store[K, V]) Replace(ctx context.Context, key K, expected, next *sessiontx.Wrapper[V], exp sessiontx.Expiration) (bool, error) {
	payload, err := s.codec.Encode(store.FromWrapper(next))
	if err != nil {
		return false, err
	}
	n, err := replaceScript.Run(ctx, s.rdb, []string{s.entityKey(key), s.seqKey()},
		strconv.FormatUint(uint64(expected.Version), 10), payload,
		s.now().UnixMilli(), exp.LifespanMs, exp.MaxIdleMs).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store[K, V]) Remove(ctx context.Context, key K) error {
	return s.rdb.Del(ctx, s.entityKey(key)).Err()
}

func (s *Store[K, V]) decodePair(res any) (*sessiontx.Wrapper[V], error) {
	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("redis store: unexpected reply %T", res)
	}
	vs, _ := pair[0].(string)
	version, err := strconv.ParseUint(vs, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis store: version parse: %w", err)
	}
	data, _ := pair[1].(string)
	rec, err := s.codec.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("redis store: decode: %w", err)
	}
	return rec.Wrap(version), nil
}
