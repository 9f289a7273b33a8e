// Package redisstream delivers remote envelopes to a Redis stream on the
// secondary site, where a consumer applies them to its own store.
package redisstream

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	c "github.com/unkn0wn-root/sessiontx/codec"
	"github.com/unkn0wn-root/sessiontx/remote"
)

var ErrNilClient = errors.New("redisstream: nil client")

// Options configure a Sink.
// Client and Stream are required.
type Options struct {
	Client goredis.UniversalClient
	Stream string

	MaxLen     int64                    // approximate stream cap; 0 => uncapped
	Codec      c.Codec[remote.Envelope] // nil => msgpack
	MaxRetries uint64                   // redeliveries after the first attempt; 0 => 3
	Backoff    time.Duration            // first Fibonacci step; 0 => 50ms
}

// Sink XADDs one entry per envelope with fields "cache", "key", "op" and the
// encoded envelope under "env".
type Sink struct {
	rdb     goredis.UniversalClient
	stream  string
	maxLen  int64
	codec   c.Codec[remote.Envelope]
	retries uint64
	backoff time.Duration
}

var _ remote.Sink = (*Sink)(nil)

func New(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if opts.Stream == "" {
		return nil, errors.New("redisstream: stream is required")
	}
	s := &Sink{
		rdb:     opts.Client,
		stream:  opts.Stream,
		maxLen:  opts.MaxLen,
		codec:   opts.Codec,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
	}
	if s.codec == nil {
		s.codec = c.Msgpack[remote.Envelope]{}
	}
	if s.retries == 0 {
		s.retries = 3
	}
	if s.backoff <= 0 {
		s.backoff = 50 * time.Millisecond
	}
	return s, nil
}

func (s *Sink) Send(ctx context.Context, env remote.Envelope) error {
	payload, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	args := &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"cache": env.Cache,
			"key":   env.Key,
			"op":    env.Operation,
			"env":   payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	b := retry.WithMaxRetries(s.retries, retry.NewFibonacci(s.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Decode reads an envelope back from a stream message (for consumers and tests).
func (s *Sink) Decode(msg goredis.XMessage) (remote.Envelope, error) {
	raw, ok := msg.Values["env"].(string)
	if !ok {
		return remote.Envelope{}, errors.New("redisstream: message without envelope")
	}
	return s.codec.Decode([]byte(raw))
}
