package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/franchise_analytics/config"
)

// Locker serializes pipeline runs per franchise. With wait set, Acquire blocks until the lock
// is free or ctx is done; otherwise it returns ErrRunInProgress immediately.
type Locker interface {
	Acquire(ctx context.Context, franchiseID string, wait bool) (release func(), err error)
}

func lockKey(franchiseID string) string {
	return "analytics:lock:" + franchiseID
}

// KeyedMutex is the in-process Locker.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) get(franchiseID string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[franchiseID]
	if !ok {
		m = &sync.Mutex{}
		k.locks[franchiseID] = m
	}
	return m
}

func (k *KeyedMutex) Acquire(ctx context.Context, franchiseID string, wait bool) (func(), error) {
	m := k.get(franchiseID)
	if m.TryLock() {
		return m.Unlock, nil
	}
	if !wait {
		return nil, ErrRunInProgress
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if m.TryLock() {
				return m.Unlock, nil
			}
		}
	}
}

// RedisLocker holds a redislock lease per franchise so runs in other processes are excluded too.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	// maxWait bounds how long a waiting Acquire retries.
	maxWait time.Duration
}

func NewRedisLocker(client *redislock.Client, ttl, maxWait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, maxWait: maxWait}
}

func (r *RedisLocker) Acquire(ctx context.Context, franchiseID string, wait bool) (func(), error) {
	var opts *redislock.Options
	if wait && r.maxWait > 0 {
		step := 500 * time.Millisecond
		retries := int(r.maxWait / step)
		opts = &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(step), retries),
		}
	}
	lock, err := r.client.Obtain(ctx, lockKey(franchiseID), r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, err
	}
	stop := keepAlive(func(ctx context.Context) error {
		return lock.Refresh(ctx, r.ttl, nil)
	}, r.ttl/2, franchiseID)
	return func() {
		stop()
		// A release after the TTL expired is harmless.
		_ = lock.Release(context.Background())
	}, nil
}

// keepAlive calls refresh every interval until the returned stop func is called, so a lease
// outlives a pipeline run longer than its TTL. stop blocks until the refresher has exited.
func keepAlive(refresh func(ctx context.Context) error, interval time.Duration, franchiseID string) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := refresh(ctx); err != nil && ctx.Err() == nil {
					config.LogError(config.GetLogger(), "analytics", "keepAlive", "refresh franchise lock", franchiseID, err)
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// ChainLocker acquires every locker in order and releases in reverse.
type ChainLocker []Locker

func (c ChainLocker) Acquire(ctx context.Context, franchiseID string, wait bool) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, err := l.Acquire(ctx, franchiseID, wait)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// NewLockerFromConfig always locks in-process and adds the Redis lease once Redis is connected.
func NewLockerFromConfig(cfg config.AnalyticsConfig) Locker {
	chain := ChainLocker{NewKeyedMutex()}
	if client := config.GetRedisLock(); client != nil {
		chain = append(chain, NewRedisLocker(client, cfg.LockTTL(), cfg.LockWait()))
	}
	return chain
}

// NewServiceFromConfig wires a Service the way both binaries run it.
func NewServiceFromConfig(store Store, cfg config.AnalyticsConfig, clock Clock) *Service {
	return NewService(store, Options{
		Clock:          clock,
		Locker:         NewLockerFromConfig(cfg),
		Logger:         config.GetLogger(),
		Concurrency:    cfg.Concurrency,
		SummaryHistory: cfg.SummaryHistory,
		StrictWeekly:   config.StrictWeeklyRollup(),
	})
}
