package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutex_WaitsForRelease(t *testing.T) {
	locker := NewKeyedMutex()
	release, err := locker.Acquire(context.Background(), "f1", false)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}

	// other franchises are independent
	other, err := locker.Acquire(context.Background(), "f2", false)
	if err != nil {
		t.Fatalf("Acquire f2 error: %v", err)
	}
	other()

	done := make(chan error, 1)
	go func() {
		r, err := locker.Acquire(context.Background(), "f1", true)
		if err == nil {
			r()
		}
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiting Acquire error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiting Acquire never returned")
	}
}

func TestKeyedMutex_WaitHonorsContext(t *testing.T) {
	locker := NewKeyedMutex()
	release, _ := locker.Acquire(context.Background(), "f1", false)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "f1", true); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type failingLocker struct{}

func (failingLocker) Acquire(ctx context.Context, franchiseID string, wait bool) (func(), error) {
	return nil, ErrRunInProgress
}

func TestChainLocker_ReleasesOnFailure(t *testing.T) {
	local := NewKeyedMutex()
	chain := ChainLocker{local, failingLocker{}}
	if _, err := chain.Acquire(context.Background(), "f1", false); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	release, err := local.Acquire(context.Background(), "f1", false)
	if err != nil {
		t.Fatalf("local lock must be released after chain failure: %v", err)
	}
	release()
}

func TestKeepAlive_RefreshesUntilStopped(t *testing.T) {
	var calls atomic.Int32
	stop := keepAlive(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 10*time.Millisecond, "f1")

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 2 refreshes, got %d", calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	stopped := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != stopped {
		t.Fatalf("refresh ran after stop: %d -> %d", stopped, calls.Load())
	}
	// a second stop is a no-op
	stop()
}
