package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Two concurrent postings against the same account must not both read the
// pre-mutation balance and both proceed to write. The database serializes
// the final write (FOR UPDATE + version column), but the orchestrator also
// holds an account-scoped lock across its whole validate-and-post sequence
// so the second request observes the first one's result instead of failing
// on a version conflict.
//
// Two implementations: a Redis lock for multi-instance deployments and an
// in-process KeyMutex for tests and single-node runs.

var ErrLockFailed = errors.New("failed to acquire account lock")

// AccountLock is one acquired-or-acquirable lock over a single key.
type AccountLock interface {
	// Lock blocks until the lock is held, the retries run out, or ctx is
	// done.
	Lock(ctx context.Context) error
	// Unlock releases the lock. Safe to call only after a successful
	// Lock.
	Unlock(ctx context.Context) error
}

// Factory mints a lock for a key. The token identifies the holder, so an
// expired lock can never be released by a later holder.
type Factory interface {
	NewLock(key, token string) AccountLock
}

// AccountKey builds the lock key for one account.
func AccountKey(userID, currency string) string {
	return "ledger:lock:account:" + userID + ":" + currency
}

// ============================================================================
// In-process implementation
// ============================================================================

// KeyMutex is a per-key mutex set. It provides the same exclusion scope as
// the Redis lock within a single process.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyMutex) NewLock(key, token string) AccountLock {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	return &localLock{m: m}
}

type localLock struct {
	m *sync.Mutex
}

func (l *localLock) Lock(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.m.Lock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The goroutine will still take the mutex; hand it back as
		// soon as it does.
		go func() {
			<-done
			l.m.Unlock()
		}()
		return ctx.Err()
	}
}

func (l *localLock) Unlock(ctx context.Context) error {
	l.m.Unlock()
	return nil
}

// retryLoop is shared polling logic for non-blocking lock primitives.
func retryLoop(ctx context.Context, retryInterval time.Duration, maxRetries int, try func(context.Context) (bool, error)) error {
	for i := 0; i < maxRetries; i++ {
		success, err := try(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}
