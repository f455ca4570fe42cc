package limiter

import (
	"context"
	"encoding/hex"
	"sync"
	"time"
)

// Memory is an in-process limiter used in standalone mode and tests. Same
// sliding window and lockout rules as the Postgres implementation.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*memEntry
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

type memEntry struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{entries: make(map[string]*memEntry), window: window, maxFails: maxFails, blockFor: blockFor}
}

func memKey(username string, ipHash []byte) string {
	return username + "|" + hex.EncodeToString(ipHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[memKey(username, ipHash)]
	if e == nil {
		return true, 0, nil
	}
	now := time.Now()
	if e.blockedUntil.After(now) {
		return false, time.Until(e.blockedUntil), nil
	}
	return true, 0, nil
}

// Success resets counters after a successful login.
func (l *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, memKey(username, ipHash))
	return nil
}

// Failure records a failed attempt; may place a temporary block.
func (l *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := memKey(username, ipHash)
	now := time.Now()

	e := l.entries[key]
	if e == nil || now.Sub(e.firstFail) > l.window {
		e = &memEntry{firstFail: now}
		l.entries[key] = e
	}
	e.fails++
	if e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		e.fails = 0
		e.firstFail = now
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
