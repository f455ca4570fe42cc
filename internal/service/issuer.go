package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scmc-ops/hoscad/internal/model"
	"github.com/scmc-ops/hoscad/internal/repository"
)

// Clock supplies the current time. Injected so tests can pin it.
type Clock func() time.Time

// Issuer hands out per-year sequential incident ids. The mutex serializes
// issuance within the process; a cross-process collision produces the same
// id twice, which the synchronization engine absorbs by merging membership
// instead of overwriting.
type Issuer struct {
	mu      sync.Mutex
	counter repository.CounterRepository
	now     Clock
}

// NewIssuer constructs an incident id issuer.
func NewIssuer(counter repository.CounterRepository, now Clock) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{counter: counter, now: now}
}

// Next issues the next id, resetting the sequence at year rollover.
func (i *Issuer) Next(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	year := i.now().Year()
	storedYear, seq, err := i.counter.GetCounter(ctx)
	if err != nil {
		return "", fmt.Errorf("read incident counter: %w", err)
	}
	if storedYear != year {
		seq = 0
	}
	seq++
	if err := i.counter.SetCounter(ctx, year, seq); err != nil {
		return "", fmt.Errorf("write incident counter: %w", err)
	}
	return model.FormatIncidentID(year, seq), nil
}
