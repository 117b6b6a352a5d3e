// Package pricing keeps vendor listing prices fresh. It pulls due products,
// fetches their prices in vendor sized batches and adapts the request rate
// to the error rate the vendor answers with.
package pricing

import (
	"sync"
	"time"
)

// DefaultStatWindow is how far back the buffer looks when computing rates.
const DefaultStatWindow = 20 * time.Second

type sample struct {
	at      time.Time
	success bool
}

// Stats summarises the samples inside the window. Rate and ErrorRate are nil
// when they cannot be computed yet.
type Stats struct {
	Rate      *float64
	ErrorRate *float64
	Total     int
}

// StatBuffer is a sliding window of fetch outcomes. It is safe for concurrent use.
type StatBuffer struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	samples []sample
}

// NewStatBuffer returns a buffer over window. A nil clock uses time.Now.
func NewStatBuffer(window time.Duration, now func() time.Time) *StatBuffer {
	if window <= 0 {
		window = DefaultStatWindow
	}
	if now == nil {
		now = time.Now
	}
	return &StatBuffer{window: window, now: now}
}

// Add records one outcome at the current clock time.
func (b *StatBuffer) Add(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.samples = append(b.samples, sample{at: now, success: success})
	b.evict(now)
}

// Stats evicts expired samples and summarises the rest.
func (b *StatBuffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evict(b.now())

	stats := Stats{Total: len(b.samples)}
	if stats.Total == 0 {
		return stats
	}
	successes := 0
	for _, s := range b.samples {
		if s.success {
			successes++
		}
	}
	errorRate := float64(stats.Total-successes) / float64(stats.Total)
	stats.ErrorRate = &errorRate

	span := b.samples[len(b.samples)-1].at.Sub(b.samples[0].at).Seconds()
	if span > 0 {
		rate := float64(successes) / span
		stats.Rate = &rate
	}
	return stats
}

func (b *StatBuffer) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	drop := 0
	for drop < len(b.samples) && b.samples[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		b.samples = append(b.samples[:0], b.samples[drop:]...)
	}
}
