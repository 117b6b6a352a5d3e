package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func TestStatBufferEmpty(t *testing.T) {
	buf := NewStatBuffer(20*time.Second, newFakeClock().Now)

	stats := buf.Stats()
	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.Rate)
	assert.Nil(t, stats.ErrorRate)
}

func TestStatBufferZeroSpanHasNoRate(t *testing.T) {
	clock := newFakeClock()
	buf := NewStatBuffer(20*time.Second, clock.Now)
	buf.Add(true)
	buf.Add(false)

	stats := buf.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Nil(t, stats.Rate)
	require.NotNil(t, stats.ErrorRate)
	assert.InDelta(t, 0.5, *stats.ErrorRate, 1e-9)
}

func TestStatBufferRateCountsSuccesses(t *testing.T) {
	clock := newFakeClock()
	buf := NewStatBuffer(20*time.Second, clock.Now)
	for i := 0; i < 5; i++ {
		buf.Add(i != 2)
		clock.Advance(time.Second)
	}

	stats := buf.Stats()
	assert.Equal(t, 5, stats.Total)
	require.NotNil(t, stats.Rate)
	assert.InDelta(t, 4.0/4.0, *stats.Rate, 1e-9)
	require.NotNil(t, stats.ErrorRate)
	assert.InDelta(t, 0.2, *stats.ErrorRate, 1e-9)
}

func TestStatBufferEvictsOldSamples(t *testing.T) {
	clock := newFakeClock()
	buf := NewStatBuffer(20*time.Second, clock.Now)
	buf.Add(false)
	clock.Advance(15 * time.Second)
	buf.Add(true)
	clock.Advance(10 * time.Second)

	stats := buf.Stats()
	assert.Equal(t, 1, stats.Total)
	require.NotNil(t, stats.ErrorRate)
	assert.Zero(t, *stats.ErrorRate)

	clock.Advance(time.Minute)
	assert.Zero(t, buf.Stats().Total)
}

func TestStatBufferBounds(t *testing.T) {
	clock := newFakeClock()
	buf := NewStatBuffer(20*time.Second, clock.Now)
	for i := 0; i < 50; i++ {
		buf.Add(i%3 == 0)
		clock.Advance(700 * time.Millisecond)
	}

	stats := buf.Stats()
	require.NotNil(t, stats.ErrorRate)
	assert.GreaterOrEqual(t, *stats.ErrorRate, 0.0)
	assert.LessOrEqual(t, *stats.ErrorRate, 1.0)
	assert.LessOrEqual(t, stats.Total, 30)
}
