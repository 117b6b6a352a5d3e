package pricing

import (
	"sync"
	"time"
)

const (
	controllerMinSamples = 10
	controllerInterval   = 20 * time.Second
	slowdownFactor       = 1.05
	speedupStep          = 0.05
)

// RateController adapts the request rate for one vendor. Every error seen in
// a window slows the vendor down and makes later speedups smaller.
type RateController struct {
	mu        sync.Mutex
	target    float64
	errors    int
	lastCheck time.Time
}

func NewRateController(initial float64, now time.Time) *RateController {
	return &RateController{target: initial, lastCheck: now}
}

// Target returns the current requests per second.
func (c *RateController) Target() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Observe adjusts the target from stats. It reports whether the target changed.
func (c *RateController) Observe(stats Stats, now time.Time) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stats.Total < controllerMinSamples || now.Sub(c.lastCheck) < controllerInterval {
		return c.target, false
	}
	c.lastCheck = now
	if stats.ErrorRate != nil && *stats.ErrorRate > 0 {
		c.errors++
		c.target /= slowdownFactor
	} else {
		c.target *= 1 + speedupStep/float64(c.errors+1)
	}
	return c.target, true
}
