package trainer

import (
	"sync"
	"time"
)

// Countdown is the per-word response clock. It ticks down once per interval
// and fires the expiry callback exactly once when the remaining time reaches
// zero, then stops on its own. Start replaces any running countdown; Cancel
// is idempotent and safe from any state.
type Countdown struct {
	mu      sync.Mutex
	cancel  chan struct{}
	running bool
}

func NewCountdown() *Countdown {
	return &Countdown{}
}

// Start begins counting down from seconds. onTick receives every new
// remaining value including zero; onExpire fires once after the zero tick.
func (c *Countdown) Start(seconds int, interval time.Duration, onTick func(remaining int), onExpire func()) {
	c.Cancel()
	if seconds <= 0 {
		if onTick != nil {
			onTick(0)
		}
		onExpire()
		return
	}

	cancel := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		remaining := seconds
		for {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				remaining--
				if onTick != nil {
					onTick(remaining)
				}
				if remaining <= 0 {
					c.mu.Lock()
					if c.cancel == cancel {
						c.running = false
					}
					c.mu.Unlock()
					onExpire()
					return
				}
			}
		}
	}()
}

// Cancel stops the countdown immediately without firing expiry.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.cancel)
		c.running = false
	}
}

// Running reports whether a countdown is currently ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
