package strategy

// ReentryCounter counts consecutive cycles that held the same direction
// without the exit condition firing. It is the only per-asset value carried
// between cycles and losing it on restart only delays the next add-on entry.
type ReentryCounter struct {
	threshold int
	direction Direction
	cycles    int
}

// NewReentryCounter returns a counter that fires every threshold cycles. A
// threshold of zero disables it.
func NewReentryCounter(threshold int) *ReentryCounter {
	return &ReentryCounter{threshold: threshold}
}

// Observe records one cycle and reports whether an add-on entry is due.
func (c *ReentryCounter) Observe(direction Direction, exitTriggered bool) bool {
	if c == nil || c.threshold <= 0 {
		return false
	}
	if direction != c.direction {
		c.direction = direction
		c.cycles = 0
	}
	if direction == DirectionNone || exitTriggered {
		c.cycles = 0
		return false
	}
	c.cycles++
	if c.cycles < c.threshold {
		return false
	}
	c.cycles = 0
	return true
}

func (c *ReentryCounter) Cycles() int {
	if c == nil {
		return 0
	}
	return c.cycles
}
