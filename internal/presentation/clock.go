package presentation

import "time"

// #region clock
// Clock reports absolute time in seconds.
type Clock interface {
	Now() float64
}

// FrameAdvancer is implemented by clocks whose time is a function of swapped frames.
type FrameAdvancer interface {
	AdvanceFrame()
}

// WallClock reads the system clock.
type WallClock struct{}

func (WallClock) Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// FixedRateClock advances by exactly 1/rate seconds per swapped frame. It is used
// for offline rendering, deterministic tests and locking time to frames.
type FixedRateClock struct {
	start  float64
	rate   float64
	frames int64
}

// NewFixedRateClock starts a clock at start seconds ticking rate frames per second.
func NewFixedRateClock(rate, start float64) *FixedRateClock {
	return &FixedRateClock{start: start, rate: rate}
}

func (c *FixedRateClock) Now() float64 {
	return c.start + float64(c.frames)/c.rate
}

// AdvanceFrame moves the clock on by one frame period.
func (c *FixedRateClock) AdvanceFrame() { c.frames++ }

// Rate returns the frames per second the clock ticks at.
func (c *FixedRateClock) Rate() float64 { return c.rate }

// #endregion clock
