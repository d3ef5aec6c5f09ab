package humanize

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Range is an inclusive window of durations that random delays are drawn from
type Range struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// Millis builds a Range from millisecond bounds
func Millis(min, max int) Range {
	return Range{
		Min: time.Duration(min) * time.Millisecond,
		Max: time.Duration(max) * time.Millisecond,
	}
}

// Seconds builds a Range from second bounds
func Seconds(min, max int) Range {
	return Range{
		Min: time.Duration(min) * time.Second,
		Max: time.Duration(max) * time.Second,
	}
}

// Pick returns a duration drawn uniformly from [Min, Max]
func (r Range) Pick(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)+1))
}

// Valid reports whether the range is non-negative and ordered
func (r Range) Valid() bool {
	return r.Min >= 0 && r.Max >= r.Min
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}

// IntRange is an inclusive window of integers (scroll steps, pixel distances)
type IntRange struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

// Pick returns an integer drawn uniformly from [Min, Max]
func (r IntRange) Pick(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// Valid reports whether the range is non-negative and ordered
func (r IntRange) Valid() bool {
	return r.Min >= 0 && r.Max >= r.Min
}

// Chance returns true with probability p
func Chance(rng *rand.Rand, p float64) bool {
	return p > 0 && rng.Float64() < p
}

// Sleeper suspends the caller. Tests swap in a recording fake so timing
// logic runs without real timers.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on a timer and returns early when ctx is done
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepRange pauses for a random duration drawn from r
func SleepRange(ctx context.Context, s Sleeper, rng *rand.Rand, r Range) error {
	return s.Sleep(ctx, r.Pick(rng))
}
