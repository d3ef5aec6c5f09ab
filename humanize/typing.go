package humanize

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// ErrTargetLost is returned when the element being typed into disappears,
// usually because a navigation fired while typing was still in progress.
var ErrTargetLost = errors.New("typing target lost")

// TypingConfig holds configuration for human-like typing
type TypingConfig struct {
	// Delay between keystrokes, drawn uniformly
	KeystrokeDelay Range `mapstructure:"keystrokeDelayRange"`
	// Extra "thinking" pause inserted after a keystroke
	ThinkPause Range `mapstructure:"thinkPauseRange"`
	// Probability of a thinking pause after each keystroke (0.0 to 1.0)
	ThinkPauseProbability float64 `mapstructure:"thinkPauseProbability"`
}

// DefaultTypingConfig returns the timing of a slow, deliberate searcher
func DefaultTypingConfig() TypingConfig {
	return TypingConfig{
		KeystrokeDelay:        Millis(280, 750),
		ThinkPause:            Millis(1000, 3000),
		ThinkPauseProbability: 0.2,
	}
}

// Target is a text input that can receive typed characters.
// AppendChar must append to the current value and dispatch an input event,
// so page scripts listening for input see incremental typing.
type Target interface {
	Focus(ctx context.Context) error
	Clear(ctx context.Context) error
	AppendChar(ctx context.Context, ch string) error
}

// Typist types text into a Target one character at a time
type Typist struct {
	config  TypingConfig
	sleeper Sleeper
	rng     *rand.Rand
}

// NewTypist creates a typist. A nil sleeper falls back to RealSleeper.
func NewTypist(config TypingConfig, sleeper Sleeper, rng *rand.Rand) *Typist {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Typist{config: config, sleeper: sleeper, rng: rng}
}

// Type focuses and clears the target, then types text character by character.
// Every character is followed by a keystroke delay and, occasionally, a
// thinking pause. Target failures are reported as ErrTargetLost.
func (t *Typist) Type(ctx context.Context, target Target, text string) error {
	if err := target.Focus(ctx); err != nil {
		return fmt.Errorf("%w: focus: %w", ErrTargetLost, err)
	}
	if err := target.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrTargetLost, err)
	}

	for i, char := range text {
		if err := target.AppendChar(ctx, string(char)); err != nil {
			return fmt.Errorf("%w: at offset %d: %w", ErrTargetLost, i, err)
		}

		if err := t.sleeper.Sleep(ctx, t.config.KeystrokeDelay.Pick(t.rng)); err != nil {
			return err
		}

		// Random thinking pause
		if Chance(t.rng, t.config.ThinkPauseProbability) {
			if err := t.sleeper.Sleep(ctx, t.config.ThinkPause.Pick(t.rng)); err != nil {
				return err
			}
		}
	}

	return nil
}
