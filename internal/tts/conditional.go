package tts

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

// Conditional wraps the fallback synthesizer with the suppression toggle the
// avatar arbitrator flips. While suppressed the inner synthesizer stays alive
// so it can take over again immediately; the session checks Active before
// speaking.
type Conditional struct {
	inner      Synthesizer
	suppressed atomic.Bool
	log        *zap.Logger
}

var _ Synthesizer = (*Conditional)(nil)

func NewConditional(inner Synthesizer, log *zap.Logger) *Conditional {
	return &Conditional{
		inner: inner,
		log:   logging.OrNop(log).With(zap.String("component", "tts"), zap.String("provider", inner.Name())),
	}
}

// SetSuppressed marks the fallback as silenced (true) or authoritative (false).
func (c *Conditional) SetSuppressed(suppressed bool) {
	prev := c.suppressed.Swap(suppressed)
	if prev == suppressed {
		return
	}
	if suppressed {
		c.log.Info("fallback voice suppressed, avatar is providing audio")
		c.inner.Cancel()
	} else {
		c.log.Info("fallback voice active")
	}
}

func (c *Conditional) Suppressed() bool { return c.suppressed.Load() }

// Active reports whether the fallback may be audible.
func (c *Conditional) Active() bool { return !c.suppressed.Load() }

func (c *Conditional) Name() string { return c.inner.Name() }

func (c *Conditional) Synthesize(ctx context.Context, text string) error {
	return c.inner.Synthesize(ctx, text)
}

func (c *Conditional) Cancel() { c.inner.Cancel() }

func (c *Conditional) VoiceConfig() VoiceConfig { return c.inner.VoiceConfig() }

func (c *Conditional) Audio() <-chan []byte { return c.inner.Audio() }

func (c *Conditional) Close() { c.inner.Close() }
