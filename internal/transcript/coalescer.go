package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/llm"
	"github.com/adhney/voice-interviewer/internal/logging"
	"github.com/adhney/voice-interviewer/internal/metrics"
)

// DefaultThreshold is the number of new characters that triggers a snapshot
// after the first one.
const DefaultThreshold = 30

// Sender delivers one snapshot. *Publisher implements it.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Options configures a Coalescer. Zero values select the defaults.
type Options struct {
	Threshold int
	StreamID  string
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// Coalescer wraps a response stream and forwards its accumulated text while
// the consumer iterates. It implements llm.Stream and hands every fragment of
// the wrapped stream through unchanged.
//
// A Coalescer is owned by the goroutine iterating it; it is not safe for
// concurrent use.
type Coalescer struct {
	inner     llm.Stream
	sender    Sender
	acc       Accumulator
	threshold int
	id        string
	metrics   *metrics.Metrics
	log       *zap.Logger
}

var _ llm.Stream = (*Coalescer)(nil)

func NewCoalescer(inner llm.Stream, sender Sender, opts Options) *Coalescer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.StreamID == "" {
		opts.StreamID = uuid.NewString()
	}
	return &Coalescer{
		inner:     inner,
		sender:    sender,
		threshold: opts.Threshold,
		id:        opts.StreamID,
		metrics:   opts.Metrics,
		log:       logging.OrNop(opts.Log).With(zap.String("component", "coalescer"), zap.String("stream_id", opts.StreamID)),
	}
}

// Next advances the wrapped stream. When it ends, normally or not, unsent
// text is flushed once before Next reports false.
func (c *Coalescer) Next(ctx context.Context) bool {
	if !c.inner.Next(ctx) {
		c.flushFinal(ctx)
		return false
	}
	c.observe(ctx, c.inner.Fragment())
	return true
}

func (c *Coalescer) Fragment() any { return c.inner.Fragment() }

// Err reports the wrapped stream's terminal error unchanged.
func (c *Coalescer) Err() error { return c.inner.Err() }

// Close closes the wrapped stream and flushes any unsent text.
func (c *Coalescer) Close() error {
	err := c.inner.Close()
	c.flushFinal(context.Background())
	return err
}

// Text returns the accumulated snapshot so far.
func (c *Coalescer) Text() string { return c.acc.Text() }

// StreamID identifies the response this coalescer observes.
func (c *Coalescer) StreamID() string { return c.id }

func (c *Coalescer) observe(ctx context.Context, fragment any) {
	delta := llm.TextOf(fragment)
	if delta == "" {
		return
	}
	c.acc.Append(delta)

	first := c.acc.LastSent() == 0 && c.acc.Len() > 0
	if first || c.acc.PendingNewChars() >= c.threshold {
		c.send(ctx, false)
	}
}

func (c *Coalescer) flushFinal(ctx context.Context) {
	if c.acc.FinalFlushed() || !c.acc.HasUnsent() {
		return
	}
	// The stream may have ended because ctx was cancelled; the last snapshot
	// still gets its one attempt.
	c.send(context.WithoutCancel(ctx), true)
	c.acc.markFinalFlushed()
}

func (c *Coalescer) send(ctx context.Context, final bool) {
	pending := c.acc.PendingNewChars()
	err := c.safeSend(ctx, c.acc.Text())
	c.acc.MarkSent()

	if err != nil {
		reason := "publish_error"
		if errors.Is(err, ErrNotConnected) {
			reason = "not_connected"
		}
		c.metrics.PublishFailed(reason)
		c.log.Warn("failed to send transcript",
			zap.Bool("final", final), zap.Int("length", c.acc.Len()), zap.Error(err))
		return
	}

	c.metrics.SnapshotSent(final)
	c.log.Debug("transcript snapshot sent",
		zap.Bool("final", final), zap.Int("length", c.acc.Len()), zap.Int("new", pending))
}

func (c *Coalescer) safeSend(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcript sender panicked: %v", r)
		}
	}()
	return c.sender.Send(ctx, text)
}
