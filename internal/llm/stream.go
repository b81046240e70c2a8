package llm

import (
	"context"
	"strings"
)

// Stream is a lazy, finite, non-restartable sequence of response fragments.
//
// Iteration follows the bufio.Scanner shape: Next advances and reports whether
// a fragment is available. Once Next returns false the stream has ended; Err
// tells the two terminal outcomes apart (nil for a normal end, non-nil for a
// failure). Close releases the stream early and is safe to call more than once.
type Stream interface {
	Next(ctx context.Context) bool
	Fragment() any
	Err() error
	Close() error
}

// Chunk is the provider-neutral fragment shape produced by the clients in
// this package.
type Chunk struct {
	Content string
	Text    string
	Delta   *Delta
}

// Delta carries incremental content nested inside a fragment.
type Delta struct {
	Content string
}

// Fragment shapes from other providers are recognised through these accessors.
type (
	contentCarrier interface{ GetContent() string }
	textCarrier    interface{ GetText() string }
	deltaCarrier   interface{ DeltaContent() string }
)

// TextOf extracts the text delta carried by a fragment. A plain string wins,
// then a content or text field, then a nested delta. Anything else yields "".
func TextOf(fragment any) string {
	switch f := fragment.(type) {
	case nil:
		return ""
	case string:
		return f
	case Chunk:
		return f.text()
	case *Chunk:
		if f == nil {
			return ""
		}
		return f.text()
	}

	if c, ok := fragment.(contentCarrier); ok {
		if s := c.GetContent(); s != "" {
			return s
		}
	}
	if t, ok := fragment.(textCarrier); ok {
		if s := t.GetText(); s != "" {
			return s
		}
	}
	if d, ok := fragment.(deltaCarrier); ok {
		return d.DeltaContent()
	}
	return ""
}

func (c Chunk) text() string {
	if c.Content != "" {
		return c.Content
	}
	if c.Text != "" {
		return c.Text
	}
	if c.Delta != nil {
		return c.Delta.Content
	}
	return ""
}

// Collect drains s and returns the concatenated text of its fragments. The
// stream is closed before returning. On failure the text gathered so far is
// returned with the error.
func Collect(ctx context.Context, s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for s.Next(ctx) {
		b.WriteString(TextOf(s.Fragment()))
	}
	return b.String(), s.Err()
}

type channelStream struct {
	ch      <-chan string
	errFn   func() error
	current any
	err     error
	done    bool
}

// FromChannel adapts a channel of text pieces into a Stream. When ch closes,
// errFn (if non-nil) reports whether the producer failed.
func FromChannel(ch <-chan string, errFn func() error) Stream {
	return &channelStream{ch: ch, errFn: errFn}
}

func (s *channelStream) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	select {
	case <-ctx.Done():
		s.finish(ctx.Err())
		return false
	case v, ok := <-s.ch:
		if !ok {
			var err error
			if s.errFn != nil {
				err = s.errFn()
			}
			s.finish(err)
			return false
		}
		s.current = v
		return true
	}
}

func (s *channelStream) finish(err error) {
	s.done = true
	s.current = nil
	s.err = err
}

func (s *channelStream) Fragment() any { return s.current }
func (s *channelStream) Err() error    { return s.err }

func (s *channelStream) Close() error {
	if !s.done {
		s.finish(nil)
	}
	return nil
}

type sliceStream struct {
	items   []any
	final   error
	pos     int
	current any
	err     error
	done    bool
}

// FromSlice returns a Stream over items that terminates with final once the
// items are exhausted. A nil final means a normal end.
func FromSlice(items []any, final error) Stream {
	return &sliceStream{items: items, final: final}
}

func (s *sliceStream) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.done, s.err, s.current = true, err, nil
		return false
	}
	if s.pos >= len(s.items) {
		s.done, s.err, s.current = true, s.final, nil
		return false
	}
	s.current = s.items[s.pos]
	s.pos++
	return true
}

func (s *sliceStream) Fragment() any { return s.current }
func (s *sliceStream) Err() error    { return s.err }

func (s *sliceStream) Close() error {
	s.done = true
	s.current = nil
	return nil
}
