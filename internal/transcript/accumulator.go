package transcript

import (
	"strings"
	"unicode/utf8"
)

// Accumulator holds the growing text of one response stream and how much of
// it has been forwarded. Lengths are counted in characters.
//
// The text only grows through Append and the sent mark only moves through
// MarkSent, so the sent mark never exceeds the text length.
type Accumulator struct {
	text         strings.Builder
	length       int
	lastSent     int
	finalFlushed bool
}

// Append adds fragment to the accumulated text. Empty fragments are ignored.
func (a *Accumulator) Append(fragment string) {
	if fragment == "" {
		return
	}
	a.text.WriteString(fragment)
	a.length += utf8.RuneCountInString(fragment)
}

// Text returns the full accumulated snapshot.
func (a *Accumulator) Text() string { return a.text.String() }

// Len returns the accumulated length in characters.
func (a *Accumulator) Len() int { return a.length }

// LastSent returns the length recorded by the last MarkSent.
func (a *Accumulator) LastSent() int { return a.lastSent }

// PendingNewChars returns the characters accumulated since the last send.
func (a *Accumulator) PendingNewChars() int { return a.length - a.lastSent }

// MarkSent records the current length as sent.
func (a *Accumulator) MarkSent() { a.lastSent = a.length }

// HasUnsent reports whether text arrived after the last send.
func (a *Accumulator) HasUnsent() bool { return a.length > a.lastSent }

// FinalFlushed reports whether the terminal flush has been attempted.
func (a *Accumulator) FinalFlushed() bool { return a.finalFlushed }

// markFinalFlushed is called once by the coalescer after its terminal flush.
func (a *Accumulator) markFinalFlushed() { a.finalFlushed = true }
