package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func runDetector(t *testing.T, delay, settle time.Duration) (chan string, chan struct{}, chan string, context.CancelFunc) {
	t.Helper()
	transcripts := make(chan string)
	ends := make(chan struct{})
	out := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	go detectTurns(ctx, transcripts, ends, delay, settle, out)
	t.Cleanup(cancel)
	return transcripts, ends, out, cancel
}

func receive(t *testing.T, out <-chan string, within time.Duration) string {
	t.Helper()
	select {
	case u := <-out:
		return u
	case <-time.After(within):
		t.Fatal("no utterance")
		return ""
	}
}

func TestDetectTurns_JoinsSegmentsAfterSilence(t *testing.T) {
	transcripts, _, out, _ := runDetector(t, 30*time.Millisecond, 10*time.Millisecond)

	transcripts <- "I have a degree in economics."
	transcripts <- "  "
	transcripts <- "I also completed a banking certificate."

	assert.Equal(t, "I have a degree in economics. I also completed a banking certificate.", receive(t, out, time.Second))
}

func TestDetectTurns_UtteranceEndShortensWait(t *testing.T) {
	transcripts, ends, out, _ := runDetector(t, time.Hour, 10*time.Millisecond)

	transcripts <- "NABARD supervises regional rural banks."
	ends <- struct{}{}

	assert.Equal(t, "NABARD supervises regional rural banks.", receive(t, out, time.Second))
}

func TestDetectTurns_UtteranceEndWithoutSpeech(t *testing.T) {
	_, ends, out, _ := runDetector(t, 10*time.Millisecond, 10*time.Millisecond)

	ends <- struct{}{}

	select {
	case u := <-out:
		t.Fatalf("unexpected utterance %q", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDetectTurns_SeparateTurns(t *testing.T) {
	transcripts, _, out, _ := runDetector(t, 20*time.Millisecond, 10*time.Millisecond)

	transcripts <- "First answer."
	assert.Equal(t, "First answer.", receive(t, out, time.Second))

	transcripts <- "Second answer."
	assert.Equal(t, "Second answer.", receive(t, out, time.Second))
}

func TestDetectTurns_StopsOnCancel(t *testing.T) {
	transcripts := make(chan string)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		detectTurns(ctx, transcripts, nil, time.Hour, time.Hour, make(chan string))
		close(done)
	}()

	transcripts <- "partial"
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("detector did not stop")
	}
}
