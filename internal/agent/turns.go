package agent

import (
	"context"
	"strings"
	"time"
)

// detectTurns merges final transcript segments into utterances and sends
// each completed one on out. A turn completes after delay without new
// speech; an utterance-end signal shortens the remaining wait to settle.
func detectTurns(ctx context.Context, transcripts <-chan string, ends <-chan struct{}, delay, settle time.Duration, out chan<- string) {
	var (
		buf  []string
		fire <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return

		case t, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			buf = append(buf, t)
			fire = time.After(delay)

		case _, ok := <-ends:
			if !ok {
				ends = nil
				continue
			}
			if len(buf) > 0 {
				fire = time.After(settle)
			}

		case <-fire:
			fire = nil
			utterance := strings.Join(buf, " ")
			buf = nil
			select {
			case out <- utterance:
			case <-ctx.Done():
				return
			}
		}
	}
}
