// Package transcript forwards agent responses to the frontend while they are
// being generated.
//
// A Coalescer observes an llm.Stream, accumulates its text and pushes full
// snapshots (never deltas) through a Publisher on the room's data channel.
// Delivery is best effort: failures are logged and never reach the stream's
// consumer.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

// Topic is the data channel topic the frontend chat view listens on.
const Topic = "lk-chat"

// ErrNotConnected is returned by Send when the room is not connected.
var ErrNotConnected = errors.New("room not connected")

// Room is the part of a realtime room the publisher needs.
type Room interface {
	Connected() bool
	PublishData(payload []byte, topic string, reliable bool) error
}

// Message is the wire payload: {"message": "<text>"}.
type Message struct {
	Message string `json:"message"`
}

// Publisher sends transcript snapshots to the connected frontend.
type Publisher struct {
	room Room
	log  *zap.Logger
}

func NewPublisher(room Room, log *zap.Logger) *Publisher {
	return &Publisher{
		room: room,
		log:  logging.OrNop(log).With(zap.String("component", "transcript"), zap.String("topic", Topic)),
	}
}

// Send publishes text as one reliable data packet. Blank text is skipped.
func (p *Publisher) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		p.log.Debug("empty transcript, skipping")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.room == nil || !p.room.Connected() {
		p.log.Warn("room not connected, cannot send transcript")
		return ErrNotConnected
	}

	payload, err := json.Marshal(Message{Message: text})
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	if err := p.room.PublishData(payload, Topic, true); err != nil {
		return fmt.Errorf("publish transcript: %w", err)
	}

	p.log.Debug("transcript sent",
		zap.Int("length", len([]rune(text))),
		zap.String("preview", logging.Preview(text, 100)))
	return nil
}
