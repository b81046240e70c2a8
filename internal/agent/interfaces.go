package agent

import (
	"context"

	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/adhney/voice-interviewer/internal/llm"
	"github.com/adhney/voice-interviewer/internal/transcript"
	"github.com/adhney/voice-interviewer/internal/tts"
)

// SpeechToText defines the interface for Speech-to-Text services
type SpeechToText interface {
	Connect(ctx context.Context) error
	SendAudio(data []byte) error
	Transcripts() <-chan string
	UtteranceEnds() <-chan struct{}
	Close() error
}

// Responder defines the interface for Language Model services
type Responder interface {
	Chat(ctx context.Context, prompt string) (llm.Stream, error)
	Close() error
}

// Room is a joined LiveKit room.
type Room interface {
	transcript.Room
	Name() string
	Metadata() string
	Disconnect()
}

// RoomService joins rooms and issues tokens for other participants.
type RoomService interface {
	URL() string
	GenerateToken(roomName, identity, name string, isAgent bool) (string, error)
	JoinRoomAsAgent(ctx context.Context, roomName, identity string, callback *lksdk.RoomCallback) (*lksdk.Room, error)
}

// Services are the per-session provider clients.
type Services struct {
	STT   SpeechToText
	LLM   Responder
	Voice tts.Synthesizer
}

func (s *Services) close() {
	if s.STT != nil {
		s.STT.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
	if s.Voice != nil {
		s.Voice.Close()
	}
}

// ServiceFactory builds the provider clients once the session knows its
// system instructions.
type ServiceFactory func(ctx context.Context, instructions string) (*Services, error)
