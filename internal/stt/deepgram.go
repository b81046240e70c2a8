package stt

import (
	"context"
	"errors"
	"strings"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

// Options configures a live transcription session.
type Options struct {
	APIKey         string
	Model          string
	Language       string
	SmartFormat    bool
	InterimResults bool
	UtteranceEndMs string
	// Keywords are "term:boost" pairs that bias recognition.
	Keywords []string
}

type DeepgramClient struct {
	conn *client.WSCallback
	opts Options
	log  *zap.Logger

	transcripts   chan string
	utteranceEnds chan struct{}
}

func NewDeepgramClient(opts Options, log *zap.Logger) *DeepgramClient {
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	return &DeepgramClient{
		opts:          opts,
		log:           logging.OrNop(log).With(zap.String("component", "stt"), zap.String("provider", "deepgram")),
		transcripts:   make(chan string, 100),
		utteranceEnds: make(chan struct{}, 10),
	}
}

// Transcripts carries final transcript segments.
func (d *DeepgramClient) Transcripts() <-chan string { return d.transcripts }

// UtteranceEnds signals that the speaker stopped talking.
func (d *DeepgramClient) UtteranceEnds() <-chan struct{} { return d.utteranceEnds }

func (d *DeepgramClient) transcriptionOptions() *interfaces.LiveTranscriptionOptions {
	return &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		SmartFormat:    d.opts.SmartFormat,
		InterimResults: d.opts.InterimResults,
		UtteranceEndMs: d.opts.UtteranceEndMs,
		Keywords:       d.opts.Keywords,
		// Remote LiveKit audio tracks carry Opus at 48 kHz.
		Encoding:   "opus",
		SampleRate: 48000,
		Channels:   1,
	}
}

func (d *DeepgramClient) Connect(ctx context.Context) error {
	if d.opts.APIKey == "" {
		return errors.New("deepgram: api key is required")
	}
	clientOptions := interfaces.ClientOptions{
		APIKey: d.opts.APIKey,
	}

	conn, err := client.NewWebSocketUsingCallback(ctx, "", &clientOptions, d.transcriptionOptions(), &receiver{d: d})
	if err != nil {
		return err
	}
	d.conn = conn

	if !d.conn.Connect() {
		return errors.New("deepgram: websocket connect failed")
	}
	d.log.Info("connected",
		zap.String("model", d.opts.Model),
		zap.String("language", d.opts.Language),
		zap.Int("keywords", len(d.opts.Keywords)))
	return nil
}

func (d *DeepgramClient) SendAudio(data []byte) error {
	if d.conn == nil {
		return nil
	}
	_, err := d.conn.Write(data)
	return err
}

func (d *DeepgramClient) Close() error {
	if d.conn != nil {
		d.conn.Stop()
		d.conn = nil
	}
	return nil
}

// receiver implements msginterfaces.LiveMessageCallback.
type receiver struct {
	d *DeepgramClient
}

func (r *receiver) Open(*msginterfaces.OpenResponse) error {
	r.d.log.Debug("stream open")
	return nil
}

func (r *receiver) Message(mr *msginterfaces.MessageResponse) error {
	if !mr.IsFinal || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if text == "" {
		return nil
	}
	r.d.log.Debug("final transcript", zap.String("text", logging.Preview(text, 80)))
	select {
	case r.d.transcripts <- text:
	default:
		r.d.log.Warn("transcript buffer full, dropping segment")
	}
	return nil
}

func (r *receiver) Metadata(*msginterfaces.MetadataResponse) error { return nil }

func (r *receiver) SpeechStarted(*msginterfaces.SpeechStartedResponse) error { return nil }

func (r *receiver) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	select {
	case r.d.utteranceEnds <- struct{}{}:
	default:
	}
	return nil
}

func (r *receiver) Close(*msginterfaces.CloseResponse) error {
	r.d.log.Debug("stream closed")
	return nil
}

func (r *receiver) Error(er *msginterfaces.ErrorResponse) error {
	r.d.log.Error("stt error", zap.Any("response", er))
	return nil
}

func (r *receiver) UnhandledEvent([]byte) error { return nil }
