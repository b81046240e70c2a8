package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

const elevenLabsBaseURL = "wss://api.elevenlabs.io"

type ElevenLabsClient struct {
	apiKey      string
	voiceID     string
	modelID     string
	baseURL     string
	audioChan   chan []byte
	interrupted atomic.Bool     // Set to true to cancel current TTS
	conn        *websocket.Conn // Current WebSocket connection
	connMu      sync.Mutex      // Protects conn
	log         *zap.Logger
}

func NewElevenLabsClient(apiKey, voiceID, modelID string, log *zap.Logger) *ElevenLabsClient {
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	}
	if modelID == "" {
		modelID = "eleven_flash_v2_5"
	}
	return &ElevenLabsClient{
		apiKey:    apiKey,
		voiceID:   voiceID,
		modelID:   modelID,
		baseURL:   elevenLabsBaseURL,
		audioChan: make(chan []byte, 100),
		log:       logging.OrNop(log).With(zap.String("component", "tts"), zap.String("provider", "elevenlabs")),
	}
}

func (e *ElevenLabsClient) Name() string { return "elevenlabs" }

func (e *ElevenLabsClient) VoiceConfig() VoiceConfig {
	return VoiceConfig{
		Provider:   "elevenlabs",
		VoiceID:    e.voiceID,
		ModelID:    e.modelID,
		Format:     "mp3",
		SampleRate: 44100,
	}
}

// Synthesize opens a fresh stream-input connection for text and forwards the
// decoded audio to Audio() in the background.
func (e *ElevenLabsClient) Synthesize(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("elevenlabs: text cannot be empty")
	}
	e.interrupted.Store(false)
	go e.speak(ctx, text)
	return nil
}

// Audio returns the channel where audio chunks are sent
func (e *ElevenLabsClient) Audio() <-chan []byte {
	return e.audioChan
}

// Cancel interrupts the current TTS generation by closing the WebSocket
func (e *ElevenLabsClient) Cancel() {
	e.interrupted.Store(true)
	e.connMu.Lock()
	if e.conn != nil {
		e.conn.Close()
		e.log.Debug("cancel: websocket closed")
	}
	e.connMu.Unlock()
}

func (e *ElevenLabsClient) Close() {
	e.Cancel()
}

func (e *ElevenLabsClient) streamURL() string {
	q := url.Values{}
	q.Set("model_id", e.modelID)
	q.Set("output_format", "mp3_44100_128")
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", e.baseURL, e.voiceID, q.Encode())
}

func (e *ElevenLabsClient) speak(ctx context.Context, text string) {
	start := time.Now()

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.streamURL(), header)
	if err != nil {
		e.log.Error("connect failed", zap.Error(err))
		return
	}

	// Store connection for Cancel()
	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()

	defer func() {
		e.connMu.Lock()
		e.conn = nil
		e.connMu.Unlock()
		conn.Close()
	}()

	e.log.Debug("websocket connected", zap.Duration("connect", time.Since(start)))

	payload := map[string]interface{}{
		"text":                   text,
		"try_trigger_generation": true,
	}
	if err := conn.WriteJSON(payload); err != nil {
		e.log.Error("send failed", zap.Error(err))
		return
	}

	// Signal end of input
	if err := conn.WriteJSON(map[string]string{"text": ""}); err != nil {
		e.log.Error("end signal failed", zap.Error(err))
		return
	}

	firstAudio := true
	for {
		if e.interrupted.Load() {
			e.log.Debug("interrupted, closing websocket")
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if !e.interrupted.Load() {
				e.log.Debug("read ended", zap.Error(err))
			}
			return
		}

		var response struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(message, &response); err != nil {
			e.log.Warn("unmarshal failed", zap.Error(err))
			continue
		}
		if response.Error != "" {
			e.log.Error("api error", zap.String("error", response.Error))
		}

		if response.Audio != "" {
			if firstAudio {
				e.log.Debug("first audio chunk", zap.Duration("time_to_first_audio", time.Since(start)))
				firstAudio = false
			}
			decoded, err := base64.StdEncoding.DecodeString(response.Audio)
			if err != nil {
				e.log.Warn("base64 decode failed", zap.Error(err))
				continue
			}
			select {
			case e.audioChan <- decoded:
			case <-ctx.Done():
				return
			}
		}

		if response.IsFinal {
			e.log.Debug("synthesis complete", zap.Duration("total", time.Since(start)))
			return
		}
	}
}
