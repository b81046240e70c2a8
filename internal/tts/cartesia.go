package tts

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

const (
	cartesiaBaseURL    = "wss://api.cartesia.ai"
	cartesiaVersion    = "2024-06-10"
	cartesiaSampleRate = 44100
)

type CartesiaClient struct {
	apiKey      string
	voiceID     string
	modelID     string
	baseURL     string
	audioChan   chan []byte
	interrupted atomic.Bool
	conn        *websocket.Conn
	connMu      sync.Mutex
	log         *zap.Logger
}

func NewCartesiaClient(apiKey, voiceID, modelID string, log *zap.Logger) *CartesiaClient {
	if voiceID == "" {
		voiceID = "f786b574-daa5-4673-aa0c-cbe3e8534c02" // "Katie" (American Female)
	}
	if modelID == "" {
		modelID = "sonic-english"
	}
	return &CartesiaClient{
		apiKey:    apiKey,
		voiceID:   voiceID,
		modelID:   modelID,
		baseURL:   cartesiaBaseURL,
		audioChan: make(chan []byte, 100),
		log:       logging.OrNop(log).With(zap.String("component", "tts"), zap.String("provider", "cartesia")),
	}
}

func (c *CartesiaClient) Name() string { return "cartesia" }

func (c *CartesiaClient) VoiceConfig() VoiceConfig {
	return VoiceConfig{
		Provider:   "cartesia",
		VoiceID:    c.voiceID,
		ModelID:    c.modelID,
		Format:     "wav",
		SampleRate: cartesiaSampleRate,
	}
}

// Audio returns the channel where audio chunks are sent
func (c *CartesiaClient) Audio() <-chan []byte {
	return c.audioChan
}

// Cancel stops the current TTS generation
func (c *CartesiaClient) Cancel() {
	c.interrupted.Store(true)
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

func (c *CartesiaClient) Close() {
	c.Cancel()
}

func (c *CartesiaClient) Synthesize(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("cartesia: text cannot be empty")
	}
	c.interrupted.Store(false)
	go c.speak(ctx, text)
	return nil
}

func (c *CartesiaClient) streamURL() string {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("cartesia_version", cartesiaVersion)
	return fmt.Sprintf("%s/tts/websocket?%s", c.baseURL, q.Encode())
}

func (c *CartesiaClient) speak(ctx context.Context, text string) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		c.log.Error("websocket dial failed", zap.Error(err))
		return
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	}()

	payload := map[string]interface{}{
		"context_id": uuid.NewString(),
		"model_id":   c.modelID,
		"transcript": text,
		"voice": map[string]string{
			"mode": "id",
			"id":   c.voiceID,
		},
		"output_format": map[string]interface{}{
			"container":   "raw",
			"encoding":    "pcm_s16le",
			"sample_rate": cartesiaSampleRate,
		},
	}
	if err := conn.WriteJSON(payload); err != nil {
		c.log.Error("write request failed", zap.Error(err))
		return
	}

	for {
		if c.interrupted.Load() {
			c.log.Debug("interrupted")
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("read failed", zap.Error(err))
			}
			return
		}

		var response map[string]interface{}
		if err := json.Unmarshal(message, &response); err != nil {
			c.log.Warn("unmarshal failed", zap.Error(err))
			continue
		}

		if errMsg, ok := response["error"].(string); ok {
			c.log.Error("api error", zap.String("error", errMsg))
		}

		if dataStr, ok := response["data"].(string); ok {
			pcm, err := base64.StdEncoding.DecodeString(dataStr)
			if err != nil {
				c.log.Warn("base64 decode failed", zap.Error(err))
				continue
			}
			// The browser decodes each chunk on its own, so each one gets a header.
			select {
			case c.audioChan <- prependWAVHeader(pcm, cartesiaSampleRate):
			case <-ctx.Done():
				return
			}
		} else if done, ok := response["done"].(bool); ok && done {
			c.log.Debug("generation done")
			return
		}
	}
}

// prependWAVHeader adds a 44-byte mono 16-bit PCM WAV header.
func prependWAVHeader(pcm []byte, sampleRate int) []byte {
	header := make([]byte, 44, 44+len(pcm))
	le := binary.LittleEndian

	copy(header[0:4], "RIFF")
	le.PutUint32(header[4:8], uint32(len(pcm)+36))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	le.PutUint32(header[16:20], 16)                   // Subchunk1Size
	le.PutUint16(header[20:22], 1)                    // PCM
	le.PutUint16(header[22:24], 1)                    // mono
	le.PutUint32(header[24:28], uint32(sampleRate))   // SampleRate
	le.PutUint32(header[28:32], uint32(sampleRate*2)) // ByteRate
	le.PutUint16(header[32:34], 2)                    // BlockAlign
	le.PutUint16(header[34:36], 16)                   // BitsPerSample

	copy(header[36:40], "data")
	le.PutUint32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}
