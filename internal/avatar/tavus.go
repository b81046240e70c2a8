package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/logging"
)

const defaultTavusURL = "https://tavusapi.com"

// APIError is a non-2xx response from the Tavus API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavus: status %d: %s", e.StatusCode, e.Body)
}

type createConversationRequest struct {
	ReplicaID  string                 `json:"replica_id,omitempty"`
	PersonaID  string                 `json:"persona_id,omitempty"`
	Properties conversationProperties `json:"properties"`
}

type conversationProperties struct {
	LiveKitURL   string `json:"livekit_ws_url"`
	LiveKitToken string `json:"livekit_room_token"`
}

type conversationResponse struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status"`
}

// TavusClient starts and ends Tavus conversations that publish into a
// LiveKit room.
type TavusClient struct {
	cfg  config.TavusConfig
	http *http.Client
	log  *zap.Logger

	mu             sync.Mutex
	conversationID string
}

var _ Provider = (*TavusClient)(nil)

func NewTavusClient(cfg config.TavusConfig, log *zap.Logger) *TavusClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTavusURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TavusClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logging.OrNop(log).With(zap.String("component", "avatar"), zap.String("provider", "tavus")),
	}
}

func (t *TavusClient) Name() string { return "tavus" }

// ConversationID returns the id of the running conversation, if any.
func (t *TavusClient) ConversationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// Start creates a conversation whose replica joins room.
func (t *TavusClient) Start(ctx context.Context, session Session, room Room) error {
	body, err := json.Marshal(createConversationRequest{
		ReplicaID: t.cfg.ReplicaID,
		PersonaID: t.cfg.PersonaID,
		Properties: conversationProperties{
			LiveKitURL:   room.URL,
			LiveKitToken: room.Token,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal conversation request: %w", err)
	}

	var resp conversationResponse
	if err := t.post(ctx, "/v2/conversations", body, &resp); err != nil {
		return err
	}
	if resp.ConversationID == "" {
		return errors.New("tavus: response carried no conversation_id")
	}

	t.mu.Lock()
	t.conversationID = resp.ConversationID
	t.mu.Unlock()

	t.log.Info("conversation started",
		zap.String("session", session.ID),
		zap.String("room", room.Name),
		zap.String("conversation_id", resp.ConversationID),
		zap.String("status", resp.Status))
	return nil
}

// Stop ends the running conversation. It is a no-op when none was started.
func (t *TavusClient) Stop(ctx context.Context) error {
	t.mu.Lock()
	id := t.conversationID
	t.conversationID = ""
	t.mu.Unlock()

	if id == "" {
		return nil
	}
	if err := t.post(ctx, "/v2/conversations/"+id+"/end", nil, nil); err != nil {
		return err
	}
	t.log.Info("conversation ended", zap.String("conversation_id", id))
	return nil
}

func (t *TavusClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("tavus request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read tavus response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode tavus response: %w", err)
	}
	return nil
}
