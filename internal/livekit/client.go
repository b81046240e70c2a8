package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

const (
	tokenTTL = 24 * time.Hour

	// candidate, interviewer and avatar
	maxParticipants = 3
	emptyTimeout    = 5 * time.Minute
)

// Client manages LiveKit room connections and token generation
type Client struct {
	url       string
	apiKey    string
	apiSecret string
	log       *zap.Logger
}

// NewClient creates a new LiveKit client
func NewClient(url, apiKey, apiSecret string, log *zap.Logger) *Client {
	return &Client{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		log:       logging.OrNop(log).With(zap.String("component", "livekit")),
	}
}

// URL returns the server URL participants connect to.
func (c *Client) URL() string { return c.url }

// GenerateToken creates a JWT token for a participant to join a room
func (c *Client) GenerateToken(roomName, identity, name string, isAgent bool) (string, error) {
	at := auth.NewAccessToken(c.apiKey, c.apiSecret)

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	if isAgent {
		t := true
		grant.CanUpdateOwnMetadata = &t
		grant.CanPublishData = &t
	}

	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenTTL)
	if name != "" {
		at.SetName(name)
	}

	return at.ToJWT()
}

func (c *Client) roomService() *lksdk.RoomServiceClient {
	return lksdk.NewRoomServiceClient(c.url, c.apiKey, c.apiSecret)
}

// CreateRoom creates a new LiveKit room carrying metadata
func (c *Client) CreateRoom(ctx context.Context, roomName, metadata string) error {
	_, err := c.roomService().CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            roomName,
		Metadata:        metadata,
		MaxParticipants: maxParticipants,
		EmptyTimeout:    uint32(emptyTimeout / time.Second),
	})
	if err != nil {
		return fmt.Errorf("create room %s: %w", roomName, err)
	}

	c.log.Info("room created", zap.String("room", roomName), zap.Int("metadata_bytes", len(metadata)))
	return nil
}

// JoinRoomAsAgent connects to a room as the interviewer
func (c *Client) JoinRoomAsAgent(ctx context.Context, roomName, identity string, callback *lksdk.RoomCallback) (*lksdk.Room, error) {
	token, err := c.GenerateToken(roomName, identity, identity, true)
	if err != nil {
		return nil, err
	}

	room, err := lksdk.ConnectToRoomWithToken(c.url, token, callback, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return nil, fmt.Errorf("join room %s: %w", roomName, err)
	}

	c.log.Info("agent joined room", zap.String("room", roomName), zap.String("identity", identity))
	return room, nil
}

// DeleteRoom removes a LiveKit room
func (c *Client) DeleteRoom(ctx context.Context, roomName string) error {
	if _, err := c.roomService().DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: roomName}); err != nil {
		return fmt.Errorf("delete room %s: %w", roomName, err)
	}
	c.log.Info("room deleted", zap.String("room", roomName))
	return nil
}
