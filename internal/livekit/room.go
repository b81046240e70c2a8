package livekit

import (
	"errors"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

var errNoRoom = errors.New("livekit: no room")

// RoomAdapter exposes the parts of a joined room the transcript publisher
// and audio relay need.
type RoomAdapter struct {
	room *lksdk.Room
}

func NewRoomAdapter(room *lksdk.Room) *RoomAdapter {
	return &RoomAdapter{room: room}
}

func (r *RoomAdapter) Connected() bool {
	if r == nil || r.room == nil {
		return false
	}
	return r.room.ConnectionState() == lksdk.ConnectionStateConnected
}

// PublishData sends payload from the local participant on topic.
func (r *RoomAdapter) PublishData(payload []byte, topic string, reliable bool) error {
	if r == nil || r.room == nil || r.room.LocalParticipant == nil {
		return errNoRoom
	}
	return r.room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(reliable),
		lksdk.WithDataPublishTopic(topic),
	)
}

func (r *RoomAdapter) Name() string {
	if r == nil || r.room == nil {
		return ""
	}
	return r.room.Name()
}

func (r *RoomAdapter) Metadata() string {
	if r == nil || r.room == nil {
		return ""
	}
	return r.room.Metadata()
}

func (r *RoomAdapter) Disconnect() {
	if r == nil || r.room == nil {
		return
	}
	r.room.Disconnect()
}

// TrackSourceName renders a track source for logs.
func TrackSourceName(source livekit.TrackSource) string {
	switch source {
	case livekit.TrackSource_UNKNOWN:
		return "UNKNOWN"
	case livekit.TrackSource_MICROPHONE:
		return "MICROPHONE"
	case livekit.TrackSource_CAMERA:
		return "CAMERA"
	case livekit.TrackSource_SCREEN_SHARE:
		return "SCREEN_SHARE"
	case livekit.TrackSource_SCREEN_SHARE_AUDIO:
		return "SCREEN_SHARE_AUDIO"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(source))
	}
}
