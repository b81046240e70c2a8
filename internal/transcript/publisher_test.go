package transcript

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/llm"
)

type packet struct {
	payload  string
	topic    string
	reliable bool
}

type fakeRoom struct {
	connected bool
	err       error
	packets   []packet
}

func (f *fakeRoom) Connected() bool { return f.connected }

func (f *fakeRoom) PublishData(payload []byte, topic string, reliable bool) error {
	if f.err != nil {
		return f.err
	}
	f.packets = append(f.packets, packet{string(payload), topic, reliable})
	return nil
}

func TestPublisher_Send(t *testing.T) {
	room := &fakeRoom{connected: true}
	p := NewPublisher(room, zap.NewNop())

	require.NoError(t, p.Send(context.Background(), `Say "hello"`))

	require.Len(t, room.packets, 1)
	assert.Equal(t, `{"message":"Say \"hello\""}`, room.packets[0].payload)
	assert.Equal(t, "lk-chat", room.packets[0].topic)
	assert.True(t, room.packets[0].reliable)
}

func TestPublisher_SkipsBlankText(t *testing.T) {
	room := &fakeRoom{connected: true}
	p := NewPublisher(room, nil)

	assert.NoError(t, p.Send(context.Background(), "  \n"))
	assert.Empty(t, room.packets)
}

func TestPublisher_NotConnected(t *testing.T) {
	room := &fakeRoom{connected: false}
	p := NewPublisher(room, nil)

	err := p.Send(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, room.packets)
	assert.ErrorIs(t, NewPublisher(nil, nil).Send(context.Background(), "hello"), ErrNotConnected)
}

func TestPublisher_PublishError(t *testing.T) {
	cause := errors.New("data channel closed")
	p := NewPublisher(&fakeRoom{connected: true, err: cause}, nil)

	err := p.Send(context.Background(), "hello")

	assert.ErrorIs(t, err, cause)
}

func TestPublisher_WithCoalescerWhileDisconnected(t *testing.T) {
	room := &fakeRoom{connected: false}
	items := []any{"Please ", "describe ", "your ", "experience with rural customers."}
	c := NewCoalescer(llm.FromSlice(items, nil), NewPublisher(room, nil), Options{})

	got := drain(t, c)

	assert.Equal(t, items, got)
	assert.NoError(t, c.Err())
	assert.Empty(t, room.packets)
}

func TestPublisher_WithCoalescerConnected(t *testing.T) {
	room := &fakeRoom{connected: true}
	c := NewCoalescer(llm.FromSlice([]any{"Thank ", "you."}, nil), NewPublisher(room, nil), Options{})

	drain(t, c)

	require.Len(t, room.packets, 2)
	assert.Equal(t, `{"message":"Thank "}`, room.packets[0].payload)
	assert.Equal(t, `{"message":"Thank you."}`, room.packets[1].payload)
}
