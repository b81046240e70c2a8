package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan struct{}
	err     error
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	return r.err
}

type instantRunner struct{ err error }

func (r instantRunner) Run(context.Context) error { return r.err }

func TestManager_DispatchAndStop(t *testing.T) {
	runners := map[string]*blockingRunner{}
	m := NewManager(func(room string) Runner {
		r := &blockingRunner{started: make(chan struct{})}
		runners[room] = r
		return r
	}, nil)

	require.NoError(t, m.Dispatch(context.Background(), "interview-b"))
	require.NoError(t, m.Dispatch(context.Background(), "interview-a"))
	<-runners["interview-a"].started
	<-runners["interview-b"].started

	assert.Equal(t, []string{"interview-a", "interview-b"}, m.Rooms())
	assert.ErrorIs(t, m.Dispatch(context.Background(), "interview-a"), ErrSessionExists)

	m.Stop()

	assert.Empty(t, m.Rooms())
	assert.ErrorIs(t, m.Dispatch(context.Background(), "interview-c"), ErrManagerClosed)
}

func TestManager_SessionOutlivesRequestContext(t *testing.T) {
	r := &blockingRunner{started: make(chan struct{})}
	m := NewManager(func(string) Runner { return r }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Dispatch(ctx, "interview-1"))
	<-r.started
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"interview-1"}, m.Rooms())
	m.Stop()
}

func TestManager_FinishedSessionFreesRoom(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(func(string) Runner {
		calls.Add(1)
		return instantRunner{err: errors.New("join failed")}
	}, nil)

	require.NoError(t, m.Dispatch(context.Background(), "interview-1"))
	require.Eventually(t, func() bool { return len(m.Rooms()) == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Dispatch(context.Background(), "interview-1"))
	m.Stop()
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewSessionFactory(t *testing.T) {
	factory := NewSessionFactory(SessionConfig{Config: testConfig(), Rooms: &fakeRooms{}})

	a := factory("room-a").(*Session)
	b := factory("room-b").(*Session)

	assert.Equal(t, "room-a", a.cfg.RoomName)
	assert.Equal(t, "room-b", b.cfg.RoomName)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotNil(t, a.cfg.Profile, "default profile is filled in")
}
