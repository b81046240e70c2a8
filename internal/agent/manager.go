package agent

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/logging"
)

var (
	ErrSessionExists = errors.New("agent: a session is already running in this room")
	ErrManagerClosed = errors.New("agent: manager is stopped")
)

// Runner is a session that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFactory creates the session for a room.
type RunnerFactory func(roomName string) Runner

// NewSessionFactory creates sessions sharing base, one per room.
func NewSessionFactory(base SessionConfig) RunnerFactory {
	return func(roomName string) Runner {
		cfg := base
		cfg.RoomName = roomName
		return NewSession(cfg)
	}
}

// Manager dispatches at most one session per room.
type Manager struct {
	factory RunnerFactory
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

func NewManager(factory RunnerFactory, log *zap.Logger) *Manager {
	return &Manager{
		factory:  factory,
		log:      logging.OrNop(log).With(zap.String("component", "manager")),
		sessions: make(map[string]context.CancelFunc),
	}
}

// Dispatch starts a session for roomName in the background. The session
// outlives ctx's cancellation but keeps its values.
func (m *Manager) Dispatch(ctx context.Context, roomName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.sessions[roomName]; ok {
		return ErrSessionExists
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.sessions[roomName] = cancel
	runner := m.factory(roomName)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.remove(roomName)
		defer cancel()

		m.log.Info("session dispatched", zap.String("room", roomName))
		if err := runner.Run(sctx); err != nil {
			m.log.Error("session failed", zap.String("room", roomName), zap.Error(err))
			return
		}
		m.log.Info("session ended", zap.String("room", roomName))
	}()
	return nil
}

func (m *Manager) remove(roomName string) {
	m.mu.Lock()
	delete(m.sessions, roomName)
	m.mu.Unlock()
}

// Rooms lists rooms with a running session.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]string, 0, len(m.sessions))
	for r := range m.sessions {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// Stop cancels every session and waits for them to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.closed = true
	for _, cancel := range m.sessions {
		cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info("all sessions stopped")
}
