// Package avatar decides which voice provider is authoritative for a session.
//
// The avatar (primary) provider is tried once at session start. While it is
// active the fallback synthesizer is suppressed; on any failure, or when the
// avatar is marked inactive, the fallback takes over again.
package avatar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/logging"
	"github.com/adhney/voice-interviewer/internal/metrics"
)

// State of the arbitrator.
type State int

const (
	// FallbackActive: the fallback synthesizer is audible. Initial state.
	FallbackActive State = iota
	// PrimaryActive: the avatar provider is audible and the fallback is suppressed.
	PrimaryActive
	// PrimaryFailed is transient; the arbitrator always moves on to FallbackActive.
	PrimaryFailed
)

func (s State) String() string {
	switch s {
	case FallbackActive:
		return "fallback_active"
	case PrimaryActive:
		return "primary_active"
	case PrimaryFailed:
		return "primary_failed"
	default:
		return "unknown"
	}
}

// ErrPrimaryAlreadyActive is returned by StartPrimary when the avatar is
// already running.
var ErrPrimaryAlreadyActive = errors.New("avatar: primary provider already active")

// Session identifies the agent session an avatar is attached to.
type Session struct {
	ID       string
	Identity string
}

// Room carries what the avatar needs to join the LiveKit room.
type Room struct {
	Name  string
	URL   string
	Token string
}

// Provider is an avatar service.
type Provider interface {
	Start(ctx context.Context, session Session, room Room) error
	Stop(ctx context.Context) error
}

// SuppressionToggle silences or re-enables the fallback synthesizer.
type SuppressionToggle interface {
	SetSuppressed(suppressed bool)
}

// StartPolicy runs provider startup.
type StartPolicy interface {
	Start(ctx context.Context, p Provider, session Session, room Room) error
}

// SingleAttempt starts the provider exactly once; a failure is final for
// the session.
type SingleAttempt struct{}

func (SingleAttempt) Start(ctx context.Context, p Provider, session Session, room Room) error {
	return p.Start(ctx, session, room)
}

// ProviderFactory builds a provider from avatar credentials.
type ProviderFactory func(cfg config.TavusConfig, log *zap.Logger) Provider

func tavusFactory(cfg config.TavusConfig, log *zap.Logger) Provider {
	return NewTavusClient(cfg, log)
}

type Options struct {
	Policy  StartPolicy
	Factory ProviderFactory
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// Arbitrator owns the provider state for one session.
type Arbitrator struct {
	cfg     config.TavusConfig
	toggle  SuppressionToggle
	policy  StartPolicy
	factory ProviderFactory
	metrics *metrics.Metrics
	log     *zap.Logger

	mu         sync.Mutex
	state      State
	provider   Provider
	suppressed atomic.Bool
}

// NewArbitrator returns an arbitrator in FallbackActive with the toggle
// cleared.
func NewArbitrator(cfg config.TavusConfig, toggle SuppressionToggle, opts Options) *Arbitrator {
	if opts.Policy == nil {
		opts.Policy = SingleAttempt{}
	}
	if opts.Factory == nil {
		opts.Factory = tavusFactory
	}
	a := &Arbitrator{
		cfg:     cfg,
		toggle:  toggle,
		policy:  opts.Policy,
		factory: opts.Factory,
		metrics: opts.Metrics,
		log:     logging.OrNop(opts.Log).With(zap.String("component", "avatar")),
		state:   FallbackActive,
	}
	a.setSuppressed(false)
	return a
}

// State returns the current state.
func (a *Arbitrator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Suppressed reports whether the fallback is currently silenced.
func (a *Arbitrator) Suppressed() bool {
	return a.suppressed.Load()
}

// StartPrimary attempts to bring up the avatar provider. On success the
// fallback is suppressed and the provider is returned; on any failure the
// fallback stays authoritative and the error is returned.
func (a *Arbitrator) StartPrimary(ctx context.Context, session Session, room Room) (Provider, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == PrimaryActive {
		return nil, ErrPrimaryAlreadyActive
	}

	if a.cfg.APIKey == "" {
		return nil, apperr.Configuration("TAVUS_API_KEY is not set")
	}
	if a.cfg.PersonaID == "" && a.cfg.ReplicaID == "" {
		return nil, apperr.Configuration("TAVUS_PERSONA_ID or TAVUS_REPLICA_ID is required")
	}

	a.log.Info("starting avatar", zap.String("room", room.Name), zap.String("session", session.ID))

	provider := a.factory(a.cfg, a.log)
	if err := a.policy.Start(ctx, provider, session, room); err != nil {
		a.state = PrimaryFailed
		category := Classify(err)
		a.log.Error("avatar start failed",
			zap.String("room", room.Name),
			zap.String("category", string(category)),
			zap.String("reason", category.summary()),
			zap.Error(err))
		a.log.Info("avatar fallback", zap.String("guidance", Guidance(category)))
		a.metrics.AvatarStart(false, string(category))

		a.fallback()
		return nil, apperr.Service("tavus", err)
	}

	a.state = PrimaryActive
	a.provider = provider
	a.setSuppressed(true)
	a.metrics.AvatarStart(true, "")
	a.log.Info("avatar active, fallback voice suppressed", zap.String("room", room.Name))
	return provider, nil
}

// SetInactive hands authority back to the fallback. The provider is not
// stopped; callers that own it decide that.
func (a *Arbitrator) SetInactive() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == PrimaryActive {
		a.log.Info("avatar marked inactive, fallback voice re-enabled")
	}
	a.fallback()
}

// Stop ends the active provider, if any, and returns to FallbackActive.
func (a *Arbitrator) Stop(ctx context.Context) error {
	a.mu.Lock()
	p := a.provider
	a.fallback()
	a.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Stop(ctx)
}

// fallback must be called with mu held.
func (a *Arbitrator) fallback() {
	a.state = FallbackActive
	a.provider = nil
	a.setSuppressed(false)
}

func (a *Arbitrator) setSuppressed(v bool) {
	a.suppressed.Store(v)
	if a.toggle != nil {
		a.toggle.SetSuppressed(v)
	}
}
