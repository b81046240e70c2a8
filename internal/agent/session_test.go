package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/avatar"
	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/interview"
	"github.com/adhney/voice-interviewer/internal/llm"
	"github.com/adhney/voice-interviewer/internal/tts"
)

const waitFor = 2 * time.Second

type packet struct {
	topic   string
	payload string
}

type fakeRoom struct {
	mu           sync.Mutex
	name         string
	metadata     string
	packets      []packet
	disconnected bool
}

func (r *fakeRoom) Connected() bool { return true }

func (r *fakeRoom) PublishData(payload []byte, topic string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, packet{topic, string(payload)})
	return nil
}

func (r *fakeRoom) Name() string     { return r.name }
func (r *fakeRoom) Metadata() string { return r.metadata }

func (r *fakeRoom) Disconnect() {
	r.mu.Lock()
	r.disconnected = true
	r.mu.Unlock()
}

func (r *fakeRoom) topic(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.packets {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

type fakeSTT struct {
	connectErr  error
	transcripts chan string
	ends        chan struct{}
}

func newFakeSTT() *fakeSTT {
	return &fakeSTT{transcripts: make(chan string, 10), ends: make(chan struct{}, 10)}
}

func (f *fakeSTT) Connect(context.Context) error  { return f.connectErr }
func (f *fakeSTT) SendAudio([]byte) error         { return nil }
func (f *fakeSTT) Transcripts() <-chan string     { return f.transcripts }
func (f *fakeSTT) UtteranceEnds() <-chan struct{} { return f.ends }
func (f *fakeSTT) Close() error                   { return nil }

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   []any
}

func (f *fakeLLM) Chat(_ context.Context, prompt string) (llm.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return llm.FromSlice(f.reply, nil), nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type fakeVoice struct {
	mu     sync.Mutex
	spoken []string
	audio  chan []byte
}

func newFakeVoice() *fakeVoice { return &fakeVoice{audio: make(chan []byte, 4)} }

func (f *fakeVoice) Name() string { return "fake" }

func (f *fakeVoice) Synthesize(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeVoice) Cancel() {}
func (f *fakeVoice) VoiceConfig() tts.VoiceConfig {
	return tts.VoiceConfig{Provider: "fake", Format: "mp3", SampleRate: 44100}
}
func (f *fakeVoice) Audio() <-chan []byte { return f.audio }
func (f *fakeVoice) Close()               {}

func (f *fakeVoice) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

type fakeRooms struct {
	joinErr error
}

func (f *fakeRooms) URL() string { return "wss://example.livekit.cloud" }

func (f *fakeRooms) GenerateToken(roomName, identity, _ string, _ bool) (string, error) {
	return "token-" + roomName + "-" + identity, nil
}

func (f *fakeRooms) JoinRoomAsAgent(context.Context, string, string, *lksdk.RoomCallback) (*lksdk.Room, error) {
	return nil, f.joinErr
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	room    avatar.Room
	stopped bool
}

func (p *fakeProvider) Start(_ context.Context, _ avatar.Session, room avatar.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.room = room
	return p.err
}

func (p *fakeProvider) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

type harness struct {
	room         *fakeRoom
	stt          *fakeSTT
	llm          *fakeLLM
	voice        *fakeVoice
	instructions chan string
	session      *Session
}

func testProfile() *interview.Profile {
	return &interview.Profile{
		Name:          "Arjun",
		Instructions:  "BASE",
		ResumeSection: "\nRESUME: {{resume}}",
		NoResumeNote:  "\nNO RESUME",
		Greeting:      "Greet the candidate.",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LiveKit: config.LiveKitConfig{AgentName: "my-interviewer", AgentIdentity: "interview-agent"},
		Interview: config.InterviewConfig{
			MaxResumeLength:   3000,
			CoalesceThreshold: 30,
			DebounceDelay:     20 * time.Millisecond,
		},
	}
}

func newHarness(t *testing.T, cfg *config.Config, provider avatar.Provider) *harness {
	t.Helper()
	h := &harness{
		room:         &fakeRoom{name: "interview-1"},
		stt:          newFakeSTT(),
		llm:          &fakeLLM{reply: []any{"Hello! ", "I am Arjun."}},
		voice:        newFakeVoice(),
		instructions: make(chan string, 1),
	}
	sc := SessionConfig{
		RoomName: "interview-1",
		Config:   cfg,
		Profile:  testProfile(),
		Rooms:    &fakeRooms{},
		Services: func(_ context.Context, instructions string) (*Services, error) {
			h.instructions <- instructions
			return &Services{STT: h.stt, LLM: h.llm, Voice: h.voice}, nil
		},
		Log: zap.NewNop(),
	}
	if provider != nil {
		sc.AvatarFactory = func(config.TavusConfig, *zap.Logger) avatar.Provider { return provider }
	}
	h.session = NewSession(sc)
	return h
}

func (h *harness) start(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.session.run(ctx, h.room) }()
	return cancel, done
}

func stop(t *testing.T, cancel context.CancelFunc, done <-chan error) error {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestSession_GreetingWithFallbackVoice(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	cancel, done := h.start(t)

	assert.Equal(t, "BASE\nNO RESUME", <-h.instructions)
	require.Eventually(t, func() bool { return len(h.voice.said()) == 1 }, waitFor, 5*time.Millisecond)

	require.NoError(t, stop(t, cancel, done))

	assert.Equal(t, []string{"Greet the candidate."}, h.llm.received())
	assert.Equal(t, []string{"Hello! I am Arjun."}, h.voice.said())
	assert.Equal(t, []string{
		`{"message":"Hello! "}`,
		`{"message":"Hello! I am Arjun."}`,
	}, h.room.topic("lk-chat"))
	assert.True(t, h.room.disconnected)
}

func TestSession_ResumeFromRoomMetadata(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.room.metadata = `{"resume_text":"MBA in Finance, two years in retail banking"}`
	cancel, done := h.start(t)

	assert.Equal(t, "BASE\nRESUME: MBA in Finance, two years in retail banking", <-h.instructions)
	require.NoError(t, stop(t, cancel, done))
}

func TestSession_CandidateTurn(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	cancel, done := h.start(t)
	require.Eventually(t, func() bool { return len(h.llm.received()) == 1 }, waitFor, 5*time.Millisecond)

	h.stt.transcripts <- "I studied commerce."
	h.stt.transcripts <- "Then I worked at a cooperative bank."
	h.stt.ends <- struct{}{}

	require.Eventually(t, func() bool { return len(h.llm.received()) == 2 }, waitFor, 5*time.Millisecond)
	require.NoError(t, stop(t, cancel, done))

	assert.Equal(t, "I studied commerce. Then I worked at a cooperative bank.", h.llm.received()[1])
}

func tavusConfig() *config.Config {
	cfg := testConfig()
	cfg.Tavus = config.TavusConfig{APIKey: "key", PersonaID: "persona"}
	return cfg
}

func TestSession_AvatarSuppressesFallbackVoice(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, tavusConfig(), provider)
	cancel, done := h.start(t)

	require.Eventually(t, func() bool { return len(h.room.topic("lk-chat")) == 2 }, waitFor, 5*time.Millisecond)
	require.NoError(t, stop(t, cancel, done))

	assert.Empty(t, h.voice.said(), "fallback stays silent while the avatar speaks")
	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, avatar.Room{
		Name:  "interview-1",
		URL:   "wss://example.livekit.cloud",
		Token: "token-interview-1-tavus-avatar-agent",
	}, provider.room)
	assert.True(t, provider.stopped)
}

func TestSession_AvatarFailureKeepsFallbackVoice(t *testing.T) {
	provider := &fakeProvider{err: &avatar.APIError{StatusCode: 402, Body: "out of conversational credits"}}
	h := newHarness(t, tavusConfig(), provider)
	cancel, done := h.start(t)

	require.Eventually(t, func() bool { return len(h.voice.said()) == 1 }, waitFor, 5*time.Millisecond)
	require.NoError(t, stop(t, cancel, done))

	assert.Equal(t, []string{"Hello! I am Arjun."}, h.voice.said())
	assert.Len(t, h.room.topic("lk-chat"), 2)
}

func TestSession_AvatarLeavingRestoresFallback(t *testing.T) {
	h := newHarness(t, tavusConfig(), &fakeProvider{})
	cancel, done := h.start(t)
	require.Eventually(t, func() bool { return len(h.llm.received()) == 1 }, waitFor, 5*time.Millisecond)

	h.session.onParticipantDisconnected("candidate-7")
	h.session.mu.Lock()
	a := h.session.arbitrator
	h.session.mu.Unlock()
	assert.Equal(t, avatar.PrimaryActive, a.State())

	h.session.onParticipantDisconnected("tavus-replica-r123")
	assert.Equal(t, avatar.FallbackActive, a.State())
	assert.False(t, a.Suppressed())

	h.stt.transcripts <- "Could you repeat the question?"
	require.Eventually(t, func() bool { return len(h.voice.said()) == 1 }, waitFor, 5*time.Millisecond)
	require.NoError(t, stop(t, cancel, done))
}

func TestSession_RelaysFallbackAudio(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	cancel, done := h.start(t)

	h.voice.audio <- []byte{1, 2}
	require.Eventually(t, func() bool { return len(h.room.topic(AudioTopic)) == 1 }, waitFor, 5*time.Millisecond)
	require.NoError(t, stop(t, cancel, done))

	var msg AudioMessage
	require.NoError(t, json.Unmarshal([]byte(h.room.topic(AudioTopic)[0]), &msg))
	assert.Equal(t, AudioMessage{Type: "audio", Audio: "AQI=", Format: "mp3", SampleRate: 44100}, msg)
}

func TestSession_ServiceFactoryError(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.session.cfg.Services = func(context.Context, string) (*Services, error) {
		return nil, apperr.Configuration("ELEVENLABS_API_KEY environment variable is required")
	}

	err := h.session.run(context.Background(), h.room)

	assert.ErrorIs(t, err, apperr.ErrAgent)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.True(t, h.room.disconnected)
}

func TestSession_STTConnectError(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.stt.connectErr = errors.New("401 invalid credentials")

	err := h.session.run(context.Background(), h.room)

	assert.ErrorIs(t, err, apperr.ErrService)
	assert.Empty(t, h.llm.received())
}

func TestSession_RunJoinFailure(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.session.cfg.Rooms = &fakeRooms{joinErr: errors.New("could not establish signal connection")}

	err := h.session.Run(context.Background())

	assert.ErrorIs(t, err, apperr.ErrAgent)
	assert.Equal(t, "AGENT_ERROR_MY-INTERVIEWER", apperr.CodeOf(err))
}

func TestIsAvatarParticipant(t *testing.T) {
	assert.True(t, isAvatarParticipant("tavus-avatar-agent"))
	assert.True(t, isAvatarParticipant("Tavus-Replica"))
	assert.False(t, isAvatarParticipant("candidate-7"))
	assert.False(t, isAvatarParticipant("interview-agent"))
}
