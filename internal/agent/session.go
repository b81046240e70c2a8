// Package agent runs the interviewer inside a LiveKit room: it listens to
// the candidate, generates replies, mirrors them as live transcripts and
// speaks them through the avatar or the fallback voice.
package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/avatar"
	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/interview"
	"github.com/adhney/voice-interviewer/internal/livekit"
	"github.com/adhney/voice-interviewer/internal/llm"
	"github.com/adhney/voice-interviewer/internal/logging"
	"github.com/adhney/voice-interviewer/internal/metrics"
	"github.com/adhney/voice-interviewer/internal/transcript"
	"github.com/adhney/voice-interviewer/internal/tts"
)

const (
	// AudioTopic carries fallback voice audio to the frontend.
	AudioTopic = "audio"

	avatarIdentity = "tavus-avatar-agent"
	avatarName     = "Tavus Avatar"
	stopTimeout    = 5 * time.Second
)

// AudioMessage sent via data channel
type AudioMessage struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"` // base64 encoded
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate"`
}

type SessionConfig struct {
	RoomName string
	Config   *config.Config
	Profile  *interview.Profile
	Rooms    RoomService
	Services ServiceFactory
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	// AvatarFactory overrides the Tavus client; nil uses it.
	AvatarFactory avatar.ProviderFactory
}

// Session is one interview in one room.
type Session struct {
	id  string
	cfg SessionConfig
	log *zap.Logger

	mu         sync.Mutex
	stt        SpeechToText
	arbitrator *avatar.Arbitrator
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Profile == nil {
		cfg.Profile = interview.DefaultProfile()
	}
	id := uuid.NewString()
	return &Session{
		id:  id,
		cfg: cfg,
		log: logging.OrNop(cfg.Log).With(
			zap.String("component", "agent"),
			zap.String("agent", cfg.Config.LiveKit.AgentName),
			zap.String("room", cfg.RoomName),
			zap.String("session", id)),
	}
}

func (s *Session) ID() string { return s.id }

// Run joins the room and runs the interview until the room disconnects or
// ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lkRoom, err := s.cfg.Rooms.JoinRoomAsAgent(ctx, s.cfg.RoomName, s.cfg.Config.LiveKit.AgentIdentity, s.callbacks(ctx, cancel))
	if err != nil {
		return apperr.Agent(s.cfg.Config.LiveKit.AgentName, err)
	}
	return s.run(ctx, livekit.NewRoomAdapter(lkRoom))
}

func (s *Session) run(ctx context.Context, room Room) error {
	defer room.Disconnect()

	s.cfg.Metrics.SessionStarted()
	defer s.cfg.Metrics.SessionEnded()

	s.log.Info("session starting")

	resume, hasResume := interview.ResumeFromMetadata(room.Metadata())
	if hasResume {
		s.log.Info("resume detected",
			zap.Int("resume_length", len([]rune(resume))),
			zap.String("preview", logging.Preview(resume, 200)))
	} else {
		s.log.Info("no resume metadata found in room")
	}
	instructions := s.cfg.Profile.BuildInstructions(resume, s.cfg.Config.Interview.MaxResumeLength)

	svc, err := s.cfg.Services(ctx, instructions)
	if err != nil {
		return apperr.Agent(s.cfg.Config.LiveKit.AgentName, err)
	}
	defer svc.close()

	voice := tts.NewConditional(svc.Voice, s.log)
	arbitrator := avatar.NewArbitrator(s.cfg.Config.Tavus, voice, avatar.Options{
		Factory: s.cfg.AvatarFactory,
		Metrics: s.cfg.Metrics,
		Log:     s.log,
	})
	publisher := transcript.NewPublisher(room, s.log)

	if err := svc.STT.Connect(ctx); err != nil {
		return apperr.Service("deepgram", err)
	}
	s.mu.Lock()
	s.stt = svc.STT
	s.arbitrator = arbitrator
	s.mu.Unlock()

	go s.relayAudio(ctx, room, voice)

	if s.cfg.Config.Tavus.Configured() {
		s.startAvatar(ctx, room, arbitrator)
	} else {
		s.log.Info("avatar not configured, fallback voice active", zap.String("voice", voice.Name()))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := arbitrator.Stop(stopCtx); err != nil {
			s.log.Warn("avatar stop failed", zap.Error(err))
		}
	}()

	t := &turn{
		llm:       svc.LLM,
		voice:     voice,
		publisher: publisher,
		threshold: s.cfg.Config.Interview.CoalesceThreshold,
		metrics:   s.cfg.Metrics,
		log:       s.log,
	}

	s.log.Info("generating greeting")
	t.respond(ctx, s.cfg.Profile.Greeting)

	delay := s.cfg.Config.Interview.DebounceDelay
	turns := make(chan string)
	go detectTurns(ctx, svc.STT.Transcripts(), svc.STT.UtteranceEnds(), delay, delay/2, turns)

	s.log.Info("interview in progress")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session finished")
			return nil
		case utterance := <-turns:
			s.log.Info("candidate turn", zap.String("utterance", logging.Preview(utterance, 120)))
			t.respond(ctx, utterance)
		}
	}
}

func (s *Session) startAvatar(ctx context.Context, room Room, arbitrator *avatar.Arbitrator) {
	token, err := s.cfg.Rooms.GenerateToken(room.Name(), avatarIdentity, avatarName, false)
	if err != nil {
		s.log.Error("avatar token failed, fallback voice active", zap.Error(err))
		return
	}
	_, err = arbitrator.StartPrimary(ctx,
		avatar.Session{ID: s.id, Identity: s.cfg.Config.LiveKit.AgentIdentity},
		avatar.Room{Name: room.Name(), URL: s.cfg.Rooms.URL(), Token: token})
	if err != nil {
		// Already logged and classified by the arbitrator.
		s.log.Info("fallback voice active")
	}
}

func (s *Session) callbacks(ctx context.Context, cancel context.CancelFunc) *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				s.onTrackSubscribed(ctx, track, pub, rp)
			},
			OnTrackUnsubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				s.log.Debug("track unsubscribed",
					zap.String("participant", rp.Identity()),
					zap.String("source", livekit.TrackSourceName(pub.Source())))
			},
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			s.log.Info("participant connected",
				zap.String("participant", rp.Identity()),
				zap.Bool("avatar", isAvatarParticipant(rp.Identity())))
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			s.onParticipantDisconnected(rp.Identity())
		},
		OnDisconnected: func() {
			s.log.Info("room disconnected")
			cancel()
		},
	}
}

func (s *Session) onParticipantDisconnected(identity string) {
	s.log.Info("participant disconnected", zap.String("participant", identity))
	if !isAvatarParticipant(identity) {
		return
	}
	s.mu.Lock()
	a := s.arbitrator
	s.mu.Unlock()
	if a != nil && a.State() == avatar.PrimaryActive {
		s.log.Warn("avatar left the room, switching to fallback voice")
		a.SetInactive()
	}
}

func (s *Session) onTrackSubscribed(ctx context.Context, track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	s.log.Info("track subscribed",
		zap.String("participant", rp.Identity()),
		zap.String("source", livekit.TrackSourceName(pub.Source())),
		zap.String("codec", track.Codec().MimeType))

	if track.Kind() != webrtc.RTPCodecTypeAudio || isAvatarParticipant(rp.Identity()) {
		return
	}
	go s.processAudioTrack(ctx, track, rp.Identity())
}

// processAudioTrack reads audio data from a track and sends to STT
func (s *Session) processAudioTrack(ctx context.Context, track *webrtc.TrackRemote, identity string) {
	log := s.log.With(zap.String("participant", identity))
	red := strings.EqualFold(track.Codec().MimeType, "audio/red")

	packets := 0
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug("audio track ended", zap.Error(err), zap.Int("packets", packets))
			return
		}
		packets++

		payload := pkt.Payload
		// Primary Opus block follows the RED header.
		if red && len(payload) > 4 {
			payload = payload[4:]
		}
		if len(payload) == 0 {
			continue
		}

		s.mu.Lock()
		sttClient := s.stt
		s.mu.Unlock()
		if sttClient == nil {
			continue
		}
		if err := sttClient.SendAudio(payload); err != nil {
			log.Warn("stt send failed", zap.Error(err))
		}
	}
}

// relayAudio forwards fallback voice audio to the browser via data channel.
// Audio produced while the fallback is suppressed is dropped.
func (s *Session) relayAudio(ctx context.Context, room Room, voice *tts.Conditional) {
	vc := voice.VoiceConfig()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-voice.Audio():
			if !ok {
				return
			}
			if len(chunk) == 0 || !voice.Active() {
				continue
			}
			data, err := json.Marshal(AudioMessage{
				Type:       "audio",
				Audio:      base64.StdEncoding.EncodeToString(chunk),
				Format:     vc.Format,
				SampleRate: vc.SampleRate,
			})
			if err != nil {
				s.log.Warn("marshal audio message failed", zap.Error(err))
				continue
			}
			if err := room.PublishData(data, AudioTopic, true); err != nil {
				s.log.Warn("audio packet not sent", zap.Error(err))
			}
		}
	}
}

func isAvatarParticipant(identity string) bool {
	return strings.Contains(strings.ToLower(identity), "tavus")
}

// turn produces one interviewer reply.
type turn struct {
	llm       Responder
	voice     *tts.Conditional
	publisher *transcript.Publisher
	threshold int
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// respond streams the reply to prompt, mirroring it to the transcript topic
// as it arrives, and speaks the full reply with the fallback voice when the
// avatar is not active.
func (t *turn) respond(ctx context.Context, prompt string) {
	stream, err := t.llm.Chat(ctx, prompt)
	if err != nil {
		t.log.Error("llm request failed", zap.Error(err))
		return
	}

	c := transcript.NewCoalescer(stream, t.publisher, transcript.Options{
		Threshold: t.threshold,
		Metrics:   t.metrics,
		Log:       t.log,
	})
	reply, err := llm.Collect(ctx, c)
	if err != nil {
		t.log.Error("llm stream failed", zap.Error(err), zap.Int("partial_length", len([]rune(reply))))
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		t.log.Warn("empty reply")
		return
	}
	t.log.Info("agent reply", zap.String("stream_id", c.StreamID()), zap.String("text", logging.Preview(reply, 120)))

	if !t.voice.Active() {
		t.log.Debug("avatar is speaking, fallback voice suppressed")
		return
	}
	if err := t.voice.Synthesize(ctx, reply); err != nil {
		t.log.Error("fallback synthesis failed", zap.Error(err))
	}
}
