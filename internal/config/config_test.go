package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhney/voice-interviewer/internal/apperr"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LIVEKIT_URL", "wss://example.livekit.cloud")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("ELEVENLABS_API_KEY", "el")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg := FromEnv()

	assert.Equal(t, "my-interviewer", cfg.LiveKit.AgentName)
	assert.Equal(t, "nova-2", cfg.Deepgram.Model)
	assert.True(t, cfg.Deepgram.SmartFormat)
	assert.Equal(t, "eleven_multilingual_v2", cfg.ElevenLabs.ModelID)
	assert.Equal(t, 3000, cfg.Interview.MaxResumeLength)
	assert.Equal(t, 30, cfg.Interview.CoalesceThreshold)
	assert.Equal(t, time.Second, cfg.Interview.DebounceDelay)
	assert.Equal(t, "elevenlabs", cfg.TTSProvider)
	assert.InDelta(t, 0.7, cfg.Gemini.Temperature, 0.0001)
	assert.False(t, cfg.Tavus.Configured())
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GOOGLE_GENAI_API_KEY", "genai")
	t.Setenv("TRANSCRIPT_COALESCE_THRESHOLD", "12")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("TRANSCRIPT_DEBOUNCE", "250ms")
	t.Setenv("TTS_PROVIDER", "Cartesia")
	t.Setenv("CARTESIA_API_KEY", "ca")
	t.Setenv("MAX_RESUME_LENGTH", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, "genai", cfg.Gemini.APIKey)
	assert.Equal(t, 12, cfg.Interview.CoalesceThreshold)
	assert.False(t, cfg.Deepgram.SmartFormat)
	assert.Equal(t, 250*time.Millisecond, cfg.Interview.DebounceDelay)
	assert.Equal(t, "cartesia", cfg.TTSProvider)
	assert.Equal(t, 3000, cfg.Interview.MaxResumeLength)
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DEEPGRAM_API_KEY", "")

	err := FromEnv().Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
	assert.Contains(t, err.Error(), "DEEPGRAM_API_KEY")
}

func TestValidate_UnknownTTSProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("TTS_PROVIDER", "polly")

	err := FromEnv().Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTS_PROVIDER")
}

func TestTavusConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  TavusConfig
		want bool
	}{
		{"key and persona", TavusConfig{APIKey: "k", PersonaID: "p"}, true},
		{"key and replica", TavusConfig{APIKey: "k", ReplicaID: "r"}, true},
		{"key only", TavusConfig{APIKey: "k"}, false},
		{"ids without key", TavusConfig{PersonaID: "p", ReplicaID: "r"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Configured())
		})
	}
}
