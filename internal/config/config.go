package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/adhney/voice-interviewer/internal/apperr"
)

type LiveKitConfig struct {
	URL           string
	APIKey        string
	APISecret     string
	AgentName     string
	AgentIdentity string
}

type DeepgramConfig struct {
	APIKey         string
	Model          string
	Language       string
	SmartFormat    bool
	InterimResults bool
	UtteranceEndMs string
}

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
}

type CartesiaConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
}

// TavusConfig configures the avatar provider. All fields are optional.
type TavusConfig struct {
	APIKey    string
	PersonaID string
	ReplicaID string
	BaseURL   string
}

// Configured reports whether an avatar start can be attempted.
func (t TavusConfig) Configured() bool {
	return t.APIKey != "" && (t.PersonaID != "" || t.ReplicaID != "")
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

type ServerConfig struct {
	Port        string
	StaticDir   string
	FrontendURL string
}

type InterviewConfig struct {
	MaxResumeLength   int
	CoalesceThreshold int
	ProfilePath       string
	DebounceDelay     time.Duration
}

type Config struct {
	LiveKit    LiveKitConfig
	Deepgram   DeepgramConfig
	ElevenLabs ElevenLabsConfig
	Cartesia   CartesiaConfig
	Tavus      TavusConfig
	Gemini     GeminiConfig
	Server     ServerConfig
	Interview  InterviewConfig

	TTSProvider string
	LogLevel    string
	LogFormat   string

	// EnvFiles lists the .env files LoadConfig read, in order.
	EnvFiles []string
}

// LoadConfig reads .env files when present and builds the config from the
// environment. Variables already set in the environment win over file values.
// It does not validate; call Validate before connecting anywhere.
func LoadConfig() (*Config, error) {
	var loaded []string
	for _, f := range []string{".env", ".env.local"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, apperr.Configuration("failed to read " + f + ": " + err.Error())
			}
			loaded = append(loaded, f)
		}
	}

	cfg := FromEnv()
	cfg.EnvFiles = loaded
	return cfg, nil
}

// FromEnv builds the config from the process environment only.
func FromEnv() *Config {
	return &Config{
		LiveKit: LiveKitConfig{
			URL:           getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:        getEnv("LIVEKIT_API_KEY", ""),
			APISecret:     getEnv("LIVEKIT_API_SECRET", ""),
			AgentName:     getEnv("LIVEKIT_AGENT_NAME", "my-interviewer"),
			AgentIdentity: getEnv("LIVEKIT_AGENT_IDENTITY", "interview-agent"),
		},
		Deepgram: DeepgramConfig{
			APIKey:         getEnv("DEEPGRAM_API_KEY", ""),
			Model:          getEnv("DEEPGRAM_MODEL", "nova-2"),
			Language:       getEnv("DEEPGRAM_LANGUAGE", "en"),
			SmartFormat:    getBool("DEEPGRAM_SMART_FORMAT", true),
			InterimResults: getBool("DEEPGRAM_INTERIM_RESULTS", true),
			UtteranceEndMs: getEnv("DEEPGRAM_UTTERANCE_END_MS", "1200"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  getEnv("ELEVENLABS_API_KEY", ""),
			VoiceID: getEnv("ELEVENLABS_VOICE_ID", "LQMC3j3fn1LA9ZhI4o8g"),
			ModelID: getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		},
		Cartesia: CartesiaConfig{
			APIKey:  getEnv("CARTESIA_API_KEY", ""),
			VoiceID: getEnv("CARTESIA_VOICE_ID", "f786b574-daa5-4673-aa0c-cbe3e8534c02"),
			ModelID: getEnv("CARTESIA_MODEL", "sonic-english"),
		},
		Tavus: TavusConfig{
			APIKey:    getEnv("TAVUS_API_KEY", ""),
			PersonaID: getEnv("TAVUS_PERSONA_ID", ""),
			ReplicaID: getEnv("TAVUS_REPLICA_ID", ""),
			BaseURL:   getEnv("TAVUS_API_URL", "https://tavusapi.com"),
		},
		Gemini: GeminiConfig{
			APIKey:      firstEnv("GOOGLE_API_KEY", "GOOGLE_GENAI_API_KEY", "GEMINI_API_KEY"),
			Model:       getEnv("GOOGLE_LLM_MODEL", "gemini-2.0-flash"),
			Temperature: float32(getFloat("GOOGLE_LLM_TEMPERATURE", 0.7)),
		},
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			StaticDir:   getEnv("STATIC_DIR", "./web/frontend/dist"),
			FrontendURL: firstEnv("NEXT_PUBLIC_APP_URL", "FRONTEND_URL"),
		},
		Interview: InterviewConfig{
			MaxResumeLength:   getInt("MAX_RESUME_LENGTH", 3000),
			CoalesceThreshold: getInt("TRANSCRIPT_COALESCE_THRESHOLD", 30),
			ProfilePath:       getEnv("INTERVIEW_PROFILE", ""),
			DebounceDelay:     getDuration("TRANSCRIPT_DEBOUNCE", time.Second),
		},
		TTSProvider: strings.ToLower(getEnv("TTS_PROVIDER", "elevenlabs")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks the settings an agent session cannot run without.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"LIVEKIT_URL", c.LiveKit.URL},
		{"LIVEKIT_API_KEY", c.LiveKit.APIKey},
		{"LIVEKIT_API_SECRET", c.LiveKit.APISecret},
		{"DEEPGRAM_API_KEY", c.Deepgram.APIKey},
		{"GOOGLE_API_KEY or GOOGLE_GENAI_API_KEY", c.Gemini.APIKey},
	}
	switch c.TTSProvider {
	case "elevenlabs":
		required = append(required, struct{ name, value string }{"ELEVENLABS_API_KEY", c.ElevenLabs.APIKey})
	case "cartesia":
		required = append(required, struct{ name, value string }{"CARTESIA_API_KEY", c.Cartesia.APIKey})
	default:
		return apperr.Configuration("TTS_PROVIDER must be elevenlabs or cartesia, got " + strconv.Quote(c.TTSProvider))
	}

	for _, r := range required {
		if r.value == "" {
			return apperr.Configuration(r.name + " environment variable is required")
		}
	}
	if c.Interview.CoalesceThreshold <= 0 {
		return apperr.Configuration("TRANSCRIPT_COALESCE_THRESHOLD must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
