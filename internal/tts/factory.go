package tts

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/config"
)

// FromConfig builds the fallback synthesizer selected by TTS_PROVIDER.
func FromConfig(cfg *config.Config, log *zap.Logger) (Synthesizer, error) {
	switch cfg.TTSProvider {
	case "", "elevenlabs":
		if cfg.ElevenLabs.APIKey == "" {
			return nil, apperr.Configuration("ELEVENLABS_API_KEY environment variable is required")
		}
		return NewElevenLabsClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.ModelID, log), nil
	case "cartesia":
		if cfg.Cartesia.APIKey == "" {
			return nil, apperr.Configuration("CARTESIA_API_KEY environment variable is required")
		}
		return NewCartesiaClient(cfg.Cartesia.APIKey, cfg.Cartesia.VoiceID, cfg.Cartesia.ModelID, log), nil
	default:
		return nil, apperr.Configuration("unknown TTS provider " + strconv.Quote(cfg.TTSProvider))
	}
}
