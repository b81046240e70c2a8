package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/llm"
	"github.com/adhney/voice-interviewer/internal/stt"
	"github.com/adhney/voice-interviewer/internal/tts"
)

// NewServiceFactory wires Deepgram, Gemini and the configured fallback voice.
func NewServiceFactory(cfg *config.Config, keywords []string, log *zap.Logger) ServiceFactory {
	return func(ctx context.Context, instructions string) (*Services, error) {
		voice, err := tts.FromConfig(cfg, log)
		if err != nil {
			return nil, err
		}

		llmClient, err := llm.NewGeminiClient(ctx, llm.GeminiOptions{
			APIKey:       cfg.Gemini.APIKey,
			Model:        cfg.Gemini.Model,
			Temperature:  cfg.Gemini.Temperature,
			Instructions: instructions,
		}, log)
		if err != nil {
			voice.Close()
			return nil, apperr.Service("gemini", err)
		}

		sttClient := stt.NewDeepgramClient(stt.Options{
			APIKey:         cfg.Deepgram.APIKey,
			Model:          cfg.Deepgram.Model,
			Language:       cfg.Deepgram.Language,
			SmartFormat:    cfg.Deepgram.SmartFormat,
			InterimResults: cfg.Deepgram.InterimResults,
			UtteranceEndMs: cfg.Deepgram.UtteranceEndMs,
			Keywords:       keywords,
		}, log)

		return &Services{STT: sttClient, LLM: llmClient, Voice: voice}, nil
	}
}
