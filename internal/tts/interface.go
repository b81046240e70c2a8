package tts

import "context"

// VoiceConfig describes the audio a synthesizer produces.
type VoiceConfig struct {
	Provider   string
	VoiceID    string
	ModelID    string
	Format     string
	SampleRate int
}

// Synthesizer is the fallback voice provider as the agent session uses it.
type Synthesizer interface {
	// Name identifies the provider in logs.
	Name() string

	// Synthesize starts speaking text. Audio arrives on Audio().
	Synthesize(ctx context.Context, text string) error

	// Cancel stops any ongoing speech generation.
	Cancel()

	// VoiceConfig reports voice and output format.
	VoiceConfig() VoiceConfig

	// Audio returns the channel where audio chunks are sent.
	Audio() <-chan []byte

	// Close cleans up resources.
	Close()
}
