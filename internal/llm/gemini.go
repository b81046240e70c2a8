package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient keeps one chat session so the interview history carries
// across turns.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	chat   *genai.ChatSession
	log    *zap.Logger
}

// GeminiOptions configures NewGeminiClient.
type GeminiOptions struct {
	APIKey       string
	Model        string
	Temperature  float32
	Instructions string
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions, log *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	if opts.Instructions != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(opts.Instructions))
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &GeminiClient{
		client: client,
		model:  model,
		chat:   model.StartChat(),
		log:    log.With(zap.String("component", "gemini"), zap.String("model", opts.Model)),
	}, nil
}

// Chat sends prompt on the running chat session and streams the reply.
func (g *GeminiClient) Chat(ctx context.Context, prompt string) (Stream, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("gemini: empty prompt")
	}
	g.log.Debug("chat request", zap.Int("prompt_length", len(prompt)))
	return &geminiStream{iter: g.chat.SendMessageStream(ctx, genai.Text(prompt)), log: g.log}, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

type geminiStream struct {
	iter    *genai.GenerateContentResponseIterator
	log     *zap.Logger
	current any
	err     error
	done    bool
}

func (s *geminiStream) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.finish(err)
		return false
	}

	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		s.finish(nil)
		return false
	}
	if err != nil {
		s.log.Warn("gemini stream error", zap.Error(err))
		s.finish(fmt.Errorf("gemini stream: %w", err))
		return false
	}

	s.current = Chunk{Text: responseText(resp)}
	return true
}

func (s *geminiStream) finish(err error) {
	s.done = true
	s.current = nil
	s.err = err
}

func (s *geminiStream) Fragment() any { return s.current }
func (s *geminiStream) Err() error    { return s.err }

func (s *geminiStream) Close() error {
	if !s.done {
		s.finish(nil)
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
