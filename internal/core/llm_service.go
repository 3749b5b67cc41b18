package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"legallens.org/assistant/internal/config"
)

// Generator is a language model that answers a single prompt, either in
// one piece or token by token.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateStream calls onToken for every token in generation order.
	// Returning an error from onToken aborts the stream with that error.
	GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error
}

const defaultGeminiModel = "gemini-1.5-flash-latest"

var errEmptyCompletion = errors.New("model returned an empty completion")

// GeminiGenerator runs prompts against the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	params config.Generation
	log    zerolog.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey string, params config.Generation, log zerolog.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if !strings.HasPrefix(params.Model, "gemini") {
		params.Model = defaultGeminiModel
	}
	return &GeminiGenerator{client: client, params: params, log: log}, nil
}

func (g *GeminiGenerator) Close() {
	if g.client == nil {
		return
	}
	if err := g.client.Close(); err != nil {
		g.log.Warn().Err(err).Msg("error closing GenAI client")
	}
}

func (g *GeminiGenerator) model() *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.params.Model)
	m.SetTemperature(g.params.Temperature)
	m.SetTopK(int32(g.params.TopK))
	m.SetTopP(g.params.TopP)
	m.SetMaxOutputTokens(int32(g.params.NumPredict))
	return m
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.params)
	defer cancel()

	resp, err := g.model().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var out strings.Builder
	appendText(&out, resp)
	if out.Len() == 0 {
		return "", errEmptyCompletion
	}
	return out.String(), nil
}

func (g *GeminiGenerator) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	ctx, cancel := withTimeout(ctx, g.params)
	defer cancel()

	iter := g.model().GenerateContentStream(ctx, genai.Text(prompt))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		var chunk strings.Builder
		appendText(&chunk, resp)
		if chunk.Len() == 0 {
			continue
		}
		if err := onToken(chunk.String()); err != nil {
			return err
		}
	}
}

func appendText(b *strings.Builder, resp *genai.GenerateContentResponse) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
}

func withTimeout(ctx context.Context, params config.Generation) (context.Context, context.CancelFunc) {
	if params.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, params.Timeout)
}
