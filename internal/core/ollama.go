package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/config"
)

// OllamaGenerator calls a local Ollama server's chat API.
type OllamaGenerator struct {
	client *resty.Client
	params config.Generation
	log    zerolog.Logger
}

// No client-level timeout: it would also cut off long streams. Each call
// is bounded by params.Timeout through its context instead.
func NewOllamaGenerator(baseURL string, params config.Generation, log zerolog.Logger) *OllamaGenerator {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	return &OllamaGenerator{client: c, params: params, log: log}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopK        int     `json:"top_k"`
	TopP        float32 `json:"top_p"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`
}

func (g *OllamaGenerator) request(prompt string, stream bool) *ollamaChatRequest {
	return &ollamaChatRequest{
		Model:    g.params.Model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
		Options: ollamaOptions{
			Temperature: g.params.Temperature,
			NumPredict:  g.params.NumPredict,
			TopK:        g.params.TopK,
			TopP:        g.params.TopP,
		},
	}
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.params)
	defer cancel()

	var out ollamaChatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(g.request(prompt, false)).
		SetResult(&out).
		SetError(&out).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("ollama chat status %d: %s", resp.StatusCode(), out.Error)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", out.Error)
	}
	if out.Message.Content == "" {
		return "", errEmptyCompletion
	}
	return out.Message.Content, nil
}

// GenerateStream reads Ollama's newline-delimited JSON stream.
func (g *OllamaGenerator) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	ctx, cancel := withTimeout(ctx, g.params)
	defer cancel()

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(g.request(prompt, true)).
		SetDoNotParseResponse(true).
		Post("/api/chat")
	if err != nil {
		return fmt.Errorf("ollama stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		var out ollamaChatResponse
		_ = json.NewDecoder(body).Decode(&out)
		return fmt.Errorf("ollama stream status %d: %s", resp.StatusCode(), out.Error)
	}

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama stream: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			if err := onToken(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return errors.New("ollama stream ended without done marker")
}
