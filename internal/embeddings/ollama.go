package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultOllamaModel = "all-minilm"

// OllamaProvider calls the Ollama embeddings API.
type OllamaProvider struct {
	client *resty.Client
	model  string
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(time.Minute)

	return &OllamaProvider{client: c, model: model}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&embedRequest{Model: p.model, Prompt: text}).
		Post("/api/embeddings")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}

	var er embedResponse
	if err := json.Unmarshal(resp.Body(), &er); err != nil && resp.StatusCode() == http.StatusOK {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama embeddings status %d: %s", resp.StatusCode(), er.Error)
	}
	if er.Error != "" {
		return nil, fmt.Errorf("ollama embeddings error: %s", er.Error)
	}
	if len(er.Embedding) == 0 {
		return nil, errors.New("ollama returned an empty embedding")
	}

	vec := make([]float32, len(er.Embedding))
	for i, v := range er.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
