package vectorindex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const pineconeAPIVersion = "2024-07"

// Pinecone talks to a serverless index through its data-plane REST API.
// host is the index host shown in the Pinecone console.
type Pinecone struct {
	client *resty.Client
}

func NewPinecone(host, apiKey string) *Pinecone {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	c := resty.New().
		SetBaseURL(host).
		SetHeader("Api-Key", apiKey).
		SetHeader("X-Pinecone-API-Version", pineconeAPIVersion).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &Pinecone{client: c}
}

type pineconeQuery struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type pineconeQueryResponse struct {
	Matches []pineconeMatch `json:"matches"`
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

func (p *Pinecone) Search(ctx context.Context, vec []float32, topK int) ([]RetrievedChunk, error) {
	var out pineconeQueryResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&pineconeQuery{Vector: vec, TopK: topK, IncludeMetadata: true}).
		SetResult(&out).
		Post("/query")
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone query: %v", ErrRetrieval, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: pinecone query status %d: %s", ErrRetrieval, resp.StatusCode(), resp.String())
	}

	chunks := make([]RetrievedChunk, 0, len(out.Matches))
	for _, m := range out.Matches {
		// Older seeds stored the text under pageContent.
		text := metaString(m.Metadata, "pageContent")
		if text == "" {
			text = metaString(m.Metadata, "text")
		}
		chunks = append(chunks, RetrievedChunk{
			Text:     text,
			Score:    m.Score,
			Category: categoryOr(metaString(m.Metadata, "category")),
		})
	}
	return chunks, nil
}

func (p *Pinecone) Upsert(ctx context.Context, records []Record) error {
	vectors := make([]pineconeVector, 0, len(records))
	for _, r := range records {
		vectors = append(vectors, pineconeVector{ID: r.ID, Values: r.Vector, Metadata: r.metadata()})
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"vectors": vectors}).
		Post("/vectors/upsert")
	if err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("pinecone upsert status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
