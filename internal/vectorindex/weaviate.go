package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate stores chunks in a single class with externally supplied vectors.
type Weaviate struct {
	client    *weaviate.Client
	className string
}

// NewWeaviate connects to host (host:port, no scheme).
func NewWeaviate(host, className string) (*Weaviate, error) {
	cl, err := weaviate.NewClient(weaviate.Config{Scheme: "http", Host: host})
	if err != nil {
		return nil, err
	}
	return &Weaviate{client: cl, className: className}, nil
}

func (w *Weaviate) chunkClass() *models.Class {
	return &models.Class{
		Class:      w.className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "category", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "totalChunks", DataType: []string{"int"}},
			{Name: "indexedAt", DataType: []string{"date"}},
		},
	}
}

// EnsureSchema creates the chunk class when it does not exist yet.
func (w *Weaviate) EnsureSchema(ctx context.Context) error {
	ex, err := w.client.Schema().ClassGetter().WithClassName(w.className).Do(ctx)
	if err == nil && ex != nil {
		return nil
	}
	if err := w.client.Schema().ClassCreator().WithClass(w.chunkClass()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", w.className, err)
	}
	return nil
}

func (w *Weaviate) Search(ctx context.Context, vec []float32, topK int) ([]RetrievedChunk, error) {
	nv := w.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	resp, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithNearVector(nv).
		WithLimit(topK).
		WithFields(
			gql.Field{Name: "text"},
			gql.Field{Name: "category"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "certainty"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate search: %v", ErrRetrieval, err)
	}
	if len(resp.Errors) > 0 {
		b, _ := json.Marshal(resp.Errors)
		return nil, fmt.Errorf("%w: weaviate graphql: %s", ErrRetrieval, b)
	}

	getData, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return []RetrievedChunk{}, nil
	}
	raw, ok := getData[w.className].([]interface{})
	if !ok {
		return []RetrievedChunk{}, nil
	}

	out := make([]RetrievedChunk, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var score float64
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			switch v := add["certainty"].(type) {
			case float64:
				score = v
			case string:
				score, _ = strconv.ParseFloat(v, 64)
			}
		}
		text, _ := m["text"].(string)
		category, _ := m["category"].(string)
		out = append(out, RetrievedChunk{Text: text, Score: score, Category: categoryOr(category)})
	}
	return out, nil
}

func (w *Weaviate) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	objs := make([]*models.Object, 0, len(records))
	for _, r := range records {
		objs = append(objs, &models.Object{
			Class: w.className,
			ID:    strfmt.UUID(r.ID),
			Properties: map[string]interface{}{
				"text":        r.Text,
				"category":    r.Category,
				"source":      r.Source,
				"chunkIndex":  r.ChunkIndex,
				"totalChunks": r.TotalChunks,
				"indexedAt":   r.IndexedAt.UTC().Format(time.RFC3339),
			},
			Vector: r.Vector,
		})
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch: %w", err)
	}
	for _, o := range resp {
		if o.Result != nil && o.Result.Errors != nil && len(o.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate batch object %s: %s", o.ID, o.Result.Errors.Error[0].Message)
		}
	}
	return nil
}
