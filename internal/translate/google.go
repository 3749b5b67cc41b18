package translate

import (
	"context"
	"errors"
	"fmt"
	"html"

	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"
)

// GoogleProvider calls the Cloud Translation v2 REST API.
type GoogleProvider struct {
	svc *translatev2.Service
}

func NewGoogleProvider(ctx context.Context, opts ...option.ClientOption) (*GoogleProvider, error) {
	svc, err := translatev2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate service: %w", err)
	}
	return &GoogleProvider{svc: svc}, nil
}

func (g *GoogleProvider) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	resp, err := g.svc.Translations.List([]string{text}, string(to)).
		Source(string(from)).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(resp.Translations) == 0 {
		return "", errors.New("empty translation response")
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}

// Disabled is used when no translation backend is configured. Every call
// fails, so non-English traffic is answered untranslated.
type Disabled struct{}

func (Disabled) Translate(context.Context, string, Language, Language) (string, error) {
	return "", errors.New("translation provider disabled")
}
