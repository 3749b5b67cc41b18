package fir

import (
	"context"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/metrics"
	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
)

// Result is what a generate request produces. Filename is empty for
// previews.
type Result struct {
	Details  *Details
	Filename string
}

// Service runs the FIR flows on top of the conversation history.
type Service struct {
	history   *store.HistoryStore
	extractor *Extractor
	renderer  *Renderer
	log       zerolog.Logger
}

func NewService(h *store.HistoryStore, e *Extractor, r *Renderer, log zerolog.Logger) *Service {
	return &Service{history: h, extractor: e, renderer: r, log: log}
}

func (s *Service) Renderer() *Renderer { return s.renderer }

// Generate extracts details from the user's conversation and, unless
// previewOnly, renders them to a PDF.
func (s *Service) Generate(ctx context.Context, userID string, lang translate.Language, previewOnly bool) (*Result, error) {
	userID = orDefaultUser(userID)
	lang = reportLanguage(lang)

	details, err := s.extractor.Extract(ctx, s.history.Get(userID), lang)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user", userID).Int("resolved", details.Resolved()).Bool("preview", previewOnly).Msg("FIR details extracted")

	if previewOnly {
		metrics.FIRGenerated.WithLabelValues("preview").Inc()
		return &Result{Details: details}, nil
	}
	name, err := s.renderer.Render(details, userID, lang)
	if err != nil {
		return nil, err
	}
	metrics.FIRGenerated.WithLabelValues("pdf").Inc()
	return &Result{Details: details, Filename: name}, nil
}

// RenderDetails renders user-reviewed details without touching history.
func (s *Service) RenderDetails(userID string, lang translate.Language, d *Details) (string, error) {
	if d == nil {
		return "", ErrMissingDetails
	}
	name, err := s.renderer.Render(d, orDefaultUser(userID), reportLanguage(lang))
	if err != nil {
		return "", err
	}
	metrics.FIRGenerated.WithLabelValues("pdf").Inc()
	return name, nil
}

func orDefaultUser(userID string) string {
	if userID == "" {
		return store.DefaultUserID
	}
	return userID
}

// reportLanguage maps auto and unknown codes to English.
func reportLanguage(l translate.Language) translate.Language {
	if l.Supported() {
		return l
	}
	return translate.English
}
