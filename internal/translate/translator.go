// Package translate detects the language of user text and translates it to
// and from English through an external provider, with a bounded result cache.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/metrics"
)

var (
	ErrTranslationFailed   = errors.New("translation failed")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

type UnsupportedLanguageError struct{ Code string }

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Code)
}

func (e *UnsupportedLanguageError) Unwrap() error { return ErrUnsupportedLanguage }

// Provider performs a single translation call against a remote service.
type Provider interface {
	Translate(ctx context.Context, text string, from, to Language) (string, error)
}

// Outcome tells callers whether the text they got back is really in the
// language they asked for.
type Outcome string

const (
	Unchanged   Outcome = "unchanged"
	Translated  Outcome = "translated"
	Unavailable Outcome = "unavailable"
)

// Result is the outcome of a best-effort translation. When Outcome is
// Unavailable, Text is the input returned untouched.
type Result struct {
	Text     string
	Language Language
	Outcome  Outcome
}

// Stats is the translation cache summary reported by the cache-stats endpoint.
type Stats struct {
	Size    int    `json:"size"`
	MaxSize int    `json:"maxSize"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	HitRate string `json:"hitRate"`
}

type cacheKey struct {
	text     string
	from, to Language
}

// Translator caches provider results. Entries are never refreshed on read,
// so eviction happens strictly in insertion order.
type Translator struct {
	provider Provider
	log      zerolog.Logger

	mu      sync.Mutex
	cache   *simplelru.LRU[cacheKey, string]
	maxSize int
	hits    uint64
	misses  uint64
}

func NewTranslator(p Provider, maxSize int, log zerolog.Logger) (*Translator, error) {
	cache, err := simplelru.NewLRU[cacheKey, string](maxSize, nil)
	if err != nil {
		return nil, fmt.Errorf("translation cache: %w", err)
	}
	return &Translator{provider: p, log: log, cache: cache, maxSize: maxSize}, nil
}

// Text translates text from one language to another, consulting the cache
// first. Provider errors are returned wrapped in ErrTranslationFailed.
func (t *Translator) Text(ctx context.Context, text string, from, to Language) (string, error) {
	if from == to {
		return text, nil
	}
	key := cacheKey{text: text, from: from, to: to}

	t.mu.Lock()
	if v, ok := t.cache.Peek(key); ok {
		t.hits++
		t.mu.Unlock()
		return v, nil
	}
	t.misses++
	t.mu.Unlock()

	out, err := t.provider.Translate(ctx, text, from, to)
	if err != nil {
		return "", fmt.Errorf("%w: %s to %s: %v", ErrTranslationFailed, from, to, err)
	}

	t.mu.Lock()
	if !t.cache.Contains(key) {
		t.cache.Add(key, out)
	}
	t.mu.Unlock()
	return out, nil
}

// ToEnglish translates user input to English. With an explicit language the
// detector is skipped. On failure the original text comes back labelled as
// English so the rest of the pipeline proceeds untranslated.
func (t *Translator) ToEnglish(ctx context.Context, text string, explicit Language) Result {
	lang := explicit
	if lang == "" || lang == Auto {
		lang = DetectLanguage(text)
	}
	if lang == English {
		return t.record(Result{Text: text, Language: English, Outcome: Unchanged})
	}

	out, err := t.Text(ctx, text, lang, English)
	if err != nil {
		t.log.Warn().Err(err).Str("from", string(lang)).Msg("translation to English unavailable, using original text")
		return t.record(Result{Text: text, Language: English, Outcome: Unavailable})
	}
	return t.record(Result{Text: out, Language: lang, Outcome: Translated})
}

// FromEnglish translates an English answer into target. On failure the
// English text is returned with Outcome Unavailable.
func (t *Translator) FromEnglish(ctx context.Context, text string, target Language) Result {
	if target == English || target == "" || target == Auto {
		return t.record(Result{Text: text, Language: English, Outcome: Unchanged})
	}

	out, err := t.Text(ctx, text, English, target)
	if err != nil {
		t.log.Warn().Err(err).Str("to", string(target)).Msg("translation from English unavailable, returning English")
		return t.record(Result{Text: text, Language: English, Outcome: Unavailable})
	}
	return t.record(Result{Text: out, Language: target, Outcome: Translated})
}

func (t *Translator) record(r Result) Result {
	metrics.Translations.WithLabelValues(string(r.Outcome)).Inc()
	return r
}

func (t *Translator) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	rate := "0%"
	if total := t.hits + t.misses; total > 0 {
		rate = fmt.Sprintf("%.2f%%", float64(t.hits)/float64(total)*100)
	}
	return Stats{
		Size:    t.cache.Len(),
		MaxSize: t.maxSize,
		Hits:    t.hits,
		Misses:  t.misses,
		HitRate: rate,
	}
}

// Clear drops every cached translation and resets the hit/miss counters.
func (t *Translator) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.cache.Len()
	t.cache.Purge()
	t.hits, t.misses = 0, 0
	t.log.Info().Int("entries", n).Msg("translation cache cleared")
	return n
}
