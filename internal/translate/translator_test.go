package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeProvider) Translate(_ context.Context, text string, from, to Language) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("provider down")
	}
	return fmt.Sprintf("[%s->%s] %s", from, to, text), nil
}

func newTestTranslator(t *testing.T, p Provider, size int) *Translator {
	t.Helper()
	tr, err := NewTranslator(p, size, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want Language
	}{
		{"What is the POSH Act?", English},
		{"", English},
		{"कार्यस्थल पर उत्पीड़न", Hindi},
		{"माझ्या कार्यालयात छळ झाला", Hindi}, // Marathi shares the Devanagari range
		{"பணியிடத்தில் துன்புறுத்தல்", Tamil},
		{"కార్యాలయంలో వేధింపులు", Telugu},
		{"কর্মক্ষেত্রে হয়রানি", Bengali},
		{"કાર્યસ્થળ પર સતામણી", Gujarati},
		{"ಕೆಲಸದ ಸ್ಥಳದಲ್ಲಿ ಕಿರುಕುಳ", Kannada},
		{"ജോലിസ്ഥലത്ത് പീഡനം", Malayalam},
		{"ਕੰਮ ਵਾਲੀ ਥਾਂ ਤੇ ਪਰੇਸ਼ਾਨੀ", Punjabi},
		{"POSH Act क्या है?", Hindi},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestDetectLanguage_DevanagariIsAlwaysHindi(t *testing.T) {
	for r := rune(0x0900); r <= 0x097F; r++ {
		assert.Equal(t, Hindi, DetectLanguage(string(r)), "rune %U", r)
	}
}

func TestParseLanguage(t *testing.T) {
	l, err := ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, English, l)

	l, err = ParseLanguage("AUTO")
	require.NoError(t, err)
	assert.Equal(t, Auto, l)

	l, err = ParseLanguage("mr")
	require.NoError(t, err)
	assert.Equal(t, Marathi, l)
	assert.Equal(t, "Marathi", l.Name())

	_, err = ParseLanguage("fr")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Len(t, Languages(), 10)
}

func TestToEnglish_EnglishIsIdentity(t *testing.T) {
	p := &fakeProvider{}
	tr := newTestTranslator(t, p, 10)

	res := tr.ToEnglish(context.Background(), "What is POSH?", English)
	assert.Equal(t, Result{Text: "What is POSH?", Language: English, Outcome: Unchanged}, res)

	res = tr.ToEnglish(context.Background(), "What is POSH?", Auto)
	assert.Equal(t, English, res.Language)
	assert.Equal(t, 0, p.calls)
}

func TestToEnglish_DetectsAndTranslates(t *testing.T) {
	tr := newTestTranslator(t, &fakeProvider{}, 10)

	res := tr.ToEnglish(context.Background(), "नमस्ते", Auto)
	assert.Equal(t, Hindi, res.Language)
	assert.Equal(t, Translated, res.Outcome)
	assert.Equal(t, "[hi->en] नमस्ते", res.Text)
}

func TestToEnglish_ExplicitMarathi(t *testing.T) {
	tr := newTestTranslator(t, &fakeProvider{}, 10)

	res := tr.ToEnglish(context.Background(), "नमस्कार", Marathi)
	assert.Equal(t, Marathi, res.Language)
	assert.Equal(t, "[mr->en] नमस्कार", res.Text)
}

func TestToEnglish_FailureFallsBackToOriginal(t *testing.T) {
	tr := newTestTranslator(t, &fakeProvider{fail: true}, 10)

	res := tr.ToEnglish(context.Background(), "नमस्ते", Auto)
	assert.Equal(t, Result{Text: "नमस्ते", Language: English, Outcome: Unavailable}, res)
}

func TestFromEnglish(t *testing.T) {
	tr := newTestTranslator(t, &fakeProvider{}, 10)

	assert.Equal(t, Unchanged, tr.FromEnglish(context.Background(), "hello", English).Outcome)

	res := tr.FromEnglish(context.Background(), "hello", Tamil)
	assert.Equal(t, Translated, res.Outcome)
	assert.Equal(t, "[en->ta] hello", res.Text)

	failing := newTestTranslator(t, &fakeProvider{fail: true}, 10)
	res = failing.FromEnglish(context.Background(), "hello", Tamil)
	assert.Equal(t, Unavailable, res.Outcome)
	assert.Equal(t, "hello", res.Text)
}

func TestText_ErrorWrapsSentinel(t *testing.T) {
	tr := newTestTranslator(t, &fakeProvider{fail: true}, 10)
	_, err := tr.Text(context.Background(), "x", Hindi, English)
	assert.ErrorIs(t, err, ErrTranslationFailed)
}

func TestText_CacheHitsAndStats(t *testing.T) {
	p := &fakeProvider{}
	tr := newTestTranslator(t, p, 10)
	ctx := context.Background()

	assert.Equal(t, "0%", tr.Stats().HitRate)

	_, err := tr.Text(ctx, "a", Hindi, English)
	require.NoError(t, err)
	_, err = tr.Text(ctx, "a", Hindi, English)
	require.NoError(t, err)
	_, err = tr.Text(ctx, "a", Tamil, English)
	require.NoError(t, err)
	// Identity translations never touch the cache.
	_, err = tr.Text(ctx, "a", English, English)
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls)
	stats := tr.Stats()
	assert.Equal(t, Stats{Size: 2, MaxSize: 10, Hits: 1, Misses: 2, HitRate: "33.33%"}, stats)

	assert.Equal(t, 2, tr.Clear())
	assert.Equal(t, Stats{Size: 0, MaxSize: 10, HitRate: "0%"}, tr.Stats())
}

func TestText_EvictsOldestInsertedFirst(t *testing.T) {
	p := &fakeProvider{}
	tr := newTestTranslator(t, p, 2)
	ctx := context.Background()

	for _, s := range []string{"one", "two"} {
		_, err := tr.Text(ctx, s, Hindi, English)
		require.NoError(t, err)
	}
	// Reading "one" must not protect it from eviction.
	_, err := tr.Text(ctx, "one", Hindi, English)
	require.NoError(t, err)
	_, err = tr.Text(ctx, "three", Hindi, English)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)

	_, err = tr.Text(ctx, "two", Hindi, English)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls, "two should still be cached")

	_, err = tr.Text(ctx, "one", Hindi, English)
	require.NoError(t, err)
	assert.Equal(t, 4, p.calls, "one should have been evicted")
}

func TestGoogleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "en", q.Get("target"))
		assert.Equal(t, "hi", q.Get("source"))
		assert.Equal(t, "text", q.Get("format"))
		assert.Equal(t, "नमस्ते", q.Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"translations": []map[string]string{{"translatedText": "Hello &amp; welcome"}},
			},
		})
	}))
	defer srv.Close()

	p, err := NewGoogleProvider(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithAPIKey("test-key"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	out, err := p.Translate(context.Background(), "नमस्ते", Hindi, English)
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome", out)
}

func TestDisabledProvider(t *testing.T) {
	tr := newTestTranslator(t, Disabled{}, 10)
	res := tr.FromEnglish(context.Background(), "hello", Hindi)
	assert.Equal(t, Unavailable, res.Outcome)
}
