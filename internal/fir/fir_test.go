package fir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
)

type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

// tagTranslator marks translated text with the target code.
type tagTranslator struct{}

func (tagTranslator) ToEnglish(_ context.Context, text string, _ translate.Language) translate.Result {
	return translate.Result{Text: text, Language: translate.English, Outcome: translate.Unchanged}
}

func (tagTranslator) FromEnglish(_ context.Context, text string, target translate.Language) translate.Result {
	return translate.Result{Text: "[" + string(target) + "]" + text, Language: target, Outcome: translate.Translated}
}

var conversation = []store.ChatMessage{
	{Role: store.RoleUser, Text: "My manager Ravi made comments about my appearance."},
	{Role: store.RoleAssistant, Text: "That may be harassment under the POSH Act."},
	{Role: store.RoleUser, Text: "It happened on 3 March at the Pune office. My colleague Asha saw it."},
}

func TestDetails_FillPlaceholders(t *testing.T) {
	d := &Details{ComplainantName: "Meera", Witnesses: "  ", Evidence: "null"}
	d.FillPlaceholders()

	assert.Equal(t, "Meera", d.ComplainantName)
	assert.Equal(t, Placeholder, d.Witnesses)
	assert.Equal(t, Placeholder, d.Evidence)
	assert.Equal(t, Placeholder, d.IncidentDescription)
	assert.Equal(t, 1, d.Resolved())
}

func TestExtract_InsufficientHistory(t *testing.T) {
	e := NewExtractor(&stubCompleter{}, tagTranslator{}, zerolog.Nop())

	_, err := e.Extract(context.Background(), conversation[:1], translate.English)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestExtract_ParsesFirstJSONObject(t *testing.T) {
	gen := &stubCompleter{reply: "Here you go:\n```json\n" + `{
		"accused_name": "Ravi",
		"incident_date": "3 March",
		"incident_location": "Pune office",
		"witnesses": ["Asha", ""],
		"complainant_phone": null,
		"incident_description": "My manager commented on my appearance."
	}` + "\n```\n{\"ignored\": true}"}
	e := NewExtractor(gen, tagTranslator{}, zerolog.Nop())

	d, err := e.Extract(context.Background(), conversation, translate.English)
	require.NoError(t, err)

	assert.Equal(t, "Ravi", d.AccusedName)
	assert.Equal(t, "3 March", d.IncidentDate)
	assert.Equal(t, "Pune office", d.IncidentLocation)
	assert.Equal(t, "Asha", d.Witnesses)
	assert.Equal(t, "My manager commented on my appearance.", d.IncidentDescription)
	assert.Equal(t, Placeholder, d.ComplainantPhone)
	assert.Equal(t, Placeholder, d.ComplainantName)
	assert.Equal(t, Placeholder, d.Evidence)

	assert.Contains(t, gen.prompt, "User: My manager Ravi made comments about my appearance.")
	assert.Contains(t, gen.prompt, "Assistant: That may be harassment under the POSH Act.")
}

func TestExtract_FallsBackToUserStatements(t *testing.T) {
	for name, gen := range map[string]*stubCompleter{
		"model error": {err: errors.New("unavailable")},
		"not json":    {reply: "I cannot help with that."},
	} {
		t.Run(name, func(t *testing.T) {
			d, err := NewExtractor(gen, tagTranslator{}, zerolog.Nop()).Extract(context.Background(), conversation, translate.English)
			require.NoError(t, err)

			assert.Equal(t, conversation[0].Text+" "+conversation[2].Text, d.IncidentDescription)
			assert.Equal(t, Placeholder, d.AccusedName)
			assert.Equal(t, 1, d.Resolved())
		})
	}
}

func TestExtract_LocalizesResolvedFieldsOnly(t *testing.T) {
	gen := &stubCompleter{reply: `{"accused_name":"Ravi","incident_description":"Comments at work."}`}
	d, err := NewExtractor(gen, tagTranslator{}, zerolog.Nop()).Extract(context.Background(), conversation, translate.Hindi)
	require.NoError(t, err)

	assert.Equal(t, "[hi]Ravi", d.AccusedName)
	assert.Equal(t, "[hi]Comments at work.", d.IncidentDescription)
	assert.Equal(t, Placeholder, d.ComplainantName)
}

func TestExtract_NormalisesPlaceholderVariants(t *testing.T) {
	gen := &stubCompleter{reply: `{
		"complainant_name": "not provided",
		"accused_name": "Ravi",
		"incident_location": " Not provided ",
		"evidence": "NOT PROVIDED",
		"incident_description": "not Provided"
	}`}
	d, err := NewExtractor(gen, tagTranslator{}, zerolog.Nop()).Extract(context.Background(), conversation, translate.Hindi)
	require.NoError(t, err)

	assert.Equal(t, Placeholder, d.ComplainantName)
	assert.Equal(t, Placeholder, d.IncidentLocation)
	assert.Equal(t, Placeholder, d.Evidence)
	assert.Equal(t, "[hi]Ravi", d.AccusedName)
	// A placeholder narrative still falls back to what the user said.
	assert.Equal(t, "[hi]"+conversation[0].Text+" "+conversation[2].Text, d.IncidentDescription)
}

func TestExtract_DoesNotMutateHistory(t *testing.T) {
	history := append([]store.ChatMessage(nil), conversation...)
	_, err := NewExtractor(&stubCompleter{reply: "{}"}, tagTranslator{}, zerolog.Nop()).Extract(context.Background(), history, translate.Tamil)
	require.NoError(t, err)
	assert.Equal(t, conversation, history)
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r := NewRenderer(filepath.Join(t.TempDir(), "data"), filepath.Join(t.TempDir(), "no-fonts"), zerolog.Nop())
	r.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })
	return r
}

func TestRenderer_WritesPDFWithHelveticaFallback(t *testing.T) {
	r := newTestRenderer(t)
	d := &Details{ComplainantName: "Meera", IncidentDescription: "Comments at work, including “quotes”."}

	name, err := r.Render(d, "user@example.com", translate.Hindi)
	require.NoError(t, err)
	assert.Equal(t, "FIR_user_example_com_1700000000000.pdf", name)

	p, err := r.Path(name)
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestRenderer_SameMillisecondGetsNextName(t *testing.T) {
	r := newTestRenderer(t)

	first, err := r.Render(&Details{}, "u1", translate.English)
	require.NoError(t, err)
	second, err := r.Render(&Details{}, "u1", translate.English)
	require.NoError(t, err)

	assert.Equal(t, "FIR_u1_1700000000000.pdf", first)
	assert.Equal(t, "FIR_u1_1700000000001.pdf", second)
}

func TestRenderer_Path(t *testing.T) {
	r := newTestRenderer(t)

	for _, bad := range []string{"../etc/passwd", "FIR_a_1.txt", "FIR__x.pdf", "FIR_a/b_1.pdf"} {
		_, err := r.Path(bad)
		assert.ErrorIs(t, err, ErrInvalidFilename, bad)
	}
	_, err := r.Path("FIR_nobody_123.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenderer_NilDetails(t *testing.T) {
	_, err := newTestRenderer(t).Render(nil, "u", translate.English)
	assert.ErrorIs(t, err, ErrMissingDetails)
}

func TestSanitizeUser(t *testing.T) {
	assert.Equal(t, "default", sanitizeUser(""))
	assert.Equal(t, "default", sanitizeUser("///"))
	assert.Equal(t, "a-b_c", sanitizeUser("a-b_c"))
	assert.Equal(t, "___x", sanitizeUser("../x"))
}

func TestService_Generate(t *testing.T) {
	h := store.NewHistoryStore(100)
	for _, m := range conversation {
		h.Append("u1", m.Role, m.Text)
	}
	gen := &stubCompleter{reply: `{"accused_name":"Ravi"}`}
	svc := NewService(h, NewExtractor(gen, tagTranslator{}, zerolog.Nop()), newTestRenderer(t), zerolog.Nop())

	preview, err := svc.Generate(context.Background(), "u1", translate.English, true)
	require.NoError(t, err)
	assert.Empty(t, preview.Filename)
	assert.Equal(t, "Ravi", preview.Details.AccusedName)

	full, err := svc.Generate(context.Background(), "u1", translate.Auto, false)
	require.NoError(t, err)
	assert.Equal(t, "FIR_u1_1700000000000.pdf", full.Filename)

	_, err = svc.Generate(context.Background(), "empty", translate.English, true)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
	assert.Len(t, h.Get("u1"), 3)
}

func TestService_RenderDetails(t *testing.T) {
	svc := NewService(store.NewHistoryStore(10), nil, newTestRenderer(t), zerolog.Nop())

	_, err := svc.RenderDetails("", translate.English, nil)
	assert.ErrorIs(t, err, ErrMissingDetails)

	name, err := svc.RenderDetails("", "xx", &Details{AccusedName: "Ravi"})
	require.NoError(t, err)
	assert.Equal(t, "FIR_default_1700000000000.pdf", name)
}
