package fir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
)

// MinHistory is the number of turns needed before extraction is attempted.
const MinHistory = 2

const extractionPrompt = `You are helping a complainant file a First Information Report (FIR) about workplace harassment.
Read the conversation below and extract the incident details.

Respond with ONLY a JSON object with exactly these keys:
complainant_name, complainant_address, complainant_phone, incident_date, incident_time,
incident_location, harassment_type, accused_name, accused_description, incident_description,
witnesses, evidence

Every value must be a string. Use "Not Provided" for anything the conversation does not state.
Do not invent details. incident_description should be a short factual narrative in the first person.

Conversation:
`

// Completer is the slice of the generator the extractor needs.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translator converts turns to English and results back.
type Translator interface {
	ToEnglish(ctx context.Context, text string, explicit translate.Language) translate.Result
	FromEnglish(ctx context.Context, text string, target translate.Language) translate.Result
}

type Extractor struct {
	gen Completer
	tr  Translator
	log zerolog.Logger
}

func NewExtractor(gen Completer, tr Translator, log zerolog.Logger) *Extractor {
	return &Extractor{gen: gen, tr: tr, log: log}
}

// Extract derives FIR details from a conversation. Partial extraction is
// normal: unresolved fields hold Placeholder. The history is only read.
func (e *Extractor) Extract(ctx context.Context, history []store.ChatMessage, lang translate.Language) (*Details, error) {
	if len(history) < MinHistory {
		return nil, fmt.Errorf("%w: have %d turns, need %d", ErrInsufficientHistory, len(history), MinHistory)
	}

	var transcript strings.Builder
	var statements []string
	for _, m := range history {
		text := e.tr.ToEnglish(ctx, m.Text, translate.Auto).Text
		label := "Assistant"
		if m.Role == store.RoleUser {
			label = "User"
			statements = append(statements, strings.TrimSpace(text))
		}
		fmt.Fprintf(&transcript, "%s: %s\n", label, text)
	}

	details := &Details{}
	reply, err := e.gen.Generate(ctx, extractionPrompt+transcript.String())
	if err != nil {
		e.log.Warn().Err(err).Msg("FIR extraction model call failed, using user statements")
	} else if err := decodeDetails(reply, details); err != nil {
		e.log.Warn().Err(err).Msg("FIR extraction reply was not JSON, using user statements")
	}
	if details.Resolved() == 0 || isBlank(details.IncidentDescription) {
		details.IncidentDescription = strings.Join(statements, " ")
	}
	details.FillPlaceholders()

	e.localize(ctx, details, lang)
	return details, nil
}

// localize translates resolved fields into lang. Placeholders stay literal.
func (e *Extractor) localize(ctx context.Context, d *Details, lang translate.Language) {
	if lang == translate.English || !lang.Supported() {
		return
	}
	for _, f := range d.fields() {
		if *f.ptr == Placeholder {
			continue
		}
		*f.ptr = e.tr.FromEnglish(ctx, *f.ptr, lang).Text
	}
}

// decodeDetails reads the first JSON object in a model reply. Non-string
// values are flattened, arrays joined with commas.
func decodeDetails(reply string, d *Details) error {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return errors.New("no JSON object in reply")
	}

	var raw map[string]any
	if err := json.NewDecoder(strings.NewReader(reply[start:])).Decode(&raw); err != nil {
		return fmt.Errorf("decode extraction: %w", err)
	}
	for _, f := range d.fields() {
		if v, ok := raw[f.key]; ok {
			*f.ptr = strings.TrimSpace(flatten(v))
		}
	}
	return nil
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
