package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/metrics"
	"legallens.org/assistant/internal/vectorindex"
)

const (
	promptPreamble = "You are a legal assistant specialized in women's safety, the POSH Act (Prevention of Sexual Harassment at Workplace), and Indian Penal Code (IPC) sections related to women's safety."

	promptInstructions = "Provide a clear, helpful, and empathetic response based on the context above. " +
		"If the context doesn't fully answer the question, provide what you can and suggest the user ask for more specific information. " +
		"Keep your response concise and actionable."

	// NoContextMessage is returned when retrieval finds nothing usable.
	NoContextMessage = "I apologize, but I couldn't find specific information about that in the POSH Act or IPC documentation. " +
		"Please try rephrasing your question or ask about workplace harassment, complaint procedures, women's rights, or criminal law provisions."

	fallbackPrefix   = "Based on the POSH Act documentation:\n\n"
	fallbackExcerpt  = 500
	streamBufferSize = 64
)

// AnswerSource says how an answer was produced.
type AnswerSource string

const (
	SourceGenerated AnswerSource = "generated"
	SourceFallback  AnswerSource = "fallback"
	SourceNoContext AnswerSource = "no_context"
)

type Answer struct {
	Text   string
	Source AnswerSource
}

// StreamEvent is either a token or, exactly once and last, the Done event
// carrying the complete answer.
type StreamEvent struct {
	Token  string
	Done   bool
	Answer Answer
}

// Orchestrator turns a question and retrieved context into an answer.
type Orchestrator struct {
	gen Generator
	log zerolog.Logger
}

func NewOrchestrator(gen Generator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{gen: gen, log: log}
}

// JoinContext concatenates the non-empty chunk texts with blank lines.
func JoinContext(chunks []vectorindex.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt embeds the context and the verbatim question in the fixed
// grounding template.
func BuildPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nContext from legal documents:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nUser question: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(promptInstructions)
	return b.String()
}

// FallbackAnswer is what the user gets when the model is unavailable: the
// head of the retrieved context.
func FallbackAnswer(contextText string) string {
	r := []rune(contextText)
	if len(r) > fallbackExcerpt {
		r = r[:fallbackExcerpt]
	}
	return fallbackPrefix + string(r) + "..."
}

// Answer blocks until the model replies. It never returns an error: model
// failures degrade to the context excerpt.
func (o *Orchestrator) Answer(ctx context.Context, question string, chunks []vectorindex.RetrievedChunk) Answer {
	contextText := JoinContext(chunks)
	if contextText == "" {
		return Answer{Text: NoContextMessage, Source: SourceNoContext}
	}

	start := time.Now()
	text, err := o.gen.Generate(ctx, BuildPrompt(contextText, question))
	metrics.LLMDuration.WithLabelValues("blocking").Observe(time.Since(start).Seconds())
	if err != nil {
		o.log.Error().Stack().Err(err).Msg("generation failed, falling back to context excerpt")
		return Answer{Text: FallbackAnswer(contextText), Source: SourceFallback}
	}
	return Answer{Text: text, Source: SourceGenerated}
}

// AnswerStream starts generation and returns the event channel. Whether the
// model succeeds or fails, the last event is Done and the channel is then
// closed. If the model fails before producing any token the fallback text is
// sent as a single token. Cancelling ctx stops generation and closes the
// channel without a Done event, since nobody is reading any more.
func (o *Orchestrator) AnswerStream(ctx context.Context, question string, chunks []vectorindex.RetrievedChunk) <-chan StreamEvent {
	events := make(chan StreamEvent, streamBufferSize)
	contextText := JoinContext(chunks)

	go func() {
		defer close(events)

		send := func(ev StreamEvent) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		finish := func(a Answer) {
			// Best effort: a cancelled consumer is no longer reading.
			_ = send(StreamEvent{Done: true, Answer: a})
		}

		if contextText == "" {
			if send(StreamEvent{Token: NoContextMessage}) == nil {
				finish(Answer{Text: NoContextMessage, Source: SourceNoContext})
			}
			return
		}

		var full strings.Builder
		emitted := false
		start := time.Now()
		err := o.gen.GenerateStream(ctx, BuildPrompt(contextText, question), func(tok string) error {
			full.WriteString(tok)
			emitted = true
			return send(StreamEvent{Token: tok})
		})
		metrics.LLMDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			finish(Answer{Text: full.String(), Source: SourceGenerated})
		case ctx.Err() != nil:
			o.log.Debug().Err(err).Msg("stream cancelled by client")
		case !emitted:
			o.log.Error().Stack().Err(err).Msg("stream generation failed, sending context excerpt")
			fb := FallbackAnswer(contextText)
			if send(StreamEvent{Token: fb}) == nil {
				finish(Answer{Text: fb, Source: SourceFallback})
			}
		default:
			// Tokens already went out; end the stream with what was sent.
			o.log.Error().Stack().Err(err).Int("chars", full.Len()).Msg("stream interrupted")
			finish(Answer{Text: full.String(), Source: SourceFallback})
		}
	}()

	return events
}
