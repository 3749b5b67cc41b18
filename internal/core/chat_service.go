package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/cache"
	"legallens.org/assistant/internal/metrics"
	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
	"legallens.org/assistant/internal/vectorindex"
)

var ErrEmptyMessage = errors.New("message cannot be empty")

// WelcomeMessage is shown to users with no conversation yet.
const WelcomeMessage = "Hello! I'm your Legal Lens assistant. I can help you understand the POSH Act (Prevention of Sexual Harassment) and women's safety laws. Ask me anything!"

// Retriever fetches context chunks for an English query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorindex.RetrievedChunk, error)
}

type ChatRequest struct {
	Message  string
	Language translate.Language // English, Auto, or an explicit supported code
	UserID   string
}

type ChatReply struct {
	Response         string                       `json:"response"`
	DetectedLanguage translate.Language           `json:"detectedLanguage"`
	Sources          []vectorindex.RetrievedChunk `json:"sources"`
	Cached           bool                         `json:"cached"`
	Translation      translate.Outcome            `json:"translation"`
	Source           AnswerSource                 `json:"-"`
}

// ChatService runs the send and stream flows: translate in, answer from
// cache or retrieval plus generation, translate out, record history.
type ChatService struct {
	translator   *translate.Translator
	retriever    Retriever
	orchestrator *Orchestrator
	cache        *cache.ResponseCache
	history      *store.HistoryStore
	log          zerolog.Logger
}

func NewChatService(tr *translate.Translator, rt Retriever, o *Orchestrator, rc *cache.ResponseCache, h *store.HistoryStore, log zerolog.Logger) *ChatService {
	return &ChatService{translator: tr, retriever: rt, orchestrator: o, cache: rc, history: h, log: log}
}

func (s *ChatService) Translator() *translate.Translator { return s.translator }
func (s *ChatService) ResponseCache() *cache.ResponseCache { return s.cache }
func (s *ChatService) HistoryStore() *store.HistoryStore  { return s.history }

func normalizeRequest(req *ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	if req.UserID == "" {
		req.UserID = store.DefaultUserID
	}
	if req.Language == "" {
		req.Language = translate.English
	}
	return nil
}

// cacheable reports whether an answer may be memoized. Fallbacks are not,
// so a recovered model is used on the next attempt.
func cacheable(src AnswerSource) bool {
	return src == SourceGenerated || src == SourceNoContext
}

func combine(in, out translate.Outcome) translate.Outcome {
	switch {
	case in == translate.Unavailable || out == translate.Unavailable:
		return translate.Unavailable
	case in == translate.Translated || out == translate.Translated:
		return translate.Translated
	}
	return translate.Unchanged
}

func (s *ChatService) lookup(query string) (string, bool) {
	v, ok := s.cache.Get(query)
	if ok {
		metrics.ResponseCacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.ResponseCacheLookups.WithLabelValues("miss").Inc()
	}
	return v, ok
}

// Send answers a message synchronously.
func (s *ChatService) Send(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}
	s.history.Append(req.UserID, store.RoleUser, req.Message)

	in := s.translator.ToEnglish(ctx, req.Message, req.Language)
	s.log.Debug().Str("detected", string(in.Language)).Str("outcome", string(in.Outcome)).Msg("query normalised")

	if cached, ok := s.lookup(in.Text); ok {
		out := s.translator.FromEnglish(ctx, cached, in.Language)
		s.history.Append(req.UserID, store.RoleAssistant, out.Text)
		metrics.ChatRequests.WithLabelValues("send", "cached").Inc()
		return &ChatReply{
			Response:         out.Text,
			DetectedLanguage: in.Language,
			Sources:          []vectorindex.RetrievedChunk{},
			Cached:           true,
			Translation:      combine(in.Outcome, out.Outcome),
		}, nil
	}

	chunks, err := s.retriever.Retrieve(ctx, in.Text)
	if err != nil {
		metrics.ChatRequests.WithLabelValues("send", "error").Inc()
		return nil, err
	}
	if chunks == nil {
		chunks = []vectorindex.RetrievedChunk{}
	}

	ans := s.orchestrator.Answer(ctx, in.Text, chunks)
	if cacheable(ans.Source) {
		s.cache.Put(in.Text, ans.Text)
	}

	out := s.translator.FromEnglish(ctx, ans.Text, in.Language)
	s.history.Append(req.UserID, store.RoleAssistant, out.Text)
	metrics.ChatRequests.WithLabelValues("send", string(ans.Source)).Inc()

	return &ChatReply{
		Response:         out.Text,
		DetectedLanguage: in.Language,
		Sources:          chunks,
		Translation:      combine(in.Outcome, out.Outcome),
		Source:           ans.Source,
	}, nil
}

// Stream validates and retrieves up front, so those failures surface as
// ordinary errors before any bytes are written. The returned channel yields
// token events and ends with a single Done event before it is closed.
//
// English answers are forwarded token by token as generated. Other
// languages are buffered, translated once, and re-emitted word by word.
func (s *ChatService) Stream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}
	s.history.Append(req.UserID, store.RoleUser, req.Message)

	in := s.translator.ToEnglish(ctx, req.Message, req.Language)

	if cached, ok := s.lookup(in.Text); ok {
		out := s.translator.FromEnglish(ctx, cached, in.Language)
		s.history.Append(req.UserID, store.RoleAssistant, out.Text)
		metrics.ChatRequests.WithLabelValues("stream", "cached").Inc()
		return emitWords(ctx, out.Text, Answer{Text: out.Text, Source: SourceGenerated}), nil
	}

	chunks, err := s.retriever.Retrieve(ctx, in.Text)
	if err != nil {
		metrics.ChatRequests.WithLabelValues("stream", "error").Inc()
		return nil, err
	}

	upstream := s.orchestrator.AnswerStream(ctx, in.Text, chunks)
	events := make(chan StreamEvent, streamBufferSize)

	go func() {
		defer close(events)
		passthrough := in.Language == translate.English

		for ev := range upstream {
			if !ev.Done {
				if passthrough {
					select {
					case events <- ev:
					case <-ctx.Done():
					}
				}
				continue
			}

			if cacheable(ev.Answer.Source) {
				s.cache.Put(in.Text, ev.Answer.Text)
			}
			metrics.ChatRequests.WithLabelValues("stream", string(ev.Answer.Source)).Inc()

			if passthrough {
				s.history.Append(req.UserID, store.RoleAssistant, ev.Answer.Text)
				sendEvent(ctx, events, ev)
				return
			}

			out := s.translator.FromEnglish(ctx, ev.Answer.Text, in.Language)
			s.history.Append(req.UserID, store.RoleAssistant, out.Text)
			final := Answer{Text: out.Text, Source: ev.Answer.Source}
			if ev.Answer.Source != SourceGenerated {
				// Canned and fallback texts go out as one frame.
				if sendEvent(ctx, events, StreamEvent{Token: out.Text}) {
					sendEvent(ctx, events, StreamEvent{Done: true, Answer: final})
				}
				return
			}
			for w := range emitWords(ctx, out.Text, final) {
				if !sendEvent(ctx, events, w) {
					return
				}
			}
			return
		}
	}()

	return events, nil
}

func sendEvent(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitWords replays a finished text as space-separated word frames.
func emitWords(ctx context.Context, text string, final Answer) <-chan StreamEvent {
	events := make(chan StreamEvent, streamBufferSize)
	go func() {
		defer close(events)
		for _, w := range strings.Split(text, " ") {
			if !sendEvent(ctx, events, StreamEvent{Token: w + " "}) {
				return
			}
		}
		sendEvent(ctx, events, StreamEvent{Done: true, Answer: final})
	}()
	return events
}

// History returns the user's conversation, or a single welcome message
// from the assistant when there is none yet.
func (s *ChatService) History(userID string) []store.ChatMessage {
	if userID == "" {
		userID = store.DefaultUserID
	}
	msgs := s.history.Get(userID)
	if len(msgs) == 0 {
		return []store.ChatMessage{{Role: store.RoleAssistant, Text: WelcomeMessage}}
	}
	return msgs
}

func (s *ChatService) ClearHistory(userID string) {
	if userID == "" {
		userID = store.DefaultUserID
	}
	s.history.Clear(userID)
}

// ClearCaches drops cached translations and answers. Used after the corpus
// has been re-seeded.
func (s *ChatService) ClearCaches() {
	s.translator.Clear()
	s.cache.Clear()
	s.log.Info().Msg("response cache cleared")
}
