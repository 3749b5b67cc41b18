package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/api/respond"
	"legallens.org/assistant/internal/core"
	"legallens.org/assistant/internal/fir"
	"legallens.org/assistant/internal/store"
	"legallens.org/assistant/internal/translate"
	"legallens.org/assistant/internal/vectorindex"
)

const (
	msgProcessingFailed = "An error occurred while processing your message."
	msgEmptyMessage     = "Message cannot be empty"
	msgInvalidBody      = "Invalid request body"
)

type APIHandler struct {
	chatService *core.ChatService
	firService  *fir.Service
	log         zerolog.Logger
}

func NewAPIHandler(cs *core.ChatService, fs *fir.Service, log zerolog.Logger) *APIHandler {
	return &APIHandler{chatService: cs, firService: fs, log: log}
}

// decodeBody reads a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type ChatMessageRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
	UserID   string `json:"userId"`
}

// chatRequest validates the body shared by send and stream. It writes the
// 400 itself and reports false when the request cannot proceed.
func (h *APIHandler) chatRequest(w http.ResponseWriter, r *http.Request) (core.ChatRequest, bool) {
	var req ChatMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respond.WriteBadRequest(w, msgInvalidBody)
		return core.ChatRequest{}, false
	}
	lang, err := translate.ParseLanguage(req.Language)
	if err != nil {
		respond.WriteBadRequest(w, fmt.Sprintf("Unsupported language: %s", req.Language))
		return core.ChatRequest{}, false
	}
	return core.ChatRequest{Message: req.Message, Language: lang, UserID: req.UserID}, true
}

// writeChatError maps chat flow errors to responses.
func (h *APIHandler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyMessage):
		respond.WriteBadRequest(w, msgEmptyMessage)
	case errors.Is(err, vectorindex.ErrRetrieval):
		h.log.Error().Stack().Err(err).Msg("retrieval failed")
		respond.WriteInternalError(w, msgProcessingFailed, "retrieval_failed")
	default:
		h.log.Error().Stack().Err(err).Msg("chat request failed")
		respond.WriteInternalError(w, msgProcessingFailed, "internal_error")
	}
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.chatRequest(w, r)
	if !ok {
		return
	}

	reply, err := h.chatService.Send(r.Context(), req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, reply)
}

// StreamMessageHandler answers over server-sent events. Every stream that
// starts ends with a [DONE] frame.
func (h *APIHandler) StreamMessageHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.chatRequest(w, r)
	if !ok {
		return
	}

	events, err := h.chatService.Stream(r.Context(), req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	sse := newSSEWriter(w)
	finished := false
	for ev := range events {
		if ev.Done {
			finished = true
			continue
		}
		if err := sse.token(ev.Token); err != nil {
			h.log.Debug().Err(err).Msg("stream client went away")
			return
		}
	}
	if !finished && r.Context().Err() == nil {
		_ = sse.fail("Stream interrupted")
	}
	_ = sse.done()
}

type HistoryResponse struct {
	Messages []store.ChatMessage `json:"messages"`
}

func (h *APIHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	respond.WriteJSON(w, http.StatusOK, HistoryResponse{Messages: h.chatService.History(userID)})
}

type UserRequest struct {
	UserID string `json:"userId"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *APIHandler) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeBody(r, &req); err != nil {
		respond.WriteBadRequest(w, msgInvalidBody)
		return
	}
	h.chatService.ClearHistory(req.UserID)
	respond.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Chat history cleared successfully"})
}

type ResponseCacheStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"maxSize"`
}

// CacheStatsResponse repeats the translation cache fields at the top level
// for clients that read them there.
type CacheStatsResponse struct {
	translate.Stats
	Success       bool               `json:"success"`
	Cache         translate.Stats    `json:"cache"`
	ResponseCache ResponseCacheStats `json:"responseCache"`
	Message       string             `json:"message"`
}

func (h *APIHandler) CacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := h.chatService.Translator().Stats()
	rc := h.chatService.ResponseCache()
	respond.WriteJSON(w, http.StatusOK, CacheStatsResponse{
		Stats:         stats,
		Success:       true,
		Cache:         stats,
		ResponseCache: ResponseCacheStats{Size: rc.Len(), MaxSize: rc.MaxSize()},
		Message:       fmt.Sprintf("Cache is %s efficient", stats.HitRate),
	})
}

func (h *APIHandler) ClearCacheHandler(w http.ResponseWriter, r *http.Request) {
	h.chatService.ClearCaches()
	respond.WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Translation and response caches cleared successfully"})
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, StatusResponse{Status: "running", Message: "LegalLens API is running"})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
