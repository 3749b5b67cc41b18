package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// sseWriter emits the chat token stream: one data frame per token and a
// final [DONE] marker.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newSSEWriter sends the event-stream headers. The server write timeout is
// lifted for this response since generation may outlast it.
func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	s := &sseWriter{w: w, rc: rc}
	_ = s.rc.Flush()
	return s
}

type tokenFrame struct {
	Token string `json:"token"`
}

type errorFrame struct {
	Error string `json:"error"`
}

func (s *sseWriter) token(tok string) error {
	return s.data(tokenFrame{Token: tok})
}

func (s *sseWriter) fail(msg string) error {
	return s.data(errorFrame{Error: msg})
}

func (s *sseWriter) data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.raw(b)
}

func (s *sseWriter) done() error {
	return s.raw([]byte("[DONE]"))
}

func (s *sseWriter) raw(payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return s.rc.Flush()
}
