package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"legallens.org/assistant/internal/api/respond"
	"legallens.org/assistant/internal/fir"
	"legallens.org/assistant/internal/translate"
)

const (
	downloadPrefix       = "/api/chat/download-fir/"
	msgInsufficient      = "Insufficient conversation history. Please chat more about the incident before generating FIR."
	msgFIRFailed         = "An error occurred while generating the FIR."
	msgFIRPDFFailed      = "An error occurred while generating the FIR PDF."
	msgFIRDownloadFailed = "An error occurred while downloading the FIR."
)

type GenerateFIRRequest struct {
	UserID      string `json:"userId"`
	Language    string `json:"language"`
	PreviewOnly bool   `json:"previewOnly"`
}

type GenerateFIRResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Filename    string             `json:"filename,omitempty"`
	DownloadURL string             `json:"downloadUrl,omitempty"`
	Details     *fir.Details       `json:"details,omitempty"`
	Language    translate.Language `json:"language,omitempty"`
}

// firLanguage is lenient: unknown codes produce an English report rather
// than a 400.
func firLanguage(s string) translate.Language {
	l, err := translate.ParseLanguage(s)
	if err != nil || l == translate.Auto {
		return translate.English
	}
	return l
}

func (h *APIHandler) GenerateFIRHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateFIRRequest
	if err := decodeBody(r, &req); err != nil {
		respond.WriteBadRequest(w, msgInvalidBody)
		return
	}
	lang := firLanguage(req.Language)

	res, err := h.firService.Generate(r.Context(), req.UserID, lang, req.PreviewOnly)
	if err != nil {
		if errors.Is(err, fir.ErrInsufficientHistory) {
			respond.WriteBadRequest(w, msgInsufficient)
			return
		}
		h.log.Error().Stack().Err(err).Str("user", req.UserID).Msg("FIR generation failed")
		respond.WriteInternalError(w, msgFIRFailed, "fir_generation_failed")
		return
	}

	if req.PreviewOnly {
		respond.WriteJSON(w, http.StatusOK, GenerateFIRResponse{
			Success:  true,
			Message:  "FIR details extracted successfully",
			Details:  res.Details,
			Language: lang,
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, GenerateFIRResponse{
		Success:     true,
		Message:     fmt.Sprintf("FIR draft generated successfully in %s", lang.Name()),
		Filename:    res.Filename,
		DownloadURL: downloadPrefix + res.Filename,
		Details:     res.Details,
		Language:    lang,
	})
}

type GenerateFIRPDFRequest struct {
	UserID     string       `json:"userId"`
	Language   string       `json:"language"`
	FIRDetails *fir.Details `json:"firDetails"`
}

func (h *APIHandler) GenerateFIRPDFHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateFIRPDFRequest
	if err := decodeBody(r, &req); err != nil {
		respond.WriteBadRequest(w, msgInvalidBody)
		return
	}

	name, err := h.firService.RenderDetails(req.UserID, firLanguage(req.Language), req.FIRDetails)
	if err != nil {
		if errors.Is(err, fir.ErrMissingDetails) {
			respond.WriteBadRequest(w, "FIR details are required")
			return
		}
		h.log.Error().Stack().Err(err).Msg("FIR PDF render failed")
		respond.WriteInternalError(w, msgFIRPDFFailed, "fir_render_failed")
		return
	}
	respond.WriteJSON(w, http.StatusOK, GenerateFIRResponse{
		Success:     true,
		Message:     "FIR PDF generated successfully",
		Filename:    name,
		DownloadURL: downloadPrefix + name,
	})
}

func (h *APIHandler) DownloadFIRHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	path, err := h.firService.Renderer().Path(name)
	switch {
	case errors.Is(err, fir.ErrNotFound), errors.Is(err, fir.ErrInvalidFilename):
		respond.WriteNotFound(w, "FIR file not found")
		return
	case err != nil:
		h.log.Error().Stack().Err(err).Str("file", name).Msg("FIR download failed")
		respond.WriteInternalError(w, msgFIRDownloadFailed, "fir_download_failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

type EmailFIRResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EmailFIRHandler is kept for client compatibility; no mail transport is
// configured.
func (h *APIHandler) EmailFIRHandler(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusServiceUnavailable, EmailFIRResponse{
		Error:   "Email service is not configured",
		Message: "Please use the Download PDF option instead",
	})
}
