package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"clinical-notes-service/internal/app"
	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/models"
	"clinical-notes-service/internal/observability"
	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/service/expand"
	"clinical-notes-service/internal/service/notes"
	"clinical-notes-service/internal/service/stt"
)

const (
	// formMemory is how much of a multipart body is held in memory before
	// parts spill to temp files.
	formMemory = 8 << 20
	// formOverhead allows for the text fields that travel with the upload.
	formOverhead  = 1 << 20
	maxJSONBody   = 64 << 10
	probeTimeout  = 2 * time.Second
	statusOK      = "ok"
	statusReady   = "ready"
	statusUnready = "not_ready"
)

type handlers struct {
	app *app.Application
}

func (h *handlers) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.ProbeResponse{Status: statusOK})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	statuses, ready := observability.RunProbes(r.Context(), h.app.Probes, probeTimeout)
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, models.ProbeResponse{Status: statusUnready, Backends: statuses})
		return
	}
	writeJSON(w, http.StatusOK, models.ProbeResponse{Status: statusReady, Backends: statuses})
}

// transcribe handles both upload endpoints; only the tier differs.
func (h *handlers) transcribe(tier stt.Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := h.app.Cfg.Audio.MaxUploadBytes
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
		if err := r.ParseMultipartForm(formMemory); err != nil {
			writeError(w, r, formError(err, limit))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("audio_file")
		if err != nil {
			writeError(w, r, apperrors.ClientInput(apperrors.CodeEmptyAudio, "audio_file is required"))
			return
		}
		defer file.Close()

		res, err := h.app.Notes.Transcribe(r.Context(), notes.NoteRequest{
			RequestID: middleware.GetReqID(r.Context()),
			UserType:  r.FormValue("user_type"),
			NoteType:  r.FormValue("note_type"),
			Prompt:    r.FormValue("prompt"),
			Tier:      tier,
			FileName:  header.Filename,
			Audio:     file,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, models.TranscribeResponse{
			OriginalTranscript: res.OriginalTranscript,
			FormattedText:      res.FormattedText,
			PromptUsed:         res.PromptUsed,
			Metadata:           models.NoteMetadata{UserType: res.UserType, NoteType: res.NoteType},
			Fingerprint:        res.Fingerprint.String(),
			CacheHit:           res.Source.Hit(),
		})
	}
}

func (h *handlers) summarizeText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.app.Cfg.Audio.MaxUploadBytes)
	if err := parseForm(r); err != nil {
		writeError(w, r, formError(err, h.app.Cfg.Audio.MaxUploadBytes))
		return
	}

	res, err := h.app.Notes.SummarizeText(r.Context(), notes.TextRequest{
		RequestID: middleware.GetReqID(r.Context()),
		UserType:  r.FormValue("user_type"),
		NoteType:  r.FormValue("note_type"),
		Prompt:    r.FormValue("prompt"),
		Text:      r.FormValue("long_text"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SummarizeTextResponse{
		FormattedText: res.FormattedText,
		PromptUsed:    res.PromptUsed,
		Metadata:      models.NoteMetadata{UserType: res.UserType, NoteType: res.NoteType},
	})
}

func (h *handlers) expand(w http.ResponseWriter, r *http.Request) {
	var req models.ExpandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, apperrors.ClientInput(apperrors.CodeInvalidInput, "malformed JSON body: "+err.Error()))
		return
	}
	if err := h.app.Validator.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.app.Expander.Expand(r.Context(), expand.Request{
		RequestID: middleware.GetReqID(r.Context()),
		Brief:     req.Brief,
		Audience:  req.Audience,
		Tone:      req.Tone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ExpandResponse{
		ExpandedText: out.ExpandedText,
		Model:        out.Model,
		Tokens:       models.TokenUsage{Prompt: out.PromptTokens, Completion: out.CompletionTokens},
		Safety: models.SafetyFlags{
			PIIRemoved:      out.Safety.PIIRemoved,
			EducationalOnly: out.Safety.EducationalOnly,
			DisclaimerAdded: out.Safety.DisclaimerAdded,
		},
	})
}

// parseForm accepts both urlencoded and multipart bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(formMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	if err == nil {
		_ = r.MultipartForm.RemoveAll()
	}
	return err
}

func formError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", limit))
	}
	return apperrors.ClientInput(apperrors.CodeInvalidInput, "malformed form body: "+err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err as an ErrorResponse. Anything that is not an
// AppError is reported as an internal error without its message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err, "internal error")
	}

	status := appErr.HTTPStatus()
	logger := logging.WithRequest(middleware.GetReqID(r.Context()), r.URL.Path)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Str("code", string(appErr.Code)).Msg("Request failed")

	writeJSON(w, status, models.ErrorResponse{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}
