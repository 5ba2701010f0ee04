package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"boardquiz-service/internal/app"
	"boardquiz-service/internal/deck"
	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/quizgen"
)

// maxDeckFile bounds uploaded deck files.
const maxDeckFile = 2 << 20

// APIHandler serves the deck file and settings endpoints.
type APIHandler struct {
	service *app.GameService
	log     *zap.Logger
}

func NewAPIHandler(service *app.GameService, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{service: service, log: log.Named("api")}
}

type deckSummary struct {
	Topic          string `json:"topic"`
	Items          int    `json:"items"`
	MultipleChoice int    `json:"mcq"`
	TrueFalse      int    `json:"ox"`
}

func summarize(d domain.Deck) deckSummary {
	return deckSummary{
		Topic:          d.Topic,
		Items:          len(d.Items),
		MultipleChoice: d.Count(domain.KindMultipleChoice),
		TrueFalse:      d.Count(domain.KindTrueFalse),
	}
}

// ImportDeck applies an uploaded deck file to the session.
func (h *APIHandler) ImportDeck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDeckFile))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "deck file too large")
		return
	}
	if _, err := h.service.Open(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	defer h.service.Leave(r.Context(), id)

	d, err := h.service.ImportDeck(r.Context(), id, data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarize(d))
}

// ExportDeck downloads the session's deck file.
func (h *APIHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.Open(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	defer h.service.Leave(r.Context(), id)

	name, data, err := h.service.ExportDeck(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *APIHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Settings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *APIHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var st domain.GenerationSettings
	if err := readJSON(r, &st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	saved, err := h.service.SaveSettings(r.Context(), chi.URLParam(r, "id"), st)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *APIHandler) DeleteSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSettings(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, deck.ErrInvalidPack), errors.Is(err, quizgen.ErrEmptyTopic), errors.Is(err, app.ErrNoAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrDeckNotFound), errors.Is(err, app.ErrNoDeck):
		return http.StatusNotFound
	case errors.Is(err, app.ErrGenerationInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
