package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"donorprep/internal/eligibility"
)

type handlers struct {
	model  *eligibility.Model
	logger zerolog.Logger
}

// SetupRoutes exposes the eligibility model. The model is shared read-only
// across requests.
func SetupRoutes(model *eligibility.Model, logger zerolog.Logger) http.Handler {
	h := handlers{model: model, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", h.health)
	r.Get("/entries", h.entries)
	r.Post("/input", h.input)
	return r
}

type inputRequest struct {
	Age              *int     `json:"age"`
	Genre            *string  `json:"genre"`
	Professions      []string `json:"professions"`
	HealthConditions []string `json:"health_conditions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": h.model.Size()})
}

func (h handlers) entries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.model.Entries())
}

func (h handlers) input(w http.ResponseWriter, r *http.Request) {
	var in inputRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	if in.Age != nil && *in.Age < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "age must be positive"})
		return
	}

	q := eligibility.Query{
		Age:              in.Age,
		Professions:      in.Professions,
		HealthConditions: in.HealthConditions,
	}
	if in.Genre != nil {
		q.Genre = *in.Genre
	}
	writeJSON(w, http.StatusOK, h.model.Predict(q))
}

func (h handlers) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
