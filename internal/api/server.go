// Package api serves the simulation engines over a JSON HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/session"
	"github.com/sells-group/procurement-sim/internal/simerr"
	"github.com/sells-group/procurement-sim/internal/store"
)

// Server exposes a Session over HTTP.
type Server struct {
	sess *session.Session
}

// New creates a Server.
func New(sess *session.Session) *Server {
	return &Server{sess: sess}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(api chi.Router) {
		api.Post("/benchmark", s.handleBenchmark)
		api.Post("/mitigation", s.handleMitigation)
		api.Post("/whatif", s.handleWhatIf)
		api.Get("/groups", s.handleGroups)
		api.Post("/groups", s.handlePostGroups)
		api.Get("/gaps", s.handleGaps)
		api.Get("/status", s.handleStatus)
		api.Get("/importance", s.handleImportance)
		api.Get("/domain", s.handleDomain)
		api.Get("/cache", s.handleCacheStats)
		api.Delete("/cache", s.handleInvalidateCache)

		api.Get("/runs", s.handleListRuns)
		api.Get("/runs/{id}", s.handleGetRun)
		api.Delete("/runs/{id}", s.handleDeleteRun)
	})
	return r
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind,omitempty"`
	Column      string   `json:"column,omitempty"`
	Value       string   `json:"value,omitempty"`
	ContractIDs []string `json:"contract_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps the error taxonomy to status codes. Caller mistakes are
// 400, conditions of the data are 422, anything else is 500.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	var reqErr *session.RequestError
	if errors.As(err, &reqErr) {
		badRequest(w, err.Error())
		return
	}
	se, ok := simerr.As(err)
	if !ok {
		zap.L().Error("api: request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	status := http.StatusUnprocessableEntity
	switch se.Kind {
	case simerr.KindInvalidQuantile, simerr.KindOutOfDomainValue:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{
		Error:       err.Error(),
		Kind:        string(se.Kind),
		Column:      se.Column,
		Value:       se.Value,
		ContractIDs: se.ContractIDs,
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
