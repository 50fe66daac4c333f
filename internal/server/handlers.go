package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/kittclouds/notesync/internal/apperr"
	"github.com/kittclouds/notesync/internal/wire"
)

const version = "1.0"

// Router builds the chi mux exposing the sync endpoint and flat read-only
// listing endpoints for notes, notebooks and tags. cors is permissive
// by default, matching the donor's local-tool deployment model; a reverse
// proxy is expected to add auth in front of this server.
func Router(st *Store, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/health", handleHealth)

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/pull", st.handlePull)
		r.Post("/push", st.handlePush)
	})

	r.Route("/api/notes", func(r chi.Router) {
		r.Get("/", st.handleListNotes)
	})
	r.Route("/api/notebooks", func(r chi.Router) {
		r.Get("/", st.handleListNotebooks)
	})
	r.Route("/api/tags", func(r chi.Router) {
		r.Get("/", st.handleListTags)
	})

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", ww.Status()).
				Str("request_id", middleware.GetReqID(req.Context())).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.HealthResponse{Status: "ok", Version: version})
}

func (s *Store) handlePull(w http.ResponseWriter, r *http.Request) {
	var req wire.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("invalid pull request body: %v", err))
		return
	}

	notes, err := s.ChangesSinceNotes(req.LastSyncRevision)
	if err != nil {
		writeError(w, err)
		return
	}
	notebooks, err := s.ChangesSinceNotebooks(req.LastSyncRevision)
	if err != nil {
		writeError(w, err)
		return
	}
	tags, err := s.ChangesSinceTags(req.LastSyncRevision)
	if err != nil {
		writeError(w, err)
		return
	}
	rev, err := s.GlobalRevision()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.PullResponse{
		Notes: notes, Notebooks: notebooks, Tags: tags, ServerRevision: rev,
	})
}

func (s *Store) handlePush(w http.ResponseWriter, r *http.Request) {
	var req wire.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("invalid push request body: %v", err))
		return
	}
	resp, err := s.ApplyPush(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Store) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.ChangesSinceNotes(0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Store) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	notebooks, err := s.ChangesSinceNotebooks(0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notebooks)
}

func (s *Store) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.ChangesSinceTags(0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.Is(err, apperr.NotFound):
		status = http.StatusNotFound
	case apperr.Is(err, apperr.Validation):
		status = http.StatusBadRequest
	case apperr.Is(err, apperr.Conflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
