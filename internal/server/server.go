// Package server exposes searches, history and previews over HTTP for the
// browser form.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bidscout/internal/config"
	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/render"
	"github.com/sells-group/bidscout/internal/resilience"
	"github.com/sells-group/bidscout/internal/search"
	"github.com/sells-group/bidscout/internal/store"
	"github.com/sells-group/bidscout/pkg/webhook"
)

const maxBodyBytes = 1 << 20

// Server wires the HTTP routes to the search service and store.
type Server struct {
	svc      *search.Service
	store    store.Store
	revealer search.Revealer
	sessions *Sessions
	defaults config.SearchConfig
	origins  []string
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithDefaults sets the form defaults applied beneath each request body.
func WithDefaults(d config.SearchConfig) Option {
	return func(s *Server) { s.defaults = d }
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithMaxSessions bounds the in-memory session registry.
func WithMaxSessions(n int) Option {
	return func(s *Server) { s.sessions = NewSessions(n) }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server.
func New(svc *search.Service, st store.Store, revealer search.Revealer, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		store:    st,
		revealer: revealer,
		sessions: NewSessions(defaultMaxSessions),
		defaults: search.Defaults(),
		origins:  []string{"*"},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch(s.svc.Run))
		r.Post("/dataset", s.handleSearch(s.svc.RunDataset))
		r.Post("/preview", s.handlePreview)
		r.Post("/rankings/move", s.handleMoveRanking)

		r.Get("/preferences/{email}", s.handlePreferences)

		r.Get("/history/{email}", s.handleListHistory)
		r.Get("/history/{email}/{id}", s.handleGetHistory)
		r.Delete("/history/{email}", s.handleClearHistory)

		r.Post("/searches/{id}/opportunities/{index}/reveal", s.handleReveal)
		r.Get("/searches/{id}/html", s.handleHTML)
	})

	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("server: listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server: shutdown")
	})
	return g.Wait()
}

type searchResponse struct {
	search.Snapshot
	Summary string `json:"summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("server: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(run func(context.Context, search.Form) (*search.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := s.decodeForm(w, r)
		if !ok {
			return
		}

		sess, err := run(r.Context(), form)
		if err != nil {
			writeSearchError(w, err)
			return
		}
		s.sessions.Put(sess)

		snap := sess.Snapshot()
		writeJSON(w, http.StatusOK, searchResponse{Snapshot: snap, Summary: render.Message(snap)})
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeForm(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, search.Preview(form))
}

type moveRequest struct {
	Rankings model.Rankings `json:"rankings"`
	From     int            `json:"from"`
	To       int            `json:"to"`
}

type moveResponse struct {
	Rankings model.Rankings         `json:"rankings"`
	Ranks    map[model.Priority]int `json:"ranks"`
}

// handleMoveRanking applies one drag-and-drop step to the priority order and
// returns the renumbered ranks. An empty order starts from the default.
func (s *Server) handleMoveRanking(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Rankings) == 0 {
		req.Rankings = model.DefaultRankings()
	}
	moved, err := req.Rankings.Move(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ranks := make(map[model.Priority]int, len(moved))
	for _, p := range moved {
		ranks[p] = moved.Rank(p)
	}
	writeJSON(w, http.StatusOK, moveResponse{Rankings: moved, Ranks: ranks})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	prefs, err := s.store.LoadPreferences(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeInternal(w, err)
		return
	}
	if prefs == nil {
		writeError(w, http.StatusNotFound, "No previous search found for this email address")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	entries, err := s.store.ListHistory(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	entry, err := s.store.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	if entry.UserEmail != model.NormalizeEmail(chi.URLParam(r, "email")) {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	n, err := s.store.ClearHistory(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= sess.Len() {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	op, err := sess.Reveal(r.Context(), index, s.revealer)
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		writeError(w, http.StatusNotFound, "no details available for this opportunity")
		return
	case err != nil:
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.HTML(w, sess.Snapshot(), s.now()); err != nil {
		zap.L().Error("server: render html", zap.String("search_id", sess.ID), zap.Error(err))
	}
}

func (s *Server) decodeForm(w http.ResponseWriter, r *http.Request) (search.Form, bool) {
	form := search.NewForm(s.defaults)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return search.Form{}, false
	}
	return form, true
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "history is not enabled")
		return false
	}
	return true
}

// writeSearchError maps a failed search to a status and the single message
// the form shows.
func writeSearchError(w http.ResponseWriter, err error) {
	var ve *search.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, fetcher.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, webhook.Message(err))
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, webhook.Message(err))
	case errors.Is(err, webhook.ErrNoURL):
		writeError(w, http.StatusBadRequest, "Please enter a valid webhook URL")
	default:
		upstream := resilience.StatusCode(err)
		zap.L().Warn("server: search failed", zap.Int("upstream_status", upstream), zap.Error(err))
		status := http.StatusBadGateway
		if upstream == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, webhook.Message(err))
	}
}

func writeInternal(w http.ResponseWriter, err error) {
	zap.L().Error("server: request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}
