// Package server exposes the estimate system over HTTP: estimate and
// price-catalog CRUD, the dictation workflow endpoints, a WebSocket
// speech-capture channel, and the operational probes.
//
// All JSON handlers share one error contract: domain validation failures map
// to 400, missing resources to 404, dictation conflicts (a parse already in
// flight, a stale parse result) to 409, and everything else to 500 with the
// detail kept in the server log rather than the response body.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/velesk/smetka/internal/dictation"
	"github.com/velesk/smetka/internal/estimate"
	"github.com/velesk/smetka/internal/estimate/eststore"
	"github.com/velesk/smetka/internal/health"
	"github.com/velesk/smetka/internal/observe"
	"github.com/velesk/smetka/internal/pricelist"
)

// shutdownTimeout bounds the drain of in-flight requests once the run
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// Config assembles the server's collaborators. Controller, Estimates, and
// Catalog are required; the rest are optional.
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g. ":8080").
	ListenAddr string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// Controller orchestrates the dictation workflow.
	Controller *dictation.Controller

	// Estimates is the estimate storage backend.
	Estimates eststore.Store

	// Catalog is the price-catalog storage backend.
	Catalog pricelist.Store

	// Suggest serves semantic catalog suggestions. Nil disables the
	// suggestion endpoint (it answers 503).
	Suggest *pricelist.SemanticIndex

	// Language is the recognition locale announced to capture clients.
	// Defaults to "ru-RU".
	Language string

	// Health serves the liveness and readiness probes. When nil a
	// checker-less handler is used.
	Health *health.Handler

	// MetricsHandler serves GET /metrics (typically promhttp.Handler()).
	// Nil disables the endpoint.
	MetricsHandler http.Handler

	// Metrics instruments request handling. Defaults to the process-wide set.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the HTTP front of the estimate system.
type Server struct {
	cfg      Config
	log      *slog.Logger
	handler  http.Handler
	language string
}

// New validates cfg, builds the route table, and returns a ready-to-run
// server. The handler is also usable directly in tests via [Server.Handler].
func New(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("server: Controller is required")
	}
	if cfg.Estimates == nil {
		return nil, errors.New("server: Estimates store is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("server: Catalog store is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "ru-RU"
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}

	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		language: cfg.Language,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully assembled route tree, instrumented with the
// observability middleware.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Estimates
	mux.HandleFunc("GET /api/estimates", s.handleListEstimates)
	mux.HandleFunc("POST /api/estimates", s.handleCreateEstimate)
	mux.HandleFunc("GET /api/estimates/{id}", s.handleGetEstimate)
	mux.HandleFunc("PUT /api/estimates/{id}", s.handleUpdateEstimate)
	mux.HandleFunc("DELETE /api/estimates/{id}", s.handleDeleteEstimate)

	// Price catalog
	mux.HandleFunc("GET /api/price-items", s.handleListPriceItems)
	mux.HandleFunc("POST /api/price-items", s.handleCreatePriceItem)
	mux.HandleFunc("GET /api/price-items/suggest", s.handleSuggestPriceItems)
	mux.HandleFunc("GET /api/price-items/{id}", s.handleGetPriceItem)
	mux.HandleFunc("PUT /api/price-items/{id}", s.handleUpdatePriceItem)
	mux.HandleFunc("DELETE /api/price-items/{id}", s.handleDeletePriceItem)

	// Dictation workflow
	mux.HandleFunc("GET /api/dictation", s.handleDictationState)
	mux.HandleFunc("POST /api/dictation/audio", s.handleDictationAudio)
	mux.HandleFunc("POST /api/dictation/text", s.handleDictationText)
	mux.HandleFunc("DELETE /api/dictation/text", s.handleDictationClearText)
	mux.HandleFunc("POST /api/dictation/parse", s.handleDictationParse)
	mux.HandleFunc("POST /api/dictation/items", s.handleDictationAddItem)
	mux.HandleFunc("PUT /api/dictation/client", s.handleDictationClient)
	mux.HandleFunc("POST /api/dictation/complete", s.handleDictationComplete)
	mux.HandleFunc("POST /api/dictation/draft", s.handleDictationDraft)
	mux.HandleFunc("POST /api/dictation/load/{id}", s.handleDictationLoad)
	mux.HandleFunc("POST /api/dictation/reset", s.handleDictationReset)

	// Speech capture
	mux.HandleFunc("GET /ws/capture", s.handleCapture)

	// Operational endpoints
	s.cfg.Health.Register(mux)
	if s.cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	}

	return observe.Middleware(s.cfg.Metrics)(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// [shutdownTimeout].
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			s.log.Info("https server listening", "addr", s.cfg.ListenAddr)
			err = srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			s.log.Info("http server listening", "addr", s.cfg.ListenAddr)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ── response helpers ─────────────────────────────────────────────────────────

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

// writeError maps domain errors onto status codes. Unexpected failures are
// logged and reported as an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *estimate.ValidationError

	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error()})
	case errors.Is(err, eststore.ErrNotFound), errors.Is(err, pricelist.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, dictation.ErrEmptyTranscript):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, dictation.ErrParseInFlight), errors.Is(err, dictation.ErrStaleParse):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &estimate.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// pathID extracts the {id} path value as an int64.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &estimate.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a valid identifier", raw)}
	}
	return id, nil
}
