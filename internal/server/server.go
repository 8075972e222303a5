// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/pipeline"
)

// multipartOverhead is allowed on top of the document limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// Analyzer runs one document through the pipeline.
type Analyzer interface {
	Run(ctx context.Context, doc pipeline.Document) (*pipeline.Outcome, error)
}

// Options configures the HTTP surface.
type Options struct {
	MaxBytes    int
	CORSOrigins []string
	RatePerSec  float64
	Burst       int
}

// Server serves POST /api/analyze and GET /health.
type Server struct {
	analyzer Analyzer
	opts     Options
	limiter  *clientLimiter
}

// New creates a Server.
func New(analyzer Analyzer, opts Options) *Server {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = ingest.DefaultMaxBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		analyzer: analyzer,
		opts:     opts,
		limiter:  newClientLimiter(opts.RatePerSec, opts.Burst, time.Now),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.With(s.limiter.middleware).Post("/api/analyze", s.handleAnalyze)
	return r
}

// ListenAndServe serves on port until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("request_id", RequestIDFromContext(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.opts.MaxBytes)+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, errorBody{
				Error:  msgInvalidDocument,
				Detail: fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit),
				Stage:  string(pipeline.StageIngest),
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorBody{Error: msgNoFile})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Error: msgNoFile})
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("read upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorBody{Error: msgInternal})
		return
	}

	out, err := s.analyzer.Run(r.Context(), pipeline.Document{
		Name:      header.Filename,
		Data:      data,
		MediaType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error("analysis failed", zap.String("file", header.Filename), zap.Error(err))
		}
		writeError(w, status, body)
		return
	}

	w.Header().Set("X-Contract-Version", out.ContractVersion)
	writeJSON(w, http.StatusOK, out.Artifact)
}
