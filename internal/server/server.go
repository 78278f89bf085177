// Package server exposes the processing pipelines over HTTP/JSON.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/contaflux/contaflux/internal/domain/classification"
	"github.com/contaflux/contaflux/internal/domain/receipt"
	"github.com/contaflux/contaflux/internal/domain/statement"
	"github.com/contaflux/contaflux/pkg/config"
	"github.com/contaflux/contaflux/pkg/storage"
)

// Server wires the domain services to their HTTP routes.
type Server struct {
	receipts   *receipt.Service
	statements *statement.Service
	terms      classification.TermRepository
	search     *classification.TermSearchIndex
	documents  storage.DocumentStore
	workspace  *storage.Workspace
	logger     *slog.Logger

	jwtSecret []byte
	limiter   *rate.Limiter
	httpSrv   *http.Server
}

func New(
	cfg config.ServerConfig,
	jwtSecret string,
	receipts *receipt.Service,
	statements *statement.Service,
	terms classification.TermRepository,
	search *classification.TermSearchIndex,
	documents storage.DocumentStore,
	workspace *storage.Workspace,
	logger *slog.Logger,
) *Server {
	s := &Server{
		receipts:   receipts,
		statements: statements,
		terms:      terms,
		search:     search,
		documents:  documents,
		workspace:  workspace,
		logger:     logger,
		jwtSecret:  []byte(jwtSecret),
		limiter:    newLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           corsWrapper.Handler(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	protected := func(route string, h http.HandlerFunc) http.Handler {
		return s.observe(route, s.rateLimit(s.authenticate(h)))
	}

	mux.Handle("POST /v1/receipts", protected("receipts_process", s.handleProcessReceipt))
	mux.Handle("POST /v1/statements", protected("statements_process", s.handleProcessStatement))
	mux.Handle("POST /v1/statements/finalize", protected("statements_finalize", s.handleFinalize))
	mux.Handle("GET /v1/terms/search", protected("terms_search", s.handleSearchTerms))
	mux.Handle("GET /v1/outputs/{name}", protected("outputs_download", s.handleDownload))
	mux.Handle("POST /v1/workspace/clean", protected("workspace_clean", s.handleClean))

	mux.Handle("GET /healthz", s.observe("healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Run serves until the context is canceled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpSrv.Addr))
		errc <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
