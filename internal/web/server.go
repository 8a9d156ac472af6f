package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fdtrace/internal/model"
	"fdtrace/internal/trace"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

// Server serves one finished analysis over HTTP.
type Server struct {
	router    *chi.Mux
	logger    *zap.Logger
	result    trace.Result
	tracePath string
	gatherer  prometheus.Gatherer
}

// NewServer wires the routes. tracePath may be empty when the trace came
// from stdin or a live run; line context is then unavailable.
func NewServer(res trace.Result, tracePath string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.Named("web"),
		result:    res,
		tracePath: tracePath,
		gatherer:  gatherer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	subFS, _ := fs.Sub(staticFS, "static")
	s.router.Handle("/*", http.FileServer(http.FS(subFS)))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/result", s.handleResult)
		r.Get("/report", s.handleReport)
		r.Get("/line-context", s.handleLineContext)
		r.Get("/help", s.handleHelp)
	})

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	response := struct {
		trace.Result
		Version string `json:"version"`
	}{
		Result:  s.result,
		Version: model.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encode result", zap.Error(err))
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	verbose, _ := strconv.ParseBool(r.URL.Query().Get("verbose"))
	report := trace.GenerateReport(s.result, trace.ReportOptions{
		Verbose:   verbose,
		TracePath: s.tracePath,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(report))
}

func (s *Server) handleLineContext(w http.ResponseWriter, r *http.Request) {
	if s.tracePath == "" {
		http.Error(w, "trace was not read from a file", http.StatusNotFound)
		return
	}
	line, err := strconv.Atoi(r.URL.Query().Get("line"))
	if err != nil {
		http.Error(w, "invalid line number", http.StatusBadRequest)
		return
	}
	radius := 2
	if v := r.URL.Query().Get("radius"); v != "" {
		if radius, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid radius", http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.GetLineContext(s.tracePath, line, radius))
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	text := strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)

	w.Header().Set("Content-Type", "text/markdown")
	w.Write([]byte(text))
}
