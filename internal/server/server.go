// Package server is the HTTP surface: health, session creation, metrics and
// the frontend build.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/config"
	"github.com/adhney/voice-interviewer/internal/logging"
	"github.com/adhney/voice-interviewer/internal/metrics"
)

const serviceName = "voice-interviewer"

// Rooms creates interview rooms and participant tokens.
type Rooms interface {
	URL() string
	CreateRoom(ctx context.Context, roomName, metadata string) error
	GenerateToken(roomName, identity, name string, isAgent bool) (string, error)
	DeleteRoom(ctx context.Context, roomName string) error
}

// Dispatcher starts the interviewer in a room.
type Dispatcher interface {
	Dispatch(ctx context.Context, roomName string) error
}

type Options struct {
	Config  config.ServerConfig
	Rooms   Rooms
	Agents  Dispatcher
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

type Server struct {
	cfg     config.ServerConfig
	rooms   Rooms
	agents  Dispatcher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(opts Options) *Server {
	return &Server{
		cfg:     opts.Config,
		rooms:   opts.Rooms,
		agents:  opts.Agents,
		metrics: opts.Metrics,
		log:     logging.OrNop(opts.Log).With(zap.String("component", "http")),
	}
}

// Router returns a configured chi router for embedding in HTTP servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.FrontendURL != "" {
		r.Use(s.cors)
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Post("/sessions", s.handleCreateSession)
		api.Delete("/sessions/{room}", s.handleEndSession)
		api.Options("/sessions", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	if reg := s.metrics.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if s.cfg.StaticDir != "" {
		if fi, err := os.Stat(s.cfg.StaticDir); err == nil && fi.IsDir() {
			r.NotFound(s.spa(s.cfg.StaticDir))
		} else {
			s.log.Info("static dir not found, frontend not served", zap.String("dir", s.cfg.StaticDir))
		}
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// spa serves files from dir, falling back to index.html for client routes.
func (s *Server) spa(dir string) http.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		clean := filepath.Clean("/" + r.URL.Path)
		path := filepath.Join(dir, filepath.FromSlash(clean))
		if fi, err := os.Stat(path); err != nil || fi.IsDir() || strings.HasPrefix(clean, "/api/") {
			http.ServeFile(w, r, index)
			return
		}
		http.ServeFile(w, r, path)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.FrontendURL)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Add("Vary", "Origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
