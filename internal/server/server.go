// Package server exposes a Subsonic session over a small HTTP API.
// It resolves now-playing entries, redirects or serves media streams, proxies
// cover art, returns segmented playlists and lists local downloads. The
// server uses chi/v5 for routing with CORS support and a WebSocket feed for
// now-playing snapshots and download progress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opd-ai/go-sonic/internal/downloader"
	"github.com/opd-ai/go-sonic/internal/hls"
	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/storage"
	"github.com/opd-ai/go-sonic/pkg/config"
)

// Backend is the Subsonic session the server talks to.
type Backend interface {
	media.Session
	Ping(ctx context.Context) error
	NowPlaying(ctx context.Context) ([]*media.NowPlaying, error)
	HLSPlaylist(ctx context.Context, v *media.Video) (*hls.Playlist, error)
}

// Server represents the HTTP server for go-sonic.
type Server struct {
	config     *config.ServerConfig
	logger     *slog.Logger
	backend    Backend
	storage    *storage.Manager
	downloads  *downloader.Manager
	hub        *hub
	httpServer *http.Server
	router     chi.Router

	// ctx outlives requests and bounds background downloads.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new HTTP server instance with the provided configuration.
// downloads may be nil, in which case download requests are rejected.
func New(cfg *config.ServerConfig, backend Backend, store *storage.Manager, downloads *downloader.Manager, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    cfg,
		logger:    logger,
		backend:   backend,
		storage:   store,
		downloads: downloads,
		hub:       newHub(logger),
		ctx:       ctx,
		cancel:    cancel,
	}
	if downloads != nil {
		downloads.SetProgressReporter(s)
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// setupMiddleware configures the middleware stack for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware())
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCompression {
		s.router.Use(middleware.Compress(5, "application/json"))
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Range"},
		ExposedHeaders:   []string{"Content-Range", "Accept-Ranges"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/now-playing", s.handleNowPlaying)
			r.Get("/now-playing/history", s.handleNowPlayingHistory)
			r.Get("/cover/{id}", s.handleCoverArt)
			r.Get("/hls/{id}", s.handleHLSPlaylist)
			r.Get("/downloads", s.handleListDownloads)
			r.Post("/downloads", s.handleStartDownload)
		})
		r.Get("/stream/{kind}/{id}", s.handleStream)
	})

	s.router.Get("/ws/now-playing", s.handleWebSocket)
}

// Start runs the HTTP server and the now-playing poller until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		"address", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go newPoller(s, s.config.NowPlayingInterval).run(ctx)

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.cancel()
		return fmt.Errorf("http server: %w", err)
	}
}

// Stop gracefully shuts down the HTTP server and closes WebSocket clients.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP server")
	s.cancel()
	s.hub.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Error shutting down HTTP server", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped successfully")
	return nil
}

// loggingMiddleware logs method, path, status, size and duration per request.
func (s *Server) loggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			s.logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"ip", r.RemoteAddr,
			)
		})
	}
}
