// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer, the composition root. Every dependency
// is built here and handed down:
//
//	config → template store → TemplateService ─┐
//	config → decode pool → session Manager ─────┼→ EditorService → handlers
//	config → export sink ───────────────────────┘
//
// Keeping it separate from main.go makes the whole router testable with
// httptest (see server_test.go).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/promo-studio/internal/config"
	"github.com/sakif/promo-studio/internal/decode"
	"github.com/sakif/promo-studio/internal/delivery"
	"github.com/sakif/promo-studio/internal/handler"
	"github.com/sakif/promo-studio/internal/middleware"
	"github.com/sakif/promo-studio/internal/render"
	"github.com/sakif/promo-studio/internal/repository"
	"github.com/sakif/promo-studio/internal/repository/memory"
	sqliteRepo "github.com/sakif/promo-studio/internal/repository/sqlite"
	"github.com/sakif/promo-studio/internal/service"
	"github.com/sakif/promo-studio/internal/session"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store, the decode workers and the session janitor.
// Close releases them in reverse order of creation.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	store    repository.TemplateRepository
	closeDB  func() error
	pool     *decode.Pool
	sessions *session.Manager
}

// New builds the full dependency graph and the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === STORAGE ===
	store, closeDB, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	// === EXPORT ARCHIVE ===
	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		closeDB()
		return nil, err
	}

	// === IMAGE PIPELINE ===
	decodeCfg := decode.DefaultConfig()
	decodeCfg.Workers = cfg.DecodeWorkers
	pool := decode.NewPool(decodeCfg, logger)
	pool.Start()

	sessionCfg := session.DefaultConfig()
	sessionCfg.TTL = cfg.SessionTTL
	sessions := session.NewManager(sessionCfg, session.Deps{
		Decoder: pool,
		Raster:  render.NewRasterizer(logger),
		Logger:  logger,
	})
	sessions.Start()

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		closeDB:  closeDB,
		pool:     pool,
		sessions: sessions,
	}
	s.setupRoutes(sink)
	return s, nil
}

// openStore picks the template repository, like a STORAGE_TYPE switch.
func openStore(cfg config.Config, logger *slog.Logger) (repository.TemplateRepository, func() error, error) {
	switch cfg.StorageType {
	case config.StorageMemory:
		logger.Info("using storage", slog.String("storageType", "in-memory"))
		return memory.NewStore(), func() error { return nil }, nil
	default:
		// Ensure the data directory exists (like `mkdir -p`).
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Info("using storage",
			slog.String("storageType", config.StorageSQLite),
			slog.String("database", cfg.DBPath),
		)
		return db, db.Close, nil
	}
}

// openSink picks where downloaded exports are archived.
func openSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (delivery.Sink, error) {
	switch cfg.ExportSink {
	case config.SinkFilesystem:
		fs, err := delivery.NewFilesystem(cfg.ExportDir, logger)
		if err != nil {
			return nil, fmt.Errorf("opening export directory: %w", err)
		}
		logger.Info("archiving exports", slog.String("sink", "filesystem"), slog.String("dir", cfg.ExportDir))
		return fs, nil
	case config.SinkS3:
		s3, err := delivery.NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring S3 export sink: %w", err)
		}
		logger.Info("archiving exports", slog.String("sink", "s3"), slog.String("bucket", cfg.S3Bucket))
		return s3, nil
	default:
		return delivery.Nop{}, nil
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                             → liveness
// GET    /api/templates                       → List templates (?ownerId=)
// POST   /api/templates                       → Create template
// GET    /api/templates/{id}                  → Get template
// PUT    /api/templates/{id}                  → Update template (partial)
// DELETE /api/templates/{id}                  → Delete template
// POST   /api/sessions                        → Open editor session
// GET    /api/sessions/{id}                   → Session summary
// DELETE /api/sessions/{id}                   → Close session
// PATCH  /api/sessions/{id}/form              → Partial form update
// PUT    /api/sessions/{id}/image             → Upload product image (multipart)
// DELETE /api/sessions/{id}/image             → Restore placeholder
// GET    /api/sessions/{id}/image/preview     → Upload thumbnail
// GET    /api/sessions/{id}/preview           → Live view PNG
// GET    /api/sessions/{id}/export            → PNG download
// GET    /api/sessions/{id}/share             → Share data URI
// POST   /api/sessions/{id}/save              → Save as template
// POST   /api/sessions/{id}/select            → Select a slot
// POST   /api/sessions/{id}/move              → Move a slot
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs before Logger so every log line carries the id; CORS runs
// before routing so preflight requests never reach a handler.
func (s *Server) setupRoutes(sink delivery.Sink) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Archive-Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	templateService := service.NewTemplateService(s.store, s.logger)
	editorService := service.NewEditorService(s.sessions, templateService, sink, s.logger)

	templateHandler := handler.NewTemplateHandler(templateService, s.logger)
	editorHandler := handler.NewEditorHandler(editorService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.HandleList)
			r.Post("/", templateHandler.HandleCreate)
			r.Get("/{id}", templateHandler.HandleGetByID)
			r.Put("/{id}", templateHandler.HandleUpdate)
			r.Delete("/{id}", templateHandler.HandleDelete)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", editorHandler.HandleOpen)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", editorHandler.HandleGet)
				r.Delete("/", editorHandler.HandleClose)
				r.Patch("/form", editorHandler.HandleUpdateForm)
				r.Put("/image", editorHandler.HandleUploadImage)
				r.Delete("/image", editorHandler.HandleClearImage)
				r.Get("/image/preview", editorHandler.HandleImagePreview)
				r.Get("/preview", editorHandler.HandlePreview)
				r.Get("/export", editorHandler.HandleExport)
				r.Get("/share", editorHandler.HandleShare)
				r.Post("/save", editorHandler.HandleSave)
				r.Post("/select", editorHandler.HandleSelect)
				r.Post("/move", editorHandler.HandleMove)
			})
		})
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops the session janitor, the decode workers and the store.
func (s *Server) Close() error {
	s.sessions.Stop()
	s.pool.Stop()
	return s.closeDB()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close sessions, decode workers and the database
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("failed to release resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("storage", s.config.StorageType),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
