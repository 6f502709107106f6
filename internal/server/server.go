package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/docuchat/docuchat/internal/audit"
	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/qa"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// QA is the question-answering surface the server exposes.
type QA interface {
	Ask(ctx context.Context, sessionID string, caller qa.Caller, query string) (*qa.Answer, error)
	DeleteFileID(ctx context.Context, caller qa.Caller, fileID string) (corpus.FileInfo, error)
}

// FileLister lists the documents of the active corpus.
type FileLister interface {
	List(ctx context.Context) ([]corpus.FileInfo, error)
}

// Uploader indexes a document already written to disk.
type Uploader interface {
	IngestFile(ctx context.Context, path string) (corpus.FileInfo, error)
	UploadPath(filename string) string
}

// CorpusAdmin manages the named corpora.
type CorpusAdmin interface {
	Active() string
	List() ([]string, error)
	Switch(ctx context.Context, name string) error
}

// ChunkCounter reports the size of the active vector index.
type ChunkCounter interface {
	Count() int
}

// Deps are the server's collaborators.
type Deps struct {
	QA       QA
	Files    FileLister
	Uploader Uploader
	Corpora  CorpusAdmin
	Chunks   ChunkCounter
	Trail    *audit.Store
}

// Server is the document chat HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies.
func New(cfg Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", roleHeader, userHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.registerRoutes(r)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      300 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("docuchat server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
