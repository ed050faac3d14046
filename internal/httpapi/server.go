// Package httpapi is the HTTP surface of the annotator: video lifecycle,
// frames, annotations and session documents.
package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MimeLyc/video-annotator/internal/autosave"
	"github.com/MimeLyc/video-annotator/internal/config"
	"github.com/MimeLyc/video-annotator/internal/notify"
	"github.com/MimeLyc/video-annotator/internal/persistence"
	"github.com/MimeLyc/video-annotator/internal/session"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type documentSaver interface {
	Save(ctx context.Context, name string) (autosave.Result, error)
}

type documentStore interface {
	ListDocuments(ctx context.Context) ([]persistence.DocumentSummary, error)
	LoadDocument(ctx context.Context, name string) (*persistence.Document, error)
	DeleteDocument(ctx context.Context, name string) error
}

type remoteDocuments interface {
	GetDocument(ctx context.Context, name string) ([]byte, error)
}

type Server struct {
	manager   *session.Manager
	feed      *notify.Feed
	saver     documentSaver
	documents documentStore
	remote    remoteDocuments
	settings  runtimeSettingsStore
	apply     runtimeSettingsApplier

	dumpDir     string
	dumpWorkers int

	uiEnabled   bool
	uiStaticDir string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithNotifications(feed *notify.Feed) Option {
	return func(s *Server) {
		s.feed = feed
	}
}

func WithSaver(saver documentSaver) Option {
	return func(s *Server) {
		s.saver = saver
	}
}

func WithDocumentStore(store documentStore) Option {
	return func(s *Server) {
		s.documents = store
	}
}

// WithRemoteDocuments adds a fallback source for documents missing from the
// document store.
func WithRemoteDocuments(remote remoteDocuments) Option {
	return func(s *Server) {
		s.remote = remote
	}
}

func WithFrameDump(dir string, workers int) Option {
	return func(s *Server) {
		s.dumpDir = dir
		s.dumpWorkers = workers
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(manager *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager:     manager,
		dumpWorkers: 1,
		uiEnabled:   false,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/video", s.handleVideo)
	s.mux.HandleFunc("/api/video/open", s.handleOpen)
	s.mux.HandleFunc("/api/video/close", s.handleClose)
	s.mux.HandleFunc("/api/video/stream", s.handleVideoStream)
	s.mux.HandleFunc("/api/frames/dump", s.handleDump)
	s.mux.HandleFunc("/api/frames/{index}", s.handleFrame)
	s.mux.HandleFunc("/api/annotations", s.handleAnnotations)
	s.mux.HandleFunc("/api/labels", s.handleLabels)
	s.mux.HandleFunc("/api/session/export", s.handleExport)
	s.mux.HandleFunc("/api/session/import", s.handleImport)
	s.mux.HandleFunc("/api/session/save", s.handleSave)
	s.mux.HandleFunc("/api/session/documents", s.handleListDocuments)
	s.mux.HandleFunc("/api/session/documents/{name}", s.handleDocument)
	s.mux.HandleFunc("/api/session/documents/{name}/load", s.handleLoadDocument)
	s.mux.HandleFunc("/api/notifications", s.handleNotifications)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
