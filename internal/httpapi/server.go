package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/vinylaudio/annotator/internal/auth"
	"github.com/vinylaudio/annotator/internal/blob"
	"github.com/vinylaudio/annotator/internal/config"
	"github.com/vinylaudio/annotator/internal/jobs"
	"github.com/vinylaudio/annotator/internal/session"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	session  *session.Session
	queue    *jobs.Queue
	bucket   blob.Bucket
	auth     auth.Provider
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

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

func WithAuth(provider auth.Provider) Option {
	return func(s *Server) {
		s.auth = provider
	}
}

func WithBucket(bucket blob.Bucket) Option {
	return func(s *Server) {
		s.bucket = bucket
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

func NewServer(sess *session.Session, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		session:   sess,
		queue:     queue,
		uiEnabled: false,
		mux:       http.NewServeMux(),
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
	s.mux.HandleFunc("/api/audios", s.handleAudios)
	s.mux.HandleFunc("/api/audios/", s.handleAudioByID)
	s.mux.HandleFunc("/api/snippets", s.handleSnippets)
	s.mux.HandleFunc("/api/snippets/", s.handleSnippetByID)
	s.mux.HandleFunc("/api/merge", s.handleMerge)
	s.mux.HandleFunc("/api/speakers", s.handleSpeakers)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/state/stream", s.handleStateStream)
	s.mux.HandleFunc("/api/sync/retry", s.handleSyncRetry)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/files/", s.handleFiles)
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
