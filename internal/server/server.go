package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"

	_ "github.com/jackzampolin/bitbybit/docs/swagger"
	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/classify"
	"github.com/jackzampolin/bitbybit/internal/config"
	"github.com/jackzampolin/bitbybit/internal/document"
	"github.com/jackzampolin/bitbybit/internal/home"
	"github.com/jackzampolin/bitbybit/internal/jobs"
	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/progress"
	"github.com/jackzampolin/bitbybit/internal/prompts"
	"github.com/jackzampolin/bitbybit/internal/prompts/split_sections"
	"github.com/jackzampolin/bitbybit/internal/providers"
	"github.com/jackzampolin/bitbybit/internal/server/endpoints"
	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/structure"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
	"github.com/jackzampolin/bitbybit/internal/tracking"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// Server is the bitbybit HTTP server. It owns the store, the background
// job manager and the read tracking sessions.
type Server struct {
	cfg        Config
	httpServer *http.Server
	registry   *providers.Registry
	prompts    *prompts.Resolver
	logger     *slog.Logger

	store      store.Store
	jobManager *jobs.Manager
	tracker    *tracking.Tracker
	sessions   *tracking.Sessions
	recorder   *llmcall.Recorder

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the data directory. The database and page renders live here.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Defaults are used when nil.
	ConfigManager *config.Manager
	// Store overrides the store opened from config.
	Store store.Store
	// Classifier overrides the configured LLM classifier.
	Classifier classify.Classifier
	// Opener overrides the PDF opener.
	Opener document.Opener
	// MaxUploadBytes bounds an imported PDF (default: 500MB)
	MaxUploadBytes int64
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration. Call Init or
// Start before serving API requests.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		registry: providers.NewRegistry(cfg.Logger),
		prompts:  prompts.NewResolver(cfg.Logger),
		logger:   cfg.Logger,
	}
	split_sections.Register(s.prompts)

	current := s.config()
	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s.registry.Reload(current.ToProviderRegistryConfig())
	s.prompts.SetOverrides(current.Prompts)

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{MaxUploadBytes: cfg.MaxUploadBytes}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Init opens the store and builds the services behind the API. It is
// called by Start; tests call it directly and serve Handler.
func (s *Server) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services != nil {
		return nil
	}

	cfg := s.config()

	st := s.cfg.Store
	if st == nil {
		dbPath := ""
		if s.cfg.Home != nil {
			if err := s.cfg.Home.EnsureExists(); err != nil {
				return fmt.Errorf("failed to create home directory: %w", err)
			}
			dbPath = s.cfg.Home.DatabasePath()
		}
		opened, err := store.Open(ctx, cfg.StoreOptions(dbPath, s.logger))
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		st = opened
	}
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}
	s.store = st

	opener := s.cfg.Opener
	if opener == nil {
		opener = s.pdfOpener(cfg)
	}
	s.recorder = llmcall.NewRecorder(st, s.logger)
	classifier := s.cfg.Classifier
	if classifier == nil {
		classifier = s.llmClassifier(s.recorder)
	}

	s.tracker = tracking.NewTracker(tracking.TrackerConfig{
		Config: cfg.TrackingConfig(),
		Marker: tracking.NewRetryMarker(st, tracking.RetryOptions{Logger: s.logger}),
		Logger: s.logger,
		OnError: func(sectionID string, err error) {
			s.logger.Error("failed to mark section read", "section_id", sectionID, "error", err)
		},
	})
	s.sessions = tracking.NewSessions(s.tracker, cfg.Tracking.SessionTTL, s.logger)

	s.jobManager = jobs.NewManager(jobs.Dependencies{Store: st, Logger: s.logger}, s.logger)

	s.services = &svcctx.Services{
		Store:         st,
		JobManager:    s.jobManager,
		Registry:      s.registry,
		ConfigManager: s.cfg.ConfigManager,
		Logger:        s.logger,
		Home:          s.cfg.Home,
		Importer: structure.NewImporter(structure.ImporterConfig{
			Store:     st,
			Opener:    opener,
			BatchSize: cfg.Structuring.BatchSize,
			Logger:    s.logger,
		}),
		Splitter: structure.NewSplitter(structure.SplitterConfig{
			Store:      st,
			Classifier: classifier,
			Opener:     opener,
			Policy:     structure.RestructurePolicy(cfg.Structuring.RestructurePolicy),
			ClaimTTL:   cfg.Structuring.ClaimTTL,
			Logger:     s.logger,
		}),
		Progress: progress.NewQuery(st),
		Sessions: s.sessions,
	}

	if s.cfg.ConfigManager != nil {
		s.cfg.ConfigManager.OnChange(s.applyConfig)
	}
	s.logger.Info("services initialized", "store", cfg.Storage.Driver, "tracking_mode", cfg.Tracking.Mode)
	return nil
}

// applyConfig picks up the settings that can change while running.
// Storage and structuring settings need a restart.
func (s *Server) applyConfig(c *config.Config) {
	s.registry.Reload(c.ToProviderRegistryConfig())
	s.prompts.SetOverrides(c.Prompts)
	if s.tracker != nil {
		s.tracker.SetConfig(c.TrackingConfig())
	}
	s.logger.Info("configuration reloaded")
}

// llmClassifier resolves the default provider on every call so provider
// changes apply without a restart. Every call is recorded to rec.
func (s *Server) llmClassifier(rec *llmcall.Recorder) classify.Classifier {
	return classify.Func(func(ctx context.Context, req classify.Request) (*classify.Result, error) {
		cfg := s.config()
		client, err := s.registry.Get(cfg.Defaults.LLMProvider)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		llm := classify.NewLLM(classify.LLMConfig{
			Client:   client,
			Prompts:  s.prompts,
			Model:    cfg.Defaults.Model,
			Logger:   s.logger,
			Recorder: rec,
		})
		return llm.SplitPagesIntoSections(ctx, req)
	})
}

func (s *Server) pdfOpener(cfg *config.Config) document.Opener {
	var tempDir string
	if s.cfg.Home != nil {
		tempDir = s.cfg.Home.RendersPath()
	}
	return document.PDFOpener{Options: document.PDFOptions{
		Renderer: &document.PdftoppmRenderer{
			Binary:   cfg.Structuring.Pdftoppm,
			DPI:      cfg.Structuring.RenderDPI,
			MaxWidth: cfg.Structuring.MaxImageWidth,
			TempDir:  tempDir,
		},
		TempDir: tempDir,
		Logger:  s.logger,
	}}
}

func (s *Server) config() *config.Config {
	if s.cfg.ConfigManager != nil {
		return s.cfg.ConfigManager.Get()
	}
	return config.DefaultConfig()
}

// Start initializes services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Init(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	if s.cfg.ConfigManager != nil {
		s.cfg.ConfigManager.WatchConfig()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return multierr.Append(fmt.Errorf("HTTP server error: %w", err), s.shutdown())
		}
	}

	return s.shutdown()
}

// Close releases the services without touching the HTTP listener. Used
// when the server was only initialized.
func (s *Server) Close() error {
	return s.closeServices(context.Background())
}

// shutdown stops HTTP first so no new work arrives, then cancels jobs,
// disposes tracking sessions, flushes recorded LLM calls and closes the
// store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if herr := s.httpServer.Shutdown(ctx); herr != nil {
		err = multierr.Append(err, fmt.Errorf("http shutdown: %w", herr))
	}
	err = multierr.Append(err, s.closeServices(ctx))

	s.setNotRunning()
	if err != nil {
		s.logger.Error("server stopped with errors", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) closeServices(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services == nil {
		return nil
	}

	var err error
	if jerr := s.jobManager.Shutdown(ctx); jerr != nil {
		err = multierr.Append(err, fmt.Errorf("job shutdown: %w", jerr))
	}
	s.sessions.CloseAll()
	s.recorder.Close()
	if serr := s.store.Close(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("store close: %w", serr))
	}
	s.services = nil
	return err
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// JobManager returns the job manager.
// Returns nil if the server hasn't been initialized.
func (s *Server) JobManager() *jobs.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobManager
}

// Store returns the store.
// Returns nil if the server hasn't been initialized.
func (s *Server) Store() store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		ctx := r.Context()
		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until Init has run.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.ServicesFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
