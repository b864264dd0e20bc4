// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the cognitia daemon: create, start, stop.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/corey/cognitia/internal/adapters/ahocorasick"
	"github.com/corey/cognitia/internal/adapters/bbolt"
	"github.com/corey/cognitia/internal/adapters/dictfile"
	fsw "github.com/corey/cognitia/internal/adapters/fsnotify"
	"github.com/corey/cognitia/internal/adapters/htmltext"
	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/adapters/sqlite"
	"github.com/corey/cognitia/internal/adapters/web"
	"github.com/corey/cognitia/internal/config"
	"github.com/corey/cognitia/internal/domain/automaton"
	"github.com/corey/cognitia/internal/domain/matcher"
	"github.com/corey/cognitia/internal/ports"
	"github.com/corey/cognitia/seed"
)

// startupTimeout bounds opening, seeding and the first build.
const startupTimeout = 30 * time.Second

// App is the top-level container wiring all components together.
type App struct {
	ProjectRoot string
	Paths       *Paths
	Settings    config.Config

	Store       ports.TopicStore
	Matcher     *matcher.Matcher
	Coordinator *matcher.Coordinator
	Server      *socket.Server
	WebServer   *web.Server   // nil when http.enabled is false
	Watcher     ports.Watcher // nil unless dictionary.watch

	logger    *slog.Logger
	logCloser io.Closer
	seedPath  string // absolute dictionary.seed_path, empty = embedded seed
}

var _ socket.AppQueries = (*App)(nil)

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	Settings    *config.Config // nil = load .cognitia/config.yaml
	Logger      *slog.Logger   // nil = text log at .cognitia/log/daemon.log
	SocketPath  string         // empty = socket.SocketPath(ProjectRoot)
}

// New creates an App with all dependencies wired and the first snapshot
// built. Does not start services.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	paths := NewPaths(cfg.ProjectRoot)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create %s: %w", paths.Root, err)
	}

	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	} else {
		loaded, err := config.Load(paths.Config)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	a := &App{
		ProjectRoot: cfg.ProjectRoot,
		Paths:       paths,
		Settings:    settings,
		logger:      cfg.Logger,
		seedPath:    resolve(cfg.ProjectRoot, settings.Dictionary.SeedPath),
	}
	if a.logger == nil {
		logger, closer, err := NewFileLogger(paths.DaemonLog, settings.Log.Level)
		if err != nil {
			return nil, err
		}
		a.logger, a.logCloser = logger, closer
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := OpenStore(ctx, settings, paths)
	if err != nil {
		a.closeLog()
		return nil, err
	}
	a.Store = store

	if err := a.seedIfEmpty(ctx); err != nil {
		a.closeAll()
		return nil, err
	}

	a.Matcher = matcher.New(store,
		matcher.WithLogger(a.logger),
		matcher.WithScannerFactory(ScannerFactory(settings.Matcher.Engine)),
	)
	if err := a.Matcher.Initialize(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("initialize matcher: %w", err)
	}
	a.Coordinator = matcher.NewCoordinator(a.Matcher, a.logger)

	sockPath := cfg.SocketPath
	if sockPath == "" {
		sockPath = socket.SocketPath(cfg.ProjectRoot)
	}
	a.Server = socket.NewServer(a, sockPath)

	if settings.HTTP.Enabled {
		a.WebServer = web.NewServer(a, paths.PortFile, a.logger)
	}

	if settings.Dictionary.Watch {
		w, err := fsw.NewWatcher()
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		a.Watcher = w
	}

	return a, nil
}

// OpenStore opens the configured topic store backend.
func OpenStore(ctx context.Context, settings config.Config, paths *Paths) (ports.TopicStore, error) {
	root := filepath.Dir(paths.Root)
	switch settings.Store.Backend {
	case config.BackendSQLite:
		path := settings.Store.Path
		if path == "" {
			path = paths.SQLiteDB
		}
		s, err := sqlite.Open(ctx, resolve(root, path))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	default:
		path := settings.Store.Path
		if path == "" {
			path = paths.DB
		}
		s, err := bbolt.NewStore(resolve(root, path))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	}
}

// ScannerFactory returns the Aho-Corasick engine for a matcher.engine value.
func ScannerFactory(engine string) ports.ScannerFactory {
	if engine == config.EngineDFA {
		return ahocorasick.NewScanner
	}
	return automaton.NewScanner
}

// SeedRecords loads the configured seed dictionary, or the embedded one.
func SeedRecords(seedPath string) (dictfile.Dictionary, error) {
	if seedPath != "" {
		return dictfile.Load(seedPath)
	}
	return dictfile.Parse(seed.Topics)
}

func (a *App) seedIfEmpty(ctx context.Context) error {
	n, err := a.Store.CountTopics(ctx)
	if err != nil {
		return fmt.Errorf("count topics: %w", err)
	}
	if n > 0 {
		return nil
	}
	dict, err := SeedRecords(a.seedPath)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	dict.LogSkipped(a.logger, a.seedSource())
	res, err := dictfile.Import(ctx, a.Store, dict.Topics)
	if err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	a.logger.Info("seeded empty store", "upserted", res.Upserted, "skipped", res.Skipped+len(dict.Skipped))
	return nil
}

func (a *App) seedSource() string {
	if a.seedPath == "" {
		return "embedded"
	}
	return a.seedPath
}

// Start begins serving on the socket, and on HTTP and the dictionary
// watcher when configured. Only the socket is fatal.
func (a *App) Start() error {
	if err := a.Server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	a.Coordinator.Start(context.Background())

	if a.WebServer != nil {
		addr := a.Settings.HTTP.Addr
		if addr == "" {
			addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(web.DefaultPort(a.ProjectRoot)))
		}
		if err := a.WebServer.Start(addr); err != nil {
			a.logger.Warn("HTTP API unavailable", "addr", addr, "err", err)
		} else {
			a.logger.Info("HTTP API listening", "url", a.WebServer.URL())
		}
	}

	if a.Watcher != nil {
		if err := a.Watcher.Watch(a.seedPath, a.onDictionaryChanged); err != nil {
			a.logger.Warn("dictionary watcher unavailable", "path", a.seedPath, "err", err)
		}
	}
	a.logger.Info("daemon started", "socket", a.Server.Addr())
	return nil
}

// Stop gracefully shuts down all services and closes the store.
func (a *App) Stop() error {
	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	if a.WebServer != nil {
		a.WebServer.Stop()
	}
	a.Server.Stop()
	a.Coordinator.Stop()
	a.logger.Info("daemon stopped")
	a.closeAll()
	return nil
}

func (a *App) closeAll() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn("close store", "err", err)
		}
	}
	a.closeLog()
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// Logger returns the daemon logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Search runs one text through the current snapshot. With html set the text
// is reduced to its visible content first.
func (a *App) Search(text string, html bool) []matcher.Match {
	if html {
		text = htmltext.Extract(text)
	}
	return a.Matcher.Search(text)
}

// MatchPosts searches every post against the same snapshot.
func (a *App) MatchPosts(posts []socket.Post) []socket.PostResult {
	snap := a.Matcher.Snapshot()
	results := make([]socket.PostResult, 0, len(posts))
	for _, p := range posts {
		text := p.Text
		if text == "" && p.HTML != "" {
			text = htmltext.Extract(p.HTML)
		}
		var matches []matcher.Match
		if snap != nil {
			matches = snap.Search(text)
		} else {
			matches = a.Matcher.Search(text)
		}
		results = append(results, socket.PostResult{Post: p, Text: text, Matches: matches})
	}
	return results
}

// Rebuild rebuilds synchronously and reports the snapshot that rebuild
// stored, even if a background rebuild has replaced it since.
func (a *App) Rebuild(ctx context.Context) (socket.RebuildResult, error) {
	start := time.Now()
	snap, err := a.Matcher.RebuildSnapshot(ctx)
	if err != nil {
		return socket.RebuildResult{}, err
	}
	return socket.RebuildResult{
		Snapshot:     snap.ID,
		Generation:   snap.Generation,
		TopicCount:   snap.TopicCount,
		PatternCount: snap.PatternCount,
		Skipped:      len(snap.Problems),
		ElapsedMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Health reports matcher state plus the configured backend and engine.
func (a *App) Health() socket.HealthResult {
	st := a.Matcher.Stats()
	status := "ok"
	switch {
	case !st.Initialized:
		status = "starting"
	case st.LastError != "":
		status = "degraded"
	}
	return socket.HealthResult{
		Status:  status,
		Store:   a.Settings.Store.Backend,
		Engine:  a.Settings.Matcher.Engine,
		Matcher: st,
	}
}

// Topics lists the store in dictionary order.
func (a *App) Topics(ctx context.Context) ([]ports.TopicRecord, error) {
	return a.Store.ListAllTopics(ctx)
}

// Topic fetches one topic.
func (a *App) Topic(ctx context.Context, id int64) (ports.TopicRecord, error) {
	return a.Store.GetTopic(ctx, id)
}

// UpsertTopics writes topics by URL and schedules a background rebuild.
func (a *App) UpsertTopics(ctx context.Context, topics []ports.TopicRecord) (socket.UpsertResult, error) {
	res, err := dictfile.Import(ctx, a.Store, topics)
	if res.Upserted > 0 {
		a.Coordinator.Trigger()
	}
	return res, err
}

// DeleteTopic removes a topic and schedules a background rebuild.
func (a *App) DeleteTopic(ctx context.Context, id int64) error {
	if err := a.Store.DeleteTopic(ctx, id); err != nil {
		return err
	}
	a.Coordinator.Trigger()
	return nil
}
