/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"emberloop.dev/emberloop/serve/logger"
	"emberloop.dev/emberloop/serve/middleware"
	"emberloop.dev/emberloop/serve/middleware/cors"
	"emberloop.dev/emberloop/serve/middleware/requestlogger"
)

// cssPollInterval is how often the CSS Watcher re-scans its configured
// directories. Chosen to be quick enough to feel live without a
// dedicated fsnotify watch.
const cssPollInterval = 500 * time.Millisecond

// Server ties together the Digest Store, Planner, Bus, Callback
// Registry, Change Ingest, CSS Watcher and Error Surface behind one
// HTTP listener exposing the figwheel-ws upgrade endpoint and static
// file serving.
type Server struct {
	Config    Config
	Oracle    DependencyOracle
	Digest    *DigestStore
	Planner   *Planner
	Bus       *Bus
	Callbacks *CallbackRegistry
	Ingest    *Ingest
	CSS       *CSSWatcher
	Errors    *ErrorSurface
	Logger    Logger

	ProjectID string
	BuildID   string

	connectionCount atomic.Int64

	mu         sync.Mutex
	running    bool
	listener   net.Listener
	httpServer *http.Server
	watcher    FileWatcher
	mtimes     map[string]int64
	cssStop    chan struct{}
}

// NewServer builds a Server from cfg, wiring every collaborator with
// in-process defaults (a MapOracle with no registered edges, an
// extractor that reads a file's leading (ns name ...) declaration).
// The Planner holds its own Oracle reference, so callers with a real
// compiler toolchain attached replace both srv.Oracle and
// srv.Planner.Oracle (and srv.Ingest.ExtractNS for other declaration
// shapes) before calling Start.
func NewServer(cfg Config) *Server {
	// unique-id (spec.md §6.3) overrides the derived project-id when the
	// caller sets it explicitly. Captured before WithDefaults, since that
	// call fills in a generated UniqueID when one wasn't configured and
	// would otherwise make "was it explicitly set" unrecoverable.
	explicitUniqueID := cfg.UniqueID

	cfg = cfg.WithDefaults()

	log := logger.NewDefaultLogger()

	oracle := NewMapOracle()
	digest := NewDigestStore(cfg.FS)
	planner := &Planner{Oracle: oracle, Digest: digest}
	bus := NewBus(cfg.CompileWaitDuration())
	callbacks := NewCallbackRegistry()

	nsDecl := regexp.MustCompile(`(?m)^\s*\(ns\s+([^\s()]+)`)
	extract := func(path string) (string, error) {
		data, err := cfg.FS.ReadFile(path)
		if err != nil {
			return "", err
		}
		m := nsDecl.FindSubmatch(data)
		if m == nil {
			return "", fmt.Errorf("no namespace declaration in %s", path)
		}
		return string(m[1]), nil
	}
	ingest := NewIngest(cfg, planner, digest, extract, log)

	var projectID string
	if explicitUniqueID != "" {
		projectID = explicitUniqueID
	} else if derived, err := DeriveProjectID("."); err == nil {
		projectID = derived
	} else {
		projectID = cfg.UniqueID
	}

	srv := &Server{
		Config:    cfg,
		Oracle:    oracle,
		Digest:    digest,
		Planner:   planner,
		Bus:       bus,
		Callbacks: callbacks,
		Ingest:    ingest,
		CSS:       NewCSSWatcher(cfg.CSSDirs, bus),
		Logger:    log,
		ProjectID: projectID,
		BuildID:   cfg.UniqueID,
		mtimes:    make(map[string]int64),
	}
	srv.Errors = NewErrorSurface(bus, srv.ProjectID)
	return srv
}

// Start binds the listener, seeds the Digest Store against the
// dependency-manifest files already on disk, starts the artifact-tree
// watcher and CSS poll loop, and begins serving HTTP.
func (srv *Server) Start() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", srv.Config.ServerPort))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", srv.Config.ServerPort, err)
	}
	srv.listener = listener

	srv.Digest.Seed(srv.Config.DependencyFiles())

	srv.httpServer = &http.Server{Handler: srv.buildHandler()}

	if srv.Config.OutputDir != "" {
		fw, err := newFileWatcher(srv.Config.ArtifactIgnoreDirs, 150*time.Millisecond, srv.Logger)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := fw.Watch(srv.Config.OutputDir); err != nil {
			_ = fw.Close()
			_ = listener.Close()
			return fmt.Errorf("failed to watch output directory: %w", err)
		}
		srv.watcher = fw
		go srv.handleFileChanges()
	}

	if len(srv.Config.CSSDirs) > 0 {
		srv.cssStop = make(chan struct{})
		go srv.runCSSPoll(srv.cssStop)
	}

	go func() {
		if err := srv.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			srv.Logger.Error("server error: %v", err)
		}
	}()

	srv.running = true
	srv.Logger.Info("dev server listening on http://localhost:%d", srv.Config.ServerPort)
	return nil
}

// Close shuts the server down: stops accepting new connections (which
// in turn closes every open Session via http.Server.Shutdown), stops
// the watchers, and releases the listener.
func (srv *Server) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if !srv.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if srv.httpServer != nil {
		if err := srv.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	if srv.watcher != nil {
		if err := srv.watcher.Close(); err != nil {
			srv.Logger.Error("failed to close file watcher: %v", err)
		}
	}

	if srv.cssStop != nil {
		close(srv.cssStop)
	}

	srv.running = false
	srv.Logger.Info("dev server stopped")
	return nil
}

// IsRunning reports whether Start has succeeded and Close has not yet
// been called.
func (srv *Server) IsRunning() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.running
}

// Port returns the configured listen port.
func (srv *Server) Port() int {
	return srv.Config.ServerPort
}

func (srv *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FigwheelWebSocketPath, srv.HandleWebSocket)

	fileServer := http.FileServer(http.Dir(srv.Config.HTTPServerRoot))
	mux.Handle("/", fileServer)

	return middleware.Pipeline(mux,
		requestlogger.New(srv.Logger),
		middleware.Stage(cors.New()),
	)
}

// handleFileChanges drains the artifact-tree watcher's debounced batch
// events, advances the mtime snapshot, and drives Change Ingest for
// each batch.
func (srv *Server) handleFileChanges() {
	for ev := range srv.watcher.Events() {
		srv.mu.Lock()
		oldMtimes := srv.mtimes
		newMtimes := make(map[string]int64, len(oldMtimes)+len(ev.Paths))
		for k, v := range oldMtimes {
			newMtimes[k] = v
		}
		for _, p := range ev.Paths {
			if info, err := os.Stat(p); err == nil {
				newMtimes[p] = info.ModTime().UnixNano()
			} else {
				delete(newMtimes, p)
			}
		}
		srv.mtimes = newMtimes
		srv.mu.Unlock()

		msg, ok := srv.Ingest.Run(oldMtimes, newMtimes, nil)
		if !ok {
			continue
		}
		msg.ProjectID = srv.ProjectID
		msg.BuildID = srv.BuildID
		srv.Bus.Publish(msg)
	}
}

// ForceReload reseeds the Digest Store against the current dependency-
// manifest files and broadcasts a files-changed message covering every
// namespace the Oracle knows about, regardless of whether anything
// actually changed on disk. Used by the interactive console's manual
// reload shortcut.
func (srv *Server) ForceReload() {
	srv.Digest.Seed(srv.Config.DependencyFiles())

	all := srv.Oracle.AllNamespaces()
	records := make([]FileRecord, 0, len(all))
	for _, ns := range all {
		records = append(records, FileRecord{
			File:      srv.Oracle.TargetFileFor(ns.Name),
			Type:      "namespace",
			Namespace: ns.Name,
		})
	}

	msg := NewFilesChangedMessage(srv.ProjectID, srv.BuildID, nil, records)
	srv.Bus.Publish(msg)
}

func (srv *Server) runCSSPoll(stop <-chan struct{}) {
	ticker := time.NewTicker(cssPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			srv.CSS.CheckForChanges(srv.ProjectID)
		case <-stop:
			return
		}
	}
}
