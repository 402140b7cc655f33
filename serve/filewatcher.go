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
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches the compiler's artifact tree for changes and
// emits debounced, batched FileEvents for Change Ingest to classify.
type FileWatcher interface {
	Watch(path string) error
	Events() <-chan FileEvent
	Close() error
}

// editorTempFile matches the transient files editors leave behind
// while writing a source file: Vim/Neovim swap files and numbered
// atomic-write temps, Emacs lock/autosave files, and generic
// backup-tilde files. None of these represent a real compiler output
// change, so they're filtered before reaching Change Ingest.
var editorTempFile = regexp.MustCompile(`(?:^\.#|^#.*#$|~$|\.sw[pon]$|^[0-9]+$)`)

// artifactWatcher implements FileWatcher over fsnotify, skipping the
// directories named in ignoreDirs (the compiler's own scratch/VCS
// directories, configured via Config.ArtifactIgnoreDirs).
type artifactWatcher struct {
	watcher        *fsnotify.Watcher
	events         chan FileEvent
	ignoreDirs     map[string]bool
	debounceWindow time.Duration
	pending        map[string]time.Time
	debounceTimer  *time.Timer
	mu             sync.Mutex
	logger         Logger
	done           chan struct{}
}

// newFileWatcher creates an artifactWatcher that skips ignoreDirs and
// coalesces bursts of fsnotify events within debounceWindow into one
// FileEvent.
func newFileWatcher(ignoreDirs []string, debounceWindow time.Duration, logger Logger) (FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignored[d] = true
	}

	fw := &artifactWatcher{
		watcher:        watcher,
		events:         make(chan FileEvent, 100),
		ignoreDirs:     ignored,
		debounceWindow: debounceWindow,
		pending:        make(map[string]time.Time),
		logger:         logger,
		done:           make(chan struct{}),
	}

	go fw.pump()

	return fw, nil
}

// Watch adds path and its subdirectories to the watch set, skipping
// any directory named in ignoreDirs.
func (fw *artifactWatcher) Watch(path string) error {
	if err := fw.watcher.Add(path); err != nil {
		return err
	}

	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || p == path {
			return nil
		}
		if fw.ignoreDirs[filepath.Base(p)] {
			return filepath.SkipDir
		}
		return fw.watcher.Add(p)
	})
}

// Events returns the channel of debounced, batched changes.
func (fw *artifactWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Close stops watching and releases the underlying fsnotify watcher.
func (fw *artifactWatcher) Close() error {
	fw.mu.Lock()
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.mu.Unlock()

	var err error
	if fw.watcher != nil {
		err = fw.watcher.Close()
	}

	close(fw.done)
	time.Sleep(10 * time.Millisecond) // let pump drain before the channel closes
	close(fw.events)

	return err
}

// pump reads raw fsnotify events, drops ignored paths, and restarts
// the debounce timer on every relevant change.
func (fw *artifactWatcher) pump() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.shouldIgnore(event.Name) {
				continue
			}

			fw.mu.Lock()
			fw.pending[event.Name] = time.Now()
			if fw.debounceTimer != nil {
				fw.debounceTimer.Stop()
			}
			fw.debounceTimer = time.AfterFunc(fw.debounceWindow, fw.flush)
			fw.mu.Unlock()

			if fw.logger != nil {
				fw.logger.Debug("artifact changed: %s", event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if fw.logger != nil {
				fw.logger.Error("artifact watcher error: %v", err)
			}

		case <-fw.done:
			return
		}
	}
}

// flush sends the accumulated set of changed paths as a single
// FileEvent.
func (fw *artifactWatcher) flush() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	select {
	case <-fw.done:
		return
	default:
	}

	if len(fw.pending) == 0 {
		return
	}

	files := make([]string, 0, len(fw.pending))
	for file := range fw.pending {
		files = append(files, file)
	}
	fw.pending = make(map[string]time.Time)

	event := FileEvent{Path: files[0], Paths: files, Timestamp: time.Now()}
	select {
	case fw.events <- event:
	case <-fw.done:
		return
	default:
		if fw.logger != nil {
			fw.logger.Debug("dropped artifact event: channel full")
		}
	}

	if fw.logger != nil {
		fw.logger.Info("artifact changes detected: %d files", len(files))
	}
}

// shouldIgnore reports whether path names one of ignoreDirs or looks
// like an editor's transient temp file rather than a real artifact.
func (fw *artifactWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if fw.ignoreDirs[base] {
		return true
	}
	return editorTempFile.MatchString(base)
}
