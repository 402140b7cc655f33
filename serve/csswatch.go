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
	"sync"
	"time"
)

// CSSWatcher is the independent fast path that detects changed
// stylesheets by polling mtimes rather than a filesystem-event API,
// intentionally not fsnotify-based, unlike the artifact tree watcher.
type CSSWatcher struct {
	dirs []string
	bus  *Bus

	mu       sync.Mutex
	lastPass time.Time
}

// NewCSSWatcher creates a watcher over the configured CSS directories.
// If dirs is empty, CheckForChanges is a no-op.
func NewCSSWatcher(dirs []string, bus *Bus) *CSSWatcher {
	return &CSSWatcher{dirs: dirs, bus: bus}
}

// CheckForChanges enumerates .css files under the configured directories
// whose mtime exceeds the last pass, publishes a css-files-changed
// message for them, and advances the last-pass timestamp.
func (w *CSSWatcher) CheckForChanges(projectID string) {
	if len(w.dirs) == 0 {
		return
	}

	w.mu.Lock()
	since := w.lastPass
	now := time.Now()
	w.lastPass = now
	w.mu.Unlock()

	var changed []string
	for _, dir := range w.dirs {
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || filepath.Ext(path) != ".css" {
				return nil
			}
			info, statErr := d.Info()
			if statErr != nil {
				return nil
			}
			if info.ModTime().After(since) {
				changed = append(changed, NormalizePath(path, ""))
			}
			return nil
		})
	}

	if len(changed) == 0 {
		return
	}
	w.bus.Publish(NewCSSFilesChangedMessage(projectID, changed))
}
