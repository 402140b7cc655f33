//go:build e2e

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

package serve_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emberloop.dev/emberloop/serve"
	"emberloop.dev/emberloop/serve/testutil"
)

// TestFileWatcher_BrowserTargetChange verifies that writing a compiled
// browser-target file under the watched output directory produces a
// files-changed broadcast over the websocket.
func TestFileWatcher_BrowserTargetChange(t *testing.T) {
	outDir := t.TempDir()
	testFile := filepath.Join(outDir, "app", "core.cljs")
	if err := os.MkdirAll(filepath.Dir(testFile), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(testFile, []byte("(ns app.core)"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	srv := serve.NewServer(serve.Config{
		ServerPort: 9100,
		OutputDir:  outDir,
		TargetExt:  "cljs",
	})
	defer srv.Close()

	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	wsClient := testutil.NewWebSocketTestClient(t, "ws://localhost:9100"+serve.FigwheelWebSocketPath)

	if err := os.WriteFile(testFile, []byte("(ns app.core) (defn x [] 1)"), 0o644); err != nil {
		t.Fatalf("modify test file: %v", err)
	}

	msg := wsClient.ReceiveMessage(t, 3*time.Second)
	msgStr := string(msg)

	if !strings.Contains(msgStr, "files-changed") {
		t.Errorf("expected a files-changed message, got: %s", msgStr)
	}
}

// TestFileWatcher_Debouncing verifies rapid successive changes coalesce
// into a single broadcast.
func TestFileWatcher_Debouncing(t *testing.T) {
	outDir := t.TempDir()

	srv := serve.NewServer(serve.Config{
		ServerPort: 9101,
		OutputDir:  outDir,
		TargetExt:  "cljs",
	})
	defer srv.Close()

	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	wsClient := testutil.NewWebSocketTestClient(t, "ws://localhost:9101"+serve.FigwheelWebSocketPath)

	for i := 0; i < 5; i++ {
		testFile := filepath.Join(outDir, "ns-"+string(rune('a'+i))+".cljs")
		if err := os.WriteFile(testFile, []byte("(ns x)"), 0o644); err != nil {
			t.Fatalf("write test file %d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	msg := wsClient.ReceiveMessage(t, 2*time.Second)
	if !strings.Contains(string(msg), "files-changed") {
		t.Errorf("expected a files-changed message, got: %s", msg)
	}

	// No second broadcast should follow within the settle window.
	wsClient.ExpectNoMessage(t, 500*time.Millisecond)
}
