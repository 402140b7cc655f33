package serve

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCSSWatcher_NoConfiguredDirsIsNoop(t *testing.T) {
	bus := NewBus(time.Millisecond)
	_, ch := bus.Subscribe()

	w := NewCSSWatcher(nil, bus)
	w.CheckForChanges("proj")

	select {
	case m := <-ch:
		t.Fatalf("expected no publish with no configured dirs, got %+v", m)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCSSWatcher_DetectsNewCSSFile(t *testing.T) {
	dir := t.TempDir()
	bus := NewBus(time.Millisecond)
	_, ch := bus.Subscribe()

	w := NewCSSWatcher([]string{dir}, bus)
	w.CheckForChanges("proj") // establish baseline, nothing present yet

	cssPath := filepath.Join(dir, "styles.css")
	if err := os.WriteFile(cssPath, []byte("body{}"), 0o644); err != nil {
		t.Fatalf("write css: %v", err)
	}
	// ensure mtime is observably after the baseline pass
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(cssPath, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	w.CheckForChanges("proj")

	select {
	case m := <-ch:
		if m.MsgName != MsgCSSFilesChanged {
			t.Fatalf("msg-name = %q, want %q", m.MsgName, MsgCSSFilesChanged)
		}
		if len(m.Files) != 1 || m.Files[0].Type != "css" {
			t.Fatalf("unexpected files payload: %+v", m.Files)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for css-files-changed")
	}
}

func TestCSSWatcher_IgnoresNonCSSFiles(t *testing.T) {
	dir := t.TempDir()
	bus := NewBus(time.Millisecond)
	_, ch := bus.Subscribe()

	w := NewCSSWatcher([]string{dir}, bus)
	w.CheckForChanges("proj")

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w.CheckForChanges("proj")

	select {
	case m := <-ch:
		t.Fatalf("expected no publish for a non-css file, got %+v", m)
	case <-time.After(30 * time.Millisecond):
	}
}
