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
	"bytes"
	"crypto/md5"
	"sync"
)

// addDependencyToken gates change detection on a subset of artifacts
// (the dependency-manifest files) so half-written output is not
// mistaken for a real change.
const addDependencyToken = "addDependency"

// DigestStore is a content-hash cache over artifact paths.
// The zero value is not usable; use NewDigestStore.
type DigestStore struct {
	mu      sync.Mutex
	digests map[string][16]byte
	fs      FileSystem
}

// NewDigestStore creates an empty store.
func NewDigestStore(fs FileSystem) *DigestStore {
	if fs == nil {
		fs = osFileSystem{}
	}
	return &DigestStore{digests: make(map[string][16]byte), fs: fs}
}

// Changed reports whether the content at path differs from the last
// observed digest, updating the store as a side effect. A path that
// does not exist, or that cannot be read, is treated as unchanged and
// the store is left untouched.
func (d *DigestStore) Changed(path string) bool {
	return d.changed(path, false)
}

// ChangedGated is Changed, but additionally requires the file contents
// to contain the literal token "addDependency" — used for the
// dependency-manifest file subset.
func (d *DigestStore) ChangedGated(path string) bool {
	return d.changed(path, true)
}

func (d *DigestStore) changed(path string, gated bool) bool {
	content, err := d.fs.ReadFile(path)
	if err != nil {
		return false
	}
	if gated && !bytes.Contains(content, []byte(addDependencyToken)) {
		return false
	}
	sum := md5.Sum(content)

	d.mu.Lock()
	defer d.mu.Unlock()
	prev, seen := d.digests[path]
	d.digests[path] = sum
	if !seen {
		// First observation never reports "changed".
		return false
	}
	return prev != sum
}

// Seed iterates Changed over paths for its side effect only, so the
// first real change-check after startup does not produce spurious
// hits.
func (d *DigestStore) Seed(paths []string) {
	for _, p := range paths {
		d.changed(p, false)
	}
}

// Contents returns the last-read textual contents of path, re-reading
// the file. Used by Change Ingest to populate eval-body on a
// dependency-update record.
func (d *DigestStore) Contents(path string) (string, error) {
	content, err := d.fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
