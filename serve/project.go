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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ProjectManifestName is the build-manifest filename consulted when
// deriving a project identity for the id field (project.clj, in the
// compiler toolchain this server was modeled on).
const ProjectManifestName = "project.clj"

// fallbackManifestName is consulted when no ProjectManifestName is
// found anywhere up the tree, for toolchains without a Lisp-style
// project manifest.
const fallbackManifestName = "package.json"

// projectCljForm matches a Leiningen-style (defproject name "version" ...)
// first form. Project names may be namespaced (group/artifact); only the
// artifact segment is kept.
var projectCljForm = regexp.MustCompile(`\(defproject\s+(?:[^\s()/]+/)?([^\s()]+)\s+"([^"]+)"`)

// DeriveProjectID walks up from startDir looking for a manifest file
// named ProjectManifestName. If its first form names the project and
// version (the Leiningen `(defproject name "version" ...)` shape),
// the id is "name--version". If ProjectManifestName exists but its
// first form can't be parsed that way, or if only fallbackManifestName
// is found up the tree, the id falls back to the containing directory's
// base name. Otherwise the canonical (symlink-resolved) current
// working directory's base name is used.
func DeriveProjectID(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	if found, ok := findManifestUpward(dir, ProjectManifestName); ok {
		if id, ok := parseProjectClj(filepath.Join(found, ProjectManifestName)); ok {
			return id, nil
		}
		return filepath.Base(found), nil
	}

	if found, ok := findManifestUpward(dir, fallbackManifestName); ok {
		return filepath.Base(found), nil
	}

	resolved, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}
	return filepath.Base(resolved), nil
}

// parseProjectClj extracts "name--version" from path's first
// (defproject name "version" ...) form, per spec.md §6.4. Reports
// ok=false if the file is unreadable or its first form doesn't match
// the expected shape.
func parseProjectClj(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	m := projectCljForm.FindSubmatch(data)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(string(m[1]))
	version := strings.TrimSpace(string(m[2]))
	if name == "" || version == "" {
		return "", false
	}
	return fmt.Sprintf("%s--%s", name, version), true
}

// findManifestUpward walks up from dir looking for a file named name,
// returning the containing directory on the first match.
func findManifestUpward(dir, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
