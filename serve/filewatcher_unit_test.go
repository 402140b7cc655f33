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

import "testing"

func TestArtifactWatcher_ShouldIgnore_ConfiguredDirs(t *testing.T) {
	fw := &artifactWatcher{ignoreDirs: map[string]bool{".git": true, "node_modules": true}}

	cases := []struct {
		path string
		want bool
	}{
		{"/repo/.git", true},          // directory-name form, as seen during Watch's walk
		{"/repo/node_modules", true},  // directory-name form
		{"/repo/out/app/core.cljs", false},
		{"/repo/dist/app.js", false}, // "dist" not in this instance's configured set
	}
	for _, c := range cases {
		if got := fw.shouldIgnore(c.path); got != c.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestArtifactWatcher_ShouldIgnore_EditorTempFiles(t *testing.T) {
	fw := &artifactWatcher{ignoreDirs: map[string]bool{}}

	ignored := []string{
		"/src/.core.cljs.swp",
		"/src/.core.cljs.swo",
		"/src/.core.cljs.swn",
		"/src/core.cljs~",
		"/src/#core.cljs#",
		"/src/.#core.cljs",
		"/out/4913",
	}
	for _, p := range ignored {
		if !fw.shouldIgnore(p) {
			t.Errorf("shouldIgnore(%q) = false, want true (editor temp file)", p)
		}
	}

	kept := []string{"/src/core.cljs", "/out/app/core.out", "/out/goog/deps.js"}
	for _, p := range kept {
		if fw.shouldIgnore(p) {
			t.Errorf("shouldIgnore(%q) = true, want false", p)
		}
	}
}
