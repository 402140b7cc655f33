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
	"sort"
	"strings"
)

// NamespaceExtractor reads a source file and extracts its declared
// namespace form from its leading declaration. Unreadable or malformed
// files are skipped silently by the caller.
type NamespaceExtractor func(path string) (ns string, ok error)

// Ingest diffs mtime snapshots, classifies the changed paths by file
// kind, and drives the Planner to produce one files-changed message
//. The zero value is not usable; use NewIngest.
type Ingest struct {
	Config    Config
	Planner   *Planner
	Digest    *DigestStore
	ExtractNS NamespaceExtractor
	Logger    Logger
}

// NewIngest constructs an Ingest over the given collaborators.
func NewIngest(cfg Config, planner *Planner, digest *DigestStore, extract NamespaceExtractor, logger Logger) *Ingest {
	return &Ingest{Config: cfg, Planner: planner, Digest: digest, ExtractNS: extract, Logger: logger}
}

// Run performs one change-ingest pass and returns
// the resulting message, or ok=false if nothing should be published
// (empty changed set with no dependency-file changes —
// case, testable property 9).
func (in *Ingest) Run(oldMtimes, newMtimes map[string]int64, additionalNS []string) (Message, bool) {
	changedPaths := diffMtimes(oldMtimes, newMtimes)

	primary, target := groupByExtension(changedPaths, in.Config.MacroSourceExt, in.Config.TargetExt)

	if len(primary) > 0 {
		// A source-only-through-macros file changed: treat every
		// browser-target key in new_mtimes as changed.
		target = nil
		for p := range newMtimes {
			if hasExt(p, in.Config.TargetExt) {
				target = append(target, p)
			}
		}
		sort.Strings(target)
	}

	var changedNS []string
	for _, p := range target {
		if ns, err := in.ExtractNS(p); err == nil && ns != "" {
			changedNS = append(changedNS, ns)
		} else if in.Logger != nil && err != nil {
			in.Logger.Debug("skipping unreadable/malformed source %s: %v", p, err)
		}
	}

	plan := in.Planner.Plan(changedNS, additionalNS)

	var depUpdates []FileRecord
	for _, depFile := range in.Config.DependencyFiles() {
		if !in.Digest.ChangedGated(depFile) {
			continue
		}
		contents, err := in.Digest.Contents(depFile)
		if err != nil {
			continue
		}
		depUpdates = append(depUpdates, FileRecord{
			File:           NormalizePath(depFile, ""),
			Type:           "dependency-update",
			EvalBody:       contents,
			DependencyFile: true,
		})
	}

	var nsRecords []FileRecord
	for _, n := range plan {
		file := n.Name
		if in.Planner.Oracle != nil {
			file = in.Planner.Oracle.TargetFileFor(n.Name)
		}
		nsRecords = append(nsRecords, FileRecord{
			File:      NormalizePath(file, ""),
			Type:      "namespace",
			Namespace: n.Name,
			Meta: map[string]any{
				"file-changed-on-disk": n.FileChangedOnDisk,
				"figwheel-always":      n.FigwheelAlways,
			},
		})
	}

	if in.Logger != nil {
		for _, r := range append(append([]FileRecord{}, depUpdates...), nsRecords...) {
			in.Logger.Info("notifying client of change: %s", r.File)
		}
	}

	if len(depUpdates) == 0 && len(nsRecords) == 0 {
		return Message{}, false
	}

	return NewFilesChangedMessage(in.Config.UniqueID, "", depUpdates, nsRecords), true
}

// diffMtimes returns every path whose recorded mtime differs between the
// two snapshots, over the union of both key sets.
func diffMtimes(old, new map[string]int64) []string {
	seen := make(map[string]bool, len(old)+len(new))
	var changed []string
	for p, o := range old {
		seen[p] = true
		if n, ok := new[p]; !ok || n != o {
			changed = append(changed, p)
		}
	}
	for p, n := range new {
		if seen[p] {
			continue
		}
		seen[p] = true
		if o, ok := old[p]; !ok || o != n {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}

// groupByExtension splits changed paths by file extension suffix into
// the macro-source-only group and the browser-target group.
func groupByExtension(changed []string, macroExt, targetExt string) (primary, target []string) {
	for _, p := range changed {
		switch {
		case hasExt(p, macroExt):
			primary = append(primary, p)
		case hasExt(p, targetExt):
			target = append(target, p)
		}
	}
	return primary, target
}

func hasExt(path, ext string) bool {
	if ext == "" {
		return false
	}
	i := strings.LastIndex(path, ".")
	if i == -1 {
		return false
	}
	return path[i+1:] == ext
}
