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
	"io/fs"
	"os"
	"strings"
	"time"

	"emberloop.dev/emberloop/serve/logger"
	"github.com/google/uuid"
)

// Logger is a type alias for the logger.Logger interface
type Logger = logger.Logger

// FileSystem abstracts filesystem operations for testability
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
}

type osFileSystem struct{}

func (osFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }
func (osFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// NS identifies one compilation unit (namespace). Metadata flags are set
// by the Planner (FileChangedOnDisk) or supplied by the Oracle
// (FigwheelAlways, for namespaces that must always be reloaded alongside
// their dependents regardless of whether they themselves changed).
type NS struct {
	Name              string
	FileChangedOnDisk bool
	FigwheelAlways    bool
}

// NormalizePath converts backslashes to forward slashes and, if the
// path is absolute and under root, rewrites it relative to root.
func NormalizePath(path, root string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	if root == "" {
		return p
	}
	rootSlash := strings.ReplaceAll(root, "\\", "/")
	if strings.HasPrefix(p, rootSlash) {
		rel := strings.TrimPrefix(p, rootSlash)
		rel = strings.TrimPrefix(rel, "/")
		return rel
	}
	return p
}

// Config is the dev-server's configuration record.
type Config struct {
	ServerPort         int      `mapstructure:"server-port" yaml:"server-port"`
	HTTPServerRoot     string   `mapstructure:"http-server-root" yaml:"http-server-root"`
	ResourcePaths      []string `mapstructure:"resource-paths" yaml:"resource-paths"`
	OutputTo           string   `mapstructure:"output-to" yaml:"output-to"`
	OutputDir          string   `mapstructure:"output-dir" yaml:"output-dir"`
	CSSDirs            []string `mapstructure:"css-dirs" yaml:"css-dirs"`
	OpenFileCommand    string   `mapstructure:"open-file-command" yaml:"open-file-command"`
	UniqueID           string   `mapstructure:"unique-id" yaml:"unique-id"`
	CompileWaitTime    int      `mapstructure:"compile-wait-time" yaml:"compile-wait-time"` // milliseconds
	ServerLogfile      string   `mapstructure:"server-logfile" yaml:"server-logfile"`
	REPL               bool     `mapstructure:"repl" yaml:"repl"`
	MacroSourceExt     string   `mapstructure:"macro-source-ext" yaml:"macro-source-ext"`
	TargetExt          string   `mapstructure:"target-ext" yaml:"target-ext"`
	ArtifactIgnoreDirs []string `mapstructure:"artifact-ignore-dirs" yaml:"artifact-ignore-dirs"`

	FS FileSystem // optional, defaults to the os package
}

// WithDefaults returns a copy of c with unset fields replaced by their
// default values.
func (c Config) WithDefaults() Config {
	if c.ServerPort == 0 {
		c.ServerPort = 3449
	}
	if c.HTTPServerRoot == "" {
		c.HTTPServerRoot = "public"
	}
	if len(c.ResourcePaths) == 0 {
		c.ResourcePaths = []string{"resources"}
	}
	if c.CompileWaitTime == 0 {
		c.CompileWaitTime = 10
	}
	if c.MacroSourceExt == "" {
		c.MacroSourceExt = "src"
	}
	if c.TargetExt == "" {
		c.TargetExt = "out"
	}
	if c.UniqueID == "" {
		c.UniqueID = uuid.NewString()
	}
	if len(c.ArtifactIgnoreDirs) == 0 {
		c.ArtifactIgnoreDirs = []string{".git", "node_modules", "dist", "build", ".cache"}
	}
	if c.FS == nil {
		c.FS = osFileSystem{}
	}
	return c
}

// CompileWaitDuration returns the settle delay as a time.Duration.
func (c Config) CompileWaitDuration() time.Duration {
	return time.Duration(c.CompileWaitTime) * time.Millisecond
}

// DependencyFiles returns the dependency-manifest files (the compiler's
// build-output deps files) that Ingest treats as a distinct, gated
// change class.
func (c Config) DependencyFiles() []string {
	var files []string
	if c.OutputTo != "" {
		files = append(files, c.OutputTo)
	}
	if c.OutputDir != "" {
		files = append(files,
			c.OutputDir+"/goog/deps.js",
			c.OutputDir+"/cljs_deps.js",
		)
	}
	return files
}

// FileEvent represents a batch of filesystem changes observed under the
// watched artifact tree.
type FileEvent struct {
	Path      string // primary file, for single-file events
	Paths     []string
	Timestamp time.Time
}
