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
package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"emberloop.dev/emberloop/serve"
	"emberloop.dev/emberloop/serve/logger"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the live-reload dev server",
	Long: `Start the dev server:
- Watches the compiler's output artifacts
- Computes the transitive reload-dependent closure on each change
- Pushes reload messages to connected browsers over figwheel-ws
- Serves static resources with CORS enabled`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose := viper.GetBool("verbose")

		config := serve.Config{
			ServerPort:         viper.GetInt("serve.port"),
			HTTPServerRoot:     viper.GetString("serve.http-server-root"),
			ResourcePaths:      viper.GetStringSlice("serve.resource-paths"),
			OutputTo:           viper.GetString("serve.output-to"),
			OutputDir:          viper.GetString("serve.output-dir"),
			CSSDirs:            viper.GetStringSlice("serve.css-dirs"),
			OpenFileCommand:    viper.GetString("serve.open-file-command"),
			UniqueID:           viper.GetString("serve.unique-id"),
			CompileWaitTime:    viper.GetInt("serve.compile-wait-time"),
			ServerLogfile:      viper.GetString("serve.server-logfile"),
			REPL:               viper.GetBool("serve.repl"),
			MacroSourceExt:     viper.GetString("serve.macro-source-ext"),
			TargetExt:          viper.GetString("serve.target-ext"),
			ArtifactIgnoreDirs: viper.GetStringSlice("serve.artifact-ignore-dirs"),
		}.WithDefaults()

		log := logger.NewPtermLogger(verbose)
		defer func() {
			if l, ok := log.(interface{ Stop() }); ok {
				l.Stop()
			}
		}()

		srv := serve.NewServer(config)
		srv.Logger = log
		defer func() {
			if err := srv.Close(); err != nil {
				log.Warning("server close: %v", err)
			}
		}()

		if l, ok := log.(interface{ Start() }); ok {
			l.Start()
		}

		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		log.Info("Server started on http://localhost:%d, project %q", config.ServerPort, srv.ProjectID)

		statusMsg := fmt.Sprintf("Running on %s%s Press %s for help, %s to quit",
			pterm.FgCyan.Sprintf("http://localhost:%d", config.ServerPort),
			pterm.FgGray.Sprint(" |"),
			pterm.FgYellow.Sprint("h"),
			pterm.FgYellow.Sprint("q"),
		)
		if l, ok := log.(interface{ SetStatus(string) }); ok {
			l.SetStatus(statusMsg)
		}

		quitChan := make(chan struct{})
		go func() {
			time.Sleep(100 * time.Millisecond)
			handleKeyboardInput(srv, log, config.ServerPort, quitChan)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-quitChan:
		case <-sigChan:
		}

		if l, ok := log.(interface{ SetStatus(string) }); ok {
			l.SetStatus("Shutting down...")
		}
		log.Info("Shutting down server...")
		return nil
	},
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func showHelp(log logger.Logger) {
	log.Info(`Keyboard Shortcuts
	v - Cycle log levels (normal/verbose/quiet; only verbose changes output, by adding debug messages)
	o - Open in browser
	r - Force reload (reseed + broadcast to all clients)
	c - Clear console
	h - Show this help
	q - Quit server
	Ctrl+C - Also quits server`)
}

type logLevel int

const (
	logLevelNormal logLevel = iota
	logLevelVerbose
	logLevelQuiet
)

func (l logLevel) String() string {
	switch l {
	case logLevelNormal:
		return "normal"
	case logLevelVerbose:
		return "verbose"
	case logLevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// handleKeyboardInput reads keyboard input and handles server commands.
func handleKeyboardInput(srv *serve.Server, log logger.Logger, port int, quitChan chan struct{}) {
	currentLogLevel := logLevelNormal

	err := keyboard.Listen(func(key keys.Key) (stop bool, err error) {
		if key.Code == keys.CtrlC {
			close(quitChan)
			return true, nil
		}

		if key.Code != keys.RuneKey || len(key.Runes) == 0 {
			return false, nil
		}

		switch key.Runes[0] {
		case 'q', 'Q':
			log.Info("Quitting...")
			close(quitChan)
			return true, nil

		case 'v', 'V':
			currentLogLevel = (currentLogLevel + 1) % 3
			if setter, ok := log.(interface{ SetVerbose(bool) }); ok {
				setter.SetVerbose(currentLogLevel == logLevelVerbose)
			}
			log.Info("Log level: %s", currentLogLevel.String())

		case 'o', 'O':
			url := fmt.Sprintf("http://localhost:%d", port)
			log.Info("Opening %s in browser...", url)
			if err := openBrowser(url); err != nil {
				log.Warning("Failed to open browser: %v", err)
			}

		case 'r', 'R':
			log.Info("Forcing reload...")
			srv.ForceReload()

		case 'c', 'C':
			if clearer, ok := log.(interface{ Clear() }); ok {
				clearer.Clear()
				log.Info("Console cleared")
			} else {
				log.Warning("Clear not supported by current logger")
			}

		case 'h', 'H', '?':
			showHelp(log)
		}

		return false, nil
	})

	if err != nil {
		log.Warning("Keyboard input disabled: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 3449, "Port to serve on")
	serveCmd.Flags().String("http-server-root", "public", "Root directory for static file serving")
	serveCmd.Flags().StringSlice("resource-paths", nil, "Resource directories recorded in the config (not watched; static files are served from --http-server-root)")
	serveCmd.Flags().String("output-to", "", "Compiler's combined output file (used for dependency-update gating)")
	serveCmd.Flags().String("output-dir", "", "Compiler's per-namespace output directory to watch")
	serveCmd.Flags().StringSlice("css-dirs", nil, "Directories polled for changed stylesheets")
	serveCmd.Flags().String("open-file-command", "", "Command used to open a file at a line from the browser (e.g. emacsclient)")
	serveCmd.Flags().String("unique-id", "", "Overrides the project id reported to clients and is also used as the build id (default: generated build id, derived project id)")
	serveCmd.Flags().Int("compile-wait-time", 10, "Settle delay in milliseconds before a batch of changes is broadcast")
	serveCmd.Flags().String("macro-source-ext", "", "File extension for macro-only source files")
	serveCmd.Flags().String("target-ext", "", "File extension for browser-target compiled output")
	serveCmd.Flags().StringSlice("artifact-ignore-dirs", nil, "Directory names skipped by the artifact-tree watcher (default: .git, node_modules, dist, build, .cache)")

	for flag, key := range map[string]string{
		"port":                 "serve.port",
		"http-server-root":     "serve.http-server-root",
		"resource-paths":       "serve.resource-paths",
		"output-to":            "serve.output-to",
		"output-dir":           "serve.output-dir",
		"css-dirs":             "serve.css-dirs",
		"open-file-command":    "serve.open-file-command",
		"unique-id":            "serve.unique-id",
		"compile-wait-time":    "serve.compile-wait-time",
		"macro-source-ext":     "serve.macro-source-ext",
		"target-ext":           "serve.target-ext",
		"artifact-ignore-dirs": "serve.artifact-ignore-dirs",
	} {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", key, err))
		}
	}
}
