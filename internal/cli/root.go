/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli implements the cutscene command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"cutscenemaker/internal/config"
	"cutscenemaker/internal/crash"
	applog "cutscenemaker/internal/log"
	"cutscenemaker/internal/session"
	"cutscenemaker/internal/storage"
	"cutscenemaker/internal/store"
	"cutscenemaker/internal/undo"
	"cutscenemaker/internal/version"
)

// ExitError carries a process exit code for Execute.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// App holds what commands share: configuration, the library secret and the
// session opened by the running command.
type App struct {
	Config config.AppConfig
	DSN    string
	Logger *slog.Logger

	projectDir string
	serverAddr string
	remote     bool

	mu   sync.Mutex
	sess *session.Session
}

// NewApp returns an App over cfg.
func NewApp(cfg config.AppConfig, dsn string) *App {
	return &App{Config: cfg, DSN: dsn, Logger: applog.WithComponent("cli")}
}

// Current implements crash.Tracker.
func (a *App) Current() (*storage.ProjectHandle, crash.Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		return nil, nil
	}
	return a.sess.Project(), a.sess
}

func (a *App) root() string {
	abs, err := filepath.Abs(a.projectDir)
	if err != nil {
		return a.projectDir
	}
	return abs
}

func (a *App) sessionOptions() session.Options {
	return session.Options{
		Store: store.Options{History: undo.Config{
			MaxBytes: a.Config.History.UndoMaxBytes,
			MaxDepth: a.Config.History.UndoDepth,
		}},
		KeepBackups: a.Config.History.KeepBackups,
	}
}

// openSession opens the project in --project and tracks it for crash recovery.
func (a *App) openSession() (*session.Session, error) {
	root := a.root()
	s, err := session.Open(root, a.sessionOptions())
	if err != nil {
		return nil, fmt.Errorf("open project %s: %w", root, err)
	}
	a.mu.Lock()
	a.sess = s
	a.mu.Unlock()
	if s.Project().Recovered {
		a.Logger.Warn("document was unreadable; loaded the latest backup", slog.String("root", root))
	}
	return s, nil
}

// closeSession stops change tracking. The session stays current so that a
// deferred crash.RecoverTracked further up still finds the project.
func (a *App) closeSession() {
	a.mu.Lock()
	s := a.sess
	a.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "cutscene",
		Short:         "Build, edit and export cutscene action sequences",
		Long:          "cutscene manages a cutscene project: an ordered list of actions that is serialized to a host script and parsed back from one.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
	}
	root.SetVersionTemplate("{{.Version}}\n")
	pf := root.PersistentFlags()
	pf.StringVarP(&a.projectDir, "project", "C", ".", "project directory")
	pf.StringVar(&a.serverAddr, "server", a.Config.General.ServerAddr, "address of a running editor server")
	pf.BoolVar(&a.remote, "remote", a.Config.General.EnableServer, "send edits to the running editor server instead of the document")

	root.AddCommand(
		newNewCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newRmCmd(a),
		newMoveCmd(a),
		newClearCmd(a),
		newListCmd(a),
		newKindsCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newCheckCmd(a),
		newHistoryCmd(a),
		newSearchCmd(a),
		newUndoCmd(a, false),
		newUndoCmd(a, true),
		newServeCmd(a),
		newPublishCmd(a),
		newPullCmd(a),
		newLibraryCmd(a),
		newSchemaCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, a *App, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defer a.closeSession()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			_, _ = fmt.Fprintln(stderr, "Error:", ee.Err)
		}
		return ee.Code
	}
	_, _ = fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
