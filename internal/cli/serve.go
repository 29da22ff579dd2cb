/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cutscenemaker/internal/api"
	applog "cutscenemaker/internal/log"
)

func newServeCmd(a *App) *cobra.Command {
	var (
		addr     string
		autosave time.Duration
		origins  []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor server for the project",
		Long: `serve keeps the project open and exposes it over HTTP and a websocket event stream.
Edits made through the API (or through other commands with --remote) are
autosaved and pushed to every connected renderer. Undo and redo work here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.serverAddr
			}
			sess, err := a.openSession()
			if err != nil {
				return err
			}
			l := applog.WithOperation(a.Logger, "serve").With(slog.String("project", sess.Project().Root))
			srv := api.New(api.Options{Session: sess, Logger: applog.WithComponent("api"), AllowedOrigins: origins})
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				srv.Close()
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return sess.Autosave(gctx, autosave)
			})
			g.Go(func() error {
				<-gctx.Done()
				// websocket connections are hijacked; Shutdown does not close them
				srv.Close()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return hs.Shutdown(shutdown)
			})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "editor listening on http://%s\n", ln.Addr())
			l.Info("editor server started", slog.String("addr", ln.Addr().String()), slog.Duration("autosave", autosave))
			err = g.Wait()
			l.Info("editor server stopped")
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: --server)")
	cmd.Flags().DurationVar(&autosave, "autosave", a.Config.General.AutosaveInterval(), "autosave interval, 0 saves only on exit")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "extra websocket origin, repeatable (* for any)")
	return cmd
}
