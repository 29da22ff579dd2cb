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
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cutscenemaker/internal/backend"
	"cutscenemaker/internal/config"
	"cutscenemaker/internal/script"
	"cutscenemaker/internal/storage"
)

var errNoDSN = errors.New("no library configured: set " + config.EnvLibraryDSN + " or run `cutscene config set-dsn`")

// withLibrary opens the shared library for one command under the configured timeout.
func (a *App) withLibrary(ctx context.Context, fn func(ctx context.Context, lib *backend.Library) error) error {
	if strings.TrimSpace(a.DSN) == "" {
		return errNoDSN
	}
	ctx, cancel := context.WithTimeout(ctx, a.Config.Library.Timeout())
	defer cancel()
	lib, err := backend.Open(ctx, a.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	return fn(ctx, lib)
}

func newPublishCmd(a *App) *cobra.Command {
	var name, by string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the sequence to the shared library as a new version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			seq := s.Sequence()
			if name != "" {
				seq.Name = name
			}
			if by == "" {
				by = os.Getenv("USER")
			}
			return a.withLibrary(cmd.Context(), func(ctx context.Context, lib *backend.Library) error {
				e, err := lib.Publish(ctx, seq, script.SerializeSequence(seq.Actions), by)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "published %s v%d (%d actions)\n", e.Name, e.Version, e.Actions)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "publish under this name (default: sequence name)")
	cmd.Flags().StringVar(&by, "by", "", "publisher (default: $USER)")
	return cmd
}

func newPullCmd(a *App) *cobra.Command {
	var (
		ver   int64
		into  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "pull <name>",
		Short: "Fetch a published sequence into a new or the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLibrary(cmd.Context(), func(ctx context.Context, lib *backend.Library) error {
				seq, e, err := lib.Fetch(ctx, args[0], ver)
				if errors.Is(err, backend.ErrNotFound) {
					return &ExitError{Code: 1, Err: err}
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if into != "" {
					ph, err := storage.InitProject(into, seq)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(out, "pulled %s v%d into %s\n", e.Name, e.Version, ph.Root)
					return nil
				}
				s, err := a.openSession()
				if err != nil {
					return err
				}
				if s.Store().Len() > 0 && !force {
					return &ExitError{Code: 2, Err: fmt.Errorf("project has %d action(s); use --force to replace them", s.Store().Len())}
				}
				ph := s.Project()
				ph.Sequence.Name = seq.Name
				ph.Sequence.Metadata = seq.Metadata
				if err := s.Store().Replace(seq.Actions); err != nil {
					return err
				}
				if err := s.Save(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "pulled %s v%d (%d actions)\n", e.Name, e.Version, len(seq.Actions))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&ver, "version", 0, "version to fetch (default: latest)")
	cmd.Flags().StringVar(&into, "into", "", "create a new project in this directory")
	cmd.Flags().BoolVar(&force, "force", false, "replace the actions of the current project")
	return cmd
}

func newLibraryCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Browse the shared library",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List published sequences",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withLibrary(cmd.Context(), func(ctx context.Context, lib *backend.Library) error {
					entries, err := lib.List(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					_, _ = fmt.Fprintln(tw, "NAME\tVERSION\tACTIONS\tSCENE\tUPDATED")
					for _, e := range entries {
						_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", e.Name, e.Version, e.Actions, e.Scene, e.UpdatedAt.Local().Format(time.DateTime))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Delete a sequence and all its versions",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLibrary(cmd.Context(), func(ctx context.Context, lib *backend.Library) error {
					err := lib.Remove(ctx, args[0])
					if errors.Is(err, backend.ErrNotFound) {
						return &ExitError{Code: 1, Err: err}
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "search <name> <query>",
			Short: "Search the actions of a published sequence",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLibrary(cmd.Context(), func(ctx context.Context, lib *backend.Library) error {
					res, err := lib.Search(ctx, args[0], storage.SearchQuery{Text: strings.Join(args[1:], " ")})
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					for _, r := range res {
						_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Position+1, r.ActionID, r.Kind, oneLine(r.Description))
					}
					return tw.Flush()
				})
			},
		},
	)
	return cmd
}
