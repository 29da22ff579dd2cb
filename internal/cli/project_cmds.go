/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/api"
	"cutscenemaker/internal/domain"
	"cutscenemaker/internal/export"
	"cutscenemaker/internal/runner"
	"cutscenemaker/internal/script"
	"cutscenemaker/internal/storage"
)

func newNewCmd(a *App) *cobra.Command {
	var name, scene, author string
	cmd := &cobra.Command{
		Use:   "new [dir]",
		Short: "Create a cutscene project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.root()
			if len(args) == 1 {
				dir = args[0]
			}
			if name == "" {
				name = filepath.Base(dir)
			}
			seq := domain.NewSequence(name)
			seq.Metadata.Scene = scene
			seq.Metadata.Author = author
			ph, err := storage.InitProject(dir, seq)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", ph.Root, ph.Sequence.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sequence name (default: directory name)")
	cmd.Flags().StringVar(&scene, "scene", "", "host scene the cutscene is written for")
	cmd.Flags().StringVar(&author, "author", "", "author")
	return cmd
}

func newExportCmd(a *App) *cobra.Command {
	var (
		formats   []string
		out, name string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the sequence to script, JSON, runnable script or a PDF cue sheet",
		Long:  "export writes the requested formats under the project's exports/ folder. With --out - a single format is written to stdout instead.",
		Example: `  cutscene export
  cutscene export -f script -f pdf
  cutscene export -f run --out - | xclip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed := make([]export.Format, 0, len(formats))
			for _, f := range formats {
				pf, err := export.ParseFormat(f)
				if err != nil {
					return err
				}
				parsed = append(parsed, pf)
			}
			ctx := cmd.Context()
			if out == "-" {
				f := export.FormatScript
				if len(parsed) > 1 {
					return errors.New("--out - takes a single format")
				}
				if len(parsed) == 1 {
					f = parsed[0]
				}
				var data []byte
				if a.remote {
					b, err := api.NewClient(a.serverAddr).Script(ctx, string(f))
					if err != nil {
						return err
					}
					data = b
				} else {
					s, err := a.openSession()
					if err != nil {
						return err
					}
					if data, err = export.Render(f, s.Sequence()); err != nil {
						return err
					}
				}
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			s, err := a.openSession()
			if err != nil {
				return err
			}
			arts, err := export.Batch(ctx, s.Project(), export.BatchOptions{
				Formats:     parsed,
				Name:        name,
				SkipHistory: noHistory,
				KeepHistory: a.Config.History.KeepExports,
			})
			if err != nil {
				return err
			}
			for _, art := range arts {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s (%d bytes)\n", art.Format, art.Path, art.Size)
			}
			return nil
		},
	}
	names := make([]string, 0, 4)
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "format to write, repeatable ("+strings.Join(names, ", ")+")")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to stdout with -")
	cmd.Flags().StringVar(&name, "name", "", "base name of the written files (default: sequence name)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the export in the history")
	return cmd
}

func newCheckCmd(a *App) *cobra.Command {
	var dry, calls bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Syntax-check the generated script, optionally running it against a stub host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				t, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				text = t
			} else {
				s, err := a.openSession()
				if err != nil {
					return err
				}
				text = script.SerializeSequence(s.All())
			}
			out := cmd.OutOrStdout()
			rep := runner.Check(text)
			for _, is := range rep.Issues {
				_, _ = fmt.Fprintln(out, is.String())
			}
			if !rep.OK() {
				return &ExitError{Code: 1, Err: fmt.Errorf("%d syntax issue(s) in %d block(s)", len(rep.Issues), rep.Blocks)}
			}
			_, _ = fmt.Fprintf(out, "ok: %d block(s)\n", rep.Blocks)
			if !dry {
				return nil
			}
			tr, err := runner.DryRun(cmd.Context(), text, runner.Options{Timeout: timeout})
			if calls {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, c := range tr.Calls {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", c.At, c.Path, strings.Join(c.Args, ", "))
				}
				_ = tw.Flush()
			}
			for _, e := range tr.Errors {
				_, _ = fmt.Fprintln(out, "console.error:", e)
			}
			if err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("dry run: %w (%d timer(s) pending)", err, tr.Pending)}
			}
			if tr.Failed() {
				return &ExitError{Code: 1, Err: fmt.Errorf("dry run rejected: %s", tr.Rejected)}
			}
			_, _ = fmt.Fprintf(out, "dry run: settled at %s, %d host call(s)\n", tr.Settled, len(tr.Calls))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dry, "dry-run", false, "also run the script against a stub host on a virtual clock")
	cmd.Flags().BoolVar(&calls, "calls", false, "print the host calls of the dry run")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "wall clock limit of the dry run")
	return cmd
}

func newHistoryCmd(a *App) *cobra.Command {
	var limit int
	var show string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ph, err := storage.Open(a.root())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if show != "" {
				f, err := export.ParseFormat(show)
				if err != nil {
					return err
				}
				rec, ok, err := storage.LatestExport(ctx, ph, string(f))
				if err != nil {
					return err
				}
				if !ok {
					return &ExitError{Code: 1, Err: fmt.Errorf("no %s export recorded", f)}
				}
				_, err = fmt.Fprint(out, rec.Text)
				return err
			}
			recs, err := storage.ListExports(ctx, ph, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tTIME\tFORMAT\tACTIONS")
			for _, r := range recs {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", r.ID, r.TS.Local().Format(time.DateTime), r.Format, r.Actions)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().StringVar(&show, "show", "", "print the latest recorded text of a format")
	return cmd
}

func newSearchCmd(a *App) *cobra.Command {
	var kinds []string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search over the project's actions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range kinds {
				if !action.Valid(action.Kind(k)) {
					return fmt.Errorf("unknown kind %q", k)
				}
			}
			res, err := storage.Search(cmd.Context(), a.root(), storage.SearchQuery{
				Text:  strings.Join(args, " "),
				Kinds: kinds,
				Limit: limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range res {
				text := r.Snippet
				if text == "" {
					text = r.Description
				}
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Position+1, r.ActionID, r.Kind, oneLine(text))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "restrict to kinds, repeatable")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSchemaCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the project document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := storage.DocumentSchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
