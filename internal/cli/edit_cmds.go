/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/api"
	"cutscenemaker/internal/script"
)

func newAddCmd(a *App) *cobra.Command {
	var description string
	var at int
	cmd := &cobra.Command{
		Use:   "add <kind> [key=value ...]",
		Short: "Append an action",
		Example: `  cutscene add wait duration=500
  cutscene add tokenSay tokenId=npc "message=Who goes there?"
  cutscene add custom script=@intro.js`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := action.Kind(args[0])
			params, err := parseParams(kind, args[1:])
			if err != nil {
				return err
			}
			ed, err := a.editor()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := ed.add(ctx, kind, params, description)
			if err != nil {
				return err
			}
			if at > 0 {
				if err := ed.move(ctx, id, at-1); err != nil {
					return err
				}
			}
			if err := ed.commit(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description (derived from the params when empty)")
	cmd.Flags().IntVar(&at, "at", 0, "1-based position to insert at (default: end)")
	return cmd
}

func newEditCmd(a *App) *cobra.Command {
	var description string
	var reset bool
	cmd := &cobra.Command{
		Use:   "edit <id> [key=value ...]",
		Short: "Change the params or description of an action",
		Long:  "edit merges the given params into the current ones (or starts from the defaults with --reset). The description is derived again unless --description is given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ed, err := a.editor()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := args[0]
			cur, ok, err := ed.get(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return errNoAction(id)
			}
			changes, err := parseParams(cur.Kind, args[1:])
			if err != nil {
				return err
			}
			params := map[string]any{}
			if !reset {
				for k, v := range cur.Params {
					params[k] = v
				}
			}
			for k, v := range changes {
				params[k] = v
			}
			if _, err := ed.update(ctx, id, params, description); err != nil {
				return err
			}
			return ed.commit(ctx)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description (derived from the params when empty)")
	cmd.Flags().BoolVar(&reset, "reset", false, "start from the kind defaults instead of the current params")
	return cmd
}

func newRmCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id> [id ...]",
		Short: "Remove actions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ed, err := a.editor()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var missing []string
			for _, id := range args {
				ok, err := ed.remove(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					missing = append(missing, id)
				}
			}
			if err := ed.commit(ctx); err != nil {
				return err
			}
			if len(missing) > 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("not found: %s", strings.Join(missing, ", "))}
			}
			return nil
		},
	}
}

func newMoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move an action to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil || pos < 1 {
				return fmt.Errorf("position must be a positive integer, got %q", args[1])
			}
			ed, err := a.editor()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, ok, err := ed.get(ctx, args[0]); err != nil {
				return err
			} else if !ok {
				return errNoAction(args[0])
			}
			if err := ed.move(ctx, args[0], pos-1); err != nil {
				return err
			}
			return ed.commit(ctx)
		},
	}
}

func newClearCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return &ExitError{Code: 2, Err: fmt.Errorf("refusing to clear without --yes")}
			}
			ed, err := a.editor()
			if err != nil {
				return err
			}
			if err := ed.clear(cmd.Context()); err != nil {
				return err
			}
			return ed.commit(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func newListCmd(a *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the actions in order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ed, err := a.editor()
			if err != nil {
				return err
			}
			actions, err := ed.list(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, actions)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "#\tID\tKIND\tDESCRIPTION")
			for i, act := range actions {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, act.ID, act.Kind, oneLine(act.Description))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newKindsCmd(a *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "kinds [kind]",
		Short: "Show the action kinds and their params",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all := action.All()
			if len(args) == 1 {
				d, ok := action.Lookup(action.Kind(args[0]))
				if !ok {
					return fmt.Errorf("unknown kind %q", args[0])
				}
				all = []action.Descriptor{d}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, all)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, d := range all {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", d.Kind, d.Label)
				for _, f := range d.Fields {
					_, _ = fmt.Fprintf(tw, "  %s\t%s\tdefault %s\t%s\n", f.Name, f.Type, formatDefault(f.Default), f.Label)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newImportCmd(a *App) *cobra.Command {
	var replace, dry bool
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Parse a script and append its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dry {
				rep := script.ParseReport(text)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "BLOCK\tLINE\tSTATUS\tKIND")
				for _, b := range rep.Blocks {
					_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", b.Index+1, b.LineNo, b.Status, b.Kind)
				}
				_, _ = fmt.Fprintf(tw, "\n%d action(s), %d fragment(s) dropped\n", len(rep.Actions), rep.Discarded())
				return tw.Flush()
			}
			ed, err := a.editor()
			if err != nil {
				return err
			}
			ids, err := ed.importText(cmd.Context(), text, replace)
			if err != nil {
				return err
			}
			if err := ed.commit(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "imported %d action(s)\n", len(ids))
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the list instead of appending")
	cmd.Flags().BoolVar(&dry, "dry-run", false, "only show how the blocks classify")
	return cmd
}

func newUndoCmd(a *App, redo bool) *cobra.Command {
	use, short := "undo", "Undo the last edit in the running editor"
	if redo {
		use, short = "redo", "Redo the last undone edit in the running editor"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ". Undo history lives in the editor server started by `cutscene serve`.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := api.NewClient(a.serverAddr)
			step := c.Undo
			if redo {
				step = c.Redo
			}
			label, ok, err := step(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s needs a running editor (cutscene serve): %w", use, err)
			}
			if !ok {
				return &ExitError{Code: 1, Err: fmt.Errorf("nothing to %s", use)}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", use, label)
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 80 {
		return string(r[:77]) + "..."
	}
	return s
}

func formatDefault(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case float64:
		return action.FormatNumber(x)
	default:
		return fmt.Sprint(x)
	}
}
