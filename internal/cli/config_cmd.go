/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cutscenemaker/internal/config"
)

// overridable lists the config keys that environment variables can override.
var overridable = []string{
	"general.server_addr", "general.enable_server", "general.autosave_sec",
	"library.dsn", "library.timeout_ms",
	"history.keep_exports", "history.keep_backups",
	"logging.level", "logging.format", "logging.source", "logging.file",
}

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change user configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				b, err := yaml.Marshal(a.Config)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = out.Write(b)
				dsn := "(not set)"
				if a.DSN != "" {
					dsn = "(set)"
				}
				_, _ = fmt.Fprintln(out, "# library dsn:", dsn)
				for _, k := range overridable {
					if env, ok := config.EnvOverrideFor(k); ok {
						_, _ = fmt.Fprintf(out, "# %s overridden by %s\n", k, env)
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-dsn <dsn>",
			Short: "Store the library connection string in the OS keychain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn := strings.TrimSpace(args[0])
				if dsn == "" {
					return fmt.Errorf("dsn is empty")
				}
				if err := config.Save(a.Config, dsn); err != nil {
					return err
				}
				a.DSN = dsn
				return nil
			},
		},
		&cobra.Command{
			Use:   "forget-dsn",
			Short: "Remove the library connection string from the OS keychain",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := config.ForgetLibraryDSN(); err != nil {
					return err
				}
				a.DSN = ""
				return nil
			},
		},
	)
	return cmd
}
