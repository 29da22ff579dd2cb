/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cutscenemaker/internal/cli"
	"cutscenemaker/internal/config"
	"cutscenemaker/internal/crash"
	applog "cutscenemaker/internal/log"
)

func main() {
	os.Exit(run())
}

// run keeps the deferred recovery and log flush ahead of os.Exit.
func run() int {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error: .env:", err)
	}
	cfg, dsn, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error: config:", err)
		return 1
	}
	closer := applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer func() { _ = closer.Close() }()
	applog.WithComponent("main").Debug("start", slog.Int("args", len(os.Args)))

	app := cli.NewApp(cfg, dsn)
	defer crash.RecoverTracked(app)
	return cli.Execute(context.Background(), app, os.Args[1:], os.Stdout, os.Stderr)
}
