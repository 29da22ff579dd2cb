/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (m memStore) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}

func (m memStore) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config file at a temp dir and stubs the keyring.
func isolate(t *testing.T) memStore {
	t.Helper()
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv(EnvLibraryDSN, "")
	m := memStore{}
	t.Cleanup(SetTokenStore(m))
	return m
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, dsn, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if dsn != "" {
		t.Fatalf("expected empty DSN, got %q", dsn)
	}
	if cfg.General.ServerAddr != Defaults().General.ServerAddr || cfg.History.KeepExports != 50 {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := isolate(t)
	cfg := Defaults()
	cfg.General.ServerAddr = "0.0.0.0:9000"
	cfg.History.UndoDepth = 10
	if err := Save(cfg, "postgres://u:p@db/cutscenes"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if m[keyringService+"/"+keyringDSN] == "" {
		t.Fatalf("DSN should be written to the keyring")
	}
	path, _ := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if len(data) == 0 || strings.Contains(string(data), "postgres://") {
		t.Fatalf("config file must not contain the DSN:\n%s", data)
	}
	got, dsn, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.General.ServerAddr != "0.0.0.0:9000" || got.History.UndoDepth != 10 {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if dsn != "postgres://u:p@db/cutscenes" {
		t.Fatalf("unexpected DSN %q", dsn)
	}
	if err := ForgetLibraryDSN(); err != nil {
		t.Fatalf("ForgetLibraryDSN: %v", err)
	}
	if err := ForgetLibraryDSN(); err != nil {
		t.Fatalf("forgetting twice should be a no-op: %v", err)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	isolate(t)
	path, _ := ConfigPath()
	if err := os.WriteFile(path, []byte("general: [oops"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed YAML")
	}
}

func TestEnvDSNWinsOverKeyring(t *testing.T) {
	m := isolate(t)
	m[keyringService+"/"+keyringDSN] = "from-keyring"
	t.Setenv(EnvLibraryDSN, "from-env")
	_, dsn, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if dsn != "from-env" {
		t.Fatalf("expected env DSN, got %q", dsn)
	}
}

func TestEnvOverridesGeneral(t *testing.T) {
	isolate(t)
	t.Setenv(EnvServerAddr, "127.0.0.1:1")
	t.Setenv(EnvEnableServer, "yes")
	t.Setenv(EnvAutosaveSec, "0")
	t.Setenv(EnvKeepExports, "5")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.General.ServerAddr != "127.0.0.1:1" || !cfg.General.EnableServer || cfg.History.KeepExports != 5 {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
	if cfg.General.AutosaveInterval() != 0 {
		t.Fatalf("autosave should be disabled, got %v", cfg.General.AutosaveInterval())
	}
	if env, ok := EnvOverrideFor("general.server_addr"); !ok || env != EnvServerAddr {
		t.Fatalf("EnvOverrideFor did not report %s", EnvServerAddr)
	}
	if _, ok := EnvOverrideFor("logging.file"); ok {
		t.Fatalf("logging.file is not overridden")
	}
}

func TestMergeIncludesEnableServer(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.General.EnableServer = true
	mergeInto(&dst, &src)
	if !dst.General.EnableServer {
		t.Fatalf("EnableServer was not merged from file config")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/csm.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/csm.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/csm.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/csm.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("CSM_TEST_DOTENV=hello\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("CSM_TEST_DOTENV", "")
	_ = os.Unsetenv("CSM_TEST_DOTENV")
	if err := LoadDotEnv(p, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CSM_TEST_DOTENV"); got != "hello" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}

func TestTimeoutFallback(t *testing.T) {
	if got := (LibraryConfig{}).Timeout(); got != 15*time.Second {
		t.Fatalf("expected default timeout, got %v", got)
	}
	if got := (LibraryConfig{TimeoutMs: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("unexpected timeout %v", got)
	}
}
