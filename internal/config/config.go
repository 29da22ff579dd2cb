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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	ServerAddr   string `yaml:"server_addr"`
	EnableServer bool   `yaml:"enable_server"`
	// AutosaveSec is the serve-mode autosave interval; 0 disables autosave.
	AutosaveSec int `yaml:"autosave_sec"`
}

type LibraryConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
	// DSN is not stored on disk; it lives in the OS keychain.
}

type HistoryConfig struct {
	KeepExports  int `yaml:"keep_exports"`
	KeepBackups  int `yaml:"keep_backups"`
	UndoMaxBytes int `yaml:"undo_max_bytes"`
	UndoDepth    int `yaml:"undo_depth"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Library       LibraryConfig `yaml:"library"`
	History       HistoryConfig `yaml:"history"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{ServerAddr: "127.0.0.1:7373", EnableServer: false, AutosaveSec: 30},
		Library:       LibraryConfig{TimeoutMs: 15000},
		History:       HistoryConfig{KeepExports: 50, KeepBackups: 20, UndoMaxBytes: 8 << 20, UndoDepth: 200},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "CSM_CONFIG_FILE"
	EnvServerAddr     = "CSM_SERVER_ADDR"
	EnvEnableServer   = "CSM_ENABLE_SERVER"
	EnvAutosaveSec    = "CSM_AUTOSAVE_SEC"
	EnvLibraryDSN     = "CSM_LIBRARY_DSN"
	EnvLibraryTimeout = "CSM_LIBRARY_TIMEOUT_MS"
	EnvKeepExports    = "CSM_KEEP_EXPORTS"
	EnvKeepBackups    = "CSM_KEEP_BACKUPS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "CSM_LOG_LEVEL"
	EnvLogFormat = "CSM_LOG_FORMAT"
	EnvLogSource = "CSM_LOG_SOURCE"
	EnvLogFile   = "CSM_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "CutsceneMaker"
	keyringDSN     = "library_dsn"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

// SetTokenStore swaps the secret backend and returns a func restoring the previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

// ConfigPath returns the per-user config file path. CSM_CONFIG_FILE overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CutsceneMaker")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CutsceneMaker")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "cutscenemaker")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "cutscenemaker")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into the
// process environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the library DSN from the keyring (not kept inside the struct; returned separately).
// CSM_LIBRARY_DSN takes precedence over the keyring.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDSN)); v != "" {
		return cfg, v, nil
	}
	dsn, _ := tokenStore.Get(keyringService, keyringDSN)
	return cfg, dsn, nil
}

// Save writes the user config YAML and persists the DSN into OS keyring (if non-empty).
func Save(cfg AppConfig, dsn string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if dsn != "" {
		if err := tokenStore.Set(keyringService, keyringDSN, dsn); err != nil {
			return err
		}
	}
	return nil
}

// ForgetLibraryDSN removes the stored DSN from the keyring.
func ForgetLibraryDSN() error {
	err := tokenStore.Delete(keyringService, keyringDSN)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if strings.TrimSpace(src.General.ServerAddr) != "" {
		dst.General.ServerAddr = strings.TrimSpace(src.General.ServerAddr)
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.EnableServer = src.General.EnableServer
	if src.General.AutosaveSec != 0 {
		dst.General.AutosaveSec = src.General.AutosaveSec
	}
	if src.Library.TimeoutMs != 0 {
		dst.Library.TimeoutMs = src.Library.TimeoutMs
	}
	if src.History.KeepExports != 0 {
		dst.History.KeepExports = src.History.KeepExports
	}
	if src.History.KeepBackups != 0 {
		dst.History.KeepBackups = src.History.KeepBackups
	}
	if src.History.UndoMaxBytes != 0 {
		dst.History.UndoMaxBytes = src.History.UndoMaxBytes
	}
	if src.History.UndoDepth != 0 {
		dst.History.UndoDepth = src.History.UndoDepth
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.General.ServerAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEnableServer)); v != "" {
		cfg.General.EnableServer = envBool(v)
	}
	envInt(EnvAutosaveSec, &cfg.General.AutosaveSec)
	envInt(EnvLibraryTimeout, &cfg.Library.TimeoutMs)
	envInt(EnvKeepExports, &cfg.History.KeepExports)
	envInt(EnvKeepBackups, &cfg.History.KeepBackups)
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.server_addr":   EnvServerAddr,
		"general.enable_server": EnvEnableServer,
		"general.autosave_sec":  EnvAutosaveSec,
		"library.dsn":           EnvLibraryDSN,
		"library.timeout_ms":    EnvLibraryTimeout,
		"history.keep_exports":  EnvKeepExports,
		"history.keep_backups":  EnvKeepBackups,
		"logging.level":         EnvLogLevel,
		"logging.format":        EnvLogFormat,
		"logging.source":        EnvLogSource,
		"logging.file":          EnvLogFile,
	}
	if env, ok := names[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// Timeout returns the library query timeout, falling back to the default for non-positive values.
func (l LibraryConfig) Timeout() time.Duration {
	if l.TimeoutMs <= 0 {
		return time.Duration(Defaults().Library.TimeoutMs) * time.Millisecond
	}
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

// AutosaveInterval returns the serve-mode autosave period, or 0 when disabled.
func (g GeneralConfig) AutosaveInterval() time.Duration {
	if g.AutosaveSec <= 0 {
		return 0
	}
	return time.Duration(g.AutosaveSec) * time.Second
}
