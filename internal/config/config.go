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
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	applog "layoutalign/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ToolConfig struct {
	SearchRadiusPx float64 `yaml:"search_radius_px"`
	MarkerSizePx   float64 `yaml:"marker_size_px"`
	ShowSearchBox  bool    `yaml:"show_search_box"`
	IterationLimit int     `yaml:"iteration_limit"`
}

type TechConfig struct {
	// DRCGridUM is the manufacturing grid in microns; 0 disables snapping.
	DRCGridUM float64 `yaml:"drc_grid_um"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	// The password of a postgres DSN is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// LogOptions converts the section for applog.Init.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Tool          ToolConfig    `yaml:"tool"`
	Tech          TechConfig    `yaml:"tech"`
	Journal       JournalConfig `yaml:"journal"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Tool:          ToolConfig{SearchRadiusPx: 20, MarkerSizePx: 5, ShowSearchBox: true, IterationLimit: 1000},
		Tech:          TechConfig{DRCGridUM: 0.005},
		Journal:       JournalConfig{Enabled: false, DSN: ""},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvSearchRadiusPx = "LAL_SEARCH_RADIUS_PX"
	EnvMarkerSizePx   = "LAL_MARKER_SIZE_PX"
	EnvShowSearchBox  = "LAL_SHOW_SEARCH_BOX"
	EnvIterationLimit = "LAL_ITERATION_LIMIT"
	EnvDRCGridUM      = "LAL_DRC_GRID_UM"
	EnvJournalDSN     = "LAL_JOURNAL_DSN"
	EnvJournalEnabled = "LAL_JOURNAL"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "LAL_LOG_LEVEL"
	EnvLogFormat = "LAL_LOG_FORMAT"
	EnvLogSource = "LAL_LOG_SOURCE"
	EnvLogFile   = "LAL_LOG_FILE"
	// EnvConfigDir replaces the per-user config directory.
	EnvConfigDir = "LAL_CONFIG_DIR"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	if d := strings.TrimSpace(os.Getenv(EnvConfigDir)); d != "" {
		return filepath.Join(d, "config.yaml"), nil
	}
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "LayoutAlign")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "LayoutAlign")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "layoutalign")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// For a postgres journal it also loads the password from the keyring (returned separately, never kept in the struct).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg, data)
		}
	}
	applyEnvOverrides(&cfg)
	var pw string
	if isPostgres(cfg.Journal.DSN) {
		pw, _ = tokenStore.Get(keyringService, keyringPassword)
	}
	return cfg, pw, nil
}

// Save writes the user config YAML and persists the journal password into the OS keyring (if non-empty).
// A password embedded in the DSN is moved to the keyring as well.
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dsn, embedded := stripPassword(cfg.Journal.DSN)
	cfg.Journal.DSN = dsn
	if password == "" {
		password = embedded
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := tokenStore.Set(keyringService, keyringPassword, password); err != nil {
			return err
		}
	}
	return nil
}

// mergeInto copies file values over the defaults. Booleans are taken from
// the file only when their key is present in raw.
func mergeInto(dst *AppConfig, src *AppConfig, raw []byte) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Tool.SearchRadiusPx > 0 {
		dst.Tool.SearchRadiusPx = src.Tool.SearchRadiusPx
	}
	if src.Tool.MarkerSizePx > 0 {
		dst.Tool.MarkerSizePx = src.Tool.MarkerSizePx
	}
	if src.Tool.IterationLimit > 0 {
		dst.Tool.IterationLimit = src.Tool.IterationLimit
	}
	if src.Tech.DRCGridUM > 0 {
		dst.Tech.DRCGridUM = src.Tech.DRCGridUM
	}
	if strings.TrimSpace(src.Journal.DSN) != "" {
		dst.Journal.DSN = strings.TrimSpace(src.Journal.DSN)
	}
	set := presentKeys(raw)
	if set["tool.show_search_box"] {
		dst.Tool.ShowSearchBox = src.Tool.ShowSearchBox
	}
	if set["tech.drc_grid_um"] && src.Tech.DRCGridUM == 0 {
		dst.Tech.DRCGridUM = 0
	}
	dst.Journal.Enabled = src.Journal.Enabled
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

// presentKeys lists the "section.key" pairs spelled out in a YAML document.
func presentKeys(raw []byte) map[string]bool {
	var doc map[string]any
	out := map[string]bool{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return out
	}
	for sec, v := range doc {
		kv, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for k := range kv {
			out[sec+"."+k] = true
		}
	}
	return out
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvSearchRadiusPx)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Tool.SearchRadiusPx = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMarkerSizePx)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Tool.MarkerSizePx = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvShowSearchBox)); v != "" {
		cfg.Tool.ShowSearchBox = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvIterationLimit)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Tool.IterationLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDRCGridUM)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Tech.DRCGridUM = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournalDSN)); v != "" {
		cfg.Journal.DSN = v
		cfg.Journal.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournalEnabled)); v != "" {
		cfg.Journal.Enabled = truthy(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"tool.search_radius_px": EnvSearchRadiusPx,
	"tool.marker_size_px":   EnvMarkerSizePx,
	"tool.show_search_box":  EnvShowSearchBox,
	"tool.iteration_limit":  EnvIterationLimit,
	"tech.drc_grid_um":      EnvDRCGridUM,
	"journal.dsn":           EnvJournalDSN,
	"journal.enabled":       EnvJournalEnabled,
	"logging.level":         EnvLogLevel,
	"logging.format":        EnvLogFormat,
	"logging.source":        EnvLogSource,
	"logging.file":          EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// DefaultJournalDSN is the SQLite journal next to the config file.
func DefaultJournalDSN() (string, error) {
	p, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(p), "journal.sqlite"), nil
}

// EffectiveDSN returns the DSN to open, with password injected into a
// postgres URL that carries a user but no password. Other DSNs are returned as is.
func (j JournalConfig) EffectiveDSN(password string) string {
	dsn := strings.TrimSpace(j.DSN)
	if password == "" || !isPostgres(dsn) {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); has {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String()
}

func isPostgres(dsn string) bool {
	d := strings.ToLower(dsn)
	return strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://")
}

// stripPassword removes the password from a postgres URL and returns it.
func stripPassword(dsn string) (string, string) {
	if !isPostgres(dsn) {
		return dsn, ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn, ""
	}
	pw, has := u.User.Password()
	if !has {
		return dsn, ""
	}
	u.User = url.User(u.User.Username())
	return u.String(), pw
}
