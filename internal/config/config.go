// Copyright 2025 LazySync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves the LazySync config directory and settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lazysync/internal/artifacts"
)

// getConfigDir returns the config directory path.
// Uses LAZYSYNC_CONFIG_DIR env var if set, otherwise defaults to ~/.lazysync.
// Computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("LAZYSYNC_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lazysync")
}

// Dir returns the configuration directory path.
func Dir() string {
	return getConfigDir()
}

// SettingsPath returns the global settings file path.
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// CacheFilePath returns the default snapshot cache mirror path.
func CacheFilePath() string {
	return filepath.Join(getConfigDir(), "cache.json")
}

// LogPath returns the log file path.
// Uses LAZYSYNC_LOG env var if set, otherwise defaults to config_dir/lazysync.log.
func LogPath() string {
	if envPath := os.Getenv("LAZYSYNC_LOG"); envPath != "" {
		return envPath
	}
	return filepath.Join(getConfigDir(), "lazysync.log")
}

// EnsureDir creates the config directory if it doesn't exist.
func EnsureDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitDir initializes the config directory with the default settings file.
func InitDir() error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(SettingsPath()); os.IsNotExist(err) {
		if err := os.WriteFile(SettingsPath(), artifacts.GlobalSettings, 0600); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}
	return nil
}

// Settings is the global settings file, {config_dir}/settings.yaml.
type Settings struct {
	ServerAddr string `yaml:"server_addr"`
	HTTPAddr   string `yaml:"http_addr"`
	LogLevel   string `yaml:"log_level"`
	CacheFile  string `yaml:"cache_file"` // default: {config_dir}/cache.json

	RequestTimeoutSec  int `yaml:"request_timeout"`
	DialTimeoutSec     int `yaml:"dial_timeout"`
	BackoffInitialMsec int `yaml:"backoff_initial_ms"`
	BackoffMaxSec      int `yaml:"backoff_max"`

	RefreshIntervalSec int `yaml:"refresh_interval"` // 0 disables the refresher
	RefreshDepth       int `yaml:"refresh_depth"`

	HideDotfiles   bool     `yaml:"hide_dotfiles"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.ServerAddr == "" {
		s.ServerAddr = "127.0.0.1:7878"
	}
	if s.HTTPAddr == "" {
		s.HTTPAddr = "127.0.0.1:8090"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.CacheFile == "" {
		s.CacheFile = CacheFilePath()
	}
	if s.RequestTimeoutSec == 0 {
		s.RequestTimeoutSec = 5
	}
	if s.DialTimeoutSec == 0 {
		s.DialTimeoutSec = 10
	}
	if s.BackoffInitialMsec == 0 {
		s.BackoffInitialMsec = 200
	}
	if s.BackoffMaxSec == 0 {
		s.BackoffMaxSec = 30
	}
	if s.RefreshDepth == 0 {
		s.RefreshDepth = 5
	}
}

// RequestTimeout returns the listing timeout as a duration.
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// DialTimeout returns the connect timeout as a duration.
func (s *Settings) DialTimeout() time.Duration {
	return time.Duration(s.DialTimeoutSec) * time.Second
}

// BackoffInitial returns the initial reconnect delay as a duration.
func (s *Settings) BackoffInitial() time.Duration {
	return time.Duration(s.BackoffInitialMsec) * time.Millisecond
}

// BackoffMax returns the reconnect delay cap as a duration.
func (s *Settings) BackoffMax() time.Duration {
	return time.Duration(s.BackoffMaxSec) * time.Second
}

// RefreshInterval returns the background refresh period; zero disables it.
func (s *Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSec) * time.Second
}

// Load reads the settings file and applies defaults. A missing file yields
// pure defaults; a malformed file is an error.
func Load() (*Settings, error) {
	return LoadFromPath(SettingsPath())
}

// LoadFromPath reads settings from a specific file path.
func LoadFromPath(path string) (*Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.ApplyDefaults()
			return &s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.ApplyDefaults()
	return &s, nil
}
