package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umputun/litedrv/pkg/driver"
)

// profile is a named connection preset from the profiles file. Set fields
// override the command line flags, unset fields keep them. Durations are
// strings in Go duration syntax, e.g. "30s".
type profile struct {
	Database    string  `yaml:"db"`
	Isolation   *string `yaml:"isolation"` // pointer to tell "unset" from "empty, i.e. autocommit"
	Autocommit  *int    `yaml:"autocommit"`
	BusyTimeout string  `yaml:"busy_timeout"`
	SyncURL     string  `yaml:"sync_url"`
	SyncEvery   string  `yaml:"sync_every"`
	AuthToken   string  `yaml:"auth_token"`
	Encryption  string  `yaml:"encryption_key"`
}

// loadProfile reads the profiles file and returns the named profile.
func loadProfile(path, name string) (profile, error) {
	body, err := os.ReadFile(path) // nolint gosec // path from the user running the tool
	if err != nil {
		return profile{}, fmt.Errorf("can't read profiles file %q: %w", path, err)
	}

	var profiles map[string]profile
	if err := yaml.Unmarshal(body, &profiles); err != nil {
		return profile{}, fmt.Errorf("can't parse profiles file %q: %w", path, err)
	}

	p, ok := profiles[name]
	if !ok {
		return profile{}, fmt.Errorf("profile %q not found in %q", name, path)
	}
	return p, nil
}

// apply overlays the profile on a configuration.
func (p profile) apply(cfg driver.Config) (driver.Config, error) {
	if p.Database != "" {
		cfg.Target = p.Database
	}
	if p.Isolation != nil {
		cfg.IsolationLevel = *p.Isolation
	}
	if p.Autocommit != nil {
		mode, err := driver.AutocommitFromInt(*p.Autocommit)
		if err != nil {
			return cfg, err
		}
		cfg.Autocommit = mode
	}
	if p.BusyTimeout != "" {
		d, err := time.ParseDuration(p.BusyTimeout)
		if err != nil {
			return cfg, fmt.Errorf("invalid busy_timeout %q: %w", p.BusyTimeout, err)
		}
		cfg.BusyTimeout = d
	}
	if p.SyncURL != "" {
		cfg.SyncURL = p.SyncURL
	}
	if p.SyncEvery != "" {
		d, err := time.ParseDuration(p.SyncEvery)
		if err != nil {
			return cfg, fmt.Errorf("invalid sync_every %q: %w", p.SyncEvery, err)
		}
		cfg.SyncInterval = d
	}
	if p.AuthToken != "" {
		cfg.AuthToken = p.AuthToken
	}
	if p.Encryption != "" {
		cfg.EncryptionKey = p.Encryption
	}
	return cfg, nil
}
