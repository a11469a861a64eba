package driver

import (
	"time"

	"github.com/umputun/litedrv/pkg/engine"
)

// AutocommitMode controls transaction-boundary inference. The zero value is
// the legacy mode, deriving autocommit from the isolation level setting.
type AutocommitMode int

// autocommit modes
const (
	AutocommitLegacy AutocommitMode = iota // infer: autocommit iff no isolation level configured
	AutocommitOff                          // statements grouped into implicit transactions
	AutocommitOn                           // every statement stands alone
)

// LegacyTransactionControl is the wire value of the legacy autocommit
// sentinel, kept for configuration surfaces that pass autocommit as an
// integer (-1 legacy, 0 off, 1 on).
const LegacyTransactionControl = -1

// AutocommitFromInt converts the legacy integer encoding to a mode.
func AutocommitFromInt(v int) (AutocommitMode, error) {
	switch v {
	case LegacyTransactionControl:
		return AutocommitLegacy, nil
	case 0:
		return AutocommitOff, nil
	case 1:
		return AutocommitOn, nil
	default:
		return AutocommitLegacy, configErrorf("invalid autocommit value %d, expected -1, 0 or 1", v)
	}
}

// Config describes a connection. Zero-value fields mean "unset"; use
// DefaultConfig for the legacy-compatible defaults.
type Config struct {
	Target         string         // local path, ":memory:", or remote URL
	BusyTimeout    time.Duration  // engine busy-wait applied at connection open
	IsolationLevel string         // e.g. "DEFERRED"; empty means autocommit-by-default
	Autocommit     AutocommitMode // explicit override or legacy inference

	SyncURL       string        // remote replica for a synced local database
	SyncInterval  time.Duration // periodic replica sync, 0 disables
	Offline       bool          // disable remote-write pass-through when synced
	AuthToken     string        // auth token for remote/synced engines
	EncryptionKey string        // at-rest encryption, incompatible with SyncURL
}

// DefaultConfig returns the legacy-compatible configuration for a target:
// 5s busy timeout, DEFERRED isolation and legacy autocommit inference, which
// together group data-modifying statements into implicit transactions.
func DefaultConfig(target string) Config {
	return Config{
		Target:         target,
		BusyTimeout:    5 * time.Second,
		IsolationLevel: "DEFERRED",
		Autocommit:     AutocommitLegacy,
	}
}

func (c Config) validate() error {
	if c.Target == "" {
		return configErrorf("database target is required")
	}
	if c.EncryptionKey != "" && c.SyncURL != "" {
		return configErrorf("encryption is not supported for synced databases")
	}
	switch c.Autocommit {
	case AutocommitLegacy, AutocommitOff, AutocommitOn:
	default:
		return configErrorf("invalid autocommit mode %d", int(c.Autocommit))
	}
	return nil
}

func (c Config) engineConfig() engine.Config {
	return engine.Config{
		Target:        c.Target,
		AuthToken:     c.AuthToken,
		EncryptionKey: c.EncryptionKey,
		SyncURL:       c.SyncURL,
		SyncInterval:  c.SyncInterval,
		Offline:       c.Offline,
	}
}
