package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Config carries the engine-side part of the connection configuration.
type Config struct {
	Target        string        // local path, ":memory:", or a remote URL
	AuthToken     string        // auth token for remote and synced databases
	EncryptionKey string        // at-rest encryption key, local databases only
	SyncURL       string        // remote replica to sync a local database with
	SyncInterval  time.Duration // periodic sync interval, 0 disables
	Offline       bool          // disable remote-write pass-through for synced databases
}

// Kind selects which registered opener serves a given configuration.
type Kind string

// opener kinds
const (
	Local  Kind = "local"  // embedded database on the local filesystem
	Remote Kind = "remote" // networked engine, target is a remote URL
	Synced Kind = "synced" // local embedded replica synced with a remote
)

// Opener creates a Database for a given configuration.
type Opener func(cfg Config) (Database, error)

var (
	openersMu sync.Mutex
	openers   = map[Kind]Opener{}
)

// Register makes an opener available for a kind. Engines call it from init,
// the same way database/sql drivers register on import. Registering the same
// kind twice panics.
func Register(kind Kind, o Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if _, ok := openers[kind]; ok {
		panic(fmt.Sprintf("engine: opener for %q registered twice", kind))
	}
	openers[kind] = o
}

// Open picks the opener for the configuration and opens the database.
// Remote target URLs win over a sync URL, matching the legacy behavior where
// a remote primary ignores replica settings.
func Open(cfg Config) (Database, error) {
	kind := Local
	switch {
	case IsRemoteTarget(cfg.Target):
		kind = Remote
	case cfg.SyncURL != "":
		kind = Synced
	}

	openersMu.Lock()
	o, ok := openers[kind]
	openersMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no %q engine registered for target %q", kind, cfg.Target)
	}
	return o(cfg)
}

// IsRemoteTarget reports whether the target addresses a networked engine.
func IsRemoteTarget(target string) bool {
	for _, p := range []string{"libsql://", "http://", "https://"} {
		if strings.HasPrefix(target, p) {
			return true
		}
	}
	return false
}
