package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a catalog backend.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific (for the jsonfile backend it is a filesystem path).
type Config struct {
	Kind string
	DSN  string
}

// Store is a backend-agnostic interface over the persisted catalog.
//
// The catalog is small (a few hundred records) and always replaced as a
// whole after a merge, so the interface is load/replace rather than
// row-level CRUD. Each backend implements Replace atomically in its own
// idiomatic way (temp file + rename, single transaction, etc).
type Store interface {
	// Load returns every persisted record. A store that has never been
	// written returns an empty slice, not an error.
	Load(ctx context.Context) ([]Record, error)

	// Replace swaps the full catalog contents for records. Readers never
	// observe a partially written catalog.
	Replace(ctx context.Context, records []Record) error

	// Close releases backend resources. Callers should treat Close as
	// "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind (e.g. "jsonfile",
// "postgres"). Call it from an init() function in the backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if kind == "" {
		panic("catalog: Register called with empty kind")
	}
	if f == nil {
		panic("catalog: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("catalog: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Open constructs a Store using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("catalog: missing store kind")
	}

	factoryMu.RLock()
	f, ok := factories[cfg.Kind]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("catalog: unsupported store kind %q", cfg.Kind)
	}
	return f(ctx, cfg)
}
