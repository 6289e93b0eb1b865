package factory

import (
	"errors"
	"strings"

	"github.com/loykin/focuspilot/internal/store"
	pg "github.com/loykin/focuspilot/internal/store/postgres"
	sq "github.com/loykin/focuspilot/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - memory:   "memory" or "memory://" (process lifetime only)
//   - sqlite:   "sqlite://<path>" or bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	switch {
	case ld == "":
		return nil, errors.New("empty DSN")
	case ld == "memory" || ld == "memory://":
		return store.NewMemory(), nil
	case strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://"):
		return pg.New(d)
	case strings.HasPrefix(ld, "sqlite://"):
		return sq.New(d[len("sqlite://"):])
	}
	return sq.New(d)
}
