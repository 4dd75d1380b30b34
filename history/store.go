// Package history persists which migration versions have been applied
// per namespace and database group.
//
// The tracking table lives in the database of the group it describes,
// so every group carries its own history and stays independently
// consistent. Two backends exist:
// - Gorm: production, one tracking table per group connection
// - Memory: tests and dry runs
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/schemaflow/migration"
)

// Common errors
var (
	ErrDuplicateVersion = errors.New("version already recorded")
	ErrNotFound         = errors.New("version not recorded")
	ErrStoreClosed      = errors.New("history store is closed")
)

// StoreType represents the type of history backend
type StoreType string

const (
	StoreTypeGorm   StoreType = "gorm"
	StoreTypeMemory StoreType = "memory"
)

// DefaultTable is the tracking table name used when none is
// configured.
const DefaultTable = "migrations"

// Record is one applied migration. The unique index over (namespace,
// group, version) is what makes concurrent duplicate application
// impossible: the second writer fails its insert instead of corrupting
// state.
type Record struct {
	ID        uint      `gorm:"primaryKey"`
	Namespace string    `gorm:"size:128;not null;uniqueIndex:idx_migration_identity,priority:1"`
	Group     string    `gorm:"column:group_name;size:128;not null;uniqueIndex:idx_migration_identity,priority:2"`
	Version   string    `gorm:"size:14;not null;uniqueIndex:idx_migration_identity,priority:3"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// Store persists applied-migration state. It extends the runner's
// History contract with lifecycle operations.
type Store interface {
	migration.History

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources. The underlying connections
	// belong to the database manager and stay open.
	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	// Type of backend; default gorm.
	Type StoreType

	// Table is the tracking table name; default "migrations".
	Table string
}

// New creates a history store. The gorm backend records into the
// tracking table of each group's own database, resolved through conns.
func New(cfg Config, conns migration.Connections) (Store, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	switch cfg.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeGorm, "":
		if conns == nil {
			return nil, errors.New("gorm history store requires connections")
		}
		return NewGormStore(cfg.Table, conns), nil
	default:
		return nil, fmt.Errorf("unsupported history store type: %s", cfg.Type)
	}
}

// MustNew is like New but panics on error
func MustNew(cfg Config, conns migration.Connections) Store {
	store, err := New(cfg, conns)
	if err != nil {
		panic(fmt.Sprintf("failed to create history store: %v", err))
	}
	return store
}
