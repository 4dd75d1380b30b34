package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/migration"
)

// GormStore tracks applied migrations in a table inside each group's
// own database. The table is created lazily the first time a group is
// touched.
type GormStore struct {
	table string
	conns migration.Connections

	mu     sync.Mutex
	ready  map[string]struct{}
	closed bool
}

// NewGormStore creates a GormStore writing to the given tracking
// table.
func NewGormStore(table string, conns migration.Connections) *GormStore {
	if table == "" {
		table = DefaultTable
	}
	return &GormStore{
		table: table,
		conns: conns,
		ready: make(map[string]struct{}),
	}
}

// session returns the group's connection with the tracking table
// bootstrapped.
func (s *GormStore) session(ctx context.Context, group string) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	db, err := s.conns.Group(group)
	if err != nil {
		return nil, fmt.Errorf("resolve group %s: %w", group, err)
	}

	if _, ok := s.ready[group]; !ok {
		if err := db.WithContext(ctx).Table(s.table).AutoMigrate(&Record{}); err != nil {
			return nil, fmt.Errorf("bootstrap tracking table %s: %w", s.table, err)
		}
		s.ready[group] = struct{}{}
	}
	return db.WithContext(ctx).Table(s.table), nil
}

// CurrentVersion implements migration.History.
func (s *GormStore) CurrentVersion(ctx context.Context, namespace, group string) (migration.Version, error) {
	versions, err := s.AppliedVersions(ctx, namespace, group)
	if err != nil {
		return migration.Zero, err
	}
	if len(versions) == 0 {
		return migration.Zero, nil
	}
	return versions[len(versions)-1], nil
}

// AppliedVersions implements migration.History. Versions are sorted
// numerically in Go: canonical version strings of differing lengths
// would not sort correctly under the database's string collation.
func (s *GormStore) AppliedVersions(ctx context.Context, namespace, group string) ([]migration.Version, error) {
	tx, err := s.session(ctx, group)
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := tx.Where("namespace = ? AND group_name = ?", namespace, group).
		Pluck("version", &raw).Error; err != nil {
		return nil, fmt.Errorf("load applied versions: %w", err)
	}

	versions := make([]migration.Version, len(raw))
	for i, r := range raw {
		versions[i] = migration.Version(r)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Before(versions[j])
	})
	return versions, nil
}

// AppliedAt implements migration.History.
func (s *GormStore) AppliedAt(ctx context.Context, namespace, group string, v migration.Version) (time.Time, error) {
	tx, err := s.session(ctx, group)
	if err != nil {
		return time.Time{}, err
	}

	var rec Record
	err = tx.Where("namespace = ? AND group_name = ? AND version = ?", namespace, group, string(v)).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, fmt.Errorf("version %s: %w", v, ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("load applied time: %w", err)
	}
	return rec.AppliedAt, nil
}

// RecordApplied implements migration.History. The unique index turns
// the concurrent-duplicate race into ErrDuplicateVersion for the
// loser.
func (s *GormStore) RecordApplied(ctx context.Context, namespace, group string, v migration.Version) error {
	tx, err := s.session(ctx, group)
	if err != nil {
		return err
	}

	rec := Record{
		Namespace: namespace,
		Group:     group,
		Version:   string(v),
	}
	if err := tx.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || s.exists(ctx, namespace, group, v) {
			return fmt.Errorf("version %s: %w", v, ErrDuplicateVersion)
		}
		return fmt.Errorf("record applied version %s: %w", v, err)
	}
	return nil
}

// exists double-checks a version after a failed insert, for drivers
// whose duplicate-key errors gorm does not translate.
func (s *GormStore) exists(ctx context.Context, namespace, group string, v migration.Version) bool {
	tx, err := s.session(ctx, group)
	if err != nil {
		return false
	}
	var count int64
	tx.Where("namespace = ? AND group_name = ? AND version = ?", namespace, group, string(v)).
		Count(&count)
	return count > 0
}

// RecordReverted implements migration.History.
func (s *GormStore) RecordReverted(ctx context.Context, namespace, group string, v migration.Version) error {
	tx, err := s.session(ctx, group)
	if err != nil {
		return err
	}

	res := tx.Where("namespace = ? AND group_name = ? AND version = ?", namespace, group, string(v)).
		Delete(&Record{})
	if res.Error != nil {
		return fmt.Errorf("delete version %s: %w", v, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("version %s: %w", v, ErrNotFound)
	}
	return nil
}

// Ping implements Store by pinging every configured group connection.
func (s *GormStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.mu.Unlock()

	var errs []error
	for _, group := range s.conns.Groups() {
		db, err := s.conns.Group(group)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", group, err))
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", group, err))
			continue
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", group, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements Store. The group connections stay open; they belong
// to the database manager.
func (s *GormStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
