package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// =============================================================================
// Migration Units
// =============================================================================

// Unit is a single reversible schema change. Up and Down receive the
// transaction handle of the database group the run targets; whatever
// they execute is committed together with the step.
type Unit interface {
	// Up applies the schema change.
	Up(ctx context.Context, tx *gorm.DB) error

	// Down reverts the schema change.
	Down(ctx context.Context, tx *gorm.DB) error
}

// FuncUnit adapts a pair of functions into a Unit. A nil DownFn makes
// the unit irreversible.
type FuncUnit struct {
	UpFn   func(ctx context.Context, tx *gorm.DB) error
	DownFn func(ctx context.Context, tx *gorm.DB) error
}

// Up implements Unit.
func (u FuncUnit) Up(ctx context.Context, tx *gorm.DB) error {
	if u.UpFn == nil {
		return errors.New("unit has no up function")
	}
	return u.UpFn(ctx, tx)
}

// Down implements Unit.
func (u FuncUnit) Down(ctx context.Context, tx *gorm.DB) error {
	if u.DownFn == nil {
		return ErrIrreversible
	}
	return u.DownFn(ctx, tx)
}

// SQLUnit executes raw SQL scripts, one statement at a time. An empty
// DownSQL makes the unit irreversible.
type SQLUnit struct {
	UpSQL   string
	DownSQL string
}

// Up implements Unit.
func (u SQLUnit) Up(ctx context.Context, tx *gorm.DB) error {
	return execScript(ctx, tx, u.UpSQL)
}

// Down implements Unit.
func (u SQLUnit) Down(ctx context.Context, tx *gorm.DB) error {
	if strings.TrimSpace(u.DownSQL) == "" {
		return ErrIrreversible
	}
	return execScript(ctx, tx, u.DownSQL)
}

func execScript(ctx context.Context, tx *gorm.DB, script string) error {
	stmts := splitStatements(script)
	if len(stmts) == 0 {
		return errors.New("empty SQL script")
	}
	for _, stmt := range stmts {
		if err := tx.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec %q: %w", abbreviate(stmt, 64), err)
		}
	}
	return nil
}

// splitStatements breaks a script into individual statements on ";".
// Line comments ("--") are dropped; statements spanning several lines
// stay intact. Quoted semicolons inside string literals are not
// handled; migration scripts keep DDL simple.
func splitStatements(script string) []string {
	var clean []string
	for _, line := range strings.Split(script, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		clean = append(clean, line)
	}

	var stmts []string
	for _, raw := range strings.Split(strings.Join(clean, "\n"), ";") {
		stmt := strings.TrimSpace(raw)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func abbreviate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
