package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// Migration Scaffolder
// =============================================================================

// DefaultTimestampFormat is the version prefix layout for new
// migration files, yielding names like 2012-10-31-100537_add_blog.
const DefaultTimestampFormat = "2006-01-02-150405_"

// Scaffolder writes new migration file stubs into a namespace's
// migrations directory.
type Scaffolder struct {
	locator *DirLocator
	format  string
	now     func() time.Time
}

// ScaffolderOption customizes a Scaffolder.
type ScaffolderOption func(*Scaffolder)

// WithClock overrides the timestamp source; tests use this for
// deterministic file names.
func WithClock(now func() time.Time) ScaffolderOption {
	return func(s *Scaffolder) { s.now = now }
}

// NewScaffolder creates a Scaffolder. An empty timestampFormat falls
// back to DefaultTimestampFormat.
func NewScaffolder(locator *DirLocator, timestampFormat string, opts ...ScaffolderOption) *Scaffolder {
	if timestampFormat == "" {
		timestampFormat = DefaultTimestampFormat
	}
	s := &Scaffolder{
		locator: locator,
		format:  timestampFormat,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes the stub file(s) for a new migration and returns their
// paths. Go stubs contain a registered FuncUnit skeleton; SQL stubs
// come as an up/down script pair.
func (s *Scaffolder) Create(namespace, name string, source Source) ([]string, error) {
	dir, err := s.locator.Dir(namespace)
	if err != nil {
		return nil, err
	}

	snake, err := snakeCase(name)
	if err != nil {
		return nil, err
	}

	prefix := s.now().Format(s.format)
	if !strings.HasSuffix(prefix, "_") && !strings.HasSuffix(prefix, "-") {
		prefix += "_"
	}
	stem := prefix + snake

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations dir %s: %w", dir, err)
	}

	switch source {
	case SourceGo:
		path := filepath.Join(dir, stem+".go")
		content := fmt.Sprintf(goStubTemplate, namespace, pascalCase(snake))
		if err := writeNewFile(path, content); err != nil {
			return nil, err
		}
		return []string{path}, nil
	case SourceSQL:
		up := filepath.Join(dir, stem+".sql")
		down := filepath.Join(dir, stem+".down.sql")
		if err := writeNewFile(up, fmt.Sprintf(sqlStubTemplate, snake, "up")); err != nil {
			return nil, err
		}
		if err := writeNewFile(down, fmt.Sprintf(sqlStubTemplate, snake, "down")); err != nil {
			return nil, err
		}
		return []string{up, down}, nil
	default:
		return nil, fmt.Errorf("unknown migration source %q", source)
	}
}

// writeNewFile refuses to overwrite: two migrations created within one
// timestamp tick must not clobber each other.
func writeNewFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// snakeCase normalizes a human migration name ("Add Blog", "add-blog")
// into the snake_case file name part.
func snakeCase(name string) (string, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")

	if name == "" {
		return "", fmt.Errorf("migration name is empty")
	}
	if name[0] < 'a' || name[0] > 'z' {
		return "", fmt.Errorf("migration name %q must start with a letter", name)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("migration name %q may only contain letters, digits and underscores", name)
		}
	}
	return name, nil
}

const goStubTemplate = `package migrations

import (
	"context"

	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/migration"
)

func init() {
	migration.MustRegister(%q, %q, migration.FuncUnit{
		UpFn: func(ctx context.Context, tx *gorm.DB) error {
			// apply the schema change here
			return nil
		},
		DownFn: func(ctx context.Context, tx *gorm.DB) error {
			// revert the schema change here
			return nil
		},
	})
}
`

const sqlStubTemplate = `-- %s (%s)
`
