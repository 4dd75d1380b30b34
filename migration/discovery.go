package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// Migration Discovery
// =============================================================================

// Source records where a migration script came from.
type Source string

const (
	// SourceGo marks a .go script resolved through the unit registry.
	SourceGo Source = "go"
	// SourceSQL marks a .sql script, optionally paired with a
	// .down.sql revert script.
	SourceSQL Source = "sql"
)

// Descriptor describes one discovered migration. Descriptors are
// recomputed on every run and never persisted.
type Descriptor struct {
	Version   Version
	Namespace string
	UnitName  string
	Source    Source

	// Path is the script that produced this descriptor. DownPath is
	// the paired .down.sql for SQL sources, empty when absent.
	Path     string
	DownPath string
}

// Locator resolves a namespace to the candidate files that may contain
// migrations for it.
type Locator interface {
	Locate(namespace string) ([]string, error)
}

// DirLocator is the default Locator: it maps each namespace to a root
// directory and lists the files of the configured migrations
// subdirectory underneath it.
type DirLocator struct {
	roots map[string]string
	sub   string
}

// NewDirLocator builds a DirLocator from the configured namespace
// roots and the relative migrations path, e.g. "Database/Migrations".
func NewDirLocator(roots map[string]string, sub string) *DirLocator {
	copied := make(map[string]string, len(roots))
	for ns, root := range roots {
		copied[ns] = root
	}
	return &DirLocator{roots: copied, sub: sub}
}

// Locate implements Locator. A namespace without a configured root is
// an error; a configured namespace whose migrations directory does not
// exist yet simply has no migrations.
func (l *DirLocator) Locate(namespace string) ([]string, error) {
	root, ok := l.roots[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %q: %w", namespace, ErrUnknownNamespace)
	}

	dir := filepath.Join(root, l.sub)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// Dir returns the migrations directory for a namespace without
// touching the filesystem. Used by the scaffolder.
func (l *DirLocator) Dir(namespace string) (string, error) {
	root, ok := l.roots[namespace]
	if !ok {
		return "", fmt.Errorf("namespace %q: %w", namespace, ErrUnknownNamespace)
	}
	return filepath.Join(root, l.sub), nil
}

// stemPattern matches "<version>_<name>" migration file stems:
// a digit-led version with optional "-"/"_" separators, an underscore
// and a letter-led descriptive name.
var stemPattern = regexp.MustCompile(`^([0-9][0-9-_]*)_([a-zA-Z][a-zA-Z0-9_]*)$`)

// Discovery scans namespaces for migration scripts and turns them into
// ordered Descriptors.
type Discovery struct {
	locator Locator
	logger  *zap.Logger
}

// NewDiscovery creates a Discovery over the given locator.
func NewDiscovery(locator Locator, logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{
		locator: locator,
		logger:  logger.With(zap.String("component", "discovery")),
	}
}

// Find returns the migrations of a namespace in ascending version
// order. Files that do not look like migrations are skipped; two
// scripts claiming the same version are fatal.
func (d *Discovery) Find(ctx context.Context, namespace string) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := d.locator.Locate(namespace)
	if err != nil {
		return nil, err
	}

	var (
		descriptors []Descriptor
		byVersion   = make(map[Version]string) // version -> first file
		downs       = make(map[Version]string) // version -> .down.sql path
	)

	for _, path := range files {
		base := filepath.Base(path)

		var (
			stem   string
			source Source
			isDown bool
		)
		switch {
		case strings.HasSuffix(base, "_test.go"):
			continue
		case strings.HasSuffix(base, ".down.sql"):
			stem = strings.TrimSuffix(base, ".down.sql")
			source = SourceSQL
			isDown = true
		case strings.HasSuffix(base, ".sql"):
			stem = strings.TrimSuffix(base, ".sql")
			source = SourceSQL
		case strings.HasSuffix(base, ".go"):
			stem = strings.TrimSuffix(base, ".go")
			source = SourceGo
		default:
			continue
		}

		m := stemPattern.FindStringSubmatch(stem)
		if m == nil {
			d.logger.Debug("skipping non-migration file",
				zap.String("namespace", namespace),
				zap.String("file", base))
			continue
		}

		version, err := ParseVersion(m[1])
		if err != nil || version.IsZero() {
			d.logger.Debug("skipping file with unusable version",
				zap.String("namespace", namespace),
				zap.String("file", base))
			continue
		}

		if isDown {
			downs[version] = path
			continue
		}

		if first, dup := byVersion[version]; dup {
			return nil, &DiscoveryError{
				Namespace: namespace,
				File:      base,
				Reason:    fmt.Sprintf("duplicate version %s, already defined by %s", version, filepath.Base(first)),
			}
		}
		byVersion[version] = path

		descriptors = append(descriptors, Descriptor{
			Version:   version,
			Namespace: namespace,
			UnitName:  pascalCase(m[2]),
			Source:    source,
			Path:      path,
		})
	}

	for i := range descriptors {
		if descriptors[i].Source != SourceSQL {
			continue
		}
		if down, ok := downs[descriptors[i].Version]; ok {
			descriptors[i].DownPath = down
			delete(downs, descriptors[i].Version)
		}
	}
	for version, path := range downs {
		d.logger.Warn("orphan down script without matching migration",
			zap.String("namespace", namespace),
			zap.String("version", version.String()),
			zap.String("file", filepath.Base(path)))
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Version.Before(descriptors[j].Version)
	})
	return descriptors, nil
}

// pascalCase converts a snake_case script name to the unit name form:
// "add_blog" becomes "AddBlog".
func pascalCase(snake string) string {
	parts := strings.Split(snake, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// readScript loads the contents of a script file discovered earlier.
func readScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script %s: %w", path, err)
	}
	return string(data), nil
}
