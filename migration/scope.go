package migration

import (
	"fmt"
	"sort"
)

// =============================================================================
// Run Scope
// =============================================================================

// Scope pins one invocation to a set of namespaces and database
// groups, plus the version the run should land on. A Scope is an
// immutable value: the With* methods return modified copies, so a
// Scope can be shared and reused safely.
type Scope struct {
	namespaces    []string
	groups        []string
	allNamespaces bool
	allGroups     bool
	target        Version
	toLatest      bool
}

// NewScope returns the empty scope: default namespace, default group,
// migrate to latest.
func NewScope() Scope {
	return Scope{toLatest: true}
}

// WithNamespaces restricts the scope to the given namespaces.
func (s Scope) WithNamespaces(namespaces ...string) Scope {
	s.namespaces = append([]string(nil), namespaces...)
	s.allNamespaces = false
	return s
}

// WithAllNamespaces widens the scope to every configured namespace.
func (s Scope) WithAllNamespaces() Scope {
	s.namespaces = nil
	s.allNamespaces = true
	return s
}

// WithGroups restricts the scope to the given database groups.
func (s Scope) WithGroups(groups ...string) Scope {
	s.groups = append([]string(nil), groups...)
	s.allGroups = false
	return s
}

// WithAllGroups widens the scope to every configured database group.
func (s Scope) WithAllGroups() Scope {
	s.groups = nil
	s.allGroups = true
	return s
}

// WithTarget aims the run at an explicit version. The zero version
// reverts everything.
func (s Scope) WithTarget(v Version) Scope {
	s.target = v
	s.toLatest = false
	return s
}

// WithLatest aims the run at the newest discovered version.
func (s Scope) WithLatest() Scope {
	s.target = Zero
	s.toLatest = true
	return s
}

// Target returns the explicit target version, meaningful only when
// Latest() is false.
func (s Scope) Target() Version { return s.target }

// Latest reports whether the run aims at the newest version.
func (s Scope) Latest() bool { return s.toLatest }

// Namespaces returns the explicitly selected namespaces.
func (s Scope) Namespaces() []string {
	return append([]string(nil), s.namespaces...)
}

// Groups returns the explicitly selected groups.
func (s Scope) Groups() []string {
	return append([]string(nil), s.groups...)
}

// pair is one concrete (namespace, group) combination a scope resolved
// to.
type pair struct {
	namespace string
	group     string
}

// resolve expands the scope against the configured namespace and group
// sets. Empty selections fall back to the defaults, the All variants
// expand to the full sets, and unknown names fail with
// ErrUnknownNamespace / ErrUnknownGroup before any work starts.
func (s Scope) resolve(defaultNamespace string, knownNamespaces []string, defaultGroup string, knownGroups []string) ([]pair, error) {
	namespaces, err := expandSelection(s.namespaces, s.allNamespaces, defaultNamespace, knownNamespaces, ErrUnknownNamespace)
	if err != nil {
		return nil, err
	}
	groups, err := expandSelection(s.groups, s.allGroups, defaultGroup, knownGroups, ErrUnknownGroup)
	if err != nil {
		return nil, err
	}

	pairs := make([]pair, 0, len(namespaces)*len(groups))
	for _, ns := range namespaces {
		for _, g := range groups {
			pairs = append(pairs, pair{namespace: ns, group: g})
		}
	}
	return pairs, nil
}

func expandSelection(selected []string, all bool, fallback string, known []string, unknownErr error) ([]string, error) {
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}

	if all {
		expanded := append([]string(nil), known...)
		sort.Strings(expanded)
		return expanded, nil
	}

	if len(selected) == 0 {
		selected = []string{fallback}
	}
	seen := make(map[string]struct{}, len(selected))
	var expanded []string
	for _, name := range selected {
		if _, ok := knownSet[name]; !ok {
			return nil, fmt.Errorf("%q: %w", name, unknownErr)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		expanded = append(expanded, name)
	}
	return expanded, nil
}
