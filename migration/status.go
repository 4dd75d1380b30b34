package migration

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Status is one row of the migration status report: a discovered or
// applied migration joined with its recorded state. Applied versions
// whose script vanished from disk still appear, with an empty
// UnitName.
type Status struct {
	Descriptor Descriptor
	Applied    bool
	AppliedAt  time.Time
}

// Status reports every known migration of one (namespace, group) pair
// in ascending version order.
func (r *Runner) Status(ctx context.Context, namespace, group string) ([]Status, error) {
	if r.cfg.Disabled {
		return nil, ErrDisabled
	}
	if err := r.validatePair(namespace, group); err != nil {
		return nil, err
	}

	discovered, err := r.discovery.Find(ctx, namespace)
	if err != nil {
		return nil, err
	}

	applied, err := r.history.AppliedVersions(ctx, namespace, group)
	if err != nil {
		return nil, fmt.Errorf("load applied versions: %w", err)
	}
	appliedSet := make(map[Version]struct{}, len(applied))
	for _, v := range applied {
		appliedSet[v] = struct{}{}
	}

	var statuses []Status
	for _, d := range discovered {
		s := Status{Descriptor: d}
		if _, ok := appliedSet[d.Version]; ok {
			s.Applied = true
			at, err := r.history.AppliedAt(ctx, namespace, group, d.Version)
			if err != nil {
				return nil, fmt.Errorf("load applied time for %s: %w", d.Version, err)
			}
			s.AppliedAt = at
			delete(appliedSet, d.Version)
		}
		statuses = append(statuses, s)
	}

	// Applied versions without a script on disk
	for v := range appliedSet {
		at, err := r.history.AppliedAt(ctx, namespace, group, v)
		if err != nil {
			return nil, fmt.Errorf("load applied time for %s: %w", v, err)
		}
		statuses = append(statuses, Status{
			Descriptor: Descriptor{Version: v, Namespace: namespace},
			Applied:    true,
			AppliedAt:  at,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Descriptor.Version.Before(statuses[j].Descriptor.Version)
	})
	return statuses, nil
}
