package migration

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrDisabled          = errors.New("migrations disabled by configuration")
	ErrUnknownNamespace  = errors.New("unknown namespace")
	ErrUnknownGroup      = errors.New("unknown database group")
	ErrUnknownVersion    = errors.New("unknown migration version")
	ErrUnitNotRegistered = errors.New("migration unit not registered")
	ErrIrreversible      = errors.New("migration is irreversible")
)

// DiscoveryError reports a fatal problem found while scanning a
// namespace for migration files, such as two files claiming the same
// version.
type DiscoveryError struct {
	Namespace string
	File      string
	Reason    string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed in namespace %q (%s): %s", e.Namespace, e.File, e.Reason)
}

// ExecutionError wraps the failure of a single migration step. Steps
// executed before the failing one stay applied and recorded.
type ExecutionError struct {
	Descriptor Descriptor
	Direction  Direction
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %s (%s) %s failed in namespace %q: %v",
		e.Descriptor.Version, e.Descriptor.UnitName, e.Direction, e.Descriptor.Namespace, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
