package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/internal/ctxkeys"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// History records which versions have been applied per namespace and
// database group. Implemented by the history package stores.
type History interface {
	// CurrentVersion returns the highest applied version, or the zero
	// version when nothing has been applied.
	CurrentVersion(ctx context.Context, namespace, group string) (Version, error)

	// AppliedVersions returns every applied version in ascending order.
	AppliedVersions(ctx context.Context, namespace, group string) ([]Version, error)

	// AppliedAt returns when a version was applied.
	AppliedAt(ctx context.Context, namespace, group string, v Version) (time.Time, error)

	// RecordApplied stores one applied version. Recording a version
	// twice fails, which also guards against concurrent runs.
	RecordApplied(ctx context.Context, namespace, group string, v Version) error

	// RecordReverted removes one applied version.
	RecordReverted(ctx context.Context, namespace, group string, v Version) error
}

// Connections resolves database group names to open connections.
// Implemented by the internal database manager.
type Connections interface {
	// Group returns the connection of a configured group.
	Group(name string) (*gorm.DB, error)

	// Groups lists the configured group names.
	Groups() []string
}

// Locker serializes runs that touch the same (namespace, group) pair
// across processes. Optional; the history store's unique index is the
// last line of defense either way.
type Locker interface {
	Lock(ctx context.Context, namespace, group string) error
	Unlock(ctx context.Context, namespace, group string) error
}

// Observer receives timing signals from finished runs and steps.
// Implemented by the metrics collector; optional.
type Observer interface {
	RecordRun(namespace, group string, direction Direction, status string, d time.Duration)
	RecordStep(namespace, group string, direction Direction, status string, d time.Duration)
	RecordLockWait(namespace, group string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordRun(string, string, Direction, string, time.Duration)  {}
func (nopObserver) RecordStep(string, string, Direction, string, time.Duration) {}
func (nopObserver) RecordLockWait(string, string, time.Duration)                {}

// =============================================================================
// Run Results
// =============================================================================

// Direction of a migration run or step.
type Direction string

const (
	// DirectionUp applies pending migrations.
	DirectionUp Direction = "up"
	// DirectionDown reverts applied migrations.
	DirectionDown Direction = "down"
	// DirectionNone marks a run that had nothing to do.
	DirectionNone Direction = "none"
)

// Step is the outcome of one executed migration.
type Step struct {
	Descriptor Descriptor
	Direction  Direction
	Duration   time.Duration
	Err        error
}

// Result describes one finished run against a single (namespace,
// group) pair. On failure Steps ends with the failing step; everything
// before it stays applied and recorded.
type Result struct {
	RunID     string
	Namespace string
	Group     string
	Direction Direction
	From      Version
	To        Version
	Target    Version
	Steps     []Step
	Duration  time.Duration
}

// =============================================================================
// Runner
// =============================================================================

// RunnerConfig carries the static run parameters a Runner needs.
type RunnerConfig struct {
	// Namespaces lists every configured namespace name.
	Namespaces []string

	// DefaultNamespace and DefaultGroup are used when a scope selects
	// nothing explicitly.
	DefaultNamespace string
	DefaultGroup     string

	// Disabled refuses every run with ErrDisabled. Maps the
	// migrations.enabled config gate.
	Disabled bool
}

// Runner orchestrates migration runs: it discovers scripts, diffs them
// against recorded history and executes the pending window in order.
type Runner struct {
	cfg       RunnerConfig
	discovery *Discovery
	history   History
	conns     Connections
	registry  *Registry
	locker    Locker
	observer  Observer
	logger    *zap.Logger
	tracer    trace.Tracer
}

// RunnerOption customizes optional Runner collaborators.
type RunnerOption func(*Runner)

// WithLocker attaches a cross-process run lock.
func WithLocker(l Locker) RunnerOption {
	return func(r *Runner) { r.locker = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// WithRunnerLogger attaches a logger; default is a no-op logger.
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner wires a Runner from its collaborators. The registry is
// passed explicitly so embedded callers can run isolated unit sets.
func NewRunner(cfg RunnerConfig, discovery *Discovery, history History, conns Connections, registry *Registry, opts ...RunnerOption) (*Runner, error) {
	if discovery == nil {
		return nil, errors.New("discovery is required")
	}
	if history == nil {
		return nil, errors.New("history store is required")
	}
	if conns == nil {
		return nil, errors.New("connections are required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if len(cfg.Namespaces) == 0 {
		return nil, errors.New("at least one namespace is required")
	}
	if cfg.DefaultNamespace == "" {
		return nil, errors.New("default namespace is required")
	}
	if cfg.DefaultGroup == "" {
		return nil, errors.New("default group is required")
	}

	r := &Runner{
		cfg:       cfg,
		discovery: discovery,
		history:   history,
		conns:     conns,
		registry:  registry,
		observer:  nopObserver{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/BaSui01/schemaflow/migration"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.With(zap.String("component", "migration"))
	return r, nil
}

// MigrateTo migrates one (namespace, group) pair to an explicit target
// version. A target above the current version applies the pending
// window in ascending order; a target below reverts the applied window
// in descending order; the zero target reverts everything. Execution
// halts at the first failing step, leaving earlier steps applied and
// recorded.
func (r *Runner) MigrateTo(ctx context.Context, namespace, group string, target Version) (*Result, error) {
	return r.run(ctx, namespace, group, targetSpec{version: target})
}

// Latest migrates one (namespace, group) pair to the newest discovered
// version. With no discovered migrations it is a no-op.
func (r *Runner) Latest(ctx context.Context, namespace, group string) (*Result, error) {
	return r.run(ctx, namespace, group, targetSpec{toLatest: true})
}

// LatestAll runs Latest for every configured namespace against one
// group. Namespaces run concurrently and fail independently; the
// aggregate error joins the per-namespace failures and is nil when
// every namespace succeeded, no-ops included.
func (r *Runner) LatestAll(ctx context.Context, group string) ([]*Result, error) {
	return r.Run(ctx, NewScope().WithAllNamespaces().WithGroups(group))
}

// Rollback reverts every applied migration of one (namespace, group)
// pair.
func (r *Runner) Rollback(ctx context.Context, namespace, group string) (*Result, error) {
	return r.run(ctx, namespace, group, targetSpec{version: Zero})
}

// Refresh reverts everything and then migrates back to the newest
// version. Returns the result of the up phase.
func (r *Runner) Refresh(ctx context.Context, namespace, group string) (*Result, error) {
	down, err := r.Rollback(ctx, namespace, group)
	if err != nil {
		return down, fmt.Errorf("refresh rollback phase: %w", err)
	}
	up, err := r.Latest(ctx, namespace, group)
	if err != nil {
		return up, fmt.Errorf("refresh migrate phase: %w", err)
	}
	return up, nil
}

// CurrentVersion returns the recorded current version of one
// (namespace, group) pair.
func (r *Runner) CurrentVersion(ctx context.Context, namespace, group string) (Version, error) {
	if r.cfg.Disabled {
		return Zero, ErrDisabled
	}
	if err := r.validatePair(namespace, group); err != nil {
		return Zero, err
	}
	return r.history.CurrentVersion(ctx, namespace, group)
}

// Run resolves a scope to its (namespace, group) pairs and migrates
// each of them, concurrently across pairs and sequentially within one.
// Results come back sorted by namespace then group; the error joins
// every per-pair failure.
func (r *Runner) Run(ctx context.Context, scope Scope) ([]*Result, error) {
	if r.cfg.Disabled {
		return nil, ErrDisabled
	}

	pairs, err := scope.resolve(r.cfg.DefaultNamespace, r.cfg.Namespaces, r.cfg.DefaultGroup, r.conns.Groups())
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []*Result
		errs    []error
		g       errgroup.Group
	)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			var (
				res *Result
				err error
			)
			if scope.Latest() {
				res, err = r.Latest(ctx, p.namespace, p.group)
			} else {
				res, err = r.MigrateTo(ctx, p.namespace, p.group, scope.Target())
			}

			mu.Lock()
			defer mu.Unlock()
			if res != nil {
				results = append(results, res)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("namespace %s group %s: %w", p.namespace, p.group, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Namespace != results[j].Namespace {
			return results[i].Namespace < results[j].Namespace
		}
		return results[i].Group < results[j].Group
	})
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })

	return results, errors.Join(errs...)
}

// =============================================================================
// Run Execution
// =============================================================================

// targetSpec is the internal form of "where should this run land".
type targetSpec struct {
	toLatest bool
	version  Version
}

// planStep is one step the run intends to execute. err marks steps
// that cannot run, such as an applied version whose script vanished.
type planStep struct {
	desc Descriptor
	err  error
}

func (r *Runner) run(ctx context.Context, namespace, group string, spec targetSpec) (result *Result, runErr error) {
	if r.cfg.Disabled {
		return nil, ErrDisabled
	}
	if err := r.validatePair(namespace, group); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "migration.run", trace.WithAttributes(
		attribute.String("migration.namespace", namespace),
		attribute.String("migration.group", group),
	))
	defer func() {
		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, runErr.Error())
		}
		span.End()
	}()

	if r.locker != nil {
		lockStart := time.Now()
		err := r.locker.Lock(ctx, namespace, group)
		r.observer.RecordLockWait(namespace, group, time.Since(lockStart))
		if err != nil {
			return nil, fmt.Errorf("acquire run lock for %s/%s: %w", namespace, group, err)
		}
		defer func() {
			if err := r.locker.Unlock(context.WithoutCancel(ctx), namespace, group); err != nil {
				r.logger.Error("failed to release run lock",
					zap.String("namespace", namespace),
					zap.String("group", group),
					zap.Error(err))
			}
		}()
	}

	db, err := r.conns.Group(group)
	if err != nil {
		return nil, fmt.Errorf("open group %s: %w", group, err)
	}

	discovered, err := r.discovery.Find(ctx, namespace)
	if err != nil {
		return nil, err
	}

	current, err := r.history.CurrentVersion(ctx, namespace, group)
	if err != nil {
		return nil, fmt.Errorf("load current version: %w", err)
	}

	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		Namespace: namespace,
		Group:     group,
		Direction: DirectionNone,
		From:      current,
		To:        current,
	}

	// Units read these for audit tagging and log correlation.
	ctx = ctxkeys.WithRunID(ctx, res.RunID)
	ctx = ctxkeys.WithNamespace(ctx, namespace)
	ctx = ctxkeys.WithGroup(ctx, group)

	target, ok := resolveTarget(spec, discovered)
	if !ok {
		return nil, fmt.Errorf("target %s in namespace %q: %w", spec.version, namespace, ErrUnknownVersion)
	}
	res.Target = target

	if spec.toLatest && len(discovered) == 0 {
		// Nothing on disk: latest is wherever we already are.
		r.logger.Info("no migrations discovered",
			zap.String("namespace", namespace),
			zap.String("group", group))
		r.observer.RecordRun(namespace, group, DirectionNone, "success", time.Since(start))
		return res, nil
	}

	var plan []planStep
	switch target.Compare(current) {
	case 0:
		r.logger.Info("already at target version",
			zap.String("namespace", namespace),
			zap.String("group", group),
			zap.String("version", current.String()))
		r.observer.RecordRun(namespace, group, DirectionNone, "success", time.Since(start))
		return res, nil
	case 1:
		res.Direction = DirectionUp
		plan = planForward(discovered, current, target)
	case -1:
		res.Direction = DirectionDown
		applied, err := r.history.AppliedVersions(ctx, namespace, group)
		if err != nil {
			return nil, fmt.Errorf("load applied versions: %w", err)
		}
		plan = planBackward(discovered, applied, namespace, current, target)
	}

	r.logger.Info("starting migration run",
		zap.String("run_id", res.RunID),
		zap.String("namespace", namespace),
		zap.String("group", group),
		zap.String("direction", string(res.Direction)),
		zap.String("from", current.String()),
		zap.String("target", target.String()),
		zap.Int("steps", len(plan)))

	for _, ps := range plan {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		var step Step
		if ps.err != nil {
			step = Step{Descriptor: ps.desc, Direction: res.Direction, Err: ps.err}
			r.observer.RecordStep(namespace, group, res.Direction, "failure", 0)
		} else {
			step = r.executeStep(ctx, db, namespace, group, ps.desc, res.Direction)
		}
		res.Steps = append(res.Steps, step)

		if step.Err != nil {
			runErr = &ExecutionError{Descriptor: step.Descriptor, Direction: res.Direction, Err: step.Err}
			break
		}
	}

	if v, err := r.history.CurrentVersion(ctx, namespace, group); err == nil {
		res.To = v
	} else if runErr == nil {
		runErr = fmt.Errorf("load final version: %w", err)
	}
	res.Duration = time.Since(start)

	status := "success"
	if runErr != nil {
		status = "failure"
	}
	r.observer.RecordRun(namespace, group, res.Direction, status, res.Duration)
	r.logger.Info("migration run finished",
		zap.String("run_id", res.RunID),
		zap.String("namespace", namespace),
		zap.String("group", group),
		zap.String("status", status),
		zap.String("version", res.To.String()),
		zap.Duration("duration", res.Duration))

	return res, runErr
}

// executeStep runs one unit inside a transaction on the group
// connection and records the outcome in history. The recording failure
// of a successful schema change is a step failure: state on disk and
// in the tracking table must never drift silently.
func (r *Runner) executeStep(ctx context.Context, db *gorm.DB, namespace, group string, desc Descriptor, direction Direction) Step {
	start := time.Now()
	step := Step{Descriptor: desc, Direction: direction}

	ctx, span := r.tracer.Start(ctx, "migration.step", trace.WithAttributes(
		attribute.String("migration.namespace", namespace),
		attribute.String("migration.group", group),
		attribute.String("migration.version", desc.Version.String()),
		attribute.String("migration.unit", desc.UnitName),
		attribute.String("migration.direction", string(direction)),
	))
	defer span.End()

	unit, err := r.resolveUnit(desc)
	if err == nil {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if direction == DirectionUp {
				return unit.Up(ctx, tx)
			}
			return unit.Down(ctx, tx)
		})
		if err == nil {
			if direction == DirectionUp {
				err = r.history.RecordApplied(ctx, namespace, group, desc.Version)
			} else {
				err = r.history.RecordReverted(ctx, namespace, group, desc.Version)
			}
			if err != nil {
				err = fmt.Errorf("record %s: %w", direction, err)
			}
		}
	}

	step.Err = err
	step.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("migration step failed",
			zap.String("namespace", namespace),
			zap.String("group", group),
			zap.String("version", desc.Version.String()),
			zap.String("unit", desc.UnitName),
			zap.String("direction", string(direction)),
			zap.Error(err))
	} else {
		r.logger.Info("migration step applied",
			zap.String("namespace", namespace),
			zap.String("group", group),
			zap.String("version", desc.Version.String()),
			zap.String("unit", desc.UnitName),
			zap.String("direction", string(direction)),
			zap.Duration("duration", step.Duration))
	}
	r.observer.RecordStep(namespace, group, direction, status, step.Duration)

	return step
}

// resolveUnit turns a descriptor into a runnable Unit. SQL pairs load
// their scripts from disk; .go descriptors resolve through the
// registry. Resolution happens per executed step, so unrelated
// unregistered units never block a run.
func (r *Runner) resolveUnit(desc Descriptor) (Unit, error) {
	switch desc.Source {
	case SourceSQL:
		up, err := readScript(desc.Path)
		if err != nil {
			return nil, err
		}
		var down string
		if desc.DownPath != "" {
			if down, err = readScript(desc.DownPath); err != nil {
				return nil, err
			}
		}
		return SQLUnit{UpSQL: up, DownSQL: down}, nil
	case SourceGo:
		unit, ok := r.registry.Lookup(desc.Namespace, desc.UnitName)
		if !ok {
			return nil, fmt.Errorf("unit %s in namespace %q: %w", desc.UnitName, desc.Namespace, ErrUnitNotRegistered)
		}
		return unit, nil
	default:
		return nil, fmt.Errorf("descriptor %s has unknown source %q", desc.Version, desc.Source)
	}
}

func (r *Runner) validatePair(namespace, group string) error {
	if !containsString(r.cfg.Namespaces, namespace) {
		return fmt.Errorf("%q: %w", namespace, ErrUnknownNamespace)
	}
	if !containsString(r.conns.Groups(), group) {
		return fmt.Errorf("%q: %w", group, ErrUnknownGroup)
	}
	return nil
}

// resolveTarget maps a targetSpec onto the discovered set. Explicit
// targets must name a discovered version or be zero.
func resolveTarget(spec targetSpec, discovered []Descriptor) (Version, bool) {
	if spec.toLatest {
		if len(discovered) == 0 {
			return Zero, true
		}
		return discovered[len(discovered)-1].Version, true
	}
	if spec.version.IsZero() {
		return Zero, true
	}
	for _, d := range discovered {
		if d.Version.Equal(spec.version) {
			return d.Version, true
		}
	}
	return Zero, false
}

// planForward selects the discovered window (current, target] in
// ascending order.
func planForward(discovered []Descriptor, current, target Version) []planStep {
	var plan []planStep
	for _, d := range discovered {
		if d.Version.After(current) && !d.Version.After(target) {
			plan = append(plan, planStep{desc: d})
		}
	}
	return plan
}

// planBackward selects the applied window (target, current] in
// descending order. Applied versions whose script no longer exists
// become failing steps, so the run halts exactly there.
func planBackward(discovered []Descriptor, applied []Version, namespace string, current, target Version) []planStep {
	byVersion := make(map[Version]Descriptor, len(discovered))
	for _, d := range discovered {
		byVersion[d.Version] = d
	}

	var plan []planStep
	for i := len(applied) - 1; i >= 0; i-- {
		v := applied[i]
		if !v.After(target) || v.After(current) {
			continue
		}
		if d, ok := byVersion[v]; ok {
			plan = append(plan, planStep{desc: d})
			continue
		}
		plan = append(plan, planStep{
			desc: Descriptor{Version: v, Namespace: namespace},
			err:  fmt.Errorf("applied version %s has no migration source: %w", v, ErrUnknownVersion),
		})
	}
	return plan
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
