package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/internal/ctxkeys"
)

// --- test doubles ---

type historyRow struct {
	version   Version
	appliedAt time.Time
}

// memHistory is a minimal History used to drive the runner without the
// real store.
type memHistory struct {
	mu         sync.Mutex
	rows       map[string][]historyRow
	failRecord map[Version]error
	onRecord   func(v Version)
}

func newMemHistory() *memHistory {
	return &memHistory{
		rows:       make(map[string][]historyRow),
		failRecord: make(map[Version]error),
	}
}

func historyKey(namespace, group string) string { return namespace + "|" + group }

func (h *memHistory) CurrentVersion(ctx context.Context, namespace, group string) (Version, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows := h.rows[historyKey(namespace, group)]
	if len(rows) == 0 {
		return Zero, nil
	}
	return rows[len(rows)-1].version, nil
}

func (h *memHistory) AppliedVersions(ctx context.Context, namespace, group string) ([]Version, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows := h.rows[historyKey(namespace, group)]
	versions := make([]Version, len(rows))
	for i, r := range rows {
		versions[i] = r.version
	}
	return versions, nil
}

func (h *memHistory) AppliedAt(ctx context.Context, namespace, group string, v Version) (time.Time, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rows[historyKey(namespace, group)] {
		if r.version.Equal(v) {
			return r.appliedAt, nil
		}
	}
	return time.Time{}, errors.New("not recorded")
}

func (h *memHistory) RecordApplied(ctx context.Context, namespace, group string, v Version) error {
	h.mu.Lock()
	if err, ok := h.failRecord[v]; ok {
		h.mu.Unlock()
		return err
	}
	key := historyKey(namespace, group)
	for _, r := range h.rows[key] {
		if r.version.Equal(v) {
			h.mu.Unlock()
			return errors.New("already recorded")
		}
	}
	h.rows[key] = append(h.rows[key], historyRow{version: v, appliedAt: time.Now()})
	sort.Slice(h.rows[key], func(i, j int) bool {
		return h.rows[key][i].version.Before(h.rows[key][j].version)
	})
	cb := h.onRecord
	h.mu.Unlock()
	if cb != nil {
		cb(v)
	}
	return nil
}

func (h *memHistory) RecordReverted(ctx context.Context, namespace, group string, v Version) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := historyKey(namespace, group)
	for i, r := range h.rows[key] {
		if r.version.Equal(v) {
			h.rows[key] = append(h.rows[key][:i], h.rows[key][i+1:]...)
			return nil
		}
	}
	return errors.New("not recorded")
}

func (h *memHistory) seed(namespace, group string, versions ...Version) {
	for _, v := range versions {
		_ = h.RecordApplied(context.Background(), namespace, group, v)
	}
}

func (h *memHistory) versions(namespace, group string) []Version {
	vs, _ := h.AppliedVersions(context.Background(), namespace, group)
	return vs
}

// staticConns serves pre-opened connections per group.
type staticConns struct {
	dbs map[string]*gorm.DB
}

func (c *staticConns) Group(name string) (*gorm.DB, error) {
	db, ok := c.dbs[name]
	if !ok {
		return nil, fmt.Errorf("no connection for group %q", name)
	}
	return db, nil
}

func (c *staticConns) Groups() []string {
	groups := make([]string, 0, len(c.dbs))
	for name := range c.dbs {
		groups = append(groups, name)
	}
	sort.Strings(groups)
	return groups
}

// opLog records unit invocations in order.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

type recordingLocker struct {
	mu       sync.Mutex
	events   []string
	failLock error
}

func (l *recordingLocker) Lock(ctx context.Context, namespace, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failLock != nil {
		return l.failLock
	}
	l.events = append(l.events, "lock:"+namespace+"/"+group)
	return nil
}

func (l *recordingLocker) Unlock(ctx context.Context, namespace, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "unlock:"+namespace+"/"+group)
	return nil
}

type recordingObserver struct {
	mu        sync.Mutex
	runs      []string
	steps     []string
	lockWaits int
}

func (o *recordingObserver) RecordRun(namespace, group string, direction Direction, status string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, fmt.Sprintf("%s/%s:%s:%s", namespace, group, direction, status))
}

func (o *recordingObserver) RecordStep(namespace, group string, direction Direction, status string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, fmt.Sprintf("%s:%s", direction, status))
}

func (o *recordingObserver) RecordLockWait(namespace, group string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lockWaits++
}

// --- harness ---

type runnerHarness struct {
	t        *testing.T
	history  *memHistory
	registry *Registry
	conns    *staticConns
	locator  *DirLocator
	roots    map[string]string
	log      *opLog
	opts     []RunnerOption
}

func newHarness(t *testing.T, namespaces, groups []string) *runnerHarness {
	t.Helper()

	locator, roots := newTestLocator(t, namespaces...)
	dbs := make(map[string]*gorm.DB, len(groups))
	for _, g := range groups {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		require.NoError(t, err)
		dbs[g] = db
	}

	return &runnerHarness{
		t:        t,
		history:  newMemHistory(),
		registry: NewRegistry(),
		conns:    &staticConns{dbs: dbs},
		locator:  locator,
		roots:    roots,
		log:      &opLog{},
	}
}

func (h *runnerHarness) runner(namespaces []string) *Runner {
	h.t.Helper()
	r, err := NewRunner(RunnerConfig{
		Namespaces:       namespaces,
		DefaultNamespace: namespaces[0],
		DefaultGroup:     h.conns.Groups()[0],
	}, NewDiscovery(h.locator, nil), h.history, h.conns, h.registry, h.opts...)
	require.NoError(h.t, err)
	return r
}

// addGoMigration drops a .go migration file and registers a recording
// unit for it.
func (h *runnerHarness) addGoMigration(namespace, stem, unitName string) {
	h.t.Helper()
	writeMigrationFile(h.t, h.roots[namespace], stem+".go", "package migrations")
	h.registry.MustRegister(namespace, unitName, FuncUnit{
		UpFn: func(ctx context.Context, tx *gorm.DB) error {
			h.log.add("up:" + namespace + ":" + unitName)
			return nil
		},
		DownFn: func(ctx context.Context, tx *gorm.DB) error {
			h.log.add("down:" + namespace + ":" + unitName)
			return nil
		},
	})
}

// addFailingMigration registers a unit whose up always fails.
func (h *runnerHarness) addFailingMigration(namespace, stem, unitName string, cause error) {
	h.t.Helper()
	writeMigrationFile(h.t, h.roots[namespace], stem+".go", "package migrations")
	h.registry.MustRegister(namespace, unitName, FuncUnit{
		UpFn: func(ctx context.Context, tx *gorm.DB) error {
			return cause
		},
		DownFn: func(ctx context.Context, tx *gorm.DB) error {
			return cause
		},
	})
}

const (
	blogVersion     = "20121031100537"
	commentsVersion = "20121101000000"
)

// seedBlogAndComments installs the canonical two-migration fixture.
func (h *runnerHarness) seedBlogAndComments(namespace string) {
	h.addGoMigration(namespace, blogVersion+"_add_blog", "AddBlog")
	h.addGoMigration(namespace, commentsVersion+"_add_comments", "AddComments")
}

// --- behavior tests ---

func TestRunner_LatestFromEmpty(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})

	res, err := r.Latest(context.Background(), "App", "default")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, DirectionUp, res.Direction)
	assert.True(t, res.From.IsZero())
	assert.Equal(t, MustVersion(commentsVersion), res.To)
	assert.Len(t, res.Steps, 2)

	// Ascending application order
	assert.Equal(t, []string{"up:App:AddBlog", "up:App:AddComments"}, h.log.list())
	assert.Equal(t, []Version{MustVersion(blogVersion), MustVersion(commentsVersion)},
		h.history.versions("App", "default"))
}

func TestRunner_LatestIsIdempotent(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	res, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	assert.Equal(t, DirectionNone, res.Direction)
	assert.Empty(t, res.Steps)
	assert.Equal(t, MustVersion(commentsVersion), res.To)
	assert.Len(t, h.log.list(), 2, "no additional unit invocations")
}

func TestRunner_MigrateTo_StopsAtTarget(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	// From nothing to the first version: only add_blog runs
	res, err := r.MigrateTo(ctx, "App", "default", MustVersion(blogVersion))
	require.NoError(t, err)
	assert.Equal(t, []string{"up:App:AddBlog"}, h.log.list())
	assert.Equal(t, MustVersion(blogVersion), res.To)

	// From the first version to the second: only add_comments runs
	res, err = r.MigrateTo(ctx, "App", "default", MustVersion(commentsVersion))
	require.NoError(t, err)
	assert.Equal(t, []string{"up:App:AddBlog", "up:App:AddComments"}, h.log.list())
	assert.Equal(t, MustVersion(commentsVersion), res.To)
}

func TestRunner_MigrateTo_Backward(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	// Step back to the blog version: only add_comments reverts
	res, err := r.MigrateTo(ctx, "App", "default", MustVersion(blogVersion))
	require.NoError(t, err)

	assert.Equal(t, DirectionDown, res.Direction)
	assert.Equal(t, MustVersion(blogVersion), res.To)
	assert.Equal(t, "down:App:AddComments", h.log.list()[len(h.log.list())-1])
	assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", "default"))
}

func TestRunner_RollbackRevertsInReverseOrder(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	res, err := r.Rollback(ctx, "App", "default")
	require.NoError(t, err)

	assert.Equal(t, DirectionDown, res.Direction)
	assert.True(t, res.To.IsZero())
	assert.Equal(t, []string{
		"up:App:AddBlog", "up:App:AddComments",
		"down:App:AddComments", "down:App:AddBlog",
	}, h.log.list())
	assert.Empty(t, h.history.versions("App", "default"))
}

func TestRunner_RoundTripLeavesNoTrace(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("latest then rollback reverts every unit in reverse order", prop.ForAll(
		func(n int) bool {
			h := newHarness(t, []string{"App"}, []string{"default"})
			var wantUp, wantDown []string
			for i := 0; i < n; i++ {
				stem := fmt.Sprintf("20200101%06d_unit_%d", i, i)
				unitName := fmt.Sprintf("Unit%d", i)
				h.addGoMigration("App", stem, unitName)
				wantUp = append(wantUp, "up:App:"+unitName)
				wantDown = append(wantDown, "down:App:"+unitName)
			}
			// Reverts run newest first
			for i, j := 0, len(wantDown)-1; i < j; i, j = i+1, j-1 {
				wantDown[i], wantDown[j] = wantDown[j], wantDown[i]
			}

			r := h.runner([]string{"App"})
			ctx := context.Background()
			if _, err := r.Latest(ctx, "App", "default"); err != nil {
				return false
			}
			if _, err := r.Rollback(ctx, "App", "default"); err != nil {
				return false
			}

			got := h.log.list()
			want := append(wantUp, wantDown...)
			if len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i] != want[i] {
					return false
				}
			}
			return len(h.history.versions("App", "default")) == 0
		},
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

func TestRunner_NamespaceIsolation(t *testing.T) {
	h := newHarness(t, []string{"App", "Blog"}, []string{"default"})
	h.addGoMigration("App", blogVersion+"_add_blog", "AddBlog")
	h.addGoMigration("Blog", commentsVersion+"_add_comments", "AddComments")
	r := h.runner([]string{"App", "Blog"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	// Blog's history is untouched by App's run
	assert.Empty(t, h.history.versions("Blog", "default"))
	assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", "default"))
}

func TestRunner_LatestAll(t *testing.T) {
	h := newHarness(t, []string{"App", "Blog"}, []string{"default"})
	h.addGoMigration("App", blogVersion+"_add_blog", "AddBlog")
	h.addGoMigration("Blog", commentsVersion+"_add_comments", "AddComments")
	r := h.runner([]string{"App", "Blog"})

	results, err := r.LatestAll(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Sorted by namespace
	assert.Equal(t, "App", results[0].Namespace)
	assert.Equal(t, "Blog", results[1].Namespace)
	assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", "default"))
	assert.Equal(t, []Version{MustVersion(commentsVersion)}, h.history.versions("Blog", "default"))
}

func TestRunner_LatestAll_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	h := newHarness(t, []string{"App", "Blog"}, []string{"default"})
	h.addFailingMigration("App", blogVersion+"_add_blog", "AddBlog", boom)
	h.addGoMigration("Blog", commentsVersion+"_add_comments", "AddComments")
	r := h.runner([]string{"App", "Blog"})

	results, err := r.LatestAll(context.Background(), "default")

	// The healthy namespace still migrated
	assert.Equal(t, []Version{MustVersion(commentsVersion)}, h.history.versions("Blog", "default"))
	assert.Empty(t, h.history.versions("App", "default"))

	// The aggregate error names the failing namespace and cause
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "namespace App")
	require.Len(t, results, 2)
}

func TestRunner_LatestAll_NoOpsAreSuccess(t *testing.T) {
	h := newHarness(t, []string{"App", "Blog"}, []string{"default"})
	h.addGoMigration("App", blogVersion+"_add_blog", "AddBlog")
	// Blog has no migrations at all
	r := h.runner([]string{"App", "Blog"})
	ctx := context.Background()

	_, err := r.LatestAll(ctx, "default")
	require.NoError(t, err)

	// Second pass: everything is a no-op, still a success
	results, err := r.LatestAll(ctx, "default")
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, DirectionNone, res.Direction)
	}
}

func TestRunner_MidRunFailureKeepsCompletedSteps(t *testing.T) {
	boom := errors.New("boom")
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.addGoMigration("App", "20120101000000_first", "First")
	h.addFailingMigration("App", "20120102000000_second", "Second", boom)
	h.addGoMigration("App", "20120103000000_third", "Third")
	r := h.runner([]string{"App"})

	res, err := r.Latest(context.Background(), "App", "default")

	// The failure carries descriptor, direction and cause
	require.Error(t, err)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, MustVersion("20120102000000"), execErr.Descriptor.Version)
	assert.Equal(t, DirectionUp, execErr.Direction)
	assert.ErrorIs(t, err, boom)

	// First step stays applied; third never ran
	require.NotNil(t, res)
	require.Len(t, res.Steps, 2)
	assert.NoError(t, res.Steps[0].Err)
	assert.Error(t, res.Steps[1].Err)
	assert.Equal(t, MustVersion("20120101000000"), res.To)
	assert.Equal(t, []Version{MustVersion("20120101000000")}, h.history.versions("App", "default"))
	assert.Equal(t, []string{"up:App:First"}, h.log.list())
}

func TestRunner_UnknownTargetLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})

	res, err := r.MigrateTo(context.Background(), "App", "default", MustVersion("29990101000000"))

	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.Nil(t, res)
	assert.Empty(t, h.log.list())
	assert.Empty(t, h.history.versions("App", "default"))
}

func TestRunner_Disabled(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")

	r, err := NewRunner(RunnerConfig{
		Namespaces:       []string{"App"},
		DefaultNamespace: "App",
		DefaultGroup:     "default",
		Disabled:         true,
	}, NewDiscovery(h.locator, nil), h.history, h.conns, h.registry)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Latest(ctx, "App", "default")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = r.Run(ctx, NewScope())
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = r.CurrentVersion(ctx, "App", "default")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = r.Status(ctx, "App", "default")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Empty(t, h.log.list())
}

func TestRunner_UnknownNamespaceAndGroup(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "Ghost", "default")
	assert.ErrorIs(t, err, ErrUnknownNamespace)

	_, err = r.Latest(ctx, "App", "ghost")
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestRunner_LatestWithNothingDiscovered(t *testing.T) {
	// History knows a version but the namespace has no files left:
	// latest must be a no-op, never a rollback.
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.history.seed("App", "default", MustVersion(blogVersion))
	r := h.runner([]string{"App"})

	res, err := r.Latest(context.Background(), "App", "default")
	require.NoError(t, err)

	assert.Equal(t, DirectionNone, res.Direction)
	assert.Equal(t, MustVersion(blogVersion), res.To)
	assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", "default"))
}

func TestRunner_RollbackWithMissingSourceHalts(t *testing.T) {
	// Two applied versions; only the newer one still has its script.
	// Rollback reverts the newer one, then halts on the orphan.
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.addGoMigration("App", commentsVersion+"_add_comments", "AddComments")
	h.history.seed("App", "default", MustVersion(blogVersion), MustVersion(commentsVersion))
	r := h.runner([]string{"App"})

	res, err := r.Rollback(context.Background(), "App", "default")

	assert.ErrorIs(t, err, ErrUnknownVersion)
	require.NotNil(t, res)
	require.Len(t, res.Steps, 2)
	assert.NoError(t, res.Steps[0].Err)
	assert.Error(t, res.Steps[1].Err)

	// The revert that succeeded stays committed
	assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", "default"))
}

func TestRunner_RecordFailureFailsStep(t *testing.T) {
	recordErr := errors.New("tracking table gone")
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	h.history.failRecord[MustVersion(commentsVersion)] = recordErr
	r := h.runner([]string{"App"})

	res, err := r.Latest(context.Background(), "App", "default")

	require.Error(t, err)
	assert.ErrorIs(t, err, recordErr)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, MustVersion(blogVersion), res.To)
}

func TestRunner_UnregisteredUnitFailsItsStep(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	// File on disk, nothing registered
	writeMigrationFile(t, h.roots["App"], blogVersion+"_add_blog.go", "package migrations")
	r := h.runner([]string{"App"})

	res, err := r.Latest(context.Background(), "App", "default")

	assert.ErrorIs(t, err, ErrUnitNotRegistered)
	require.NotNil(t, res)
	require.Len(t, res.Steps, 1)
	assert.Empty(t, h.history.versions("App", "default"))
}

func TestRunner_SQLMigrations(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	writeMigrationFile(t, h.roots["App"], blogVersion+"_add_blog.sql",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT);")
	writeMigrationFile(t, h.roots["App"], blogVersion+"_add_blog.down.sql",
		"DROP TABLE posts;")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	db, err := h.conns.Group("default")
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("posts"))

	_, err = r.Rollback(ctx, "App", "default")
	require.NoError(t, err)
	assert.False(t, db.Migrator().HasTable("posts"))
}

func TestRunner_SQLWithoutDownIsIrreversible(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	writeMigrationFile(t, h.roots["App"], blogVersion+"_add_blog.sql",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY);")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.Latest(ctx, "App", "default")
	require.NoError(t, err)

	_, err = r.Rollback(ctx, "App", "default")
	assert.ErrorIs(t, err, ErrIrreversible)

	// Still applied: the failed revert must not drop the record
	assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", "default"))
}

func TestRunner_Refresh(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})
	ctx := context.Background()

	_, err := r.MigrateTo(ctx, "App", "default", MustVersion(blogVersion))
	require.NoError(t, err)

	res, err := r.Refresh(ctx, "App", "default")
	require.NoError(t, err)

	assert.Equal(t, DirectionUp, res.Direction)
	assert.Equal(t, MustVersion(commentsVersion), res.To)
	assert.Equal(t, []string{
		"up:App:AddBlog",
		"down:App:AddBlog",
		"up:App:AddBlog", "up:App:AddComments",
	}, h.log.list())
}

func TestRunner_Run_ScopeFanout(t *testing.T) {
	h := newHarness(t, []string{"App", "Blog"}, []string{"default", "reporting"})
	h.addGoMigration("App", blogVersion+"_add_blog", "AddBlog")
	h.addGoMigration("Blog", commentsVersion+"_add_comments", "AddComments")
	r := h.runner([]string{"App", "Blog"})

	results, err := r.Run(context.Background(), NewScope().WithAllNamespaces().WithAllGroups())
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Sorted by namespace then group
	keys := make([]string, len(results))
	for i, res := range results {
		keys[i] = res.Namespace + "/" + res.Group
	}
	assert.Equal(t, []string{"App/default", "App/reporting", "Blog/default", "Blog/reporting"}, keys)

	for _, g := range []string{"default", "reporting"} {
		assert.Equal(t, []Version{MustVersion(blogVersion)}, h.history.versions("App", g))
		assert.Equal(t, []Version{MustVersion(commentsVersion)}, h.history.versions("Blog", g))
	}
}

func TestRunner_Run_TargetScope(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	r := h.runner([]string{"App"})

	results, err := r.Run(context.Background(),
		NewScope().WithNamespaces("App").WithGroups("default").WithTarget(MustVersion(blogVersion)))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, MustVersion(blogVersion), results[0].To)
}

func TestRunner_LockerWrapsRun(t *testing.T) {
	locker := &recordingLocker{}
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	h.opts = append(h.opts, WithLocker(locker))
	r := h.runner([]string{"App"})

	_, err := r.Latest(context.Background(), "App", "default")
	require.NoError(t, err)

	assert.Equal(t, []string{"lock:App/default", "unlock:App/default"}, locker.events)
}

func TestRunner_LockFailureAbortsRun(t *testing.T) {
	locker := &recordingLocker{failLock: errors.New("held elsewhere")}
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	h.opts = append(h.opts, WithLocker(locker))
	r := h.runner([]string{"App"})

	_, err := r.Latest(context.Background(), "App", "default")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run lock")
	assert.Empty(t, h.log.list())
	assert.Empty(t, h.history.versions("App", "default"))
}

func TestRunner_ObserverSeesRunsAndSteps(t *testing.T) {
	obs := &recordingObserver{}
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.seedBlogAndComments("App")
	h.opts = append(h.opts, WithObserver(obs))
	r := h.runner([]string{"App"})

	_, err := r.Latest(context.Background(), "App", "default")
	require.NoError(t, err)

	assert.Equal(t, []string{"App/default:up:success"}, obs.runs)
	assert.Equal(t, []string{"up:success", "up:success"}, obs.steps)
}

func TestRunner_UnitsSeeRunMetadata(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	writeMigrationFile(t, h.roots["App"], blogVersion+"_add_blog.go", "package migrations")

	var gotRunID, gotNamespace, gotGroup string
	h.registry.MustRegister("App", "AddBlog", FuncUnit{
		UpFn: func(ctx context.Context, tx *gorm.DB) error {
			gotRunID, _ = ctxkeys.RunID(ctx)
			gotNamespace, _ = ctxkeys.Namespace(ctx)
			gotGroup, _ = ctxkeys.Group(ctx)
			return nil
		},
		DownFn: func(ctx context.Context, tx *gorm.DB) error { return nil },
	})

	r := h.runner([]string{"App"})
	res, err := r.Latest(context.Background(), "App", "default")
	require.NoError(t, err)

	assert.Equal(t, res.RunID, gotRunID)
	assert.Equal(t, "App", gotNamespace)
	assert.Equal(t, "default", gotGroup)
}

func TestRunner_CancellationHaltsBetweenSteps(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	ctx, cancel := context.WithCancel(context.Background())

	h.addGoMigration("App", "20120101000000_first", "First")
	h.addGoMigration("App", "20120102000000_second", "Second")
	// Shutdown arrives right after the first step is recorded
	h.history.onRecord = func(v Version) {
		if v.Equal(MustVersion("20120101000000")) {
			cancel()
		}
	}
	r := h.runner([]string{"App"})

	res, err := r.Latest(ctx, "App", "default")

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	require.Len(t, res.Steps, 1)

	// The completed first step stays recorded
	assert.Equal(t, []Version{MustVersion("20120101000000")}, h.history.versions("App", "default"))
	assert.NotContains(t, strings.Join(h.log.list(), ","), "Second")
}

func TestRunner_CurrentVersionPassthrough(t *testing.T) {
	h := newHarness(t, []string{"App"}, []string{"default"})
	h.history.seed("App", "default", MustVersion(blogVersion))
	r := h.runner([]string{"App"})

	v, err := r.CurrentVersion(context.Background(), "App", "default")
	require.NoError(t, err)
	assert.Equal(t, MustVersion(blogVersion), v)
}
