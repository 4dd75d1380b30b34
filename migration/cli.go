package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI provides command-line interface functionality for migration runs
type CLI struct {
	runner     *Runner
	scaffolder *Scaffolder
	output     io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(runner *Runner, scaffolder *Scaffolder) *CLI {
	return &CLI{
		runner:     runner,
		scaffolder: scaffolder,
		output:     os.Stdout,
	}
}

// SetOutput sets the output writer for CLI messages
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// RunLatest migrates one namespace and group to the newest version
func (c *CLI) RunLatest(ctx context.Context, namespace, group string) error {
	fmt.Fprintf(c.output, "Migrating %s on group %s to latest...\n", namespace, group)

	res, err := c.runner.Latest(ctx, namespace, group)
	c.printResult(res)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// RunLatestAll migrates every configured namespace on one group
func (c *CLI) RunLatestAll(ctx context.Context, group string) error {
	fmt.Fprintf(c.output, "Migrating all namespaces on group %s to latest...\n", group)

	results, err := c.runner.LatestAll(ctx, group)
	for _, res := range results {
		c.printResult(res)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// RunMigrateTo migrates one namespace and group to an explicit version
func (c *CLI) RunMigrateTo(ctx context.Context, namespace, group, rawVersion string) error {
	target, err := ParseVersion(rawVersion)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "Migrating %s on group %s to version %s...\n", namespace, group, target)

	res, err := c.runner.MigrateTo(ctx, namespace, group, target)
	c.printResult(res)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// RunRollback reverts every applied migration of one namespace and group
func (c *CLI) RunRollback(ctx context.Context, namespace, group string) error {
	fmt.Fprintf(c.output, "Rolling back %s on group %s...\n", namespace, group)

	res, err := c.runner.Rollback(ctx, namespace, group)
	c.printResult(res)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// RunRefresh reverts everything and migrates back to the newest version
func (c *CLI) RunRefresh(ctx context.Context, namespace, group string) error {
	fmt.Fprintf(c.output, "Refreshing %s on group %s...\n", namespace, group)

	res, err := c.runner.Refresh(ctx, namespace, group)
	c.printResult(res)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return nil
}

// RunVersion shows the current version of one namespace and group
func (c *CLI) RunVersion(ctx context.Context, namespace, group string) error {
	v, err := c.runner.CurrentVersion(ctx, namespace, group)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if v.IsZero() {
		fmt.Fprintf(c.output, "%s on group %s: no migrations applied yet.\n", namespace, group)
		return nil
	}
	fmt.Fprintf(c.output, "%s on group %s: current version %s\n", namespace, group, v)
	return nil
}

// RunStatus shows the status of every migration of one namespace and group
func (c *CLI) RunStatus(ctx context.Context, namespace, group string) error {
	statuses, err := c.runner.Status(ctx, namespace, group)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if len(statuses) == 0 {
		fmt.Fprintf(c.output, "No migrations found for %s on group %s.\n", namespace, group)
		return nil
	}

	// Print header
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSOURCE\tSTATUS\tAPPLIED AT")
	fmt.Fprintln(w, "-------\t----\t------\t------\t----------")

	applied, pending := 0, 0
	for _, s := range statuses {
		name := s.Descriptor.UnitName
		source := string(s.Descriptor.Source)
		if name == "" {
			name = "(missing source)"
			source = "-"
		}

		status := "Pending"
		appliedAt := "-"
		if s.Applied {
			status = "Applied"
			appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			applied++
		} else {
			pending++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Descriptor.Version, name, source, status, appliedAt)
	}

	w.Flush()

	// Print summary
	fmt.Fprintln(c.output)
	fmt.Fprintf(c.output, "Total: %d, Applied: %d, Pending: %d\n", len(statuses), applied, pending)

	return nil
}

// RunCreate scaffolds a new migration file pair
func (c *CLI) RunCreate(namespace, name, kind string) error {
	if c.scaffolder == nil {
		return errors.New("scaffolder not configured")
	}

	source := SourceGo
	switch kind {
	case "", "go":
		source = SourceGo
	case "sql":
		source = SourceSQL
	default:
		return fmt.Errorf("unknown migration kind %q (want go or sql)", kind)
	}

	paths, err := c.scaffolder.Create(namespace, name, source)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	for _, p := range paths {
		fmt.Fprintf(c.output, "Created %s\n", p)
	}
	return nil
}

// printResult renders one run result including the failing step, if
// any.
func (c *CLI) printResult(res *Result) {
	if res == nil {
		return
	}

	switch {
	case res.Direction == DirectionNone:
		fmt.Fprintf(c.output, "[%s/%s] Already at version %s, nothing to do.\n",
			res.Namespace, res.Group, res.To)
	case res.Direction == DirectionUp:
		fmt.Fprintf(c.output, "[%s/%s] Applied %d migration(s), now at version %s.\n",
			res.Namespace, res.Group, countSucceeded(res.Steps), res.To)
	case res.Direction == DirectionDown:
		fmt.Fprintf(c.output, "[%s/%s] Reverted %d migration(s), now at version %s.\n",
			res.Namespace, res.Group, countSucceeded(res.Steps), res.To)
	}

	for _, step := range res.Steps {
		if step.Err != nil {
			fmt.Fprintf(c.output, "[%s/%s] FAILED %s %s: %v\n",
				res.Namespace, res.Group, step.Direction, step.Descriptor.Version, step.Err)
		}
	}
}

func countSucceeded(steps []Step) int {
	n := 0
	for _, s := range steps {
		if s.Err == nil {
			n++
		}
	}
	return n
}
