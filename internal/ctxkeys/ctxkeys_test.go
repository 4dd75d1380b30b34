package ctxkeys

import (
	"context"
	"testing"
)

func TestRunID(t *testing.T) {
	ctx := context.Background()

	if _, ok := RunID(ctx); ok {
		t.Error("RunID on empty context should report absent")
	}

	ctx = WithRunID(ctx, "run-42")
	v, ok := RunID(ctx)
	if !ok || v != "run-42" {
		t.Errorf("RunID = %q, %v; want %q, true", v, ok, "run-42")
	}
}

func TestNamespaceAndGroup(t *testing.T) {
	ctx := WithGroup(WithNamespace(context.Background(), "App"), "reporting")

	ns, ok := Namespace(ctx)
	if !ok || ns != "App" {
		t.Errorf("Namespace = %q, %v; want %q, true", ns, ok, "App")
	}

	group, ok := Group(ctx)
	if !ok || group != "reporting" {
		t.Errorf("Group = %q, %v; want %q, true", group, ok, "reporting")
	}
}

func TestEmptyValueReportsAbsent(t *testing.T) {
	ctx := WithRunID(context.Background(), "")
	if _, ok := RunID(ctx); ok {
		t.Error("empty run id should report absent")
	}
}
