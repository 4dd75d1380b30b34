package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func noopUnit() Unit {
	return FuncUnit{
		UpFn:   func(ctx context.Context, tx *gorm.DB) error { return nil },
		DownFn: func(ctx context.Context, tx *gorm.DB) error { return nil },
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("App", "AddBlog", noopUnit()))
	require.NoError(t, reg.Register("App", "AddComments", noopUnit()))
	require.NoError(t, reg.Register("Blog", "AddBlog", noopUnit()))

	unit, ok := reg.Lookup("App", "AddBlog")
	assert.True(t, ok)
	assert.NotNil(t, unit)

	_, ok = reg.Lookup("App", "Missing")
	assert.False(t, ok)

	// Same unit name in another namespace is a distinct entry
	_, ok = reg.Lookup("Blog", "AddBlog")
	assert.True(t, ok)
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("App", "AddBlog", noopUnit()))
	err := reg.Register("App", "AddBlog", noopUnit())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_RejectsInvalidInput(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.Register("", "AddBlog", noopUnit()))
	assert.Error(t, reg.Register("App", "", noopUnit()))
	assert.Error(t, reg.Register("App", "AddBlog", nil))
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()

	assert.NotPanics(t, func() {
		reg.MustRegister("App", "AddBlog", noopUnit())
	})
	assert.Panics(t, func() {
		reg.MustRegister("App", "AddBlog", noopUnit())
	})
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry()

	reg.MustRegister("App", "CreateUsers", noopUnit())
	reg.MustRegister("App", "AddBlog", noopUnit())
	reg.MustRegister("Blog", "AddComments", noopUnit())

	assert.Equal(t, []string{"AddBlog", "CreateUsers"}, reg.Names("App"))
	assert.Equal(t, []string{"AddComments"}, reg.Names("Blog"))
	assert.Empty(t, reg.Names("Ghost"))
}

func TestDefaultRegistry(t *testing.T) {
	// The default registry is shared process state; use a name no
	// other test touches.
	require.NoError(t, Register("registry_test", "DefaultSink", noopUnit()))

	_, ok := DefaultRegistry().Lookup("registry_test", "DefaultSink")
	assert.True(t, ok)

	assert.Panics(t, func() {
		MustRegister("registry_test", "DefaultSink", noopUnit())
	})
}
