package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_Immutable(t *testing.T) {
	base := NewScope()
	narrowed := base.WithNamespaces("Blog").WithGroups("reporting").WithTarget(MustVersion("20121031100537"))

	// The original scope is untouched by the chained calls
	assert.Empty(t, base.Namespaces())
	assert.Empty(t, base.Groups())
	assert.True(t, base.Latest())

	assert.Equal(t, []string{"Blog"}, narrowed.Namespaces())
	assert.Equal(t, []string{"reporting"}, narrowed.Groups())
	assert.False(t, narrowed.Latest())
	assert.Equal(t, MustVersion("20121031100537"), narrowed.Target())
}

func TestScope_WithLatestClearsTarget(t *testing.T) {
	s := NewScope().WithTarget(MustVersion("20121031100537")).WithLatest()

	assert.True(t, s.Latest())
	assert.True(t, s.Target().IsZero())
}

func TestScope_Resolve(t *testing.T) {
	knownNS := []string{"App", "Blog"}
	knownGroups := []string{"default", "reporting"}

	tests := []struct {
		name    string
		scope   Scope
		want    []pair
		wantErr error
	}{
		{
			name:  "empty scope uses defaults",
			scope: NewScope(),
			want:  []pair{{"App", "default"}},
		},
		{
			name:  "explicit namespace and group",
			scope: NewScope().WithNamespaces("Blog").WithGroups("reporting"),
			want:  []pair{{"Blog", "reporting"}},
		},
		{
			name:  "all namespaces cross default group",
			scope: NewScope().WithAllNamespaces(),
			want:  []pair{{"App", "default"}, {"Blog", "default"}},
		},
		{
			name:  "all namespaces cross all groups",
			scope: NewScope().WithAllNamespaces().WithAllGroups(),
			want: []pair{
				{"App", "default"}, {"App", "reporting"},
				{"Blog", "default"}, {"Blog", "reporting"},
			},
		},
		{
			name:  "duplicate selections collapse",
			scope: NewScope().WithNamespaces("App", "App"),
			want:  []pair{{"App", "default"}},
		},
		{
			name:    "unknown namespace",
			scope:   NewScope().WithNamespaces("Ghost"),
			wantErr: ErrUnknownNamespace,
		},
		{
			name:    "unknown group",
			scope:   NewScope().WithGroups("ghost"),
			wantErr: ErrUnknownGroup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := tt.scope.resolve("App", knownNS, "default", knownGroups)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pairs)
		})
	}
}
