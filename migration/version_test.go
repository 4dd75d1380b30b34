package migration

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Version
		wantErr bool
	}{
		{
			name: "plain digits",
			raw:  "20121031100537",
			want: Version("20121031100537"),
		},
		{
			name: "dash separators stripped",
			raw:  "2012-10-31-100537",
			want: Version("20121031100537"),
		},
		{
			name: "underscore separators stripped",
			raw:  "2012_10_31_100537",
			want: Version("20121031100537"),
		},
		{
			name: "mixed separators stripped",
			raw:  "2012-10-31_100537",
			want: Version("20121031100537"),
		},
		{
			name: "zero parses to zero version",
			raw:  "0",
			want: Zero,
		},
		{
			name: "empty parses to zero version",
			raw:  "",
			want: Zero,
		},
		{
			name:    "letters rejected",
			raw:     "20121031100537abc",
			wantErr: true,
		},
		{
			name:    "semver rejected",
			raw:     "v1.2.3",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustVersion_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustVersion("not-a-version!")
	})
	assert.NotPanics(t, func() {
		MustVersion("20121031100537")
	})
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Version
		want int
	}{
		{"zero before real", Zero, Version("20121031100537"), -1},
		{"real after zero", Version("20121031100537"), Zero, 1},
		{"zero equals zero", Zero, Zero, 0},
		{"equal versions", Version("20121031100537"), Version("20121031100537"), 0},
		{"earlier timestamp first", Version("20121031100537"), Version("20121101000000"), -1},
		{"later timestamp last", Version("20121101000000"), Version("20121031100537"), 1},
		{"numeric not lexicographic", Version("999"), Version("1000"), -1},
		{"leading zeros ignored", Version("0042"), Version("42"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestVersion_OrderingHelpers(t *testing.T) {
	older := MustVersion("20121031100537")
	newer := MustVersion("20121101000000")

	assert.True(t, older.Before(newer))
	assert.True(t, newer.After(older))
	assert.False(t, older.Equal(newer))
	assert.True(t, older.Equal(MustVersion("2012-10-31-100537")))
	assert.True(t, Zero.IsZero())
	assert.False(t, older.IsZero())
}

func TestVersion_String(t *testing.T) {
	assert.Equal(t, "0", Zero.String())
	assert.Equal(t, "0", Version("000").String())
	assert.Equal(t, "20121031100537", Version("20121031100537").String())
}

// Version ordering must agree with the numeric ordering of the raw
// timestamps, whatever separators the file names used.
func TestVersion_Ordering_Rapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Uint64Range(0, 99999999999999).Draw(rt, "a")
		b := rapid.Uint64Range(0, 99999999999999).Draw(rt, "b")

		va := MustVersion(fmt.Sprintf("%d", a))
		vb := MustVersion(fmt.Sprintf("%d", b))

		switch {
		case a < b:
			if !va.Before(vb) {
				rt.Fatalf("expected %s < %s", va, vb)
			}
		case a > b:
			if !va.After(vb) {
				rt.Fatalf("expected %s > %s", va, vb)
			}
		default:
			if !va.Equal(vb) {
				rt.Fatalf("expected %s == %s", va, vb)
			}
		}
	})
}

func TestVersion_SortAscending(t *testing.T) {
	versions := []Version{
		MustVersion("20130101000000"),
		Zero,
		MustVersion("20121101000000"),
		MustVersion("20121031100537"),
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Before(versions[j])
	})

	assert.Equal(t, []Version{
		Zero,
		MustVersion("20121031100537"),
		MustVersion("20121101000000"),
		MustVersion("20130101000000"),
	}, versions)
}
