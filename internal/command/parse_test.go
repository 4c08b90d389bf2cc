package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantName string
		wantArgs []string
	}{
		{"name only", "sync", "sync", []string{}},
		{"positional", "rm /tmp/a /tmp/b", "rm", []string{"/tmp/a", "/tmp/b"}},
		{"extra whitespace", "  mv\t a   b \n", "mv", []string{"a", "b"}},
		{"switch", "unzip -asset pack.zip out", "unzip", []string{"-asset", "pack.zip", "out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, d.Name)
			assert.Equal(t, tt.wantArgs, d.Args)
			assert.Nil(t, d.Priority)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestParse_NormalizesNameOnly(t *testing.T) {
	// "e" + combining acute accent composes to U+00E9 in the name only.
	d, err := Parse("cafe\u0301 cafe\u0301 /tmp/<a&b>")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", d.Name)
	assert.Equal(t, []string{"cafe\u0301", "/tmp/<a&b>"}, d.Args)
}

func TestParse_RejectsInvalidUTF8(t *testing.T) {
	_, err := Parse("rm /tmp/\xff")
	require.Error(t, err)
	assert.True(t, IsMalformed(err), "got %v", err)

	_, err = Parse("r\xfem /tmp/a")
	require.Error(t, err)
	assert.True(t, IsMalformed(err), "got %v", err)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("") })
}

func TestFromRecord(t *testing.T) {
	tests := []struct {
		name         string
		rec          map[string]any
		wantArgs     []string
		wantPriority *int
	}{
		{
			name:     "list args",
			rec:      map[string]any{"name": "rm", "args": []any{"/tmp/a", "/tmp/b"}},
			wantArgs: []string{"/tmp/a", "/tmp/b"},
		},
		{
			name:     "string args promoted",
			rec:      map[string]any{"name": "mv", "args": "from  to"},
			wantArgs: []string{"from", "to"},
		},
		{
			name:     "decomposed args kept",
			rec:      map[string]any{"name": "rm", "args": []any{"cafe\u0301"}},
			wantArgs: []string{"cafe\u0301"},
		},
		{
			name:     "string slice",
			rec:      map[string]any{"name": "rm", "args": []string{"x"}},
			wantArgs: []string{"x"},
		},
		{
			name:     "scalar list",
			rec:      map[string]any{"name": "fetch", "args": []any{"url", 3, true, 2.0}},
			wantArgs: []string{"url", "3", "true", "2"},
		},
		{
			name:         "int priority",
			rec:          map[string]any{"name": "fetch", "priority": -1},
			wantArgs:     []string{},
			wantPriority: intPtr(-1),
		},
		{
			name:         "float priority",
			rec:          map[string]any{"name": "fetch", "priority": float64(2)},
			wantArgs:     []string{},
			wantPriority: intPtr(2),
		},
		{
			name:         "json number priority",
			rec:          map[string]any{"name": "fetch", "priority": json.Number("-3")},
			wantArgs:     []string{},
			wantPriority: intPtr(-3),
		},
		{
			name:     "nil priority",
			rec:      map[string]any{"name": "fetch", "priority": nil},
			wantArgs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := FromRecord(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, d.Args)
			assert.Equal(t, tt.wantPriority, d.Priority)
		})
	}
}

func TestFromRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]any
	}{
		{"missing name", map[string]any{"args": []any{"a"}}},
		{"blank name", map[string]any{"name": "  "}},
		{"name not string", map[string]any{"name": 12}},
		{"name with space", map[string]any{"name": "rm -rf"}},
		{"args map", map[string]any{"name": "rm", "args": map[string]any{"a": 1}}},
		{"args nested list", map[string]any{"name": "rm", "args": []any{[]any{"a"}}}},
		{"fractional priority", map[string]any{"name": "rm", "priority": 1.5}},
		{"string priority", map[string]any{"name": "rm", "priority": "high"}},
		{"invalid utf-8 arg", map[string]any{"name": "rm", "args": []any{"a\xff"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRecord(tt.rec)
			require.Error(t, err)
			assert.True(t, IsMalformed(err), "got %v", err)
		})
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		order    []string
		defaults map[string]string
		want     Args
	}{
		{
			name:  "positional",
			args:  []string{"a.zip", "out"},
			order: []string{"zip", "to"},
			want:  Args{"zip": "a.zip", "to": "out"},
		},
		{
			name:  "leading flag",
			args:  []string{"-asset", "-v", "a.zip"},
			order: []string{"zip"},
			want:  Args{"asset": "true", "v": "a.zip"},
		},
		{
			name:  "switch with value",
			args:  []string{"-to", "out", "a.zip"},
			order: []string{"zip", "to"},
			want:  Args{"to": "out", "zip": "a.zip"},
		},
		{
			name:  "trailing flag",
			args:  []string{"a.zip", "-force"},
			order: []string{"zip"},
			want:  Args{"zip": "a.zip", "force": "true"},
		},
		{
			name:  "flag before switch",
			args:  []string{"-dry", "-mode", "fast"},
			order: nil,
			want:  Args{"dry": "true", "mode": "fast"},
		},
		{
			name:     "defaults overridden",
			args:     []string{"-mode", "slow"},
			defaults: map[string]string{"mode": "fast", "retries": "3"},
			want:     Args{"mode": "slow", "retries": "3"},
		},
		{
			name:  "extra positionals dropped",
			args:  []string{"a", "b", "c"},
			order: []string{"first"},
			want:  Args{"first": "a"},
		},
		{
			name:  "lone dash is positional",
			args:  []string{"-"},
			order: []string{"file"},
			want:  Args{"file": "-"},
		},
		{
			name:  "double dash ends switches",
			args:  []string{"-v", "--", "-old.zip", "--", "-out"},
			order: []string{"zip", "to", "extra"},
			want:  Args{"v": "true", "zip": "-old.zip", "to": "--", "extra": "-out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseArgs(tt.args, tt.order, tt.defaults)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgs_Accessors(t *testing.T) {
	a := ParseArgs([]string{"-asset", "x.zip"}, []string{"zip"}, map[string]string{"to": ""})

	assert.False(t, a.Flag("asset"), "asset took x.zip as its value")
	assert.Equal(t, "x.zip", a.Get("asset"))
	assert.True(t, a.Has("to"))
	assert.Equal(t, "", a.Get("missing"))
	assert.False(t, a.Has("missing"))
}

func intPtr(v int) *int { return &v }
