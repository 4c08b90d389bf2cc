package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echo resolves with one follow-on naming the qualified "next" command.
func echo(record *[]string) Command {
	return Func(func(ctx context.Context, name string, args []string) *Result {
		*record = append(*record, name)
		return Done(New(Qualify(ctx, "next"), args...))
	})
}

func TestRegistry_Leaf(t *testing.T) {
	reg := NewRegistry()
	var calls []string
	require.NoError(t, reg.Register("rm", echo(&calls)))

	c, ok := reg.Lookup("rm")
	require.True(t, ok)

	out, err := c.Execute(context.Background(), "rm", []string{"a"}).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rm"}, calls)
	assert.Equal(t, []Descriptor{New("next", "a")}, out)

	_, ok = reg.Lookup("mv")
	assert.False(t, ok)
}

func TestRegistry_Namespace(t *testing.T) {
	var calls []string
	d := NewDispatcher().Add("rm", echo(&calls)).Add("mv", echo(&calls))

	reg := NewRegistry()
	require.NoError(t, reg.Register("fs", d))
	require.NoError(t, reg.Register("files", d), "one dispatcher may serve several aliases")

	assert.Equal(t, []string{"files.mv", "files.rm", "fs.mv", "fs.rm"}, reg.Names())
	assert.Equal(t, []string{"files", "fs"}, reg.Namespaces())

	_, ok := reg.Lookup("fs")
	assert.False(t, ok, "a bare namespace is not invokable")
	_, ok = reg.Lookup("fs.unzip")
	assert.False(t, ok)

	c, ok := reg.Lookup("files.rm")
	require.True(t, ok)
	out, err := c.Execute(context.Background(), "files.rm", []string{"x"}).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"files.rm"}, calls)
	assert.Equal(t, "files.next", out[0].Name, "follow-on is qualified with the dispatch alias")
}

func TestRegistry_Registrations(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.MustRegister("rm", echo(&calls))
	reg.MustRegister("fs", NewDispatcher().Add("mv", echo(&calls)))

	assert.Equal(t, []Registration{
		{Name: "fs.mv", Namespace: "fs", Sub: "mv"},
		{Name: "rm"},
	}, reg.Registrations())
}

func TestRegistry_RejectsBadNames(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	require.NoError(t, reg.Register("rm", echo(&calls)))

	tests := []struct {
		name    string
		regName string
		cmd     Command
		want    error
	}{
		{"duplicate", "rm", echo(&calls), ErrDuplicateName},
		{"control namespace", "control", echo(&calls), ErrReservedName},
		{"purge queue", PurgeQueue, echo(&calls), ErrReservedName},
		{"purge batch", PurgeCurrentBatch, echo(&calls), ErrReservedName},
		{"empty", "", echo(&calls), ErrInvalidName},
		{"whitespace", "r m", echo(&calls), ErrInvalidName},
		{"dotted namespace", "a.b", NewDispatcher(), ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.regName, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Error(t, reg.Register("nil", nil))
}

func TestRegistry_NamespaceCollidesWithLeaf(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	require.NoError(t, reg.Register("fs.rm", echo(&calls)))

	err := reg.Register("fs", NewDispatcher().Add("rm", echo(&calls)))
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Empty(t, reg.Namespaces(), "failed namespace registration leaves no partial entries")
}

func TestDispatcher_UnknownSub(t *testing.T) {
	d := NewDispatcher()

	_, err := d.Execute(context.Background(), "fs.nope", nil).Await(context.Background())
	assert.True(t, IsUnrecognized(err))

	_, err = d.Execute(context.Background(), "unqualified", nil).Await(context.Background())
	assert.True(t, IsUnrecognized(err))
}

func TestDispatcher_SplitsOnFirstDot(t *testing.T) {
	var got string
	d := NewDispatcher().Add("sub.part", Func(func(ctx context.Context, name string, args []string) *Result {
		got = Prefix(ctx)
		return Done()
	}))

	_, err := d.Execute(context.Background(), "ns.sub.part", nil).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ns", got)
}

func TestQualify_NoNamespace(t *testing.T) {
	assert.Equal(t, "next", Qualify(context.Background(), "next"))
}
