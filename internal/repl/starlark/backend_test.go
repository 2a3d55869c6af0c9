package starlark

import (
	"context"
	"testing"

	"github.com/leapstack-labs/replsnip/internal/repl"
	"github.com/leapstack-labs/replsnip/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_Expressions(t *testing.T) {
	b := New(nil, testutil.NewTestLogger(t))

	res, err := b.Eval(context.Background(), "1 + 2", "")
	require.NoError(t, err)
	assert.Equal(t, "3", res.Value)
	assert.Equal(t, DefaultNamespace, res.NS)
}

func TestBackend_GlobalsPersist(t *testing.T) {
	b := New(nil, nil)
	ctx := context.Background()

	res, err := b.Eval(ctx, "counter = 41\ndef bump(n):\n    return n + 1\n", "")
	require.NoError(t, err)
	assert.Empty(t, res.Value)

	res, err = b.Eval(ctx, "bump(counter)", "")
	require.NoError(t, err)
	assert.Equal(t, "42", res.Value)
}

func TestBackend_PrintAndNamespace(t *testing.T) {
	b := New(map[string]string{"env": "dev"}, nil)

	res, err := b.Eval(context.Background(), `print("in", ns, options["env"])`, "my.app")
	require.NoError(t, err)
	assert.Equal(t, "in my.app dev\n", res.Out)
	assert.Empty(t, res.Value, "None is not reported")
	assert.Equal(t, "my.app", res.NS)
}

func TestBackend_Errors(t *testing.T) {
	b := New(nil, nil)

	res, err := b.Eval(context.Background(), "1 // 0", "")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Contains(t, res.Err, "division by zero")

	_, err = b.Eval(context.Background(), "def (", "")
	assert.Error(t, err)
}

func TestBackend_Registered(t *testing.T) {
	b, err := repl.Open(context.Background(), repl.TargetConfig{Type: "starlark"}, nil)
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}
