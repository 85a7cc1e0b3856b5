package consteval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/parser"
)

func parseExpr(t *testing.T, src string) ast.Expression {
	t.Helper()
	block, err := parser.ParseStatements(src + ";")
	require.NoError(t, err)
	require.Len(t, block.Statements, 1)
	return block.Statements[0].(*ast.ExprStmt).Expr
}

func TestInt(t *testing.T) {
	tests := []struct {
		src  string
		env  map[string]any
		want int
	}{
		{src: "5", want: 5},
		{src: "2 + 3 * 4", want: 14},
		{src: "(2 + 3) * 4", want: 20},
		{src: "7 / 2", want: 3},
		{src: "-3 + 10", want: 7},
		{src: "10 % 4", want: 2},
		{src: "MAX - 1", env: map[string]any{"MAX": 4}, want: 3},
	}
	f := New()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := f.Int(parseExpr(t, tt.src), tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntRejectsNonConstants(t *testing.T) {
	f := New()
	for _, src := range []string{"count", "getRetries()", "\"3\"", "a.b"} {
		_, err := f.Int(parseExpr(t, src), nil)
		assert.ErrorIs(t, err, ErrNotConstant, src)
	}
}

func TestConstantsChain(t *testing.T) {
	f := New()
	env := f.Constants(
		[]string{"BASE", "RETRIES", "BAD"},
		[]ast.Expression{parseExpr(t, "2"), parseExpr(t, "BASE * 3"), parseExpr(t, "compute()")},
	)
	assert.Equal(t, map[string]any{"BASE": 2, "RETRIES": 6}, env)
}

func TestCacheReuse(t *testing.T) {
	f := New()
	e := parseExpr(t, "1 + 1")
	for i := 0; i < 3; i++ {
		got, err := f.Int(e, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	}
	assert.Len(t, f.cache, 1)
}
