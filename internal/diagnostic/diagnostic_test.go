package diagnostic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_Counts(t *testing.T) {
	d := New()
	d.Errorf(Span{Line: 1, Column: 1}, "undefined symbol '%s'", "x")
	d.Warningf(Span{Line: 2, Column: 3}, "unused import")
	d.Infof(Span{Line: 3, Column: 1}, "note")

	assert.True(t, d.HasErrors())
	assert.Equal(t, 3, d.Count())
	assert.Equal(t, 1, d.ErrorCount())
	assert.Equal(t, 1, d.WarningCount())
	require.Len(t, d.Errors(), 1)
	assert.Equal(t, "undefined symbol 'x'", d.Errors()[0].Message)

	d.Clear()
	assert.False(t, d.HasErrors())
	assert.Equal(t, 0, d.Count())
}

func TestDiagnostics_Within(t *testing.T) {
	d := New()
	d.Errorf(Span{Start: 5, End: 8}, "inside")
	d.Errorf(Span{Start: 2, End: 12}, "straddles")
	d.Errorf(Span{Start: 20, End: 21}, "after")

	got := d.Within(Span{Start: 4, End: 10})
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].Message)
}

func TestDiagnostics_Format(t *testing.T) {
	d := New()
	d.ErrorWithHint(Span{Line: 3, Column: 10}, "undefined symbol 'x'", "did you mean 'y'?")
	d.Add(Diagnostic{Severity: Warning, Message: "unknown prefix", Span: Span{Line: 5, Column: 1}, File: "other.bal"})

	want := "error[main.bal:3:10]: undefined symbol 'x'\n  hint: did you mean 'y'?\nwarning[other.bal:5:1]: unknown prefix"
	assert.Equal(t, want, d.Format("main.bal"))
}

func TestSeverity_JSON(t *testing.T) {
	b, err := json.Marshal(Diagnostic{Severity: Warning, Message: "m"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"severity":"warning"`)

	var back Diagnostic
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Warning, back.Severity)
}
