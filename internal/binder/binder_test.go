package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/flow"
)

func param(name string, kind checker.ParamKind, typ *checker.Type, def string) *checker.Param {
	text := ""
	if typ != nil {
		text = typ.String()
	}
	return &checker.Param{Name: name, Kind: kind, Type: typ, TypeText: text, Default: def}
}

func pos(v string) Arg { return Arg{Value: v} }

func named(n, v string) Arg { return Arg{Name: n, Value: v} }

func spread(v string) Arg { return Arg{Value: v, Spread: true} }

func get(t *testing.T, r Result, key string) *flow.Property {
	t.Helper()
	p, ok := r.Properties.Get(key)
	require.True(t, ok, "missing property %s", key)
	return p
}

func TestBindMixedArguments(t *testing.T) {
	params := []*checker.Param{
		param("a", checker.ParamRequired, checker.TypeInt, ""),
		param("b", checker.ParamDefaultable, checker.TypeString, `"x"`),
		param("rest", checker.ParamRest, checker.TypeInt, ""),
	}
	r := Bind(params, []Arg{pos("1"), named("b", `"y"`), pos("2"), pos("3")}, Options{})

	assert.Equal(t, []string{"a", "b", "rest"}, r.Properties.Keys())
	assert.Equal(t, "1", get(t, r, "a").Value)
	assert.Equal(t, `"y"`, get(t, r, "b").Value)

	rest := get(t, r, "rest")
	assert.Equal(t, flow.ValueExpressionSet, rest.ValueType)
	assert.Equal(t, []string{"2", "3"}, rest.Value)
	assert.Equal(t, flow.OriginRest, rest.Codedata.Kind)
	assert.Equal(t, "rest", rest.Codedata.OriginalName)
	assert.Empty(t, r.Leftover)
}

func TestBindDefaultsAndMetadata(t *testing.T) {
	params := []*checker.Param{
		param("url", checker.ParamRequired, checker.TypeString, ""),
		param("timeout", checker.ParamDefaultable, checker.TypeInt, "30"),
	}
	params[0].Doc = "Base URL"
	r := Bind(params, []Arg{pos(`"http://x"`)}, Options{})

	url := get(t, r, "url")
	assert.Equal(t, "Url", url.Metadata.Label)
	assert.Equal(t, "Base URL", url.Metadata.Description)
	assert.Equal(t, "string", url.TypeConstraint)
	assert.False(t, url.Optional)
	assert.True(t, url.Modified)
	assert.Equal(t, flow.OriginRequired, url.Codedata.Kind)

	timeout := get(t, r, "timeout")
	assert.Nil(t, timeout.Value)
	assert.Equal(t, "30", timeout.DefaultValue)
	assert.Equal(t, "30", timeout.Placeholder)
	assert.True(t, timeout.Optional)
	assert.True(t, timeout.Advanced)
	assert.False(t, timeout.Modified)
}

func TestBindCompleteness(t *testing.T) {
	params := []*checker.Param{
		param("a", checker.ParamRequired, checker.TypeInt, ""),
		param("b", checker.ParamRequired, checker.TypeInt, ""),
		param("c", checker.ParamDefaultable, checker.TypeInt, "0"),
		param("d", checker.ParamDefaultable, checker.TypeString, `""`),
	}
	calls := [][]Arg{
		nil,
		{pos("1")},
		{pos("1"), pos("2")},
		{named("d", `"z"`), pos("1")},
		{named("c", "3"), named("a", "1")},
		{pos("1"), pos("2"), pos("3"), pos("4")},
	}
	for _, args := range calls {
		r := Bind(params, args, Options{})
		assert.Equal(t, []string{"a", "b", "c", "d"}, r.Properties.Keys())
		supplied := 0
		r.Properties.Each(func(_ string, p *flow.Property) {
			if p.Modified {
				supplied++
			}
		})
		assert.Equal(t, len(args), supplied)
	}
}

func TestBindNamedOutOfOrder(t *testing.T) {
	params := []*checker.Param{
		param("a", checker.ParamRequired, checker.TypeInt, ""),
		param("b", checker.ParamRequired, checker.TypeInt, ""),
	}
	r := Bind(params, []Arg{named("b", "2"), pos("1")}, Options{})
	assert.Equal(t, "1", get(t, r, "a").Value)
	assert.Equal(t, "2", get(t, r, "b").Value)
}

func TestBindSpreadGoesToRest(t *testing.T) {
	params := []*checker.Param{
		param("first", checker.ParamRequired, checker.TypeString, ""),
		param("values", checker.ParamRest, checker.TypeString, ""),
	}
	r := Bind(params, []Arg{pos("x"), spread("more")}, Options{})
	assert.Equal(t, []string{"...more"}, get(t, r, "values").Value)
}

func TestBindLeftoverWithoutRest(t *testing.T) {
	params := []*checker.Param{param("a", checker.ParamRequired, checker.TypeInt, "")}
	r := Bind(params, []Arg{pos("1"), pos("2"), spread("xs")}, Options{})
	assert.Equal(t, []Arg{pos("2"), spread("xs")}, r.Leftover)

	assert.Equal(t, []string{"a", flow.KeyAdditionalArguments}, r.Properties.Keys())
	extra := get(t, r, flow.KeyAdditionalArguments)
	assert.Equal(t, flow.ValueExpressionSet, extra.ValueType)
	assert.Equal(t, []string{"2", "...xs"}, extra.Value)
	assert.Equal(t, flow.OriginSynthetic, extra.Codedata.Kind)
	assert.Equal(t, flow.KeyAdditionalArguments, extra.Codedata.OriginalName)
	assert.True(t, extra.Modified)
}

func TestBindLeftoverKeepsDeclaredName(t *testing.T) {
	params := []*checker.Param{param(flow.KeyAdditionalArguments, checker.ParamRequired, checker.TypeInt, "")}
	r := Bind(params, []Arg{pos("1"), pos("2")}, Options{})
	assert.Equal(t, "1", get(t, r, flow.KeyAdditionalArguments).Value)
	assert.Equal(t, flow.OriginRequired, get(t, r, flow.KeyAdditionalArguments).Codedata.Kind)
	assert.Equal(t, []Arg{pos("2")}, r.Leftover)
}

func TestBindIncludedRecord(t *testing.T) {
	params := []*checker.Param{
		param("path", checker.ParamRequired, checker.TypeString, ""),
		{Name: "limit", Kind: checker.ParamIncludedField, Type: checker.TypeInt, TypeText: "int", Optional: true, Record: "params"},
		{Name: checker.AdditionalValues, Kind: checker.ParamIncludedRecordRest, Type: checker.TypeAnydata, TypeText: "anydata", Optional: true, Record: "params"},
	}
	r := Bind(params, []Arg{pos(`"/users"`), named("limit", "10"), named("sort", `"asc"`), named("page", "2")}, Options{})

	assert.Equal(t, "10", get(t, r, "limit").Value)
	assert.Equal(t, flow.OriginIncludedField, get(t, r, "limit").Codedata.Kind)

	extra := get(t, r, checker.AdditionalValues)
	assert.Equal(t, flow.ValueMappingExpressionSet, extra.ValueType)
	text, err := extra.SourceText()
	require.NoError(t, err)
	assert.Equal(t, `sort = "asc", page = 2`, text)
	assert.True(t, extra.Modified)
}

func TestBindPositionalStopsAtIncludedRecord(t *testing.T) {
	params := []*checker.Param{
		param("a", checker.ParamRequired, checker.TypeInt, ""),
		{Name: "limit", Kind: checker.ParamIncludedField, Type: checker.TypeInt, TypeText: "int", Optional: true, Record: "params"},
	}
	r := Bind(params, []Arg{pos("1"), pos("2")}, Options{})
	assert.Nil(t, get(t, r, "limit").Value)
	assert.Equal(t, []Arg{pos("2")}, r.Leftover)
	assert.Equal(t, []string{"2"}, get(t, r, flow.KeyAdditionalArguments).Value)
}

func TestBindSyntheticAdditionalValues(t *testing.T) {
	params := []*checker.Param{param("a", checker.ParamRequired, checker.TypeInt, "")}
	r := Bind(params, []Arg{named("a", "1"), named("extra", "true")}, Options{})

	assert.Equal(t, []string{"a", checker.AdditionalValues}, r.Properties.Keys())
	extra := get(t, r, checker.AdditionalValues)
	assert.Equal(t, flow.OriginSynthetic, extra.Codedata.Kind)
	assert.Equal(t, checker.AdditionalValues, extra.Codedata.OriginalName)
	text, err := extra.SourceText()
	require.NoError(t, err)
	assert.Equal(t, "extra = true", text)
}

func TestBindSingleRestIsRequired(t *testing.T) {
	rest := []*checker.Param{param("values", checker.ParamRest, checker.TypeAnydata, "")}
	r := Bind(rest, nil, Options{})
	p := get(t, r, "values")
	assert.False(t, p.Optional)
	assert.False(t, p.Advanced)
	assert.Equal(t, []string{}, p.Value)

	record := []*checker.Param{{Name: checker.AdditionalValues, Kind: checker.ParamIncludedRecordRest, TypeText: "anydata", Optional: true}}
	r = Bind(record, nil, Options{})
	assert.False(t, get(t, r, checker.AdditionalValues).Optional)

	two := []*checker.Param{
		param("msg", checker.ParamRequired, checker.TypeString, ""),
		param("values", checker.ParamRest, checker.TypeAnydata, ""),
	}
	r = Bind(two, []Arg{pos(`"m"`)}, Options{})
	assert.True(t, get(t, r, "values").Optional)
}

func TestBindInferred(t *testing.T) {
	params := []*checker.Param{
		param("path", checker.ParamRequired, checker.TypeString, ""),
		{Name: "targetType", Kind: checker.ParamInferred, TypeText: "typedesc<anydata>", Default: "json"},
	}
	tests := []struct {
		name     string
		args     []Arg
		opts     Options
		want     string
		modified bool
	}{
		{"explicit named", []Arg{pos(`"/a"`), named("targetType", "Album")}, Options{InferredType: "json"}, "Album", true},
		{"explicit positional", []Arg{pos(`"/a"`), pos("Album")}, Options{}, "Album", true},
		{"from binding", []Arg{pos(`"/a"`)}, Options{InferredType: "Album[]"}, "Album[]", false},
		{"var binding", []Arg{pos(`"/a"`)}, Options{InferredType: "var"}, "json", false},
		{"default", []Arg{pos(`"/a"`)}, Options{}, "json", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Bind(params, tt.args, tt.opts)
			p := get(t, r, "targetType")
			assert.Equal(t, flow.ValueTypeDesc, p.ValueType)
			assert.Equal(t, tt.want, p.Value)
			assert.Equal(t, tt.modified, p.Modified)
			assert.Equal(t, "json", p.Placeholder)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Service Url", Label("serviceUrl"))
	assert.Equal(t, "Max Iter", Label("maxIter"))
	assert.Equal(t, "Path", Label("path"))
	assert.Equal(t, "Api key", Label("api_key"))
}

func TestArgText(t *testing.T) {
	assert.Equal(t, "...xs", Arg{Value: "xs", Spread: true}.Text())
}
