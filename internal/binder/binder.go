// Package binder matches the arguments of a call site against the callee's
// parameter schema and produces one editable property per parameter.
package binder

import (
	"strings"
	"unicode"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/flow"
)

// Arg is one call argument as written at the call site.
type Arg struct {
	Name   string // empty for positional arguments
	Value  string // expression source text
	Spread bool   // ...value
}

// Text returns the argument as it appears in a rest list.
func (a Arg) Text() string {
	if a.Spread {
		return "..." + a.Value
	}
	return a.Value
}

// FromAST converts parsed call arguments using their source text.
func FromAST(src string, args []*ast.Arg) []Arg {
	out := make([]Arg, 0, len(args))
	for _, a := range args {
		out = append(out, Arg{
			Name:   a.Name,
			Value:  a.Value.Range().Text(src),
			Spread: a.Spread,
		})
	}
	return out
}

// Options carries call-site context.
type Options struct {
	// InferredType is the declared type of the variable receiving the call
	// result. It resolves inferred typedesc parameters.
	InferredType string
}

// Result is the outcome of binding one call.
type Result struct {
	Properties *flow.Properties
	// Leftover holds positional arguments that no parameter accepted. They
	// are also kept in the synthetic additionalArguments property unless a
	// parameter already uses that name.
	Leftover []Arg
}

// binding is the state of one parameter during matching.
type binding struct {
	param    *checker.Param
	value    string
	rest     []string
	supplied bool
}

// Bind matches args against params, which must be in declaration order
// with included records already expanded.
func Bind(params []*checker.Param, args []Arg, opts Options) Result {
	bindings := make([]*binding, len(params))
	byName := make(map[string]*binding, len(params))
	var restParam, recordRest *binding
	for i, p := range params {
		b := &binding{param: p}
		bindings[i] = b
		switch p.Kind {
		case checker.ParamRest:
			if restParam == nil {
				restParam = b
			}
		case checker.ParamIncludedRecordRest:
			if recordRest == nil {
				recordRest = b
			}
		default:
			byName[p.Name] = b
		}
	}

	// Named arguments first; each consumes its parameter.
	extras := flow.NewMapping()
	var positional []Arg
	for _, a := range args {
		if a.Name == "" {
			positional = append(positional, a)
			continue
		}
		if b, ok := byName[a.Name]; ok && !b.supplied {
			b.value, b.supplied = a.Value, true
			continue
		}
		extras.Set(a.Name, a.Value)
	}

	// Positional arguments fill the remaining parameters in order, up to
	// the first rest or included-record parameter.
	next := 0
fill:
	for _, b := range bindings {
		if next >= len(positional) || positional[next].Spread {
			break
		}
		switch b.param.Kind {
		case checker.ParamRest, checker.ParamIncludedRecord, checker.ParamIncludedField,
			checker.ParamIncludedRecordRest:
			break fill
		}
		if b.supplied {
			continue
		}
		b.value, b.supplied = positional[next].Value, true
		next++
	}

	var leftover []Arg
	for _, a := range positional[next:] {
		if restParam == nil {
			leftover = append(leftover, a)
			continue
		}
		restParam.rest = append(restParam.rest, a.Text())
		restParam.supplied = true
	}

	props := flow.NewProperties()
	single := len(params) == 1
	for _, b := range bindings {
		key := b.param.Name
		var p *flow.Property
		switch b.param.Kind {
		case checker.ParamRest:
			p = restProperty(b, single)
		case checker.ParamIncludedRecordRest:
			p = mappingProperty(b.param, b.param.Name, extras, single)
		case checker.ParamInferred:
			p = inferredProperty(b, opts)
		default:
			p = valueProperty(b)
		}
		props.Set(key, p)
	}
	if recordRest == nil && extras.Len() > 0 {
		props.Set(checker.AdditionalValues, mappingProperty(nil, checker.AdditionalValues, extras, false))
	}
	if _, taken := props.Get(flow.KeyAdditionalArguments); len(leftover) > 0 && !taken {
		props.Set(flow.KeyAdditionalArguments, leftoverProperty(leftover))
	}

	return Result{Properties: props, Leftover: leftover}
}

func base(p *checker.Param) *flow.PropertyBuilder {
	return flow.NewProperty(flow.ValueExpression).
		Label(Label(p.Name)).
		Description(p.Doc).
		Type(p.TypeText).
		Default(p.Default).
		Origin(flow.Origin(p.Kind), p.Name)
}

func optional(p *checker.Param) bool {
	switch p.Kind {
	case checker.ParamDefaultable, checker.ParamInferred, checker.ParamRest,
		checker.ParamIncludedRecordRest:
		return true
	}
	return p.Optional || p.Default != ""
}

func valueProperty(b *binding) *flow.Property {
	opt := optional(b.param)
	pb := base(b.param).
		Placeholder(placeholder(b.param)).
		Optional(opt).
		Advanced(opt).
		Modified(b.supplied)
	if b.supplied {
		pb.Value(b.value)
	}
	return pb.Build()
}

func restProperty(b *binding, single bool) *flow.Property {
	opt := !single
	values := b.rest
	if values == nil {
		values = []string{}
	}
	return base(b.param).
		Optional(opt).
		Advanced(opt && !b.supplied).
		Modified(b.supplied).
		Value(values).
		ValueType(flow.ValueExpressionSet).
		Build()
}

func mappingProperty(p *checker.Param, name string, extras *flow.Mapping, single bool) *flow.Property {
	opt := !single
	var pb *flow.PropertyBuilder
	if p != nil {
		pb = base(p)
	} else {
		pb = flow.NewProperty(flow.ValueExpression).
			Label(Label(name)).
			Type("anydata").
			Origin(flow.OriginSynthetic, name)
	}
	return pb.
		Optional(opt).
		Advanced(opt && extras.Len() == 0).
		Modified(extras.Len() > 0).
		Value(extras).
		ValueType(flow.ValueMappingExpressionSet).
		Build()
}

// leftoverProperty keeps the positional arguments no parameter accepted,
// in call order.
func leftoverProperty(args []Arg) *flow.Property {
	values := make([]string, 0, len(args))
	for _, a := range args {
		values = append(values, a.Text())
	}
	return flow.NewProperty(flow.ValueExpression).
		Label(Label(flow.KeyAdditionalArguments)).
		Type("any").
		Optional(true).
		Modified(true).
		Value(values).
		ValueType(flow.ValueExpressionSet).
		Origin(flow.OriginSynthetic, flow.KeyAdditionalArguments).
		Build()
}

// inferredProperty resolves an inferred typedesc parameter from, in
// order, an explicit argument, the receiving variable's declared type and
// the parameter's default.
func inferredProperty(b *binding, opts Options) *flow.Property {
	value := b.param.Default
	switch {
	case b.supplied:
		value = b.value
	case opts.InferredType != "" && opts.InferredType != "var":
		value = opts.InferredType
	}
	return base(b.param).
		Placeholder(b.param.Default).
		Optional(true).
		Advanced(!b.supplied).
		Modified(b.supplied).
		Value(value).
		ValueType(flow.ValueTypeDesc).
		Build()
}

// placeholder suggests a value for an empty parameter.
func placeholder(p *checker.Param) string {
	if p.Default != "" {
		return p.Default
	}
	if p.Type == nil {
		return ""
	}
	switch p.Type.Kind {
	case checker.KindString:
		return `""`
	case checker.KindInt, checker.KindByte:
		return "0"
	case checker.KindFloat, checker.KindDecimal:
		return "0.0"
	case checker.KindBoolean:
		return "false"
	case checker.KindArray:
		return "[]"
	case checker.KindMap, checker.KindRecord, checker.KindJSON:
		return "{}"
	case checker.KindNil:
		return "()"
	case checker.KindXML:
		return "xml ``"
	}
	return ""
}

// Label turns a parameter name into a display label: "serviceUrl" becomes
// "Service Url".
func Label(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			sb.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			sb.WriteByte(' ')
			sb.WriteRune(r)
		case r == '_':
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
