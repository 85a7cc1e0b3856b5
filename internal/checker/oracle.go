package checker

import (
	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/diagnostic"
)

// Oracle answers symbol and type questions about a checked program.
// Implementations must be safe for concurrent reads.
type Oracle interface {
	// SymbolOf resolves a declaration, a name use, a call (to its callee)
	// or a constructor expression.
	SymbolOf(node ast.Node) (*Symbol, bool)
	// TypeOf returns the static type of an expression.
	TypeOf(expr ast.Expression) (*Type, bool)
	// Params returns the parameter schema of fn in declaration order, with
	// included-record parameters expanded into their fields.
	Params(fn *Function) []*Param
	// References lists the occurrences of sym in source order.
	References(sym *Symbol) []Reference
	// Diagnostics returns the diagnostics whose span lies inside span.
	Diagnostics(span ast.Span) []diagnostic.Diagnostic
}

var _ Oracle = (*Model)(nil)

// SymbolOf implements Oracle.
func (m *Model) SymbolOf(node ast.Node) (*Symbol, bool) {
	sym, ok := m.symbols[node]
	return sym, ok && sym != nil
}

// TypeOf implements Oracle.
func (m *Model) TypeOf(expr ast.Expression) (*Type, bool) {
	t, ok := m.types[expr]
	if !ok || t == nil || t.Kind == KindUnknown && t.Name == "" {
		return nil, false
	}
	return t, true
}

// References implements Oracle.
func (m *Model) References(sym *Symbol) []Reference {
	return m.refs[sym]
}

// Diagnostics implements Oracle.
func (m *Model) Diagnostics(span ast.Span) []diagnostic.Diagnostic {
	return m.diags.Within(span.Diag())
}

// Params implements Oracle.
func (m *Model) Params(fn *Function) []*Param {
	if fn == nil {
		return nil
	}
	return ExpandParams(fn.Params)
}

// ExpandParams replaces each resolvable included-record parameter by one
// INCLUDED_FIELD parameter per record field, followed by an
// INCLUDED_RECORD_REST parameter when the record is open.
func ExpandParams(params []*Param) []*Param {
	out := make([]*Param, 0, len(params))
	for _, p := range params {
		if p.Kind != ParamIncludedRecord {
			out = append(out, p)
			continue
		}
		rec := p.Type.RecordType()
		if rec == nil {
			out = append(out, p)
			continue
		}
		for _, f := range rec.Fields {
			out = append(out, &Param{
				Name:     f.Name,
				Kind:     ParamIncludedField,
				Type:     f.Type,
				TypeText: f.TypeText,
				Default:  f.Default,
				Doc:      f.Doc,
				Optional: f.Optional || f.Default != "",
				Record:   p.Name,
			})
		}
		if rec.Rest != nil {
			out = append(out, &Param{
				Name:     AdditionalValues,
				Kind:     ParamIncludedRecordRest,
				Type:     rec.Rest,
				TypeText: rec.RestText,
				Optional: true,
				Record:   p.Name,
			})
		}
	}
	return out
}
