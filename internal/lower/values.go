package lower

import (
	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/flow"
)

// binding is the variable a value is stored in.
type binding struct {
	name     string
	typeText string // declared type, "var" when inferred
	assign   bool   // assignment to an existing variable
	final    bool
}

// inferredType is the declared type usable for inferred typedesc
// parameters, or "" when there is none.
func (b *binding) inferredType() string {
	if b == nil || b.assign || b.typeText == "var" {
		return ""
	}
	return b.typeText
}

func (l *lowerer) declaredType(v *ast.VarDecl) string {
	if v.Type == nil {
		return "var"
	}
	return l.text(v.Type)
}

// bindingProps adds the properties naming the receiving variable.
func (l *lowerer) bindingProps(b *flow.NodeBuilder, bind *binding) {
	if bind == nil {
		return
	}
	if bind.assign {
		b.Property(flow.KeyVariable, flow.NewProperty(flow.ValueLVExpression).Label("Variable").Value(bind.name).Build())
		return
	}
	b.Property(flow.KeyType, typeProp("Variable Type", bind.typeText))
	b.Property(flow.KeyVariable, identifierProp("Variable Name", bind.name))
	if bind.final {
		b.Flag(flow.FlagFinal)
	}
}

// value lowers an expression statement, a declaration initializer or an
// assigned value. span is the range the resulting node covers.
func (l *lowerer) value(span ast.Span, e ast.Expression, bind *binding) {
	flags, inner := unwrapFlags(e)
	switch x := inner.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr, *ast.RemoteCallExpr, *ast.ResourceCallExpr:
		if l.call(span, x, bind, flags) {
			return
		}
	case *ast.NewExpr:
		if l.construct(span, x, bind, flags) {
			return
		}
	case *ast.WaitExpr:
		l.wait(span, x, bind, flags)
		return
	}
	if kind, ok := l.payload(inner, bind); ok {
		b := l.start(kind, span)
		l.diagnose(b, span)
		b.Property(flow.KeyExpression, expressionProp("Expression", l.text(inner)))
		l.bindingProps(b, bind)
		l.end()
		return
	}
	l.plain(span, e, bind)
}

// plain lowers an expression with no structure of its own. The expression
// is kept verbatim, including any check or start prefix.
func (l *lowerer) plain(span ast.Span, e ast.Expression, bind *binding) {
	kind := flow.Expression
	switch {
	case bind == nil:
	case bind.assign:
		kind = flow.Assign
	default:
		kind = flow.Variable
	}
	b := l.start(kind, span)
	l.diagnose(b, span)
	b.Property(flow.KeyExpression, expressionProp("Expression", l.text(e)))
	l.bindingProps(b, bind)
	l.end()
}

// payload reports the payload kind of a literal initializer.
func (l *lowerer) payload(e ast.Expression, bind *binding) (flow.NodeKind, bool) {
	if bind == nil || bind.assign || l.opts.ForceAssign {
		return "", false
	}
	switch x := e.(type) {
	case *ast.MappingLit, *ast.ListLit:
		if bind.typeText == "json" {
			return flow.JSONPayload, true
		}
	case *ast.TemplateLit:
		switch {
		case x.Tag == "xml" && bind.typeText == "xml":
			return flow.XMLPayload, true
		case (x.Tag == "base16" || x.Tag == "base64") && bind.typeText == "byte[]":
			return flow.BinaryData, true
		}
	}
	return "", false
}

// unwrapFlags strips parentheses, check and start prefixes and reports
// them as node flags.
func unwrapFlags(e ast.Expression) (flow.Flags, ast.Expression) {
	var flags flow.Flags
	for {
		switch x := e.(type) {
		case *ast.ParenExpr:
			e = x.Inner
		case *ast.CheckExpr:
			if x.Panic {
				flags |= flow.FlagCheckPanic
			} else {
				flags |= flow.FlagChecked
			}
			e = x.Expr
		case *ast.StartExpr:
			flags |= flow.FlagAsync
			e = x.Call
		default:
			return flags, e
		}
	}
}

func checked(flags flow.Flags) bool {
	return flags.Has(flow.FlagChecked) || flags.Has(flow.FlagCheckPanic)
}
