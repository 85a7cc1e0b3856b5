package lower

import (
	"fmt"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/flow"
)

// wait lowers a wait action. An alternate chain `a | b | c` waits for any
// future; a field list `{x: a, y: b}` waits for all of them.
func (l *lowerer) wait(span ast.Span, w *ast.WaitExpr, bind *binding, flags flow.Flags) {
	b := l.start(flow.Wait, span).Flag(flags)
	l.diagnose(b, span)

	futures := flow.NewProperties()
	if len(w.Fields) > 0 {
		for _, f := range w.Fields {
			futures.Set(f.Key, expressionProp(f.Key, l.text(f.Future)))
		}
	} else {
		for i, f := range alternates(w.Future) {
			key := fmt.Sprintf("future%d", i+1)
			futures.Set(key, expressionProp(fmt.Sprintf("Future %d", i+1), l.text(f)))
		}
	}
	b.Property(flow.KeyWaitAll, flagProp("Wait All", len(w.Fields) > 0))
	b.Property(flow.KeyFutures, flow.NewProperty(flow.ValueRepeatable).Label("Futures").Value(futures).Build())
	l.bindingProps(b, bind)
	b.Property(flow.KeyCheckError, flagProp("Check Error", checked(flags)))
	l.end()
}

// alternates flattens a left-nested alternate chain in source order.
func alternates(e ast.Expression) []ast.Expression {
	switch x := e.(type) {
	case *ast.AlternateWait:
		return append(alternates(x.Left), alternates(x.Right)...)
	case *ast.ParenExpr:
		if _, ok := x.Inner.(*ast.AlternateWait); ok {
			return alternates(x.Inner)
		}
	}
	return []ast.Expression{e}
}
