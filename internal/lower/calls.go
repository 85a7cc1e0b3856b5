package lower

import (
	"fmt"
	"strings"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/binder"
	"github.com/lhaig/flowgraph/internal/catalog"
	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/flow"
)

// call lowers a resolved call. It reports false when the callee cannot be
// resolved, leaving the caller to emit a generic node.
func (l *lowerer) call(span ast.Span, call ast.Expression, bind *binding, flags flow.Flags) bool {
	sym, ok := l.opts.Oracle.SymbolOf(call)
	if !ok || sym.Function == nil {
		l.log.Debug("unresolved callee", "call", l.text(call))
		return false
	}
	fn := sym.Function

	var (
		receiver ast.Expression
		args     []*ast.Arg
	)
	switch c := call.(type) {
	case *ast.CallExpr:
		args = c.Args
	case *ast.MethodCallExpr:
		receiver, args = c.Object, c.Args
	case *ast.RemoteCallExpr:
		receiver, args = c.Object, c.Args
	case *ast.ResourceCallExpr:
		receiver, args = c.Object, c.Args
	}

	callee := Callee{Name: fn.Name, Function: fn, Receiver: fn.Owner}
	if fn.Owner == nil && fn.Module == "" {
		_, callee.DataMapper = l.opts.DataMappers[fn.Name]
		_, callee.Natural = l.opts.NaturalFunctions[fn.Name]
	}
	class := ClassifyCall(callee)
	l.log.Debug("classified call", "call", fn.Name, "rule", class.Rule, "kind", class.Kind)

	b := l.start(class.Kind, span).Flag(flags).Description(fn.Doc)
	l.diagnose(b, span)
	l.symbol(b, fn)

	if receiver != nil {
		b.Property(flow.KeyConnection, flow.NewProperty(flow.ValueExpression).
			Label("Connection").
			Value(l.text(receiver)).
			Fixed().
			Build())
	}
	if rc, ok := call.(*ast.ResourceCallExpr); ok {
		l.resourcePath(b, rc, fn)
	}
	l.bindArgs(b, fn, binder.FromAST(l.src, args), bind)
	l.bindingProps(b, bind)
	b.Property(flow.KeyCheckError, flagProp("Check Error", checked(flags)))

	if class.Kind == flow.AgentCall {
		if data, ok := l.agentOf(receiver); ok {
			b.Data(flow.DataAgent, data)
		}
	}
	l.end()
	return true
}

// construct lowers a constructor expression. Local objects that are not
// connections or AI components report false and lower as variables.
func (l *lowerer) construct(span ast.Span, n *ast.NewExpr, bind *binding, flags flow.Flags) bool {
	sym, ok := l.opts.Oracle.SymbolOf(n)
	if !ok || sym.Type == nil {
		l.log.Debug("unresolved constructor", "expression", l.text(n))
		return false
	}
	obj := sym.Type.ObjectType()
	if obj == nil {
		return false
	}
	class := ClassifyConstructor(obj)
	if class.Rule == ConnectionFallback && l.opts.Scope == Local {
		l.log.Debug("local object is not a connection", "type", obj.Qualified())
		return false
	}
	l.log.Debug("classified constructor", "type", obj.Qualified(), "rule", class.Rule, "kind", class.Kind)

	var params []*checker.Param
	if sym.Function != nil {
		params = l.opts.Oracle.Params(sym.Function)
	}
	args := l.expandRecordArg(n.Args, params)

	var agent *AgentData
	if class.Kind == flow.Agent {
		data, missing := l.agentData(args)
		if len(missing) > 0 {
			l.fail(&SchemaMismatchError{
				Construct: "agent",
				Missing:   missing,
				Range:     l.lines.Range(span.Start, span.End),
			})
		}
		agent = data
	}

	b := l.start(class.Kind, span).Flag(flags).Description(obj.Doc)
	l.diagnose(b, span)
	org, module := l.module(obj.Module)
	b.Symbol(org, module, obj.Name, "init")

	var callArgs []binder.Arg
	for _, a := range args {
		callArgs = append(callArgs, binder.Arg{Name: a.Name, Value: l.text(a.Value), Spread: a.Spread})
	}
	l.bindArgs(b, sym.Function, callArgs, bind)
	l.bindingProps(b, bind)
	b.Property(flow.KeyScope, flow.NewProperty(flow.ValueFixed).
		Label("Scope").
		Value(string(l.opts.Scope)).
		Fixed().
		Hidden().
		Build())
	b.Property(flow.KeyCheckError, flagProp("Check Error", checked(flags)))
	if agent != nil {
		b.Data(flow.DataAgent, agent)
	}
	l.end()
	return true
}

// bindArgs binds the call arguments against fn's schema and stores the
// resulting properties on b.
func (l *lowerer) bindArgs(b *flow.NodeBuilder, fn *checker.Function, args []binder.Arg, bind *binding) {
	if fn == nil {
		if len(args) > 0 {
			l.log.Debug("arguments without a schema", "count", len(args))
		}
		return
	}
	res := binder.Bind(l.opts.Oracle.Params(fn), args, binder.Options{InferredType: bind.inferredType()})
	res.Properties.Each(func(key string, p *flow.Property) {
		b.Property(key, p)
	})
	for _, a := range res.Leftover {
		l.log.Debug("argument matches no parameter", "function", fn.Name, "argument", a.Text())
	}
}

// expandRecordArg turns the mapping-constructor argument that lands on an
// included-record position into named arguments, one per field. The
// position follows the binder's positional fill: declaration order,
// skipping parameters supplied by name.
func (l *lowerer) expandRecordArg(args []*ast.Arg, params []*checker.Param) []*ast.Arg {
	named := make(map[string]bool, len(args))
	for _, a := range args {
		if a.Name != "" {
			named[a.Name] = true
		}
	}

	next := 0
	for i, a := range args {
		if a.Name != "" {
			continue
		}
		if a.Spread {
			return args
		}
		for next < len(params) && named[params[next].Name] {
			next++
		}
		if next >= len(params) {
			return args
		}
		switch params[next].Kind {
		case checker.ParamIncludedField:
			fields, ok := recordFields(a)
			if !ok {
				return args
			}
			out := make([]*ast.Arg, 0, len(args)-1+len(fields))
			out = append(out, args[:i]...)
			out = append(out, fields...)
			return append(out, args[i+1:]...)
		case checker.ParamRest, checker.ParamIncludedRecord, checker.ParamIncludedRecordRest:
			return args
		}
		next++
	}
	return args
}

// recordFields splits a mapping-constructor argument into named arguments.
// Spread fields have no name and keep the argument whole.
func recordFields(a *ast.Arg) ([]*ast.Arg, bool) {
	lit, ok := ast.Unwrap(a.Value).(*ast.MappingLit)
	if !ok {
		return nil, false
	}
	out := make([]*ast.Arg, 0, len(lit.Fields))
	for _, f := range lit.Fields {
		if f.Spread {
			return nil, false
		}
		out = append(out, &ast.Arg{Span: f.Span, Name: f.Key, Value: f.Value})
	}
	return out, true
}

// symbol fills the codedata naming fn.
func (l *lowerer) symbol(b *flow.NodeBuilder, fn *checker.Function) {
	org, module := l.module(fn.Module)
	object := ""
	if fn.Owner != nil {
		object = fn.Owner.Name
	}
	name := fn.Name
	if fn.Kind == checker.FuncResource {
		name = fn.Accessor
	}
	b.Symbol(org, module, object, name)
}

// module splits a library module path. Local symbols have neither part.
func (l *lowerer) module(path string) (org, name string) {
	if path == "" {
		return "", ""
	}
	org, name, err := catalog.SplitModule(path)
	if err != nil {
		l.log.Debug("malformed module path", "module", path, "error", err)
		return "", path
	}
	return org, name
}

// resourcePath adds the call's resource path and one property per computed
// path segment, named after the declared path parameter.
func (l *lowerer) resourcePath(b *flow.NodeBuilder, rc *ast.ResourceCallExpr, fn *checker.Function) {
	b.Property(flow.KeyResourcePath, flow.NewProperty(flow.ValueString).
		Label("Resource Path").
		Value(rc.PathSpan.Text(l.src)).
		Fixed().
		Build())
	for i, seg := range rc.Path {
		if seg.Value == nil {
			continue
		}
		var name string
		if i < len(fn.Path) {
			name = pathParam(fn.Path[i])
		} else if n := len(fn.Path); n > 0 && strings.Contains(fn.Path[n-1], "...") {
			name = pathParam(fn.Path[n-1])
		}
		if name == "" || b.HasProperty(name) {
			name = fmt.Sprintf("path%d", i+1)
		}
		b.Property(name, flow.NewProperty(flow.ValueExpression).
			Label(binder.Label(name)).
			Value(l.text(seg.Value)).
			Modified(true).
			Origin(flow.OriginRequired, name).
			Build())
	}
}

// pathParam returns the parameter name of a declared segment such as
// "[string id]" or "[string... rest]".
func pathParam(seg string) string {
	if !strings.HasPrefix(seg, "[") || !strings.HasSuffix(seg, "]") {
		return ""
	}
	fields := strings.Fields(strings.Trim(seg, "[]"))
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}
