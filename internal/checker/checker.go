// Package checker resolves names and types of a parsed program against the
// library catalog. The resulting Model answers the Oracle queries the
// lowering pass makes.
package checker

import (
	"errors"
	"strings"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/catalog"
	"github.com/lhaig/flowgraph/internal/diagnostic"
	"github.com/lhaig/flowgraph/internal/lexer"
	"github.com/lhaig/flowgraph/internal/parser"
)

// Libraries resolves imported module paths to catalog packages.
type Libraries interface {
	Lookup(module string) (*catalog.Package, error)
}

// Options configures a check.
type Options struct {
	Source    string // source text the program was parsed from
	File      string
	Module    string // module path of the checked file; "" for a standalone file
	Libraries Libraries
}

// Model is the result of checking one file. It is read-only once Check
// returns.
type Model struct {
	prog  *ast.Program
	opts  Options
	diags *diagnostic.Diagnostics

	symbols map[ast.Node]*Symbol
	types   map[ast.Expression]*Type
	refs    map[*Symbol][]Reference

	imports  map[string]string // prefix -> module path
	packages map[string]*catalog.Package
	missing  map[string]bool
	libTypes map[string]*Type
	libFuncs map[*catalog.Function]*Function
	funcSyms map[*Function]*Symbol

	classes    map[string]*ObjectInfo
	records    map[string]*RecordInfo
	aliases    map[string]*ast.TypeDecl
	aliasTypes map[string]*Type
	functions  map[string]*Function
	fieldSyms  map[*ObjectInfo]map[string]*Symbol

	global  *Scope
	scope   *Scope
	self    *ObjectInfo
	returns *Type
}

// Check performs semantic analysis of prog and returns the model.
func Check(prog *ast.Program, opts Options) *Model {
	m := &Model{
		prog:       prog,
		opts:       opts,
		diags:      diagnostic.New(),
		symbols:    make(map[ast.Node]*Symbol),
		types:      make(map[ast.Expression]*Type),
		refs:       make(map[*Symbol][]Reference),
		imports:    make(map[string]string),
		packages:   make(map[string]*catalog.Package),
		missing:    make(map[string]bool),
		libTypes:   make(map[string]*Type),
		libFuncs:   make(map[*catalog.Function]*Function),
		funcSyms:   make(map[*Function]*Symbol),
		classes:    make(map[string]*ObjectInfo),
		records:    make(map[string]*RecordInfo),
		aliases:    make(map[string]*ast.TypeDecl),
		aliasTypes: make(map[string]*Type),
		functions:  make(map[string]*Function),
		fieldSyms:  make(map[*ObjectInfo]map[string]*Symbol),
		global:     NewScope(nil),
	}
	m.scope = m.global

	m.registerImports()
	m.registerTypes()
	m.registerFunctions()
	m.registerClasses()
	m.checkModuleVars()
	m.checkClasses()
	m.checkServices()
	m.checkFunctions()

	return m
}

// Program returns the checked program.
func (m *Model) Program() *ast.Program { return m.prog }

// Source returns the source text the model was built from.
func (m *Model) Source() string { return m.opts.Source }

// File returns the file name.
func (m *Model) File() string { return m.opts.File }

// Module returns the module path of the checked file.
func (m *Model) Module() string { return m.opts.Module }

// AllDiagnostics returns every diagnostic produced by the check.
func (m *Model) AllDiagnostics() *diagnostic.Diagnostics { return m.diags }

// Imports returns the module path bound to each import prefix.
func (m *Model) Imports() map[string]string { return m.imports }

// Function looks up a function declared in the checked file.
func (m *Model) Function(name string) *Function { return m.functions[name] }

// Class looks up a class declared in the checked file.
func (m *Model) Class(name string) *ObjectInfo { return m.classes[name] }

func (m *Model) text(span ast.Span) string { return span.Text(m.opts.Source) }

// --- registration ---

func (m *Model) registerImports() {
	for _, imp := range m.prog.Imports {
		path := imp.Path()
		m.imports[imp.Prefix] = path
		sym := &Symbol{Name: imp.Prefix, Kind: SymModule, Module: path, Decl: imp}
		m.symbols[imp] = sym
		m.loadPackage(path, imp.Span)
	}
}

// loadPackage fetches a package document once. Failures are reported as
// warnings at span when span is non-zero.
func (m *Model) loadPackage(module string, span ast.Span) *catalog.Package {
	if pkg, ok := m.packages[module]; ok {
		return pkg
	}
	if m.missing[module] || m.opts.Libraries == nil {
		return nil
	}
	pkg, err := m.opts.Libraries.Lookup(module)
	if err != nil {
		m.missing[module] = true
		if span != (ast.Span{}) {
			if errors.Is(err, catalog.ErrNotFound) {
				m.diags.Warningf(span.Diag(), "no catalog entry for module '%s'; its calls are not classified", module)
			} else {
				m.diags.Warningf(span.Diag(), "cannot load module '%s': %v", module, err)
			}
		}
		return nil
	}
	m.packages[module] = pkg
	return pkg
}

func (m *Model) registerTypes() {
	for _, td := range m.prog.Types {
		if td.Type != nil && td.Type.Record != nil && td.Type.ArrayDims == 0 && !td.Type.Optional {
			m.records[td.Name] = &RecordInfo{Name: td.Name, Module: m.opts.Module}
			continue
		}
		m.aliases[td.Name] = td
	}
	for _, cls := range m.prog.Classes {
		obj := &ObjectInfo{Name: cls.Name, Module: m.opts.Module, Client: cls.IsClient, Markers: make(map[string]bool)}
		m.classes[cls.Name] = obj
		m.global.Define(cls.Name, &Symbol{Name: cls.Name, Kind: SymClass, Type: objectType(obj), Public: cls.IsPublic, Decl: cls})
	}
	for _, td := range m.prog.Types {
		if rec, ok := m.records[td.Name]; ok {
			m.fillRecord(rec, td.Type.Record)
		}
	}
}

func objectType(obj *ObjectInfo) *Type {
	return &Type{Kind: KindObject, Name: obj.Name, Module: obj.Module, Object: obj}
}

func (m *Model) fillRecord(rec *RecordInfo, body *ast.RecordType) {
	for _, f := range body.Fields {
		rec.Fields = append(rec.Fields, m.fieldInfo(f))
	}
	if body.Rest != nil {
		rec.Rest = m.resolve(body.Rest)
		rec.RestText = m.text(body.Rest.Span)
	}
}

func (m *Model) fieldInfo(f *ast.FieldDecl) *FieldInfo {
	info := &FieldInfo{
		Name:     f.Name,
		Type:     m.resolve(f.Type),
		TypeText: m.text(f.Type.Span),
		Optional: f.Optional,
	}
	if f.Default != nil {
		info.Default = m.text(f.Default.Range())
	}
	return info
}

func (m *Model) registerFunctions() {
	for _, fn := range m.prog.Functions {
		f := m.localFunction(fn.Name, FuncFunction, "", nil, fn.Params, fn.ReturnType, nil)
		f.Public = fn.IsPublic
		m.functions[fn.Name] = f
		sym := &Symbol{Name: fn.Name, Kind: SymFunction, Type: &Type{Kind: KindFunction}, Function: f, Public: fn.IsPublic, Decl: fn}
		m.funcSyms[f] = sym
		m.symbols[fn] = sym
		if err := m.global.Define(fn.Name, sym); err != nil {
			m.diags.Errorf(fn.Span.Diag(), "%v", err)
		}
	}
}

// localFunction builds the schema of a function declared in the file.
func (m *Model) localFunction(name string, kind FunctionKind, accessor string, path []*ast.PathSegment, params []*ast.Param, ret *ast.TypeRef, owner *ObjectInfo) *Function {
	f := &Function{Name: name, Module: m.opts.Module, Kind: kind, Accessor: accessor, Owner: owner}
	for _, seg := range path {
		f.Path = append(f.Path, m.text(seg.Span))
	}
	for _, p := range params {
		f.Params = append(f.Params, m.localParam(p))
	}
	if ret != nil {
		f.Returns = m.resolve(ret)
		f.ReturnText = m.text(ret.Span)
	} else {
		f.Returns = TypeNil
	}
	return f
}

func (m *Model) localParam(p *ast.Param) *Param {
	out := &Param{Name: p.Name, TypeText: m.text(p.Type.Span)}
	t := m.resolve(p.Type)
	switch {
	case p.Rest:
		out.Kind = ParamRest
		out.Optional = true
	case p.Included:
		out.Kind = ParamIncludedRecord
		out.Optional = true
	case p.Default == nil:
		out.Kind = ParamRequired
	default:
		if _, ok := p.Default.(*ast.InferredDefault); ok {
			out.Kind = ParamInferred
			if len(p.Type.TypeArgs) > 0 {
				out.Default = m.text(p.Type.TypeArgs[0].Span)
			}
		} else {
			out.Kind = ParamDefaultable
			out.Default = m.text(p.Default.Range())
		}
		out.Optional = true
	}
	out.Type = t
	return out
}

func (m *Model) registerClasses() {
	for _, cls := range m.prog.Classes {
		obj := m.classes[cls.Name]
		for _, inc := range cls.Includes {
			it := m.resolve(inc)
			if io := it.ObjectType(); io != nil {
				obj.Markers[io.Qualified()] = true
				for marker := range io.Markers {
					obj.Markers[marker] = true
				}
				if io.Client {
					obj.Client = true
				}
			}
		}
		m.registerMembers(obj, cls.Fields, cls.Methods, cls.Init)
	}
}

func (m *Model) registerMembers(obj *ObjectInfo, fields []*ast.FieldDecl, methods []*ast.MethodDecl, init *ast.MethodDecl) {
	syms := make(map[string]*Symbol)
	m.fieldSyms[obj] = syms
	for _, f := range fields {
		info := m.fieldInfo(f)
		obj.Fields = append(obj.Fields, info)
		sym := &Symbol{Name: f.Name, Kind: SymField, Type: info.Type, Final: f.Final, Public: f.Public, Decl: f}
		syms[f.Name] = sym
		m.symbols[f] = sym
	}
	for _, md := range methods {
		kind := FuncMethod
		switch md.Kind {
		case ast.RemoteMethod:
			kind = FuncRemote
		case ast.ResourceMethod:
			kind = FuncResource
		}
		fn := m.localFunction(md.Name, kind, md.Accessor, md.Path, md.Params, md.ReturnType, obj)
		fn.Public = md.IsPublic
		obj.Methods = append(obj.Methods, fn)
		sym := &Symbol{Name: md.Name, Kind: SymMethod, Type: &Type{Kind: KindFunction}, Function: fn, Decl: md}
		m.funcSyms[fn] = sym
		m.symbols[md] = sym
	}
	if init != nil {
		obj.Init = m.localFunction("init", FuncMethod, "", nil, init.Params, init.ReturnType, obj)
		m.symbols[init] = &Symbol{Name: "init", Kind: SymMethod, Function: obj.Init, Decl: init}
	}
}

// --- module level ---

func (m *Model) checkModuleVars() {
	for _, v := range m.prog.Vars {
		m.checkVarDecl(v)
	}
}

func (m *Model) checkClasses() {
	for _, cls := range m.prog.Classes {
		obj := m.classes[cls.Name]
		m.checkMembers(obj, cls.Fields, cls.Methods, cls.Init)
	}
}

func (m *Model) checkServices() {
	for _, svc := range m.prog.Services {
		for _, l := range svc.Listeners {
			m.expr(l, nil)
		}
		obj := &ObjectInfo{Name: "service", Module: m.opts.Module, Markers: make(map[string]bool)}
		m.registerMembers(obj, svc.Fields, svc.Methods, svc.Init)
		m.checkMembers(obj, svc.Fields, svc.Methods, svc.Init)
	}
}

func (m *Model) checkMembers(obj *ObjectInfo, fields []*ast.FieldDecl, methods []*ast.MethodDecl, init *ast.MethodDecl) {
	prevSelf := m.self
	m.self = obj
	defer func() { m.self = prevSelf }()

	for _, f := range fields {
		sym := m.fieldSyms[obj][f.Name]
		m.addRef(sym, Reference{Span: f.Span, Node: f, Kind: RefDecl, Value: f.Default})
		if f.Default != nil {
			m.expr(f.Default, sym.Type)
		}
	}
	if init != nil {
		m.checkBody(obj.Init, init.Params, init.Body)
	}
	for i, md := range methods {
		m.checkBody(obj.Methods[i], md.Params, md.Body)
	}
}

func (m *Model) checkFunctions() {
	for _, fn := range m.prog.Functions {
		f := m.functions[fn.Name]
		if fn.Mapping != nil {
			m.withFunctionScope(f, fn.Params, func() { m.expr(fn.Mapping, f.Returns) })
			continue
		}
		m.checkBody(f, fn.Params, fn.Body)
	}
}

func (m *Model) checkBody(fn *Function, params []*ast.Param, body *ast.Block) {
	m.withFunctionScope(fn, params, func() {
		if body != nil {
			m.walkStatements(body.Statements)
		}
	})
}

func (m *Model) withFunctionScope(fn *Function, params []*ast.Param, body func()) {
	prevScope, prevReturns := m.scope, m.returns
	m.scope = NewScope(m.global)
	m.returns = fn.Returns
	defer func() { m.scope, m.returns = prevScope, prevReturns }()

	for i, p := range params {
		t := fn.Params[i].Type
		if p.Rest {
			t = ArrayOf(t)
		}
		sym := &Symbol{Name: p.Name, Kind: SymParam, Type: t, Decl: p}
		m.symbols[p] = sym
		m.define(p.Name, sym, p.Span)
		m.addRef(sym, Reference{Span: p.Span, Node: p, Kind: RefDecl})
		if p.Default != nil {
			if _, ok := p.Default.(*ast.InferredDefault); !ok {
				m.expr(p.Default, t)
			}
		}
	}
	body()
}

// --- statements ---

func (m *Model) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	prev := m.scope
	m.scope = NewScope(prev)
	m.walkStatements(b.Statements)
	m.scope = prev
}

func (m *Model) walkStatements(stmts []ast.Statement) {
	for _, s := range stmts {
		m.walkStmt(s)
	}
}

func (m *Model) walkStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		m.walkBlock(s)
	case *ast.VarDecl:
		m.checkVarDecl(s)
	case *ast.AssignStmt:
		m.checkAssign(s)
	case *ast.ExprStmt:
		m.expr(s.Expr, nil)
	case *ast.IfStmt:
		m.expr(s.Condition, TypeBoolean)
		m.walkBlock(s.Then)
		if s.Else != nil {
			m.walkStmt(s.Else)
		}
	case *ast.WhileStmt:
		m.expr(s.Condition, TypeBoolean)
		m.walkBlock(s.Body)
		m.walkOnFail(s.OnFail)
	case *ast.ForeachStmt:
		m.checkForeach(s)
	case *ast.MatchStmt:
		m.checkMatch(s)
	case *ast.DoStmt:
		m.walkBlock(s.Body)
		m.walkOnFail(s.OnFail)
	case *ast.TransactionStmt:
		m.walkBlock(s.Body)
		m.walkOnFail(s.OnFail)
	case *ast.LockStmt:
		m.walkBlock(s.Body)
		m.walkOnFail(s.OnFail)
	case *ast.RetryStmt:
		for _, a := range s.Args {
			m.expr(a.Value, TypeInt)
		}
		m.walkBlock(s.Body)
		m.walkOnFail(s.OnFail)
	case *ast.ForkStmt:
		for _, w := range s.Workers {
			m.checkWorker(w)
		}
	case *ast.WorkerDecl:
		m.checkWorker(s)
	case *ast.ReturnStmt:
		if s.Value != nil {
			m.expr(s.Value, m.returns)
		}
	case *ast.PanicStmt:
		m.expr(s.Value, TypeError)
	case *ast.FailStmt:
		m.expr(s.Value, TypeError)
	case *ast.CommentStmt, *ast.BreakStmt, *ast.ContinueStmt:
	}
}

func (m *Model) checkVarDecl(s *ast.VarDecl) {
	var declared *Type
	if !s.Type.IsVar() {
		declared = m.resolve(s.Type)
	}
	if s.Value != nil {
		actual := m.expr(s.Value, declared)
		if declared == nil {
			declared = actual
		} else {
			m.checkAssignable(declared, actual, s.Value)
		}
	}
	if declared == nil {
		declared = TypeUnknown
	}
	sym := &Symbol{Name: s.Name, Kind: SymVariable, Type: declared, Final: s.Final, Public: s.IsPublic, Decl: s}
	m.symbols[s] = sym
	m.define(s.Name, sym, s.NameSpan)
	m.addRef(sym, Reference{Span: s.NameSpan, Node: s, Kind: RefDecl, Value: s.Value})
}

func (m *Model) checkAssign(s *ast.AssignStmt) {
	var target *Symbol
	switch t := s.Target.(type) {
	case *ast.Identifier:
		target = m.scope.Resolve(t.Name)
		if target == nil {
			m.diags.Errorf(t.Span.Diag(), "undefined symbol '%s'", t.Name)
		} else {
			m.symbols[t] = target
			m.types[t] = target.Type
		}
	case *ast.FieldAccessExpr:
		if _, ok := t.Object.(*ast.SelfExpr); ok && m.self != nil {
			target = m.fieldSyms[m.self][t.Field]
			if target != nil {
				m.symbols[t] = target
				m.types[t] = target.Type
			}
		}
		if target == nil {
			m.expr(t, nil)
		}
	default:
		m.expr(s.Target, nil)
	}
	var expected *Type
	if target != nil {
		expected = target.Type
		if target.Final && target.Kind == SymVariable {
			m.diags.Errorf(s.Target.Range().Diag(), "cannot assign to final variable '%s'", target.Name)
		}
	}
	actual := m.expr(s.Value, expected)
	if target != nil {
		m.checkAssignable(target.Type, actual, s.Value)
		m.addRef(target, Reference{Span: s.Target.Range(), Node: s, Kind: RefAssign, Value: s.Value})
	}
}

func (m *Model) checkForeach(s *ast.ForeachStmt) {
	iter := m.expr(s.Iterable, nil)
	var elem *Type
	if s.VarType != nil && !s.VarType.IsVar() {
		elem = m.resolve(s.VarType)
	} else if iter != nil && (iter.Kind == KindArray || iter.Kind == KindMap) && iter.Elem != nil {
		elem = iter.Elem
	} else {
		elem = TypeAnydata
	}
	prev := m.scope
	m.scope = NewScope(prev)
	sym := &Symbol{Name: s.Variable, Kind: SymVariable, Type: elem, Decl: s}
	m.symbols[s] = sym
	m.define(s.Variable, sym, s.Span)
	m.addRef(sym, Reference{Span: s.Span, Node: s, Kind: RefDecl})
	m.walkBlock(s.Body)
	m.scope = prev
	m.walkOnFail(s.OnFail)
}

func (m *Model) checkMatch(s *ast.MatchStmt) {
	subject := m.expr(s.Subject, nil)
	for _, c := range s.Clauses {
		prev := m.scope
		m.scope = NewScope(prev)
		for _, p := range c.Patterns {
			if id, ok := p.(*ast.Identifier); ok {
				if name, isVar := strings.CutPrefix(id.Name, "var "); isVar {
					sym := &Symbol{Name: name, Kind: SymVariable, Type: subject, Decl: id}
					m.symbols[id] = sym
					m.define(name, sym, id.Span)
					continue
				}
				if id.Name == "_" {
					continue
				}
			}
			m.expr(p, subject)
		}
		if c.Guard != nil {
			m.expr(c.Guard, TypeBoolean)
		}
		m.walkBlock(c.Body)
		m.scope = prev
	}
	m.walkOnFail(s.OnFail)
}

func (m *Model) walkOnFail(of *ast.OnFailClause) {
	if of == nil {
		return
	}
	prev := m.scope
	m.scope = NewScope(prev)
	if of.ErrName != "" {
		t := TypeError
		if of.ErrType != nil && !of.ErrType.IsVar() {
			t = m.resolve(of.ErrType)
		}
		sym := &Symbol{Name: of.ErrName, Kind: SymVariable, Type: t, Decl: of}
		m.symbols[of] = sym
		m.define(of.ErrName, sym, of.Span)
	}
	m.walkBlock(of.Body)
	m.scope = prev
}

func (m *Model) checkWorker(w *ast.WorkerDecl) {
	ret := TypeNil
	if w.ReturnType != nil {
		ret = m.resolve(w.ReturnType)
	}
	prevReturns := m.returns
	m.returns = ret
	m.walkBlock(w.Body)
	m.returns = prevReturns

	sym := &Symbol{Name: w.Name, Kind: SymWorker, Type: FutureOf(ret), Decl: w}
	m.symbols[w] = sym
	m.define(w.Name, sym, w.Span)
	m.addRef(sym, Reference{Span: w.Span, Node: w, Kind: RefDecl})
}

func (m *Model) define(name string, sym *Symbol, span ast.Span) {
	if err := m.scope.Define(name, sym); err != nil {
		m.diags.Errorf(span.Diag(), "%v", err)
	}
}

func (m *Model) addRef(sym *Symbol, ref Reference) {
	if sym == nil {
		return
	}
	m.refs[sym] = append(m.refs[sym], ref)
}

// checkAssignable reports mismatches between basic scalar types only.
func (m *Model) checkAssignable(declared, actual *Type, value ast.Expression) {
	if declared == nil || actual == nil || !isScalar(declared.Kind) || !isScalar(actual.Kind) {
		return
	}
	if declared.Kind == actual.Kind {
		return
	}
	if isNumeric(declared.Kind) && isNumeric(actual.Kind) {
		if _, lit := ast.Unwrap(value).(*ast.IntLit); lit || declared.Kind != KindInt {
			return
		}
	}
	m.diags.Errorf(value.Range().Diag(), "incompatible types: expected '%s', found '%s'", declared, actual)
}

func isScalar(k Kind) bool {
	switch k {
	case KindBoolean, KindInt, KindFloat, KindDecimal, KindString:
		return true
	}
	return false
}

func isNumeric(k Kind) bool {
	return k == KindInt || k == KindFloat || k == KindDecimal
}

// --- types ---

// resolve resolves a type descriptor written in the checked file.
func (m *Model) resolve(ref *ast.TypeRef) *Type {
	return m.resolveIn(ref, nil, nil)
}

// resolveIn resolves ref in the file (pkg nil) or in a library package.
// subst replaces names, for inferred typedesc parameters.
func (m *Model) resolveIn(ref *ast.TypeRef, pkg *catalog.Package, subst map[string]*Type) *Type {
	if ref == nil {
		return TypeUnknown
	}
	var t *Type
	switch {
	case len(ref.Members) > 0:
		u := &Type{Kind: KindUnion}
		for _, mem := range ref.Members {
			u.Members = append(u.Members, m.resolveIn(mem, pkg, subst))
		}
		t = u
	case ref.Record != nil:
		rec := &RecordInfo{}
		for _, f := range ref.Record.Fields {
			fi := &FieldInfo{Name: f.Name, Type: m.resolveIn(f.Type, pkg, subst), Optional: f.Optional}
			if pkg == nil {
				fi.TypeText = m.text(f.Type.Span)
				if f.Default != nil {
					fi.Default = m.text(f.Default.Range())
				}
			} else {
				fi.TypeText = ast.TypeString(f.Type)
			}
			rec.Fields = append(rec.Fields, fi)
		}
		if ref.Record.Rest != nil {
			rec.Rest = m.resolveIn(ref.Record.Rest, pkg, subst)
			rec.RestText = ast.TypeString(ref.Record.Rest)
		}
		t = &Type{Kind: KindRecord, Record: rec}
	default:
		t = m.resolveName(ref, pkg, subst)
	}

	for i := 0; i < ref.ArrayDims; i++ {
		t = ArrayOf(t)
	}
	if ref.Optional {
		t = &Type{Kind: KindUnion, Members: []*Type{t, TypeNil}}
	}
	return t
}

func (m *Model) resolveName(ref *ast.TypeRef, pkg *catalog.Package, subst map[string]*Type) *Type {
	if ref.Prefix != "" {
		if pkg != nil {
			return &Type{Kind: KindUnknown, Name: ref.Name, Module: ref.Prefix}
		}
		module, ok := m.imports[ref.Prefix]
		if !ok {
			m.diags.Errorf(ref.Span.Diag(), "undefined module '%s'", ref.Prefix)
			return &Type{Kind: KindUnknown, Name: ref.Name}
		}
		return m.libType(module, ref.Name)
	}
	if s, ok := subst[ref.Name]; ok {
		return s
	}
	if kind, ok := builtinKinds[ref.Name]; ok {
		t := &Type{Kind: kind}
		if len(ref.TypeArgs) > 0 && (kind == KindMap || kind == KindFuture || kind == KindTypedesc) {
			t.Elem = m.resolveIn(ref.TypeArgs[0], pkg, subst)
		}
		return t
	}
	if pkg != nil {
		return m.libType(pkg.Module(), ref.Name)
	}
	if obj, ok := m.classes[ref.Name]; ok {
		return objectType(obj)
	}
	if rec, ok := m.records[ref.Name]; ok {
		return &Type{Kind: KindRecord, Name: rec.Name, Module: rec.Module, Record: rec}
	}
	if td, ok := m.aliases[ref.Name]; ok {
		if t, done := m.aliasTypes[ref.Name]; done {
			return t
		}
		m.aliasTypes[ref.Name] = &Type{Kind: KindUnknown, Name: ref.Name}
		t := m.resolve(td.Type)
		m.aliasTypes[ref.Name] = t
		return t
	}
	m.diags.Errorf(ref.Span.Diag(), "undefined type '%s'", ref.Name)
	return &Type{Kind: KindUnknown, Name: ref.Name}
}

// libType converts a catalog class or record into a Type. Results are
// cached so that object identity is stable across lookups.
func (m *Model) libType(module, name string) *Type {
	key := module + ":" + name
	if t, ok := m.libTypes[key]; ok {
		return t
	}
	pkg := m.loadPackage(module, ast.Span{})
	if pkg == nil {
		t := &Type{Kind: KindUnknown, Name: name, Module: module}
		m.libTypes[key] = t
		return t
	}
	if c, ok := pkg.Class(name); ok {
		obj := &ObjectInfo{Name: c.Name, Module: module, Doc: c.Doc, Client: c.Client, Markers: make(map[string]bool)}
		t := objectType(obj)
		m.libTypes[key] = t
		for _, mk := range c.Markers {
			obj.Markers[mk] = true
		}
		for _, f := range c.Fields {
			obj.Fields = append(obj.Fields, m.libField(pkg, f))
		}
		if c.Init != nil {
			obj.Init = m.libFunction(pkg, c.Init, obj)
		}
		for _, fn := range c.Methods {
			obj.Methods = append(obj.Methods, m.libFunction(pkg, fn, obj))
		}
		return t
	}
	if r, ok := pkg.Record(name); ok {
		rec := &RecordInfo{Name: r.Name, Module: module, Doc: r.Doc}
		t := &Type{Kind: KindRecord, Name: r.Name, Module: module, Record: rec}
		m.libTypes[key] = t
		for _, f := range r.Fields {
			rec.Fields = append(rec.Fields, m.libField(pkg, f))
		}
		if r.Rest != "" {
			rec.Rest = m.libTypeText(pkg, r.Rest, nil)
			rec.RestText = r.Rest
		}
		return t
	}
	t := &Type{Kind: KindUnknown, Name: name, Module: module}
	if strings.HasSuffix(name, "Error") {
		t.Kind = KindError
	}
	m.libTypes[key] = t
	return t
}

func (m *Model) libField(pkg *catalog.Package, f *catalog.Field) *FieldInfo {
	return &FieldInfo{
		Name:     f.Name,
		Type:     m.libTypeText(pkg, f.Type, nil),
		TypeText: f.Type,
		Default:  f.Default,
		Optional: f.Optional,
		Doc:      f.Doc,
	}
}

func (m *Model) libTypeText(pkg *catalog.Package, text string, subst map[string]*Type) *Type {
	ref, err := parser.ParseType(text)
	if err != nil {
		return &Type{Kind: KindUnknown, Name: text, Module: pkg.Module()}
	}
	return m.resolveIn(ref, pkg, subst)
}

func (m *Model) libFunction(pkg *catalog.Package, f *catalog.Function, owner *ObjectInfo) *Function {
	if fn, ok := m.libFuncs[f]; ok {
		return fn
	}
	fn := &Function{
		Name:       f.Name,
		Module:     pkg.Module(),
		Owner:      owner,
		Accessor:   f.Accessor,
		Path:       f.Path,
		Doc:        f.Doc,
		ReturnText: f.Returns,
		Public:     true,
	}
	m.libFuncs[f] = fn
	switch f.Kind {
	case catalog.KindRemote:
		fn.Kind = FuncRemote
	case catalog.KindResource:
		fn.Kind = FuncResource
	case catalog.KindMethod:
		fn.Kind = FuncMethod
	default:
		fn.Kind = FuncFunction
	}
	for _, p := range f.Params {
		fn.Params = append(fn.Params, &Param{
			Name:     p.Name,
			Kind:     ParamKind(p.Kind),
			Type:     m.libTypeText(pkg, p.Type, nil),
			TypeText: p.Type,
			Default:  p.Default,
			Doc:      p.Doc,
			Optional: p.Kind != catalog.ParamRequired,
		})
	}
	if f.Returns != "" {
		fn.Returns = m.libTypeText(pkg, f.Returns, nil)
	} else {
		fn.Returns = TypeNil
	}
	return fn
}

// callResult returns the type of a call to fn. Inferred typedesc
// parameters named in the return type take the expected type, or the
// parameter's default constraint.
func (m *Model) callResult(fn *Function, expected *Type) *Type {
	if fn == nil {
		return TypeUnknown
	}
	inf := fn.Inferred()
	if inf == nil || fn.ReturnText == "" || !strings.Contains(fn.ReturnText, inf.Name) {
		return fn.Returns
	}
	target := expected.WithoutErrors()
	if expected == nil {
		target = TypeAnydata
		if inf.Type != nil && inf.Type.Elem != nil {
			target = inf.Type.Elem
		}
	}
	subst := map[string]*Type{inf.Name: target}
	ref, err := parser.ParseType(fn.ReturnText)
	if err != nil {
		return fn.Returns
	}
	if fn.Module != m.opts.Module {
		if pkg := m.loadPackage(fn.Module, ast.Span{}); pkg != nil {
			return m.resolveIn(ref, pkg, subst)
		}
	}
	return m.resolveIn(ref, nil, subst)
}

// --- expressions ---

// expr infers the type of e, records it and returns it. expected is the
// contextual type, used for implicit constructors and inferred typedescs.
func (m *Model) expr(e ast.Expression, expected *Type) *Type {
	if e == nil {
		return TypeUnknown
	}
	t := m.inferExpr(e, expected)
	if t == nil {
		t = TypeUnknown
	}
	m.types[e] = t
	return t
}

func (m *Model) inferExpr(e ast.Expression, expected *Type) *Type {
	switch x := e.(type) {
	case *ast.IntLit:
		return TypeInt
	case *ast.FloatLit:
		return TypeFloat
	case *ast.StringLit:
		return TypeString
	case *ast.BoolLit:
		return TypeBoolean
	case *ast.NilLit:
		return TypeNil
	case *ast.TemplateLit:
		switch x.Tag {
		case "xml":
			return TypeXML
		case "base16", "base64":
			return TypeBytes
		}
		return TypeString
	case *ast.ListLit:
		var elemExpected *Type
		if expected != nil && expected.Kind == KindArray {
			elemExpected = expected.Elem
		}
		var elem *Type
		for _, el := range x.Elements {
			t := m.expr(el, elemExpected)
			if elem == nil {
				elem = t
			}
		}
		if expected != nil && expected.Kind == KindArray {
			return expected
		}
		if elem == nil {
			elem = TypeAnydata
		}
		return ArrayOf(elem)
	case *ast.MappingLit:
		return m.checkMapping(x, expected)
	case *ast.ParenExpr:
		return m.expr(x.Inner, expected)
	case *ast.BinaryExpr:
		left := m.expr(x.Left, nil)
		m.expr(x.Right, left)
		switch x.Op {
		case lexer.EQ, lexer.NEQ, lexer.LT, lexer.GT, lexer.LEQ, lexer.GEQ, lexer.AND, lexer.OR:
			return TypeBoolean
		}
		return left
	case *ast.UnaryExpr:
		t := m.expr(x.Operand, nil)
		if x.Op == lexer.NOT {
			return TypeBoolean
		}
		return t
	case *ast.TypeCastExpr:
		t := m.resolve(x.Type)
		m.expr(x.Value, t)
		return t
	case *ast.CheckExpr:
		return m.expr(x.Expr, expected).WithoutErrors()
	case *ast.Identifier:
		return m.checkIdentifier(x)
	case *ast.QualifiedIdent:
		sym := m.qualifiedSymbol(x)
		if sym == nil {
			return TypeUnknown
		}
		m.symbols[x] = sym
		m.addRef(sym, Reference{Span: x.Span, Node: x, Kind: RefRead})
		return sym.Type
	case *ast.SelfExpr:
		if m.self == nil {
			m.diags.Errorf(x.Span.Diag(), "'self' used outside of an object")
			return TypeUnknown
		}
		return objectType(m.self)
	case *ast.FieldAccessExpr:
		return m.checkFieldAccess(x)
	case *ast.IndexExpr:
		t := m.expr(x.Object, nil)
		m.expr(x.Index, nil)
		if t != nil && (t.Kind == KindArray || t.Kind == KindMap) && t.Elem != nil {
			return t.Elem
		}
		return TypeAnydata
	case *ast.CallExpr:
		return m.checkCall(x, expected)
	case *ast.MethodCallExpr:
		return m.checkMemberCall(x, x.Object, x.Method, FuncMethod, x.Args, expected)
	case *ast.RemoteCallExpr:
		return m.checkMemberCall(x, x.Object, x.Method, FuncRemote, x.Args, expected)
	case *ast.ResourceCallExpr:
		return m.checkResourceCall(x, expected)
	case *ast.NewExpr:
		return m.checkNew(x, expected)
	case *ast.StartExpr:
		return FutureOf(m.expr(x.Call, nil))
	case *ast.WaitExpr:
		if x.Future != nil {
			return m.futureResult(m.expr(x.Future, nil))
		}
		rec := &RecordInfo{}
		for _, f := range x.Fields {
			ft := m.futureResult(m.expr(f.Future, nil))
			rec.Fields = append(rec.Fields, &FieldInfo{Name: f.Key, Type: ft, TypeText: ft.String()})
		}
		return &Type{Kind: KindRecord, Record: rec}
	case *ast.AlternateWait:
		left := m.expr(x.Left, nil)
		m.expr(x.Right, nil)
		return left
	case *ast.InferredDefault:
		return expected
	}
	return TypeUnknown
}

func (m *Model) futureResult(t *Type) *Type {
	if t != nil && t.Kind == KindFuture && t.Elem != nil {
		return t.Elem
	}
	return t
}

func (m *Model) checkMapping(x *ast.MappingLit, expected *Type) *Type {
	rec := expected.RecordType()
	for _, f := range x.Fields {
		var ft *Type
		if rec != nil {
			if fi := rec.Field(f.Key); fi != nil {
				ft = fi.Type
			} else {
				ft = rec.Rest
			}
		} else if expected != nil && expected.Kind == KindMap {
			ft = expected.Elem
		}
		m.expr(f.Value, ft)
	}
	if expected != nil && expected.Kind != KindUnknown {
		return expected
	}
	return &Type{Kind: KindMap, Elem: TypeAnydata}
}

func (m *Model) checkIdentifier(x *ast.Identifier) *Type {
	sym := m.scope.Resolve(x.Name)
	if sym == nil {
		m.diags.Errorf(x.Span.Diag(), "undefined symbol '%s'", x.Name)
		return TypeUnknown
	}
	m.symbols[x] = sym
	m.addRef(sym, Reference{Span: x.Span, Node: x, Kind: RefRead})
	return sym.Type
}

// qualifiedSymbol resolves `prefix:name` to a library function or class.
func (m *Model) qualifiedSymbol(x *ast.QualifiedIdent) *Symbol {
	module, ok := m.imports[x.Prefix]
	if !ok {
		m.diags.Errorf(x.Span.Diag(), "undefined module '%s'", x.Prefix)
		return nil
	}
	pkg := m.loadPackage(module, ast.Span{})
	if pkg == nil {
		return nil
	}
	if f, ok := pkg.Function(x.Name); ok {
		return m.symbolFor(m.libFunction(pkg, f, nil), SymFunction)
	}
	if _, ok := pkg.Class(x.Name); ok {
		t := m.libType(module, x.Name)
		return &Symbol{Name: x.Name, Kind: SymClass, Type: t, Module: module, Public: true}
	}
	m.diags.Errorf(x.Span.Diag(), "undefined symbol '%s:%s'", x.Prefix, x.Name)
	return nil
}

// symbolFor returns the single symbol standing for fn.
func (m *Model) symbolFor(fn *Function, kind SymbolKind) *Symbol {
	if sym, ok := m.funcSyms[fn]; ok {
		return sym
	}
	sym := &Symbol{Name: fn.Name, Kind: kind, Type: &Type{Kind: KindFunction}, Function: fn, Module: fn.Module, Public: fn.Public}
	m.funcSyms[fn] = sym
	return sym
}

func (m *Model) checkFieldAccess(x *ast.FieldAccessExpr) *Type {
	if _, ok := x.Object.(*ast.SelfExpr); ok && m.self != nil {
		m.expr(x.Object, nil)
		if sym := m.fieldSyms[m.self][x.Field]; sym != nil {
			m.symbols[x] = sym
			m.addRef(sym, Reference{Span: x.Span, Node: x, Kind: RefRead})
			return sym.Type
		}
		m.diags.Errorf(x.Span.Diag(), "undefined field '%s'", x.Field)
		return TypeUnknown
	}
	t := m.expr(x.Object, nil)
	if obj := t.ObjectType(); obj != nil {
		if f := obj.Field(x.Field); f != nil {
			return f.Type
		}
	}
	if rec := t.RecordType(); rec != nil {
		if f := rec.Field(x.Field); f != nil {
			return f.Type
		}
		if rec.Rest != nil {
			return rec.Rest
		}
	}
	if t != nil && t.Kind == KindMap && t.Elem != nil {
		return t.Elem
	}
	if t != nil && t.Kind == KindJSON {
		return TypeJSON
	}
	return TypeUnknown
}

func (m *Model) checkCall(x *ast.CallExpr, expected *Type) *Type {
	var sym *Symbol
	switch f := x.Func.(type) {
	case *ast.Identifier:
		sym = m.scope.Resolve(f.Name)
		if sym == nil {
			m.diags.Errorf(f.Span.Diag(), "undefined function '%s'", f.Name)
		}
	case *ast.QualifiedIdent:
		sym = m.qualifiedSymbol(f)
	}
	if sym == nil || sym.Function == nil {
		if sym != nil {
			m.symbols[x.Func] = sym
			m.types[x.Func] = sym.Type
		}
		m.checkArgs(nil, x.Args)
		return TypeUnknown
	}
	m.symbols[x.Func] = sym
	m.types[x.Func] = sym.Type
	m.symbols[x] = sym
	m.addRef(sym, Reference{Span: x.Func.Range(), Node: x, Kind: RefRead})
	m.checkArgs(sym.Function, x.Args)
	return m.callResult(sym.Function, expected)
}

func (m *Model) checkMemberCall(call ast.Expression, object ast.Expression, name string, kind FunctionKind, args []*ast.Arg, expected *Type) *Type {
	recv := m.expr(object, nil)
	obj := recv.ObjectType()
	if obj == nil {
		m.checkArgs(nil, args)
		return TypeUnknown
	}
	fn := obj.Method(name, kind)
	if fn == nil {
		if kind == FuncRemote {
			m.diags.Errorf(call.Range().Diag(), "undefined remote method '%s' on '%s'", name, recv)
		} else {
			m.diags.Errorf(call.Range().Diag(), "undefined method '%s' on '%s'", name, recv)
		}
		m.checkArgs(nil, args)
		return TypeUnknown
	}
	sym := m.symbolFor(fn, SymMethod)
	m.symbols[call] = sym
	m.addRef(sym, Reference{Span: call.Range(), Node: call, Kind: RefRead})
	m.checkArgs(fn, args)
	return m.callResult(fn, expected)
}

func (m *Model) checkResourceCall(x *ast.ResourceCallExpr, expected *Type) *Type {
	recv := m.expr(x.Object, nil)
	segments := make([]string, len(x.Path))
	for i, seg := range x.Path {
		if seg.Value != nil {
			m.expr(seg.Value, nil)
			continue
		}
		segments[i] = seg.Name
	}
	obj := recv.ObjectType()
	if obj == nil {
		m.checkArgs(nil, x.Args)
		return TypeUnknown
	}
	fn := obj.Resource(x.Accessor, segments)
	if fn == nil {
		m.diags.Errorf(x.Span.Diag(), "no resource method '%s' for path '%s' on '%s'", x.Accessor, m.text(x.PathSpan), recv)
		m.checkArgs(nil, x.Args)
		return TypeUnknown
	}
	sym := m.symbolFor(fn, SymMethod)
	m.symbols[x] = sym
	m.addRef(sym, Reference{Span: x.Span, Node: x, Kind: RefRead})
	m.checkArgs(fn, x.Args)
	return m.callResult(fn, expected)
}

func (m *Model) checkNew(x *ast.NewExpr, expected *Type) *Type {
	t := expected
	if x.Type != nil {
		t = m.resolve(x.Type)
	}
	obj := t.ObjectType()
	if obj == nil {
		if x.Type == nil && expected == nil {
			m.diags.Errorf(x.Span.Diag(), "cannot infer the type of an implicit 'new'")
		}
		m.checkArgs(nil, x.Args)
		if t == nil {
			return TypeUnknown
		}
		return t
	}
	objT := objectType(obj)
	if t.Object != nil {
		objT = t
	}
	sym := &Symbol{Name: obj.Name, Kind: SymConstructor, Type: objT, Function: obj.Init, Module: obj.Module}
	m.symbols[x] = sym
	m.checkArgs(obj.Init, x.Args)
	return objT
}

// checkArgs types each argument against the parameter it binds to.
func (m *Model) checkArgs(fn *Function, args []*ast.Arg) {
	var params []*Param
	if fn != nil {
		params = ExpandParams(fn.Params)
	}
	byName := make(map[string]*Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	next := 0
	for _, a := range args {
		var expected *Type
		switch {
		case a.Name != "":
			if p, ok := byName[a.Name]; ok {
				expected = p.Type
			}
		case !a.Spread:
			for next < len(params) && params[next].Kind != ParamRequired && params[next].Kind != ParamDefaultable && params[next].Kind != ParamRest {
				next++
			}
			if next < len(params) {
				expected = params[next].Type
				if params[next].Kind != ParamRest {
					next++
				}
			}
		}
		m.expr(a.Value, expected)
	}
}
