package parser

import (
	"strings"
	"testing"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/lexer"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(src)
	prog := p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("unexpected errors: %s", p.Diagnostics().Format("test.bal"))
	}
	return prog
}

func bodyOf(t *testing.T, src string) []ast.Statement {
	t.Helper()
	prog := parseOK(t, src)
	if len(prog.Functions) == 0 {
		t.Fatal("expected a function")
	}
	return prog.Functions[0].Body.Statements
}

func TestParseImports(t *testing.T) {
	prog := parseOK(t, `import ballerina/http;
import ballerinax/ai.openai as oai;
import ballerina/io;`)

	if len(prog.Imports) != 3 {
		t.Fatalf("expected 3 imports, got %d", len(prog.Imports))
	}
	tests := []struct {
		path, prefix string
	}{
		{"ballerina/http", "http"},
		{"ballerinax/ai.openai", "oai"},
		{"ballerina/io", "io"},
	}
	for i, tt := range tests {
		if got := prog.Imports[i].Path(); got != tt.path {
			t.Errorf("import[%d]: expected path %q, got %q", i, tt.path, got)
		}
		if got := prog.Imports[i].Prefix; got != tt.prefix {
			t.Errorf("import[%d]: expected prefix %q, got %q", i, tt.prefix, got)
		}
	}
}

func TestParseFunctionParams(t *testing.T) {
	prog := parseOK(t, `type Opts record {| int timeout = 10; string... ; |};

function f(int a, string b = "x", *Opts opts, typedesc<anydata> td = <>, int... rest) returns string|error {
}`)

	fn := prog.Functions[0]
	if len(fn.Params) != 5 {
		t.Fatalf("expected 5 params, got %d", len(fn.Params))
	}
	if fn.Params[0].Default != nil || fn.Params[0].Rest || fn.Params[0].Included {
		t.Errorf("expected required param a")
	}
	if _, ok := fn.Params[1].Default.(*ast.StringLit); !ok {
		t.Errorf("expected string default for b, got %T", fn.Params[1].Default)
	}
	if !fn.Params[2].Included || fn.Params[2].Type.Name != "Opts" {
		t.Errorf("expected included record param opts")
	}
	if _, ok := fn.Params[3].Default.(*ast.InferredDefault); !ok {
		t.Errorf("expected inferred default for td, got %T", fn.Params[3].Default)
	}
	if !fn.Params[4].Rest || fn.Params[4].Name != "rest" {
		t.Errorf("expected rest param")
	}
	if got := ast.TypeString(fn.ReturnType); got != "string|error" {
		t.Errorf("expected return type string|error, got %q", got)
	}

	td := prog.Types[0]
	if td.Type.Record == nil || len(td.Type.Record.Fields) != 1 || td.Type.Record.Rest == nil {
		t.Fatalf("expected closed record with one field and a rest descriptor")
	}
}

func TestParseClientClass(t *testing.T) {
	prog := parseOK(t, `import ballerina/ai;

public isolated client class Store {
    *ai:VectorStore;
    private final string url;

    public function init(string url) {
        self.url = url;
    }

    remote function add(string key, json value) returns error? {
    }

    resource function get users/[string id]/orders(int 'limit = 10) returns json {
        return {};
    }
}`)

	if len(prog.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(prog.Classes))
	}
	cls := prog.Classes[0]
	if !cls.IsClient || cls.Name != "Store" {
		t.Errorf("expected client class Store")
	}
	if len(cls.Includes) != 1 || cls.Includes[0].Prefix != "ai" || cls.Includes[0].Name != "VectorStore" {
		t.Errorf("expected *ai:VectorStore inclusion")
	}
	if cls.Init == nil || len(cls.Init.Params) != 1 {
		t.Fatalf("expected init with one param")
	}
	if len(cls.Methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(cls.Methods))
	}
	if cls.Methods[0].Kind != ast.RemoteMethod {
		t.Errorf("expected remote method add")
	}
	res := cls.Methods[1]
	if res.Kind != ast.ResourceMethod || res.Accessor != "get" || len(res.Path) != 3 {
		t.Fatalf("unexpected resource method %+v", res)
	}
	if !res.Path[1].IsParam() || res.Path[1].Name != "id" {
		t.Errorf("expected path param id")
	}
}

func TestParseService(t *testing.T) {
	prog := parseOK(t, `import ballerina/http;

listener http:Listener ep = new (9090);

service /api/v1 on ep {
    resource function post orders(@http:Payload json body) returns json {
        return body;
    }
}`)

	if len(prog.Vars) != 1 || prog.Vars[0].Name != "ep" {
		t.Fatalf("expected module listener ep")
	}
	if len(prog.Services) != 1 {
		t.Fatalf("expected 1 service")
	}
	svc := prog.Services[0]
	if svc.BasePath != "/api/v1" {
		t.Errorf("expected base path /api/v1, got %q", svc.BasePath)
	}
	if len(svc.Methods) != 1 || svc.Methods[0].Accessor != "post" {
		t.Errorf("expected post resource")
	}
}

func TestParseVarDeclDisambiguation(t *testing.T) {
	stmts := bodyOf(t, `import ballerina/http;

function main() returns error? {
    http:Client c = check new ("http://example.com");
    int[] xs = [1, 2];
    map<json> m = {a: 1};
    x = 5;
    foo(1);
    xs[0] = 3;
    var y = c->get("/");
}`)

	kinds := []string{}
	for _, s := range stmts {
		switch s.(type) {
		case *ast.VarDecl:
			kinds = append(kinds, "var")
		case *ast.AssignStmt:
			kinds = append(kinds, "assign")
		case *ast.ExprStmt:
			kinds = append(kinds, "expr")
		default:
			kinds = append(kinds, "other")
		}
	}
	want := "var var var assign expr assign var"
	if got := strings.Join(kinds, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	decl := stmts[0].(*ast.VarDecl)
	check, ok := decl.Value.(*ast.CheckExpr)
	if !ok {
		t.Fatalf("expected check expression, got %T", decl.Value)
	}
	if n, ok := check.Expr.(*ast.NewExpr); !ok || n.Type != nil || len(n.Args) != 1 {
		t.Errorf("expected implicit new with one arg")
	}
}

func TestParseCalls(t *testing.T) {
	stmts := bodyOf(t, `import ballerina/io;

function main() {
    io:println("a", "b");
    f(1, b = "y", 2, ...rest);
    obj.method();
    cl->post("/x", payload);
    cl->/users/[id].put(body = x);
}`)

	call := stmts[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if q, ok := call.Func.(*ast.QualifiedIdent); !ok || q.Prefix != "io" || q.Name != "println" {
		t.Errorf("expected io:println callee")
	}

	fcall := stmts[1].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if len(fcall.Args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(fcall.Args))
	}
	if fcall.Args[1].Name != "b" || !fcall.Args[3].Spread {
		t.Errorf("expected named b and spread rest")
	}

	if _, ok := stmts[2].(*ast.ExprStmt).Expr.(*ast.MethodCallExpr); !ok {
		t.Errorf("expected method call")
	}
	if r, ok := stmts[3].(*ast.ExprStmt).Expr.(*ast.RemoteCallExpr); !ok || r.Method != "post" {
		t.Errorf("expected remote call post")
	}
	res, ok := stmts[4].(*ast.ExprStmt).Expr.(*ast.ResourceCallExpr)
	if !ok {
		t.Fatalf("expected resource call, got %T", stmts[4].(*ast.ExprStmt).Expr)
	}
	if res.Accessor != "put" || len(res.Path) != 2 || res.Path[1].Value == nil {
		t.Errorf("unexpected resource call %+v", res)
	}
}

func TestParseWait(t *testing.T) {
	stmts := bodyOf(t, `function main() {
    int a = wait f1 | f2 | f3;
    record {int x; int y;} r = wait {x: f1, y};
}`)

	w := stmts[0].(*ast.VarDecl).Value.(*ast.WaitExpr)
	outer, ok := w.Future.(*ast.AlternateWait)
	if !ok {
		t.Fatalf("expected alternate wait, got %T", w.Future)
	}
	if _, ok := outer.Left.(*ast.AlternateWait); !ok {
		t.Errorf("expected left-nested chain")
	}

	multi := stmts[1].(*ast.VarDecl).Value.(*ast.WaitExpr)
	if len(multi.Fields) != 2 || multi.Fields[1].Key != "y" {
		t.Errorf("expected two wait fields")
	}
}

func TestParseCompoundStatements(t *testing.T) {
	stmts := bodyOf(t, `function main() {
    if a {
    } else if b {
    } else {
    }
    foreach var item in items {
        continue;
    } on fail error e {
    }
    match v {
        1 | 2 => {}
        var x if x > 3 => {}
        _ => {}
    }
    retry(5) {
    }
    retry transaction {
    }
    fork {
        worker w1 returns int { return 1; }
        worker w2 { }
    }
    lock {
    }
    do {
        fail error("x");
    } on fail var err {
    }
}`)

	if len(stmts) != 8 {
		t.Fatalf("expected 8 statements, got %d", len(stmts))
	}
	ifs := stmts[0].(*ast.IfStmt)
	if _, ok := ifs.Else.(*ast.IfStmt); !ok {
		t.Errorf("expected else-if")
	}
	fe := stmts[1].(*ast.ForeachStmt)
	if fe.OnFail == nil || fe.OnFail.ErrName != "e" {
		t.Errorf("expected on fail clause on foreach")
	}
	m := stmts[2].(*ast.MatchStmt)
	if len(m.Clauses) != 3 || len(m.Clauses[0].Patterns) != 2 || m.Clauses[1].Guard == nil {
		t.Errorf("unexpected match clauses")
	}
	r := stmts[3].(*ast.RetryStmt)
	if len(r.Args) != 1 || r.Transaction {
		t.Errorf("expected retry(5)")
	}
	if !stmts[4].(*ast.RetryStmt).Transaction {
		t.Errorf("expected retry transaction")
	}
	fork := stmts[5].(*ast.ForkStmt)
	if len(fork.Workers) != 2 || fork.Workers[0].Name != "w1" {
		t.Errorf("expected two workers")
	}
	do := stmts[7].(*ast.DoStmt)
	if do.OnFail == nil || do.OnFail.ErrName != "err" {
		t.Errorf("expected do/on fail")
	}
}

func TestParseComments(t *testing.T) {
	stmts := bodyOf(t, `function main() {
    // first line
    // second line
    int x = 1;

    // standalone
    foo();
    // trailing
}`)

	if len(stmts) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(stmts))
	}
	c, ok := stmts[0].(*ast.CommentStmt)
	if !ok {
		t.Fatalf("expected comment, got %T", stmts[0])
	}
	if c.Text != "first line\nsecond line" {
		t.Errorf("unexpected merged comment %q", c.Text)
	}
	if _, ok := stmts[2].(*ast.CommentStmt); !ok {
		t.Errorf("expected standalone comment before foo()")
	}
	if last, ok := stmts[4].(*ast.CommentStmt); !ok || last.Text != "trailing" {
		t.Errorf("expected trailing comment")
	}
}

func TestParseMatchAndForkComments(t *testing.T) {
	stmts := bodyOf(t, `function main(int n) {
    match n {
        // one
        1 => {}
        _ => {}
        // done
    }
    fork {
        // first
        worker a {}
        // last
    }
}`)

	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	m, ok := stmts[0].(*ast.MatchStmt)
	if !ok {
		t.Fatalf("expected match, got %T", stmts[0])
	}
	if len(m.Clauses[0].Comments) != 1 || m.Clauses[0].Comments[0].Text != "one" {
		t.Errorf("expected clause comment 'one', got %v", m.Clauses[0].Comments)
	}
	if len(m.Clauses[1].Comments) != 0 {
		t.Errorf("unexpected comments on second clause")
	}
	if len(m.Trailing) != 1 || m.Trailing[0].Text != "done" {
		t.Errorf("expected trailing comment 'done', got %v", m.Trailing)
	}

	f, ok := stmts[1].(*ast.ForkStmt)
	if !ok {
		t.Fatalf("expected fork, got %T", stmts[1])
	}
	if len(f.Workers) != 1 || len(f.Workers[0].Comments) != 1 || f.Workers[0].Comments[0].Text != "first" {
		t.Errorf("expected worker comment 'first'")
	}
	if len(f.Trailing) != 1 || f.Trailing[0].Text != "last" {
		t.Errorf("expected trailing comment 'last', got %v", f.Trailing)
	}
}

func TestParseSpansRoundTrip(t *testing.T) {
	src := `import ballerina/http;

function main() returns error? {
    http:Client c = check new ("http://x");
    json r = check c->get("/a");
    if r == () {
        return;
    }
}`
	stmts := bodyOf(t, src)
	want := []string{
		`http:Client c = check new ("http://x");`,
		`json r = check c->get("/a");`,
		"if r == () {\n        return;\n    }",
	}
	for i, w := range want {
		if got := stmts[i].Range().Text(src); got != w {
			t.Errorf("stmt[%d]: expected %q, got %q", i, w, got)
		}
	}

	decl := stmts[1].(*ast.VarDecl)
	inner := ast.Unwrap(decl.Value)
	if got := inner.Range().Text(src); got != `c->get("/a")` {
		t.Errorf("expected call text, got %q", got)
	}
}

func TestParseStatements(t *testing.T) {
	block, err := ParseStatements("io:println(1);\nint x = 2;", "io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(block.Statements))
	}
	if got := block.Statements[1].Range().Text("io:println(1);\nint x = 2;"); got != "int x = 2;" {
		t.Errorf("unexpected span text %q", got)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"http:Client", "http:Client"},
		{"string[]|error", "string[]|error"},
		{"map<json>?", "map<json>?"},
		{"(int|string)[]", "(int|string)[]"},
	}
	for _, tt := range tests {
		ty, err := ParseType(tt.src)
		if err != nil {
			t.Fatalf("%s: %v", tt.src, err)
		}
		if got := ast.TypeString(ty); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	p := New(`function main() { int = ; }`)
	p.Parse()
	if !p.Diagnostics().HasErrors() {
		t.Fatal("expected syntax errors")
	}

	if _, err := ParseType("http:"); err == nil {
		t.Error("expected error for incomplete type")
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	stmts := bodyOf(t, `function main() { boolean b = a + b * c > d && e; }`)
	and := stmts[0].(*ast.VarDecl).Value.(*ast.BinaryExpr)
	if and.Op != lexer.AND {
		t.Fatalf("expected && at the root, got %s", and.Op)
	}
	cmp := and.Left.(*ast.BinaryExpr)
	if cmp.Op != lexer.GT {
		t.Errorf("expected > under &&, got %s", cmp.Op)
	}
}

func TestParseFunctionBodies(t *testing.T) {
	prog := parseOK(t, `function toName(int id) returns string => "user-" + id.toString();

function summarize(string text) returns string = @np:NaturalFunction {model: m} external;

function plain() {
}`)

	if len(prog.Functions) != 3 {
		t.Fatalf("expected 3 functions, got %d", len(prog.Functions))
	}
	mapper := prog.Functions[0]
	if mapper.Mapping == nil {
		t.Fatalf("expected expression body on toName")
	}
	if mapper.Body == nil || len(mapper.Body.Statements) != 0 {
		t.Errorf("expected empty block for expression-bodied function")
	}

	natural := prog.Functions[1]
	if !natural.External {
		t.Errorf("expected external body on summarize")
	}
	if len(natural.Annotations) != 1 || natural.Annotations[0] != "np:NaturalFunction" {
		t.Errorf("expected np:NaturalFunction annotation, got %v", natural.Annotations)
	}

	plain := prog.Functions[2]
	if plain.Mapping != nil || plain.External || len(plain.Annotations) != 0 {
		t.Errorf("expected block body on plain")
	}
}
