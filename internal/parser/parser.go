package parser

import (
	"strings"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/diagnostic"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// New creates a new parser
func New(source string) *Parser {
	all := lexer.New(source).Tokenize()
	p := &Parser{
		comments: make(map[int][]lexer.Token),
		diags:    diagnostic.New(),
		source:   source,
		prefixes: make(map[string]bool),
	}
	var pending []lexer.Token
	for _, tok := range all {
		if tok.Type == lexer.COMMENT {
			pending = append(pending, tok)
			continue
		}
		if tok.Type == lexer.ILLEGAL {
			p.diags.Errorf(tokenSpan(tok).Diag(), "illegal token %q", tok.Literal)
			continue
		}
		if len(pending) > 0 {
			p.comments[len(p.tokens)] = pending
			pending = nil
		}
		p.tokens = append(p.tokens, tok)
	}
	return p
}

// Parse parses a complete source file.
func Parse(source string) (*ast.Program, *diagnostic.Diagnostics) {
	p := New(source)
	prog := p.Parse()
	return prog, p.Diagnostics()
}

// Diagnostics returns the parser's diagnostics
func (p *Parser) Diagnostics() *diagnostic.Diagnostics {
	return p.diags
}

// Parse parses the token stream into a Program AST
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}

	for !p.check(lexer.EOF) {
		prog.Comments = append(prog.Comments, p.takeComments()...)
		p.skipAnnotations()

		if p.check(lexer.IMPORT) {
			imp := p.parseImportDecl()
			prog.Imports = append(prog.Imports, imp)
			continue
		}

		declStart := p.current()
		isPublic, isIsolated, isFinal := false, false, false
		for {
			switch {
			case p.match(lexer.PUBLIC):
				isPublic = true
				continue
			case p.match(lexer.ISOLATED):
				isIsolated = true
				continue
			case p.match(lexer.FINAL):
				isFinal = true
				continue
			case p.checkIdent("listener"), p.checkIdent("configurable"):
				p.advance()
				continue
			}
			break
		}

		startPos := p.pos
		switch p.current().Type {
		case lexer.FUNCTION:
			fn := p.parseFunctionDecl(declStart)
			fn.IsPublic = isPublic
			fn.IsIsolated = isIsolated
			prog.Functions = append(prog.Functions, fn)
		case lexer.CLASS, lexer.CLIENT:
			cls := p.parseClassDecl(declStart)
			cls.IsPublic = isPublic
			prog.Classes = append(prog.Classes, cls)
		case lexer.TYPE:
			td := p.parseTypeDecl(declStart)
			td.IsPublic = isPublic
			prog.Types = append(prog.Types, td)
		case lexer.SERVICE:
			prog.Services = append(prog.Services, p.parseServiceDecl(declStart))
		default:
			if p.checkIdent("const") {
				p.advance()
			}
			v := p.parseVarDecl(declStart, isFinal)
			v.IsPublic = isPublic
			prog.Vars = append(prog.Vars, v)
		}
		if p.pos == startPos {
			p.synchronize()
			if p.pos == startPos {
				p.advance() // ensure forward progress to avoid infinite loop
			}
		}
	}
	prog.Comments = append(prog.Comments, p.takeComments()...)
	prog.Span = ast.Span{Start: 0, End: len(p.source), Line: 1, Column: 1}
	return prog
}

// takeComments converts the comments preceding the current token into
// comment statements, merging runs of adjacent lines.
func (p *Parser) takeComments() []*ast.CommentStmt {
	toks, ok := p.comments[p.pos]
	if !ok {
		return nil
	}
	delete(p.comments, p.pos)

	var out []*ast.CommentStmt
	var cur *ast.CommentStmt
	var lines []string
	lastLine := 0
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(lines, "\n")
			out = append(out, cur)
		}
		cur, lines = nil, nil
	}
	for _, tok := range toks {
		if cur == nil || tok.Line != lastLine+1 {
			flush()
			cur = &ast.CommentStmt{Span: tokenSpan(tok)}
		}
		cur.Span.End = tok.End
		lines = append(lines, commentText(tok.Literal))
		lastLine = tok.Line
	}
	flush()
	return out
}

func commentText(lit string) string {
	text := strings.TrimPrefix(lit, "//")
	return strings.TrimPrefix(text, " ")
}

// skipAnnotations discards `@name [{...}]` annotations.
func (p *Parser) skipAnnotations() {
	for p.check(lexer.AT) {
		p.advance()
		p.identLike()
		if p.match(lexer.COLON) {
			p.identLike()
		}
		if p.check(lexer.LBRACE) {
			p.parseMappingLit()
		}
	}
}

// parseImportDecl parses: import org/module[.sub] [as prefix];
func (p *Parser) parseImportDecl() *ast.ImportDecl {
	tok := p.expect(lexer.IMPORT)
	imp := &ast.ImportDecl{}

	first := p.identLike().Literal
	var segments []string
	if p.match(lexer.SLASH) {
		imp.Org = first
		segments = append(segments, p.identLike().Literal)
	} else {
		segments = append(segments, first)
	}
	for p.match(lexer.DOT) {
		segments = append(segments, p.identLike().Literal)
	}
	imp.Module = strings.Join(segments, ".")
	imp.Prefix = segments[len(segments)-1]
	if p.match(lexer.AS) {
		imp.Prefix = p.identLike().Literal
	}
	p.expect(lexer.SEMICOLON)
	imp.Span = p.from(tok)
	p.prefixes[imp.Prefix] = true
	return imp
}

// parseFunctionDecl parses: function <name>(<params>) [returns <type>] { ... }
func (p *Parser) parseFunctionDecl(start lexer.Token) *ast.FunctionDecl {
	p.expect(lexer.FUNCTION)
	name := p.identLike()
	fn := &ast.FunctionDecl{Name: name.Literal}
	fn.Params = p.parseParamList()
	if p.match(lexer.RETURNS) {
		p.skipAnnotations()
		fn.ReturnType = p.parseTypeRef()
	}
	switch {
	case p.check(lexer.DARROW):
		tok := p.advance()
		fn.Mapping = p.parseExpression()
		p.expect(lexer.SEMICOLON)
		fn.Body = &ast.Block{Span: p.from(tok)}
	case p.check(lexer.ASSIGN):
		tok := p.advance()
		for p.check(lexer.AT) {
			p.advance()
			fn.Annotations = append(fn.Annotations, p.annotationName())
			if p.check(lexer.LBRACE) {
				p.parseMappingLit()
			}
		}
		fn.External = true
		for !p.check(lexer.SEMICOLON) && !p.check(lexer.EOF) {
			p.advance()
		}
		p.expect(lexer.SEMICOLON)
		fn.Body = &ast.Block{Span: p.from(tok)}
	default:
		fn.Body = p.parseBlock()
	}
	fn.Span = p.from(start)
	return fn
}

// annotationName parses `name` or `prefix:name` after an `@`.
func (p *Parser) annotationName() string {
	name := p.identLike().Literal
	if p.match(lexer.COLON) {
		name += ":" + p.identLike().Literal
	}
	return name
}

// parseFunctionBody parses a block or an `= external;` body.
func (p *Parser) parseFunctionBody() *ast.Block {
	if p.check(lexer.ASSIGN) {
		tok := p.advance()
		for !p.check(lexer.SEMICOLON) && !p.check(lexer.EOF) {
			p.advance()
		}
		p.expect(lexer.SEMICOLON)
		return &ast.Block{Span: p.from(tok)}
	}
	return p.parseBlock()
}

// parseTypeDecl parses: type <name> <descriptor>;
func (p *Parser) parseTypeDecl(start lexer.Token) *ast.TypeDecl {
	p.expect(lexer.TYPE)
	name := p.identLike()
	td := &ast.TypeDecl{Name: name.Literal}
	td.Type = p.parseTypeRef()
	p.expect(lexer.SEMICOLON)
	td.Span = p.from(start)
	return td
}

// parseClassDecl parses: [client] class <name> { members }
func (p *Parser) parseClassDecl(start lexer.Token) *ast.ClassDecl {
	cls := &ast.ClassDecl{}
	if p.match(lexer.CLIENT) {
		cls.IsClient = true
	}
	p.expect(lexer.CLASS)
	cls.Name = p.identLike().Literal
	p.expect(lexer.LBRACE)

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		p.takeComments()
		p.skipAnnotations()
		if p.check(lexer.STAR) {
			p.advance()
			cls.Includes = append(cls.Includes, p.parseTypeRef())
			p.expect(lexer.SEMICOLON)
			continue
		}
		startPos := p.pos
		fields, methods, init := p.parseMember()
		cls.Fields = append(cls.Fields, fields...)
		cls.Methods = append(cls.Methods, methods...)
		if init != nil {
			cls.Init = init
		}
		if p.pos == startPos {
			p.synchronize()
			if p.pos == startPos {
				p.advance()
			}
		}
	}
	p.takeComments()
	p.expect(lexer.RBRACE)
	cls.Span = p.from(start)
	return cls
}

// parseServiceDecl parses: service [/base/path] on <listener>[, ...] { members }
func (p *Parser) parseServiceDecl(start lexer.Token) *ast.ServiceDecl {
	p.expect(lexer.SERVICE)
	svc := &ast.ServiceDecl{}

	switch {
	case p.check(lexer.STRING_LIT):
		svc.BasePath = stripQuotes(p.advance().Literal)
	case p.check(lexer.SLASH):
		var sb strings.Builder
		for p.match(lexer.SLASH) {
			sb.WriteString("/")
			if p.check(lexer.ON) {
				break
			}
			sb.WriteString(p.identLike().Literal)
		}
		svc.BasePath = sb.String()
	}

	p.expect(lexer.ON)
	svc.Listeners = append(svc.Listeners, p.parseExpression())
	for p.match(lexer.COMMA) {
		svc.Listeners = append(svc.Listeners, p.parseExpression())
	}

	p.expect(lexer.LBRACE)
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		p.takeComments()
		p.skipAnnotations()
		startPos := p.pos
		fields, methods, init := p.parseMember()
		svc.Fields = append(svc.Fields, fields...)
		svc.Methods = append(svc.Methods, methods...)
		if init != nil {
			svc.Init = init
		}
		if p.pos == startPos {
			p.synchronize()
			if p.pos == startPos {
				p.advance()
			}
		}
	}
	p.takeComments()
	p.expect(lexer.RBRACE)
	svc.Span = p.from(start)
	return svc
}

// parseMember parses one class or service member: a field or a method.
func (p *Parser) parseMember() ([]*ast.FieldDecl, []*ast.MethodDecl, *ast.MethodDecl) {
	start := p.current()
	isPublic, isIsolated, isFinal := false, false, false
	for {
		switch {
		case p.match(lexer.PUBLIC):
			isPublic = true
			continue
		case p.match(lexer.ISOLATED):
			isIsolated = true
			continue
		case p.match(lexer.FINAL):
			isFinal = true
			continue
		case p.checkIdent("private"), p.checkIdent("readonly"):
			p.advance()
			continue
		}
		break
	}

	if !p.check(lexer.FUNCTION) && !p.check(lexer.REMOTE) && !p.check(lexer.RESOURCE) {
		f := p.parseFieldDecl(start)
		f.Public = isPublic
		f.Final = isFinal
		return []*ast.FieldDecl{f}, nil, nil
	}

	m := p.parseMethodDecl(start)
	m.IsPublic = isPublic
	m.IsIsolated = isIsolated
	if m.Kind == ast.PlainMethod && m.Name == "init" {
		return nil, nil, m
	}
	return nil, []*ast.MethodDecl{m}, nil
}

// parseFieldDecl parses: <type> <name>[?] [= <expr>];
func (p *Parser) parseFieldDecl(start lexer.Token) *ast.FieldDecl {
	f := &ast.FieldDecl{}
	f.Type = p.parseTypeRef()
	f.Name = p.identLike().Literal
	if p.match(lexer.QUESTION) {
		f.Optional = true
	}
	if p.match(lexer.ASSIGN) {
		f.Default = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON)
	f.Span = p.from(start)
	return f
}

// parseMethodDecl parses plain, remote and resource member functions.
func (p *Parser) parseMethodDecl(start lexer.Token) *ast.MethodDecl {
	m := &ast.MethodDecl{}
	switch {
	case p.match(lexer.REMOTE):
		m.Kind = ast.RemoteMethod
	case p.match(lexer.RESOURCE):
		m.Kind = ast.ResourceMethod
	}
	p.expect(lexer.FUNCTION)

	if m.Kind == ast.ResourceMethod {
		m.Accessor = p.identLike().Literal
		m.Path = p.parseResourceDeclPath()
		m.Name = m.Accessor
	} else {
		m.Name = p.identLike().Literal
	}

	m.Params = p.parseParamList()
	if p.match(lexer.RETURNS) {
		p.skipAnnotations()
		m.ReturnType = p.parseTypeRef()
	}
	m.Body = p.parseFunctionBody()
	m.Span = p.from(start)
	return m
}

// parseResourceDeclPath parses `users/[string id]/orders` or `.` up to the
// parameter list.
func (p *Parser) parseResourceDeclPath() []*ast.PathSegment {
	var segs []*ast.PathSegment
	if p.match(lexer.DOT) {
		return segs
	}
	for !p.check(lexer.LPAREN) && !p.check(lexer.EOF) {
		tok := p.current()
		seg := &ast.PathSegment{}
		if p.match(lexer.LBRACKET) {
			seg.Type = p.parseTypeRef()
			if p.match(lexer.ELLIPSIS) {
				seg.Rest = true
			}
			seg.Name = p.identLike().Literal
			p.expect(lexer.RBRACKET)
		} else {
			seg.Name = p.identLike().Literal
		}
		seg.Span = p.from(tok)
		segs = append(segs, seg)
		if !p.match(lexer.SLASH) {
			break
		}
	}
	return segs
}

// parseParamList parses: ( [param {, param}] )
func (p *Parser) parseParamList() []*ast.Param {
	p.expect(lexer.LPAREN)
	var params []*ast.Param
	for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
		params = append(params, p.parseParam())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN)
	return params
}

// parseParam parses `T name [= default]`, `T... name` and `*T name`.
func (p *Parser) parseParam() *ast.Param {
	p.skipAnnotations()
	start := p.current()
	param := &ast.Param{}
	if p.match(lexer.STAR) {
		param.Included = true
	}
	param.Type = p.parseTypeRef()
	if p.match(lexer.ELLIPSIS) {
		param.Rest = true
	}
	param.Name = p.identLike().Literal
	if p.match(lexer.ASSIGN) {
		if p.check(lexer.LT) && p.peek().Type == lexer.GT {
			lt := p.advance()
			p.advance()
			param.Default = &ast.InferredDefault{Span: p.from(lt)}
		} else {
			param.Default = p.parseExpression()
		}
	}
	param.Span = p.from(start)
	return param
}
