package parser

import (
	"fmt"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/diagnostic"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// syncTokens are tokens the parser can synchronize to after an error
var syncTokens = map[lexer.TokenType]bool{
	lexer.FUNCTION:    true,
	lexer.CLASS:       true,
	lexer.SERVICE:     true,
	lexer.TYPE:        true,
	lexer.IMPORT:      true,
	lexer.RETURN:      true,
	lexer.IF:          true,
	lexer.WHILE:       true,
	lexer.FOREACH:     true,
	lexer.MATCH:       true,
	lexer.RBRACE:      true,
	lexer.SEMICOLON:   true,
	lexer.TRANSACTION: true,
	lexer.EOF:         true,
}

// Parser holds the parser state
type Parser struct {
	tokens   []lexer.Token         // significant tokens, comments removed
	comments map[int][]lexer.Token // comments preceding tokens[i]
	pos      int
	diags    *diagnostic.Diagnostics
	source   string
	prefixes map[string]bool // import prefixes seen so far

	speculating int
	failed      bool
}

// current returns the current token
func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

// peek returns the next token without consuming
func (p *Parser) peek() lexer.Token {
	return p.peekN(1)
}

func (p *Parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

// advance moves to the next token and returns the consumed token
func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches the expected type,
// otherwise reports an error
func (p *Parser) expect(tt lexer.TokenType) lexer.Token {
	tok := p.current()
	if tok.Type != tt {
		p.errorf(tok, "expected %s, got %s", tt, tok.Type)
		return tok
	}
	return p.advance()
}

// check returns true if the current token is of the given type
func (p *Parser) check(tt lexer.TokenType) bool {
	return p.current().Type == tt
}

// match consumes the current token if it matches, returns true if consumed
func (p *Parser) match(tt lexer.TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

// checkIdent reports whether the current token is the contextual keyword name.
func (p *Parser) checkIdent(name string) bool {
	tok := p.current()
	return tok.Type == lexer.IDENT && tok.Literal == name
}

// identLike consumes an identifier, accepting reserved words where the
// grammar allows any name (method names, mapping keys, module segments).
func (p *Parser) identLike() lexer.Token {
	tok := p.current()
	if tok.Type == lexer.IDENT || tok.Type.IsKeyword() {
		return p.advance()
	}
	p.errorf(tok, "expected identifier, got %s", tok.Type)
	return tok
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	if p.speculating > 0 {
		p.failed = true
		return
	}
	p.diags.Errorf(tokenSpan(tok).Diag(), format, args...)
}

// speculate runs fn without reporting errors and rewinds unless fn
// succeeds and returns true.
func (p *Parser) speculate(fn func() bool) bool {
	start, failed := p.pos, p.failed
	p.speculating++
	p.failed = false
	ok := fn() && !p.failed
	p.speculating--
	p.failed = failed
	if !ok {
		p.pos = start
	}
	return ok
}

// synchronize skips tokens until a sync point is found.
func (p *Parser) synchronize() {
	for !p.check(lexer.EOF) {
		if p.current().Type == lexer.SEMICOLON {
			p.advance()
			return
		}
		if syncTokens[p.current().Type] {
			return
		}
		p.advance()
	}
}

func tokenSpan(tok lexer.Token) ast.Span {
	return ast.Span{Start: tok.Offset, End: tok.End, Line: tok.Line, Column: tok.Column}
}

// prevEnd is the end offset of the last consumed token.
func (p *Parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].End
}

// from returns the span running from start to the last consumed token.
func (p *Parser) from(start lexer.Token) ast.Span {
	end := p.prevEnd()
	if end < start.Offset {
		end = start.End
	}
	return ast.Span{Start: start.Offset, End: end, Line: start.Line, Column: start.Column}
}

// fromSpan is like from but starts at an existing node span.
func (p *Parser) fromSpan(start ast.Span) ast.Span {
	end := p.prevEnd()
	if end < start.End {
		end = start.End
	}
	return ast.Span{Start: start.Start, End: end, Line: start.Line, Column: start.Column}
}

func join(left, right ast.Span) ast.Span {
	return ast.Span{Start: left.Start, End: right.End, Line: left.Line, Column: left.Column}
}

func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '`') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ParseError reports the first syntax error of a source.
type ParseError struct {
	Diagnostics *diagnostic.Diagnostics
}

func (e *ParseError) Error() string {
	errs := e.Diagnostics.Errors()
	if len(errs) == 0 {
		return "parse failed"
	}
	first := errs[0]
	return fmt.Sprintf("%d:%d: %s", first.Span.Line, first.Span.Column, first.Message)
}
