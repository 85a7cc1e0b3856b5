package lexer

import "strings"

// Lexer scans flow source code and produces tokens
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
}

// New creates a new Lexer instance
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// readChar reads the next character and advances the position
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII code for NUL
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar returns the next character without advancing the position
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) peekCharAt(n int) byte {
	if l.readPosition+n >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition+n]
}

func (l *Lexer) newline() {
	l.line++
	l.column = 0
}

// skipWhitespace skips whitespace characters
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		if l.ch == '\n' {
			l.newline()
		}
		l.readChar()
	}
}

// readLineComment reads a // comment up to, not including, the newline.
func (l *Lexer) readLineComment() string {
	position := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return strings.TrimRight(l.input[position:l.position], "\r")
}

// skipMultiLineComment skips a multi-line comment (/* */)
func (l *Lexer) skipMultiLineComment() {
	// Already read '/*', now skip until '*/'
	for {
		if l.ch == 0 {
			break
		}
		if l.ch == '\n' {
			l.newline()
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // consume '*'
			l.readChar() // consume '/'
			break
		}
		l.readChar()
	}
}

// readIdentifier reads an identifier or keyword. A leading quote escapes a
// reserved word ('type is an identifier).
func (l *Lexer) readIdentifier() string {
	position := l.position
	if l.ch == '\'' {
		l.readChar()
	}
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads a numeric literal (integer or float)
func (l *Lexer) readNumber() (string, TokenType) {
	position := l.position
	tokenType := INT_LIT

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		tokenType = FLOAT_LIT
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[position:l.position], tokenType
}

// readString reads a string literal and returns it with its quotes.
func (l *Lexer) readString() (string, bool) {
	position := l.position
	for {
		l.readChar()
		if l.ch == 0 || l.ch == '\n' {
			return "", false
		}
		if l.ch == '\\' {
			l.readChar()
			continue
		}
		if l.ch == '"' {
			break
		}
	}
	return l.input[position : l.position+1], true
}

// readTemplate reads a backtick template and returns it with its backticks.
func (l *Lexer) readTemplate() (string, bool) {
	position := l.position
	for {
		l.readChar()
		if l.ch == 0 {
			return "", false
		}
		if l.ch == '\n' {
			l.newline()
		}
		if l.ch == '`' {
			break
		}
	}
	return l.input[position : l.position+1], true
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	tok := Token{Line: l.line, Column: l.column, Offset: l.position}
	single := func(t TokenType) {
		tok.Type = t
		tok.Literal = string(l.ch)
	}
	double := func(t TokenType) {
		tok.Type = t
		tok.Literal = l.input[l.position : l.position+2]
		l.readChar()
	}

	switch l.ch {
	case '=':
		switch l.peekChar() {
		case '=':
			double(EQ)
		case '>':
			double(DARROW)
		default:
			single(ASSIGN)
		}
	case '!':
		if l.peekChar() == '=' {
			double(NEQ)
		} else {
			single(NOT)
		}
	case '<':
		if l.peekChar() == '=' {
			double(LEQ)
		} else {
			single(LT)
		}
	case '>':
		if l.peekChar() == '=' {
			double(GEQ)
		} else {
			single(GT)
		}
	case '&':
		if l.peekChar() == '&' {
			double(AND)
		} else {
			single(ILLEGAL)
		}
	case '|':
		if l.peekChar() == '|' {
			double(OR)
		} else {
			single(PIPE)
		}
	case '+':
		single(PLUS)
	case '-':
		if l.peekChar() == '>' {
			double(RARROW)
		} else {
			single(MINUS)
		}
	case '*':
		single(STAR)
	case '/':
		switch l.peekChar() {
		case '/':
			tok.Type = COMMENT
			tok.Literal = l.readLineComment()
			tok.End = l.position
			return tok
		case '*':
			l.readChar() // consume '/'
			l.readChar() // consume '*'
			l.skipMultiLineComment()
			return l.NextToken()
		default:
			single(SLASH)
		}
	case '%':
		single(PERCENT)
	case '(':
		single(LPAREN)
	case ')':
		single(RPAREN)
	case '{':
		single(LBRACE)
	case '}':
		single(RBRACE)
	case '[':
		single(LBRACKET)
	case ']':
		single(RBRACKET)
	case ',':
		single(COMMA)
	case ':':
		single(COLON)
	case ';':
		single(SEMICOLON)
	case '@':
		single(AT)
	case '.':
		if l.peekChar() == '.' && l.peekCharAt(1) == '.' {
			tok.Type = ELLIPSIS
			tok.Literal = "..."
			l.readChar()
			l.readChar()
		} else {
			single(DOT)
		}
	case '?':
		single(QUESTION)
	case '"':
		str, ok := l.readString()
		if !ok {
			tok.Type = ILLEGAL
			tok.Literal = "unterminated string"
			tok.End = l.position
			return tok
		}
		tok.Type = STRING_LIT
		tok.Literal = str
	case '`':
		tmpl, ok := l.readTemplate()
		if !ok {
			tok.Type = ILLEGAL
			tok.Literal = "unterminated template"
			tok.End = l.position
			return tok
		}
		tok.Type = TEMPLATE
		tok.Literal = tmpl
	case 0:
		tok.Type = EOF
		tok.End = l.position
		return tok
	default:
		if isLetter(l.ch) || (l.ch == '\'' && isLetter(l.peekChar())) {
			ident := l.readIdentifier()
			tok.Type = IDENT
			if !strings.HasPrefix(ident, "'") {
				tok.Type = LookupIdent(ident)
			}
			tok.Literal = ident
			tok.End = l.position
			return tok
		} else if isDigit(l.ch) {
			literal, tokenType := l.readNumber()
			tok.Type = tokenType
			tok.Literal = literal
			tok.End = l.position
			return tok
		}
		single(ILLEGAL)
	}

	l.readChar()
	tok.End = l.position
	return tok
}

// Tokenize returns all tokens from the input, comments included.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens
}

// Helper functions

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
