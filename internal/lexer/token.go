package lexer

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF
	COMMENT // // line comment, literal holds the text after the slashes

	// Literals
	IDENT      // x, y, myVariable
	INT_LIT    // 123
	FLOAT_LIT  // 123.45
	STRING_LIT // "hello"
	TEMPLATE   // `raw template body`

	// Keywords
	IMPORT
	AS
	PUBLIC
	ISOLATED
	FINAL
	FUNCTION
	RETURNS
	RETURN
	CLASS
	CLIENT
	REMOTE
	RESOURCE
	SERVICE
	ON
	TYPE
	RECORD
	VAR
	NEW
	CHECK
	CHECKPANIC
	IF
	ELSE
	WHILE
	FOREACH
	IN
	BREAK
	CONTINUE
	MATCH
	DO
	FAIL
	PANIC
	FORK
	WORKER
	TRANSACTION
	RETRY
	LOCK
	WAIT
	START
	SELF
	TRUE
	FALSE

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	EQ       // ==
	NEQ      // !=
	LT       // <
	GT       // >
	LEQ      // <=
	GEQ      // >=
	ASSIGN   // =
	AND      // &&
	OR       // ||
	NOT      // !
	PIPE     // |
	RARROW   // ->
	DARROW   // =>
	ELLIPSIS // ...
	QUESTION // ?

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	COMMA     // ,
	COLON     // :
	SEMICOLON // ;
	DOT       // .
	AT        // @
)

// Token represents a lexical token. Offset and End are byte offsets into
// the source; End is exclusive.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
	Offset  int
	End     int
}

var tokenNames = map[TokenType]string{
	ILLEGAL:     "ILLEGAL",
	EOF:         "EOF",
	COMMENT:     "COMMENT",
	IDENT:       "IDENT",
	INT_LIT:     "INT_LIT",
	FLOAT_LIT:   "FLOAT_LIT",
	STRING_LIT:  "STRING_LIT",
	TEMPLATE:    "TEMPLATE",
	IMPORT:      "IMPORT",
	AS:          "AS",
	PUBLIC:      "PUBLIC",
	ISOLATED:    "ISOLATED",
	FINAL:       "FINAL",
	FUNCTION:    "FUNCTION",
	RETURNS:     "RETURNS",
	RETURN:      "RETURN",
	CLASS:       "CLASS",
	CLIENT:      "CLIENT",
	REMOTE:      "REMOTE",
	RESOURCE:    "RESOURCE",
	SERVICE:     "SERVICE",
	ON:          "ON",
	TYPE:        "TYPE",
	RECORD:      "RECORD",
	VAR:         "VAR",
	NEW:         "NEW",
	CHECK:       "CHECK",
	CHECKPANIC:  "CHECKPANIC",
	IF:          "IF",
	ELSE:        "ELSE",
	WHILE:       "WHILE",
	FOREACH:     "FOREACH",
	IN:          "IN",
	BREAK:       "BREAK",
	CONTINUE:    "CONTINUE",
	MATCH:       "MATCH",
	DO:          "DO",
	FAIL:        "FAIL",
	PANIC:       "PANIC",
	FORK:        "FORK",
	WORKER:      "WORKER",
	TRANSACTION: "TRANSACTION",
	RETRY:       "RETRY",
	LOCK:        "LOCK",
	WAIT:        "WAIT",
	START:       "START",
	SELF:        "SELF",
	TRUE:        "TRUE",
	FALSE:       "FALSE",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	PERCENT:     "PERCENT",
	EQ:          "EQ",
	NEQ:         "NEQ",
	LT:          "LT",
	GT:          "GT",
	LEQ:         "LEQ",
	GEQ:         "GEQ",
	ASSIGN:      "ASSIGN",
	AND:         "AND",
	OR:          "OR",
	NOT:         "NOT",
	PIPE:        "PIPE",
	RARROW:      "RARROW",
	DARROW:      "DARROW",
	ELLIPSIS:    "ELLIPSIS",
	QUESTION:    "QUESTION",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	LBRACKET:    "LBRACKET",
	RBRACKET:    "RBRACKET",
	COMMA:       "COMMA",
	COLON:       "COLON",
	SEMICOLON:   "SEMICOLON",
	DOT:         "DOT",
	AT:          "AT",
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// keywords maps keyword strings to their token types
var keywords = map[string]TokenType{
	"import":      IMPORT,
	"as":          AS,
	"public":      PUBLIC,
	"isolated":    ISOLATED,
	"final":       FINAL,
	"function":    FUNCTION,
	"returns":     RETURNS,
	"return":      RETURN,
	"class":       CLASS,
	"client":      CLIENT,
	"remote":      REMOTE,
	"resource":    RESOURCE,
	"service":     SERVICE,
	"on":          ON,
	"type":        TYPE,
	"record":      RECORD,
	"var":         VAR,
	"new":         NEW,
	"check":       CHECK,
	"checkpanic":  CHECKPANIC,
	"if":          IF,
	"else":        ELSE,
	"while":       WHILE,
	"foreach":     FOREACH,
	"in":          IN,
	"break":       BREAK,
	"continue":    CONTINUE,
	"match":       MATCH,
	"do":          DO,
	"fail":        FAIL,
	"panic":       PANIC,
	"fork":        FORK,
	"worker":      WORKER,
	"transaction": TRANSACTION,
	"retry":       RETRY,
	"lock":        LOCK,
	"wait":        WAIT,
	"start":       START,
	"self":        SELF,
	"true":        TRUE,
	"false":       FALSE,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether t is a reserved word. Keywords may still appear
// as method names and mapping keys.
func (t TokenType) IsKeyword() bool {
	return t >= IMPORT && t <= FALSE
}
