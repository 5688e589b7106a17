package formula

import "fmt"

// TokenType represents the type of a lexical token in a formula.
//
//nolint:revive // Accept stutter as formula.TokenType reads clearly at call sites
type TokenType int

//nolint:revive // ALL_CAPS names mirror the token kinds users see in error messages
const (
	EOF TokenType = iota

	// Literals
	STRING // "text"
	COLREF // [Column Name]
	FUNC   // UPPER, LOWER, ... (only when followed by '(')
	NUMBER // 123

	// Punctuation
	LPAREN // (
	RPAREN // )
	COMMA  // ,
	PLUS   // +
)

var tokenNames = map[TokenType]string{
	EOF:    "EOF",
	STRING: "STRING",
	COLREF: "COLREF",
	FUNC:   "FUNC",
	NUMBER: "NUMBER",
	LPAREN: "LPAREN",
	RPAREN: "RPAREN",
	COMMA:  "COMMA",
	PLUS:   "PLUS",
}

// String returns the token kind name.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// Token is a single lexical token.
//
// Literal holds the decoded value: the unescaped text of a STRING, the bare
// column name of a COLREF, the function name of a FUNC and the digits of a
// NUMBER.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // 0-based byte offset in the formula
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of expression"
	}
	return fmt.Sprintf("%s ('%s')", t.Type, t.Literal)
}
