package formula

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes a formula.
//
// Tokens are recognized in a fixed order: STRING, COLREF, FUNC, NUMBER and
// then punctuation. A bracketed name is therefore always a column reference,
// even when it spells a function name such as [UPPER].
type Lexer struct {
	input string
	pos   int // current byte offset
}

// NewLexer creates a new Lexer for the given formula.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token, or an *Error for input that does not
// form a token.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: EOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == '"':
		return l.readString()
	case ch == '[':
		return l.readColumnRef()
	case isUpper(ch):
		if tok, ok := l.readFunc(); ok {
			return tok, nil
		}
	case isDigit(ch):
		return l.readNumber(), nil
	case ch == '(':
		l.pos++
		return Token{Type: LPAREN, Literal: "(", Pos: start}, nil
	case ch == ')':
		l.pos++
		return Token{Type: RPAREN, Literal: ")", Pos: start}, nil
	case ch == ',':
		l.pos++
		return Token{Type: COMMA, Literal: ",", Pos: start}, nil
	case ch == '+':
		l.pos++
		return Token{Type: PLUS, Literal: "+", Pos: start}, nil
	}

	return Token{}, l.unexpected(start)
}

// skipWhitespace consumes any Unicode whitespace.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// readString reads a double-quoted literal. Only \" and \\ are escapes; any
// other backslash is kept as written.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '"':
			l.pos++
			return Token{Type: STRING, Literal: sb.String(), Pos: start}, nil
		case ch == '\\' && l.pos+1 < len(l.input):
			next := l.input[l.pos+1]
			if next == '"' || next == '\\' {
				sb.WriteByte(next)
			} else {
				sb.WriteByte(ch)
				sb.WriteByte(next)
			}
			l.pos += 2
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}

	return Token{}, newError(start, errUnterminatedString)
}

// readColumnRef reads [Column Name]. The name runs to the first ']' and is
// kept verbatim, spaces included.
func (l *Lexer) readColumnRef() (Token, error) {
	start := l.pos
	end := strings.IndexByte(l.input[start+1:], ']')
	if end < 0 {
		return Token{}, newError(start, errUnterminatedColumn)
	}
	if end == 0 {
		return Token{}, newError(start, errEmptyColumn)
	}
	name := l.input[start+1 : start+1+end]
	l.pos = start + end + 2
	return Token{Type: COLREF, Literal: name, Pos: start}, nil
}

// readFunc reads a function name. It only succeeds when the word is a known
// function and the next non-space character is '('; the '(' is not consumed.
func (l *Lexer) readFunc() (Token, bool) {
	start := l.pos
	end := start
	for end < len(l.input) && isWordChar(l.input[end]) {
		end++
	}
	name := l.input[start:end]
	if _, ok := LookupFunc(name); !ok {
		return Token{}, false
	}

	look := end
	for look < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[look:])
		if !unicode.IsSpace(r) {
			break
		}
		look += size
	}
	if look >= len(l.input) || l.input[look] != '(' {
		return Token{}, false
	}

	l.pos = end
	return Token{Type: FUNC, Literal: name, Pos: start}, true
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: NUMBER, Literal: l.input[start:l.pos], Pos: start}
}

// unexpected builds the error for a run of characters that cannot start a
// token. The run extends to the next whitespace or token boundary so the
// message cites the whole offending word.
func (l *Lexer) unexpected(start int) *Error {
	end := start
	for end < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[end:])
		if unicode.IsSpace(r) || (end > start && startsToken(l.input[end])) {
			break
		}
		end += size
	}
	return newError(start, errUnexpectedChars, l.input[start:end])
}

// startsToken reports whether ch is a punctuation or delimiter character that
// always begins a token.
func startsToken(ch byte) bool {
	switch ch {
	case '"', '[', '(', ')', ',', '+':
		return true
	}
	return false
}

func isUpper(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isWordChar(ch byte) bool {
	return ch == '_' || isDigit(ch) || (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}

// Tokenize returns all tokens of the formula, excluding the trailing EOF.
func Tokenize(formula string) ([]Token, error) {
	l := NewLexer(formula)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}
