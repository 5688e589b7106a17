package formula

import "strings"

// Parser limits.
const (
	MaxFormulaLength = 4096
	MaxDepth         = 64
)

// Parser is a recursive descent parser over a token slice.
//
//	expr    → primary ('+' primary)*
//	primary → STRING | NUMBER | COLREF
//	        | FUNC '(' [expr (',' expr)*] ')'
//	        | '(' expr ')'
//
// Function arity is checked while parsing, so a parsed tree never holds a
// call with the wrong number of arguments.
type Parser struct {
	tokens []Token
	pos    int
	depth  int
	end    int // byte offset reported for unexpected end of input
}

// NewParser creates a parser over tokens produced from a formula of length
// inputLen.
func NewParser(tokens []Token, inputLen int) *Parser {
	return &Parser{tokens: tokens, end: inputLen}
}

// Parse parses a full expression and fails on trailing tokens.
func (p *Parser) Parse() (Node, error) {
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, newError(tok.Pos, errUnexpectedToken, tok)
	}
	return node, nil
}

// ---------- Token Helpers ----------

func (p *Parser) peek() (Token, bool) {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos], true
	}
	return Token{Type: EOF, Pos: p.end}, false
}

func (p *Parser) check(t TokenType) bool {
	tok, ok := p.peek()
	return ok && tok.Type == t
}

// expect consumes a token of the given type or fails.
func (p *Parser) expect(t TokenType) (Token, error) {
	tok, ok := p.peek()
	if !ok {
		return Token{}, newError(p.end, errUnexpectedEnd)
	}
	if tok.Type != t {
		return Token{}, newError(tok.Pos, errExpectedToken, t, tok)
	}
	p.pos++
	return tok, nil
}

// ---------- Grammar ----------

func (p *Parser) parseExpr() (Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		tok, _ := p.peek()
		return nil, newError(tok.Pos, errTooDeep, MaxDepth)
	}

	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.check(PLUS) {
		p.pos++
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &Concat{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, newError(p.end, errUnexpectedEnd)
	}

	switch tok.Type {
	case STRING:
		p.pos++
		return &StringLit{Value: tok.Literal}, nil

	case NUMBER:
		p.pos++
		digits := strings.TrimLeft(tok.Literal, "0")
		if digits == "" {
			digits = "0"
		}
		return &NumberLit{Digits: digits}, nil

	case COLREF:
		p.pos++
		return &ColumnRef{Name: tok.Literal}, nil

	case FUNC:
		return p.parseCall(tok)

	case LPAREN:
		p.pos++
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return node, nil
	}

	return nil, newError(tok.Pos, errUnexpectedToken, tok)
}

// parseCall parses NAME '(' [expr (',' expr)*] ')'.
func (p *Parser) parseCall(name Token) (Node, error) {
	fn, ok := LookupFunc(name.Literal)
	if !ok {
		return nil, newError(name.Pos, errUnexpectedToken, name)
	}
	p.pos++

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var args []Node
	if _, more := p.peek(); more && !p.check(RPAREN) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		for p.check(COMMA) {
			p.pos++
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if err := fn.checkArity(name.Pos, len(args)); err != nil {
		return nil, err
	}
	return &Call{Func: fn, Args: args, Pos: name.Pos}, nil
}
