// Package formula implements the manifest formula language: a small string
// expression language used to derive standardized product fields from raw
// vendor CSV columns.
//
// # Syntax
//
//	[Column Name]          column reference; absent columns evaluate to ""
//	"text"                 string literal; \" and \\ are the only escapes
//	42                     integer literal (function arguments such as LEFT(x, 3))
//	UPPER(expr)            function call
//	a + b                  string concatenation, left-associative
//	(expr)                 grouping
//
// Functions: UPPER, LOWER, TITLE, TRIM, REPLACE(s, from, to), CONCAT(a, ...),
// LEFT(s, n), RIGHT(s, n).
//
// # Usage
//
//	v, err := formula.Evaluate(`UPPER([Brand]) + " " + [Model]`, row)
//
// Callers that evaluate one formula against many rows should Compile once
// and reuse the Program; a Program is immutable and safe for concurrent use.
package formula

import "strings"

// Program is a parsed formula ready for evaluation.
type Program struct {
	source string
	root   Node
}

// Compile tokenizes and parses a formula. An empty or whitespace-only formula
// compiles to a Program that always yields "".
func Compile(formula string) (*Program, error) {
	src := strings.TrimSpace(formula)
	if src == "" {
		return &Program{}, nil
	}
	if len(src) > MaxFormulaLength {
		return nil, newError(-1, errTooLong, MaxFormulaLength)
	}

	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return &Program{source: src}, nil
	}

	root, err := NewParser(tokens, len(src)).Parse()
	if err != nil {
		return nil, err
	}
	return &Program{source: src, root: root}, nil
}

// Source returns the trimmed formula text.
func (p *Program) Source() string {
	return p.source
}

// Root returns the parsed tree, or nil for an empty formula.
func (p *Program) Root() Node {
	return p.root
}

// Eval evaluates the program against a row.
func (p *Program) Eval(row map[string]string) (string, error) {
	if p.root == nil {
		return "", nil
	}
	return eval(p.root, row)
}

// Evaluate parses and evaluates a formula against a row. It fails only for
// syntax, arity or argument problems, never for missing columns.
func Evaluate(formula string, row map[string]string) (string, error) {
	prog, err := Compile(formula)
	if err != nil {
		return "", err
	}
	return prog.Eval(row)
}

// Validate checks a formula without evaluating it. It returns nil for a
// valid (or empty) formula, otherwise an *Error describing the problem.
func Validate(formula string) error {
	_, err := Compile(formula)
	return err
}

func eval(n Node, row map[string]string) (string, error) {
	switch n := n.(type) {
	case *StringLit:
		return n.Value, nil
	case *NumberLit:
		return n.Digits, nil
	case *ColumnRef:
		return row[n.Name], nil
	case *Concat:
		l, err := eval(n.Left, row)
		if err != nil {
			return "", err
		}
		r, err := eval(n.Right, row)
		if err != nil {
			return "", err
		}
		return l + r, nil
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			v, err := eval(a, row)
			if err != nil {
				return "", err
			}
			args[i] = v
		}
		return n.Func.apply(n.Pos, args)
	}
	return "", newError(-1, "unknown node type %T", n)
}
