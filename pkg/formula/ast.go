package formula

import "strings"

// Node is a formula AST node.
type Node interface {
	node()
	// String renders the node back to formula syntax.
	String() string
}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
}

// NumberLit is a bare integer literal of any length. Digits has no leading
// zeros.
type NumberLit struct {
	Digits string
}

// ColumnRef is a [Column Name] reference.
type ColumnRef struct {
	Name string
}

// Call is a function call with parsed arguments.
type Call struct {
	Func Func
	Args []Node
	Pos  int
}

// Concat is the binary + operator.
type Concat struct {
	Left  Node
	Right Node
}

func (*StringLit) node() {}
func (*NumberLit) node() {}
func (*ColumnRef) node() {}
func (*Call) node()      {}
func (*Concat) node()    {}

func (n *StringLit) String() string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(n.Value)
	return `"` + escaped + `"`
}

func (n *NumberLit) String() string {
	return n.Digits
}

func (n *ColumnRef) String() string {
	return "[" + n.Name + "]"
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Func.String() + "(" + strings.Join(args, ", ") + ")"
}

func (n *Concat) String() string {
	right := n.Right.String()
	if _, ok := n.Right.(*Concat); ok {
		right = "(" + right + ")"
	}
	return n.Left.String() + " + " + right
}
