package formula

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Func identifies one of the built-in formula functions. The set is closed:
// adding a function means adding a constant here and a case to every switch
// below.
type Func int

// Built-in functions.
const (
	FuncUpper Func = iota + 1
	FuncLower
	FuncTitle
	FuncTrim
	FuncReplace
	FuncConcat
	FuncLeft
	FuncRight
)

// unbounded marks a function without a maximum argument count.
const unbounded = -1

// Funcs lists every built-in function in documentation order.
var Funcs = []Func{
	FuncUpper, FuncLower, FuncTitle, FuncTrim,
	FuncReplace, FuncConcat, FuncLeft, FuncRight,
}

// LookupFunc returns the function for a case-sensitive name.
func LookupFunc(name string) (Func, bool) {
	switch name {
	case "UPPER":
		return FuncUpper, true
	case "LOWER":
		return FuncLower, true
	case "TITLE":
		return FuncTitle, true
	case "TRIM":
		return FuncTrim, true
	case "REPLACE":
		return FuncReplace, true
	case "CONCAT":
		return FuncConcat, true
	case "LEFT":
		return FuncLeft, true
	case "RIGHT":
		return FuncRight, true
	}
	return 0, false
}

// String returns the function name as written in formulas.
func (f Func) String() string {
	switch f {
	case FuncUpper:
		return "UPPER"
	case FuncLower:
		return "LOWER"
	case FuncTitle:
		return "TITLE"
	case FuncTrim:
		return "TRIM"
	case FuncReplace:
		return "REPLACE"
	case FuncConcat:
		return "CONCAT"
	case FuncLeft:
		return "LEFT"
	case FuncRight:
		return "RIGHT"
	}
	return "FUNC(" + strconv.Itoa(int(f)) + ")"
}

// Arity returns the minimum and maximum argument counts. A max of -1 means
// the function is variadic.
func (f Func) Arity() (minArgs, maxArgs int) {
	switch f {
	case FuncUpper, FuncLower, FuncTitle, FuncTrim:
		return 1, 1
	case FuncReplace:
		return 3, 3
	case FuncConcat:
		return 1, unbounded
	case FuncLeft, FuncRight:
		return 2, 2
	}
	return 0, unbounded
}

// checkArity returns an *Error when n arguments do not fit the function.
func (f Func) checkArity(pos, n int) *Error {
	minArgs, maxArgs := f.Arity()
	if n < minArgs {
		return newError(pos, errTooFewArgs, f, minArgs, n)
	}
	if maxArgs != unbounded && n > maxArgs {
		return newError(pos, errTooManyArgs, f, maxArgs, n)
	}
	return nil
}

// apply runs the function over already-evaluated arguments. Arity has been
// checked at parse time.
func (f Func) apply(pos int, args []string) (string, error) {
	switch f {
	case FuncUpper:
		return Upper(args[0]), nil
	case FuncLower:
		return Lower(args[0]), nil
	case FuncTitle:
		return Title(args[0]), nil
	case FuncTrim:
		return strings.TrimSpace(args[0]), nil
	case FuncReplace:
		return strings.ReplaceAll(args[0], args[1], args[2]), nil
	case FuncConcat:
		return strings.Join(args, ""), nil
	case FuncLeft:
		n, err := f.length(pos, args[1])
		if err != nil {
			return "", err
		}
		return left(args[0], n), nil
	case FuncRight:
		n, err := f.length(pos, args[1])
		if err != nil {
			return "", err
		}
		return right(args[0], n), nil
	}
	return "", newError(pos, "unknown function %s", f)
}

// length parses the N argument of LEFT and RIGHT.
func (f Func) length(pos int, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, newError(pos, errNotInteger, f, s)
	}
	return n, nil
}

// left returns the first n runes of s. A negative n drops the last |n| runes.
func left(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if n < 0 {
		n = count + n
		if n <= 0 {
			return ""
		}
	}
	if n >= count {
		return s
	}
	return string([]rune(s)[:n])
}

// right returns the last n runes of s; n <= 0 yields "".
func right(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}
