package formula

import "fmt"

// Error is returned for any syntax, arity or evaluation problem in a formula.
// Referencing a column that is absent from the row is never an error.
type Error struct {
	Pos     int // 0-based byte offset, -1 when the problem has no single position
	Message string
}

func (e *Error) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("formula error: %s", e.Message)
	}
	return fmt.Sprintf("formula error at position %d: %s", e.Pos, e.Message)
}

func newError(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Common error messages
const (
	errUnexpectedChars    = "unexpected characters '%s'"
	errUnterminatedString = "unterminated string literal"
	errUnterminatedColumn = "unterminated column reference"
	errEmptyColumn        = "empty column reference"
	errUnexpectedToken    = "unexpected token %s"
	errExpectedToken      = "expected %s, got %s"
	errUnexpectedEnd      = "unexpected end of expression"
	errTooFewArgs         = "%s() requires at least %d argument(s), got %d"
	errTooManyArgs        = "%s() accepts at most %d argument(s), got %d"
	errNotInteger         = "%s() length must be an integer, got '%s'"
	errTooLong            = "formula exceeds %d bytes"
	errTooDeep            = "formula nesting exceeds %d levels"
)
