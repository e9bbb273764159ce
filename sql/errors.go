package sql

import (
	"errors"
	"fmt"
)

// ErrArity matches parse errors raised when an INSERT column list and its
// VALUES list differ in length.
var ErrArity = errors.New("column count does not match value count")

type ParseErrorKind int

const (
	SyntaxError ParseErrorKind = iota
	ArityError
)

// ParseError reports a statement the parser could not accept.
type ParseError struct {
	Kind     ParseErrorKind
	Token    string   // offending token text, empty at end of input
	Pos      Position // where the offending token starts
	Expected string   // what the grammar allowed at Pos
	Message  string   // overrides the unexpected/expected wording when set
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	token := e.Token
	if token == "" {
		token = "end of input"
	}
	return fmt.Sprintf("parse error at line %d, column %d: unexpected %s, expected %s",
		e.Pos.Line, e.Pos.Column, token, e.Expected)
}

func (e *ParseError) Is(target error) bool {
	return e.Kind == ArityError && target == ErrArity
}

func unexpected(token Token, expected string) *ParseError {
	err := &ParseError{Pos: token.Pos, Expected: expected}
	if token.Type != EOF {
		err.Token = token.describe()
	}
	if token.Type == Unknown && len(token.Value) > 0 {
		switch token.Value[0] {
		case '\'':
			err.Message = "unterminated string literal"
		}
	}
	return err
}

func failAt(token Token, format string, args ...any) *ParseError {
	return &ParseError{Token: token.describe(), Pos: token.Pos, Message: fmt.Sprintf(format, args...)}
}
