package ast

import (
	"errors"
	"fmt"
)

// Span locates a node in the source text. Lines and columns are 1-based.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// NewSpan creates a new Span instance
func NewSpan(startLine, startCol, endLine, endCol int) Span {
	return Span{
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   endLine,
		EndCol:    endCol,
	}
}

// IsZero reports whether the span carries no location.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Returns a string representation of the Span
func (s Span) String() string {
	if s.EndLine == 0 || (s.EndLine == s.StartLine && s.EndCol == s.StartCol) {
		return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// ErrParse marks errors forwarded from the parser that produced a Program.
var ErrParse = errors.New("parse error")

// ParseError is the parser's own report, reused verbatim when a program cannot be built.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line: %d column: %d", e.Msg, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}
