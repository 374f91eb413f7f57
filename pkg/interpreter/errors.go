package interpreter

import (
	"errors"
	"fmt"

	"pcode/pkg/ast"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	ErrUndefinedVariable  = errors.New("no such variable")
	ErrUndefinedList      = errors.New("no such list")
	ErrNotAList           = errors.New("not a list")
	ErrIndexOutOfRange    = errors.New("list index out of range")
	ErrUnknownFunction    = errors.New("no such procedure")
	ErrArityMismatch      = errors.New("number of actual and formal parameters differ in function call")
	ErrInvalidRepeatCount = errors.New("invalid repeat limit")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrHostFunction       = errors.New("host function failed")
	ErrMaxStepsExceeded   = errors.New("maximum steps exceeded")
	ErrCallDepthExceeded  = errors.New("maximum call depth exceeded")

	ErrNotRunning = errors.New("not running")
	ErrNotPaused  = errors.New("state can only be inspected while paused or after the run ends")
)

// RuntimeError is an evaluation failure tied to the node that raised it.
type RuntimeError struct {
	Err   error    // one of the Err* sentinels
	Msg   string   // detail, e.g. the variable name
	Span  ast.Span // location of the offending node
	Hint  string   // closest known name, if any
	Cause error    // error returned by a host function, if any

	stack []Frame // frames at the point of failure, when they were popped since
}

func (e *RuntimeError) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg += " " + e.Msg
	}
	if !e.Span.IsZero() {
		msg += fmt.Sprintf(" at line %d col: %d", e.Span.StartLine, e.Span.StartCol)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf(" (did you mean %s?)", e.Hint)
	}
	return msg
}

func (e *RuntimeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func errorAt(n ast.Node, sentinel error, format string, args ...any) *RuntimeError {
	e := &RuntimeError{Err: sentinel, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Span = n.Span()
	}
	return e
}

// closestMatch picks the best fuzzy candidate for a misspelt name.
func closestMatch(target string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		best := ranks[0]
		for _, r := range ranks[1:] {
			if r.Distance < best.Distance {
				best = r
			}
		}
		return best.Target
	}
	return ""
}
