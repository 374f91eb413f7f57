package interpreter

import (
	"bufio"
	"context"
	"errors"
	"io"

	"pcode/pkg/ast"

	"github.com/charmbracelet/log"
)

// completion is the result of executing a statement: either fall through to the
// next statement or unwind to the enclosing call with a returned value.
type completion struct {
	returned bool
	value    Value
}

var fallThrough = completion{}

// errStopped unwinds evaluation after a stop request. It never reaches callers.
var errStopped = errors.New("stopped")

// execution is the state of one run: its frames, its functions and its I/O.
type execution struct {
	ctx    context.Context
	prog   *ast.Program
	store  *Store
	funcs  *Registry
	out    io.Writer
	in     *bufio.Reader
	logger *log.Logger

	maxSteps int // 0 = unlimited
	maxDepth int // 0 = unlimited
	steps    int

	current     ast.Node // innermost statement being executed
	lastDisplay string
	failed      []Frame // stack at the point of failure, when a native popped it

	// pause is called at every statement boundary; the controller suspends there.
	pause func(stmt ast.Node) error
}

// declare adds every procedure of the program to the registry.
func (x *execution) declare() error {
	for _, p := range x.prog.Functions {
		if p == nil {
			return errorAt(nil, ErrInvalidOperation, "missing procedure declaration")
		}
		if p.Name == nil || p.Body == nil {
			return errorAt(p, ErrInvalidOperation, "malformed procedure declaration")
		}
		params := make([]string, len(p.Params))
		for idx, id := range p.Params {
			if id == nil {
				return errorAt(p, ErrInvalidOperation, "malformed parameter list for %s", p.Name.Name)
			}
			params[idx] = id.Name
		}
		x.funcs.Declare(p.Name.Name, params, p.Body)
	}
	return nil
}

// invoke runs a declared procedure in a fresh frame. On error the frame is left in
// place so the failing call remains visible to inspection.
func (x *execution) invoke(name string, params []string, body *ast.Block, args []Value, site ast.Node) (Value, error) {
	if x.maxDepth > 0 && x.store.Depth() > x.maxDepth {
		return None, errorAt(site, ErrCallDepthExceeded, "(%d) calling %s", x.maxDepth, name)
	}

	frame := x.store.Push(name)
	for idx, p := range params {
		frame.Vars[p] = args[idx]
	}

	c, err := x.block(body)
	if err != nil {
		return None, err
	}
	x.store.Pop()

	if c.returned {
		return c.value, nil
	}
	return None, nil
}

// statement executes one statement after passing its boundary.
func (x *execution) statement(stmt ast.Node) (completion, error) {
	prev := x.current
	x.current = stmt
	if err := x.boundary(stmt); err != nil {
		return fallThrough, err
	}
	c, err := x.exec(stmt)
	if err != nil {
		return fallThrough, err
	}
	x.current = prev
	return c, nil
}

// boundary counts the step and lets the controller suspend before stmt runs.
func (x *execution) boundary(stmt ast.Node) error {
	if stmt == nil {
		return errorAt(nil, ErrInvalidOperation, "missing statement")
	}
	x.steps++
	if x.maxSteps > 0 && x.steps > x.maxSteps {
		return errorAt(stmt, ErrMaxStepsExceeded, "(%d)", x.maxSteps)
	}
	x.logger.Debug("exec", "kind", stmt.Kind(), "at", stmt.Span(), "depth", x.store.Depth())
	if x.pause != nil {
		return x.pause(stmt)
	}
	return nil
}

// exec dispatches a statement node. Expression nodes are evaluated for their effects.
func (x *execution) exec(n ast.Node) (completion, error) {
	switch n := n.(type) {
	case *ast.Pass:
		return fallThrough, nil

	case *ast.Assignment:
		return fallThrough, x.assign(n)

	case *ast.Block:
		return x.block(n)

	case *ast.RepeatTimes:
		return x.repeatTimes(n)

	case *ast.RepeatUntil:
		return x.repeatUntil(n)

	case *ast.If:
		return x.ifElse(n)

	case *ast.ForEach:
		return x.forEach(n)

	case *ast.Return:
		if n.Value == nil {
			return completion{returned: true}, nil
		}
		v, err := x.eval(n.Value)
		if err != nil {
			return fallThrough, err
		}
		return completion{returned: true, value: v}, nil

	case *ast.Procedure:
		return fallThrough, errorAt(n, ErrInvalidOperation, "procedure declaration used as a statement")

	case nil:
		return fallThrough, errorAt(nil, ErrInvalidOperation, "missing statement")

	default:
		_, err := x.eval(n)
		return fallThrough, err
	}
}

func (x *execution) block(b *ast.Block) (completion, error) {
	if b == nil {
		return fallThrough, errorAt(x.current, ErrInvalidOperation, "missing block")
	}
	for _, stmt := range b.Statements {
		c, err := x.statement(stmt)
		if err != nil || c.returned {
			return c, err
		}
	}
	return fallThrough, nil
}

func (x *execution) assign(n *ast.Assignment) error {
	t, err := x.target(n.Target)
	if err != nil {
		return err
	}
	v, err := x.eval(n.Value)
	if err != nil {
		return err
	}
	return x.commit(t, v)
}

// target is a resolved assignment destination. The variable itself is only
// created when the value is stored.
type target struct {
	node  ast.Node
	name  string
	elem  bool
	index int // 0-based, valid when elem
}

func (x *execution) target(n ast.Node) (target, error) {
	switch n := n.(type) {
	case *ast.Identifier:
		return target{node: n, name: n.Name}, nil
	case *ast.ListElement:
		if n.List == nil {
			return target{}, errorAt(n, ErrInvalidOperation, "list element without a list")
		}
		idx, err := x.index(n)
		if err != nil {
			return target{}, err
		}
		return target{node: n, name: n.List.Name, elem: true, index: idx}, nil
	default:
		return target{}, errorAt(n, ErrInvalidOperation, "cannot assign to %s", kindOf(n))
	}
}

func (x *execution) commit(t target, v Value) error {
	if !t.elem {
		x.store.ResolveOrCreate(t.name, None).Set(v)
		return nil
	}
	ref := x.store.ResolveOrCreate(t.name, NewList())
	lv := ref.Get()
	if lv.Kind != KindList {
		return errorAt(t.node, ErrNotAList, "%s", t.name)
	}
	return setElement(lv.List, t.index, v, t.node)
}

func (x *execution) repeatTimes(n *ast.RepeatTimes) (completion, error) {
	v, err := x.eval(n.Count)
	if err != nil {
		return fallThrough, err
	}
	count := v.AsNumber()
	if count < 0 {
		return fallThrough, errorAt(n, ErrInvalidRepeatCount, "%s", formatNumber(count))
	}
	for i := 0; float64(i) < count; i++ {
		if x.interrupted() {
			return fallThrough, errStopped
		}
		c, err := x.block(n.Body)
		if err != nil || c.returned {
			return c, err
		}
	}
	return fallThrough, nil
}

func (x *execution) repeatUntil(n *ast.RepeatUntil) (completion, error) {
	for {
		if x.interrupted() {
			return fallThrough, errStopped
		}
		done, err := x.eval(n.Cond)
		if err != nil {
			return fallThrough, err
		}
		if done.Truthy() {
			return fallThrough, nil
		}
		c, err := x.block(n.Body)
		if err != nil || c.returned {
			return c, err
		}
	}
}

func (x *execution) ifElse(n *ast.If) (completion, error) {
	for _, br := range n.Branches {
		if br.Cond != nil {
			v, err := x.eval(br.Cond)
			if err != nil {
				return fallThrough, err
			}
			if !v.Truthy() {
				continue
			}
		}
		return x.block(br.Body)
	}
	return fallThrough, nil
}

func (x *execution) forEach(n *ast.ForEach) (completion, error) {
	if n.Var == nil {
		return fallThrough, errorAt(n, ErrInvalidOperation, "for each without an iteration variable")
	}
	src, err := x.eval(n.Source)
	if err != nil {
		return fallThrough, err
	}
	if src.Kind != KindList {
		return fallThrough, errorAt(n, ErrNotAList, "cannot iterate over %s", src.Kind)
	}
	for _, e := range src.List.Elems {
		if x.interrupted() {
			return fallThrough, errStopped
		}
		x.store.ResolveOrCreate(n.Var.Name, None).Set(e)
		c, err := x.block(n.Body)
		if err != nil || c.returned {
			return c, err
		}
	}
	return fallThrough, nil
}

// interrupted reports whether the run was stopped. Loops check it on every
// iteration since an empty body never reaches a statement boundary.
func (x *execution) interrupted() bool {
	return x.ctx != nil && x.ctx.Err() != nil
}

func kindOf(n ast.Node) string {
	if n == nil {
		return "nothing"
	}
	return n.Kind().String()
}
