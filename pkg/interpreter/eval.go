package interpreter

import (
	"math"
	"strings"

	"pcode/pkg/ast"
)

// eval evaluates an expression node.
func (x *execution) eval(n ast.Node) (Value, error) {
	switch n := n.(type) {
	case *ast.Eval:
		if n.Lit != nil {
			v, err := literalValue(n.Lit)
			if err != nil {
				return None, errorAt(n, ErrInvalidOperation, "%v", err)
			}
			return v, nil
		}
		if n.Inner == nil {
			return None, errorAt(n, ErrInvalidOperation, "cannot evaluate an empty expression")
		}
		return x.eval(n.Inner)

	case *ast.Binary:
		// both operands are always evaluated, AND/OR included
		l, err := x.eval(n.Left)
		if err != nil {
			return None, err
		}
		r, err := x.eval(n.Right)
		if err != nil {
			return None, err
		}
		v, ok := evalBinary(n.Op, l, r)
		if !ok {
			return None, errorAt(n, ErrInvalidOperation, "unsupported operator %s", n.Op)
		}
		return v, nil

	case *ast.Negate:
		v, err := x.eval(n.Operand)
		if err != nil {
			return None, err
		}
		return NewNumber(-v.AsNumber()), nil

	case *ast.Not:
		v, err := x.eval(n.Operand)
		if err != nil {
			return None, err
		}
		return NewBool(!v.Truthy()), nil

	case *ast.Relation:
		l, err := x.eval(n.Left)
		if err != nil {
			return None, err
		}
		r, err := x.eval(n.Right)
		if err != nil {
			return None, err
		}
		b, ok := compare(n.Op, l, r)
		if !ok {
			return None, errorAt(n, ErrInvalidOperation, "unsupported relation %q", string(n.Op))
		}
		return NewBool(b), nil

	case *ast.Identifier:
		ref, ok := x.store.Resolve(n.Name)
		if !ok {
			e := errorAt(n, ErrUndefinedVariable, "%s", n.Name)
			e.Hint = closestMatch(n.Name, x.store.Visible())
			return None, e
		}
		return ref.Get(), nil

	case *ast.ListElement:
		if n.List == nil {
			return None, errorAt(n, ErrInvalidOperation, "list element without a list")
		}
		idx, err := x.index(n)
		if err != nil {
			return None, err
		}
		ref, ok := x.store.Resolve(n.List.Name)
		if !ok {
			return None, errorAt(n, ErrUndefinedList, "%s", n.List.Name)
		}
		lv := ref.Get()
		if lv.Kind != KindList {
			return None, errorAt(n, ErrNotAList, "%s", n.List.Name)
		}
		return getElement(lv.List, idx, n)

	case *ast.List:
		elems := make([]Value, 0, len(n.Items))
		for _, item := range n.Items {
			v, err := x.eval(item)
			if err != nil {
				return None, err
			}
			elems = append(elems, v)
		}
		return NewList(elems...), nil

	case *ast.FunctionCall:
		return x.call(n)

	case nil:
		return None, errorAt(x.current, ErrInvalidOperation, "missing expression")

	default:
		return None, errorAt(n, ErrInvalidOperation, "%s is not an expression", n.Kind())
	}
}

// call evaluates the arguments in the caller's frame, left to right, then invokes
// the function through the registry.
func (x *execution) call(n *ast.FunctionCall) (Value, error) {
	if n.Callee == nil {
		return None, errorAt(n, ErrInvalidOperation, "call without a procedure name")
	}
	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := x.eval(a)
		if err != nil {
			return None, err
		}
		args = append(args, v)
	}
	return x.funcs.Call(&CallContext{x: x, site: n}, n.Callee.Name, args, n)
}

// index evaluates a list element's index and translates it from 1-based to 0-based.
// This is the only place the translation happens.
func (x *execution) index(n *ast.ListElement) (int, error) {
	v, err := x.eval(n.Index)
	if err != nil {
		return 0, err
	}
	f := v.AsNumber()
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errorAt(n, ErrIndexOutOfRange, "%s[%s]", n.List.Name, v)
	}
	return int(f) - 1, nil
}

// getElement reads l[idx]; idx must address an existing element.
func getElement(l *List, idx int, n ast.Node) (Value, error) {
	if idx < 0 || idx >= len(l.Elems) {
		return None, errorAt(n, ErrIndexOutOfRange, "%d (length %d)", idx+1, len(l.Elems))
	}
	return l.Elems[idx], nil
}

// setElement writes l[idx]. Writing one past the end appends.
func setElement(l *List, idx int, v Value, n ast.Node) error {
	switch {
	case idx >= 0 && idx < len(l.Elems):
		l.Elems[idx] = v
	case idx == len(l.Elems):
		l.Elems = append(l.Elems, v)
	default:
		return errorAt(n, ErrIndexOutOfRange, "%d (length %d)", idx+1, len(l.Elems))
	}
	return nil
}

// evalBinary applies an arithmetic or logical operator. Arithmetic is float64 with the
// host's behaviour for division by zero.
func evalBinary(op ast.Kind, a, b Value) (Value, bool) {
	switch op {
	case ast.KindAdd:
		if a.Kind == KindText || b.Kind == KindText {
			return NewText(a.String() + b.String()), true
		}
		return NewNumber(a.AsNumber() + b.AsNumber()), true
	case ast.KindSub:
		return NewNumber(a.AsNumber() - b.AsNumber()), true
	case ast.KindMul:
		return NewNumber(a.AsNumber() * b.AsNumber()), true
	case ast.KindDiv:
		return NewNumber(a.AsNumber() / b.AsNumber()), true
	case ast.KindMod:
		return NewNumber(math.Mod(a.AsNumber(), b.AsNumber())), true
	case ast.KindAnd:
		return NewBool(a.Truthy() && b.Truthy()), true
	case ast.KindOr:
		return NewBool(a.Truthy() || b.Truthy()), true
	default:
		return None, false
	}
}

// compare applies a relational operator to the primitive representation of a and b.
// Two texts compare lexically; lists compare by identity; anything else numerically.
func compare(op ast.RelOp, a, b Value) (bool, bool) {
	if !op.Valid() {
		return false, false
	}

	switch {
	case a.Kind == KindList || b.Kind == KindList,
		a.Kind == KindNone || b.Kind == KindNone:
		same := a.Kind == b.Kind && a.List == b.List
		switch op {
		case ast.OpEq:
			return same, true
		case ast.OpNe:
			return !same, true
		}
		return false, true

	case a.Kind == KindText && b.Kind == KindText:
		return ordered(op, strings.Compare(a.Str, b.Str)), true
	}

	af, bf := a.AsNumber(), b.AsNumber()
	switch op {
	case ast.OpEq:
		return af == bf, true
	case ast.OpNe:
		return af != bf, true
	case ast.OpLt:
		return af < bf, true
	case ast.OpLe:
		return af <= bf, true
	case ast.OpGt:
		return af > bf, true
	default:
		return af >= bf, true
	}
}

func ordered(op ast.RelOp, c int) bool {
	switch op {
	case ast.OpEq:
		return c == 0
	case ast.OpNe:
		return c != 0
	case ast.OpLt:
		return c < 0
	case ast.OpLe:
		return c <= 0
	case ast.OpGt:
		return c > 0
	default:
		return c >= 0
	}
}
