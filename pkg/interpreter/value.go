package interpreter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"pcode/pkg/ast"
)

type ValueKind int

const (
	KindNone ValueKind = iota
	KindNumber
	KindBool
	KindText
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindNone:
		return "nothing"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindText:
		return "text"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value represents a dynamically-typed value in the interpreter.
// The zero Value is "nothing", the result of a call that returns no value.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Str  string
	List *List
}

// List is an ordered, mutable sequence. Values holding the same *List share it.
type List struct {
	Elems []Value
}

// None is the absent value.
var None = Value{}

// NewNumber creates a new numeric Value.
func NewNumber(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// NewBool creates a new boolean Value.
func NewBool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// NewText creates a new text Value.
func NewText(s string) Value {
	return Value{Kind: KindText, Str: s}
}

// NewList creates a new list Value owning elems.
func NewList(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: KindList, List: &List{Elems: elems}}
}

func (v Value) IsNone() bool {
	return v.Kind == KindNone
}

// String renders the value the way DISPLAY prints it.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b, false, map[*List]bool{})
	return b.String()
}

// Inspect renders the value for state inspection; text is quoted.
func (v Value) Inspect() string {
	var b strings.Builder
	v.write(&b, true, map[*List]bool{})
	return b.String()
}

func (v Value) write(b *strings.Builder, quote bool, seen map[*List]bool) {
	switch v.Kind {
	case KindNumber:
		b.WriteString(formatNumber(v.Num))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindText:
		if quote {
			b.WriteString(strconv.Quote(v.Str))
		} else {
			b.WriteString(v.Str)
		}
	case KindList:
		if seen[v.List] {
			b.WriteString("[...]")
			return
		}
		seen[v.List] = true
		b.WriteByte('[')
		for idx, e := range v.List.Elems {
			if idx > 0 {
				b.WriteByte(',')
			}
			e.write(b, quote, seen)
		}
		b.WriteByte(']')
		delete(seen, v.List)
	default:
		b.WriteString("nothing")
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsNumber converts the value to float64 using the host's numeric coercion.
// Values with no numeric reading convert to NaN.
func (v Value) AsNumber() float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindText:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

// Truthy reports whether the value counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case KindText:
		return v.Str != ""
	case KindList:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy; nested lists are copied once each, preserving sharing.
func (v Value) Clone() Value {
	return v.clone(map[*List]*List{})
}

func (v Value) clone(done map[*List]*List) Value {
	if v.Kind != KindList || v.List == nil {
		return v
	}
	if c, ok := done[v.List]; ok {
		return Value{Kind: KindList, List: c}
	}
	c := &List{Elems: make([]Value, len(v.List.Elems))}
	done[v.List] = c
	for idx, e := range v.List.Elems {
		c.Elems[idx] = e.clone(done)
	}
	return Value{Kind: KindList, List: c}
}

// literalValue converts a source literal.
func literalValue(lit *ast.Literal) (Value, error) {
	switch lit.Kind {
	case ast.LitNumber:
		return NewNumber(lit.Number), nil
	case ast.LitBool:
		return NewBool(lit.Bool), nil
	case ast.LitText:
		return NewText(lit.Text), nil
	default:
		return Value{}, fmt.Errorf("unsupported literal kind %d", lit.Kind)
	}
}
