// Package ast defines the tree the interpreter walks. Nodes are produced by an external
// parser and are never mutated once built.
package ast

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindPass Kind = iota
	KindAssignment
	KindEval
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindMod
	KindAnd
	KindOr
	KindNegate
	KindNot
	KindRelation
	KindIdentifier
	KindListElement
	KindList
	KindFunctionCall
	KindBlock
	KindRepeatTimes
	KindRepeatUntil
	KindIf
	KindForEach
	KindReturn
	KindProcedure
)

var kindNames = [...]string{
	KindPass:         "pass",
	KindAssignment:   "assignment",
	KindEval:         "eval",
	KindAdd:          "add",
	KindSub:          "sub",
	KindMul:          "mul",
	KindDiv:          "div",
	KindMod:          "mod",
	KindAnd:          "AND",
	KindOr:           "OR",
	KindNegate:       "negate",
	KindNot:          "NOT",
	KindRelation:     "relation",
	KindIdentifier:   "identifier",
	KindListElement:  "listelement",
	KindList:         "list",
	KindFunctionCall: "function_call",
	KindBlock:        "block",
	KindRepeatTimes:  "repeat_times",
	KindRepeatUntil:  "repeat_until",
	KindIf:           "if",
	KindForEach:      "foreach",
	KindReturn:       "return",
	KindProcedure:    "procedure",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind looks a kind up by its name, ignoring case.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), true
		}
	}
	return 0, false
}

// IsBinary reports whether k is one of the two-operand arithmetic or logical kinds.
func (k Kind) IsBinary() bool {
	return k >= KindAdd && k <= KindOr
}

// Node is implemented by every tree node. The set is closed: only types in this
// package embed Base.
type Node interface {
	Kind() Kind
	Span() Span
	node()
}

// Base carries the source location shared by all nodes.
type Base struct {
	Loc Span
}

func (b Base) Span() Span { return b.Loc }
func (Base) node()        {}

type RelOp string

const (
	OpEq RelOp = "=="
	OpNe RelOp = "!="
	OpLt RelOp = "<"
	OpLe RelOp = "<="
	OpGt RelOp = ">"
	OpGe RelOp = ">="
)

// Valid reports whether op is one of the six relational operators.
func (op RelOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitBool
	LitText
)

// Literal is a constant written in the source.
type Literal struct {
	Kind   LiteralKind
	Number float64
	Bool   bool
	Text   string
}

type Pass struct {
	Base
}

// Assignment stores Value into Target, which is an *Identifier or a *ListElement.
type Assignment struct {
	Base
	Target Node
	Value  Node
}

// Eval wraps either a literal (Lit != nil) or a nested expression.
type Eval struct {
	Base
	Lit   *Literal
	Inner Node
}

// Binary covers add, sub, mul, div, mod, AND and OR; Op holds which.
type Binary struct {
	Base
	Op    Kind
	Left  Node
	Right Node
}

type Negate struct {
	Base
	Operand Node
}

type Not struct {
	Base
	Operand Node
}

type Relation struct {
	Base
	Op    RelOp
	Left  Node
	Right Node
}

type Identifier struct {
	Base
	Name string
}

// ListElement addresses List[Index] with a 1-based index.
type ListElement struct {
	Base
	List  *Identifier
	Index Node
}

type List struct {
	Base
	Items []Node
}

type FunctionCall struct {
	Base
	Callee *Identifier
	Args   []Node
}

type Block struct {
	Base
	Statements []Node
}

type RepeatTimes struct {
	Base
	Count Node
	Body  *Block
}

type RepeatUntil struct {
	Base
	Cond Node
	Body *Block
}

// Branch is one arm of an If. A nil Cond is the unconditional else.
type Branch struct {
	Cond Node
	Body *Block
}

type If struct {
	Base
	Branches []Branch
}

type ForEach struct {
	Base
	Var    *Identifier
	Source Node
	Body   *Block
}

// Return carries an optional Value expression.
type Return struct {
	Base
	Value Node
}

// Procedure is a user-defined function declaration.
type Procedure struct {
	Base
	Name   *Identifier
	Params []*Identifier
	Body   *Block
}

func (*Pass) Kind() Kind         { return KindPass }
func (*Assignment) Kind() Kind   { return KindAssignment }
func (*Eval) Kind() Kind         { return KindEval }
func (b *Binary) Kind() Kind     { return b.Op }
func (*Negate) Kind() Kind       { return KindNegate }
func (*Not) Kind() Kind          { return KindNot }
func (*Relation) Kind() Kind     { return KindRelation }
func (*Identifier) Kind() Kind   { return KindIdentifier }
func (*ListElement) Kind() Kind  { return KindListElement }
func (*List) Kind() Kind         { return KindList }
func (*FunctionCall) Kind() Kind { return KindFunctionCall }
func (*Block) Kind() Kind        { return KindBlock }
func (*RepeatTimes) Kind() Kind  { return KindRepeatTimes }
func (*RepeatUntil) Kind() Kind  { return KindRepeatUntil }
func (*If) Kind() Kind           { return KindIf }
func (*ForEach) Kind() Kind      { return KindForEach }
func (*Return) Kind() Kind       { return KindReturn }
func (*Procedure) Kind() Kind    { return KindProcedure }

// Program is the parser's output: top-level statements plus procedure declarations.
type Program struct {
	Statements []Node
	Functions  []*Procedure
}
