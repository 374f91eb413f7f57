package ast

// Constructors for building trees by hand. Spans are left zero; use At to attach one.

func Num(n float64) *Eval {
	return &Eval{Lit: &Literal{Kind: LitNumber, Number: n}}
}

func Text(s string) *Eval {
	return &Eval{Lit: &Literal{Kind: LitText, Text: s}}
}

func Bool(b bool) *Eval {
	return &Eval{Lit: &Literal{Kind: LitBool, Bool: b}}
}

func Ident(name string) *Identifier {
	return &Identifier{Name: name}
}

func Elem(list string, index Node) *ListElement {
	return &ListElement{List: Ident(list), Index: index}
}

func ListOf(items ...Node) *List {
	return &List{Items: items}
}

func Assign(target, value Node) *Assignment {
	return &Assignment{Target: target, Value: value}
}

func Bin(op Kind, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

func Add(left, right Node) *Binary { return Bin(KindAdd, left, right) }
func Sub(left, right Node) *Binary { return Bin(KindSub, left, right) }
func Mul(left, right Node) *Binary { return Bin(KindMul, left, right) }
func Div(left, right Node) *Binary { return Bin(KindDiv, left, right) }
func Mod(left, right Node) *Binary { return Bin(KindMod, left, right) }
func And(left, right Node) *Binary { return Bin(KindAnd, left, right) }
func Or(left, right Node) *Binary  { return Bin(KindOr, left, right) }

func Neg(operand Node) *Negate {
	return &Negate{Operand: operand}
}

func NotOf(operand Node) *Not {
	return &Not{Operand: operand}
}

func Rel(op RelOp, left, right Node) *Relation {
	return &Relation{Op: op, Left: left, Right: right}
}

func Call(name string, args ...Node) *FunctionCall {
	return &FunctionCall{Callee: Ident(name), Args: args}
}

func Blk(statements ...Node) *Block {
	return &Block{Statements: statements}
}

func Times(count Node, body ...Node) *RepeatTimes {
	return &RepeatTimes{Count: count, Body: Blk(body...)}
}

func Until(cond Node, body ...Node) *RepeatUntil {
	return &RepeatUntil{Cond: cond, Body: Blk(body...)}
}

// IfThen builds an If whose branches are tried in order.
func IfThen(branches ...Branch) *If {
	return &If{Branches: branches}
}

func When(cond Node, body ...Node) Branch {
	return Branch{Cond: cond, Body: Blk(body...)}
}

func Else(body ...Node) Branch {
	return Branch{Body: Blk(body...)}
}

func Each(name string, source Node, body ...Node) *ForEach {
	return &ForEach{Var: Ident(name), Source: source, Body: Blk(body...)}
}

// Ret builds a return; pass nil for a bare return.
func Ret(value Node) *Return {
	return &Return{Value: value}
}

func Proc(name string, params []string, body ...Node) *Procedure {
	p := &Procedure{Name: Ident(name), Body: Blk(body...)}
	for _, param := range params {
		p.Params = append(p.Params, Ident(param))
	}
	return p
}

// At attaches span to n and returns it.
func At[N interface {
	Node
	setSpan(Span)
}](n N, span Span) N {
	n.setSpan(span)
	return n
}

func (b *Base) setSpan(s Span) { b.Loc = s }
