// Package programfile loads programs stored as YAML tree documents.
//
// A document has two top-level keys, procedures and statements. Every node is a
// mapping with a kind (the node kind name, e.g. assignment or repeat_times) and the
// fields that kind needs:
//
//	statements:
//	  - kind: assignment
//	    target: {kind: identifier, name: x}
//	    value: {kind: eval, number: 1}
//
// A node's location is taken from an explicit span [line, col, endLine, endCol] or,
// failing that, from its position in the document.
package programfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"pcode/pkg/ast"

	"gopkg.in/yaml.v3"
)

// Load reads and converts the program document at path.
func Load(path string) (*ast.Program, error) {
	if path == "" {
		return nil, fmt.Errorf("programfile: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("programfile: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("programfile: %s: %w", abs, err)
	}
	return prog, nil
}

// Parse converts a program document. Malformed documents yield an *ast.ParseError.
func Parse(data []byte) (*ast.Program, error) {
	var raw programDisk
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &ast.Program{}, nil
		}
		return nil, parseError(err)
	}
	return raw.toProgram()
}

type programDisk struct {
	Procedures []*nodeDisk `yaml:"procedures"`
	Statements []*nodeDisk `yaml:"statements"`
}

// nodeDisk is the on-disk form of every node kind.
type nodeDisk struct {
	Kind     string      `yaml:"kind"`
	Span     []int       `yaml:"span"`
	Name     string      `yaml:"name"`
	Op       string      `yaml:"op"`
	Number   *float64    `yaml:"number"`
	Text     *string     `yaml:"text"`
	Bool     *bool       `yaml:"bool"`
	Target   *nodeDisk   `yaml:"target"`
	Value    *nodeDisk   `yaml:"value"`
	Left     *nodeDisk   `yaml:"left"`
	Right    *nodeDisk   `yaml:"right"`
	Operand  *nodeDisk   `yaml:"operand"`
	Index    *nodeDisk   `yaml:"index"`
	Count    *nodeDisk   `yaml:"count"`
	Cond     *nodeDisk   `yaml:"cond"`
	Source   *nodeDisk   `yaml:"source"`
	Items    []*nodeDisk `yaml:"items"`
	Args     []*nodeDisk `yaml:"args"`
	Body     []*nodeDisk `yaml:"body"`
	Params   []string    `yaml:"params"`
	Branches []*nodeDisk `yaml:"branches"`

	line, column int
}

var nodeFields = map[string]bool{
	"kind": true, "span": true, "name": true, "op": true,
	"number": true, "text": true, "bool": true,
	"target": true, "value": true, "left": true, "right": true, "operand": true,
	"index": true, "count": true, "cond": true, "source": true,
	"items": true, "args": true, "body": true, "params": true, "branches": true,
}

// UnmarshalYAML records where the node sits in the document. Nested decoding does
// not inherit the decoder's strictness, so unknown keys are rejected here.
func (n *nodeDisk) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &ast.ParseError{Line: value.Line, Column: value.Column, Msg: "expected a node mapping"}
	}
	for idx := 0; idx+1 < len(value.Content); idx += 2 {
		key := value.Content[idx]
		if !nodeFields[key.Value] {
			return &ast.ParseError{Line: key.Line, Column: key.Column, Msg: fmt.Sprintf("unknown field %q", key.Value)}
		}
	}

	type plain nodeDisk
	if err := value.Decode((*plain)(n)); err != nil {
		return err
	}
	n.line, n.column = value.Line, value.Column
	return nil
}

func (p *programDisk) toProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for _, d := range p.Procedures {
		proc, err := d.toProcedure()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, proc)
	}
	for _, d := range p.Statements {
		stmt, err := d.toNode()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (n *nodeDisk) fail(format string, args ...any) error {
	return &ast.ParseError{Line: n.line, Column: n.column, Msg: fmt.Sprintf(format, args...)}
}

func (n *nodeDisk) span() (ast.Span, error) {
	switch len(n.Span) {
	case 0:
		return ast.NewSpan(n.line, n.column, n.line, n.column), nil
	case 2:
		return ast.NewSpan(n.Span[0], n.Span[1], n.Span[0], n.Span[1]), nil
	case 4:
		return ast.NewSpan(n.Span[0], n.Span[1], n.Span[2], n.Span[3]), nil
	default:
		return ast.Span{}, n.fail("span needs 2 or 4 numbers, got %d", len(n.Span))
	}
}

func (n *nodeDisk) toProcedure() (*ast.Procedure, error) {
	if n == nil {
		return nil, &ast.ParseError{Msg: "empty procedure"}
	}
	if n.Kind != "" {
		k, ok := ast.ParseKind(n.Kind)
		if !ok || k != ast.KindProcedure {
			return nil, n.fail("expected a procedure, got %q", n.Kind)
		}
	}
	node, err := n.convert(ast.KindProcedure)
	if err != nil {
		return nil, err
	}
	return node.(*ast.Procedure), nil
}

func (n *nodeDisk) toNode() (ast.Node, error) {
	if n == nil {
		return nil, &ast.ParseError{Msg: "empty node"}
	}
	k, ok := ast.ParseKind(n.Kind)
	if !ok {
		return nil, n.fail("unknown node kind %q", n.Kind)
	}
	return n.convert(k)
}

// optional converts a child that may be absent.
func (n *nodeDisk) optional(child *nodeDisk) (ast.Node, error) {
	if child == nil {
		return nil, nil
	}
	return child.toNode()
}

// required converts a child that must be present.
func (n *nodeDisk) required(field string, child *nodeDisk) (ast.Node, error) {
	if child == nil {
		return nil, n.fail("%s needs %s", n.Kind, field)
	}
	return child.toNode()
}

func (n *nodeDisk) block(span ast.Span, stmts []*nodeDisk) (*ast.Block, error) {
	b := &ast.Block{Base: ast.Base{Loc: span}}
	for _, d := range stmts {
		stmt, err := d.toNode()
		if err != nil {
			return nil, err
		}
		b.Statements = append(b.Statements, stmt)
	}
	return b, nil
}

func (n *nodeDisk) ident(span ast.Span) (*ast.Identifier, error) {
	if n.Name == "" {
		return nil, n.fail("%s needs a name", n.Kind)
	}
	return &ast.Identifier{Base: ast.Base{Loc: span}, Name: n.Name}, nil
}

func (n *nodeDisk) convert(k ast.Kind) (ast.Node, error) {
	span, err := n.span()
	if err != nil {
		return nil, err
	}
	base := ast.Base{Loc: span}

	switch k {
	case ast.KindPass:
		return &ast.Pass{Base: base}, nil

	case ast.KindAssignment:
		target, err := n.required("a target", n.Target)
		if err != nil {
			return nil, err
		}
		if tk := target.Kind(); tk != ast.KindIdentifier && tk != ast.KindListElement {
			return nil, n.Target.fail("cannot assign to %s", tk)
		}
		value, err := n.required("a value", n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{Base: base, Target: target, Value: value}, nil

	case ast.KindEval:
		return n.eval(base)

	case ast.KindAdd, ast.KindSub, ast.KindMul, ast.KindDiv, ast.KindMod, ast.KindAnd, ast.KindOr:
		left, err := n.required("a left operand", n.Left)
		if err != nil {
			return nil, err
		}
		right, err := n.required("a right operand", n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Base: base, Op: k, Left: left, Right: right}, nil

	case ast.KindNegate, ast.KindNot:
		operand, err := n.required("an operand", n.Operand)
		if err != nil {
			return nil, err
		}
		if k == ast.KindNegate {
			return &ast.Negate{Base: base, Operand: operand}, nil
		}
		return &ast.Not{Base: base, Operand: operand}, nil

	case ast.KindRelation:
		op := ast.RelOp(n.Op)
		if !op.Valid() {
			return nil, n.fail("unknown relation %q", n.Op)
		}
		left, err := n.required("a left operand", n.Left)
		if err != nil {
			return nil, err
		}
		right, err := n.required("a right operand", n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Relation{Base: base, Op: op, Left: left, Right: right}, nil

	case ast.KindIdentifier:
		return n.ident(span)

	case ast.KindListElement:
		list, err := n.ident(span)
		if err != nil {
			return nil, err
		}
		index, err := n.required("an index", n.Index)
		if err != nil {
			return nil, err
		}
		return &ast.ListElement{Base: base, List: list, Index: index}, nil

	case ast.KindList:
		l := &ast.List{Base: base}
		for _, d := range n.Items {
			item, err := d.toNode()
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, item)
		}
		return l, nil

	case ast.KindFunctionCall:
		callee, err := n.ident(span)
		if err != nil {
			return nil, err
		}
		call := &ast.FunctionCall{Base: base, Callee: callee}
		for _, d := range n.Args {
			arg, err := d.toNode()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil

	case ast.KindBlock:
		return n.block(span, n.Body)

	case ast.KindRepeatTimes:
		count, err := n.required("a count", n.Count)
		if err != nil {
			return nil, err
		}
		body, err := n.block(span, n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.RepeatTimes{Base: base, Count: count, Body: body}, nil

	case ast.KindRepeatUntil:
		cond, err := n.required("a condition", n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := n.block(span, n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.RepeatUntil{Base: base, Cond: cond, Body: body}, nil

	case ast.KindIf:
		return n.ifElse(base)

	case ast.KindForEach:
		v, err := n.ident(span)
		if err != nil {
			return nil, err
		}
		source, err := n.required("a source list", n.Source)
		if err != nil {
			return nil, err
		}
		body, err := n.block(span, n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.ForEach{Base: base, Var: v, Source: source, Body: body}, nil

	case ast.KindReturn:
		value, err := n.optional(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Base: base, Value: value}, nil

	case ast.KindProcedure:
		name, err := n.ident(span)
		if err != nil {
			return nil, err
		}
		proc := &ast.Procedure{Base: base, Name: name}
		for _, p := range n.Params {
			proc.Params = append(proc.Params, &ast.Identifier{Base: base, Name: p})
		}
		if proc.Body, err = n.block(span, n.Body); err != nil {
			return nil, err
		}
		return proc, nil

	default:
		return nil, n.fail("unsupported node kind %q", n.Kind)
	}
}

func (n *nodeDisk) eval(base ast.Base) (ast.Node, error) {
	set := 0
	e := &ast.Eval{Base: base}
	if n.Number != nil {
		set++
		e.Lit = &ast.Literal{Kind: ast.LitNumber, Number: *n.Number}
	}
	if n.Text != nil {
		set++
		e.Lit = &ast.Literal{Kind: ast.LitText, Text: *n.Text}
	}
	if n.Bool != nil {
		set++
		e.Lit = &ast.Literal{Kind: ast.LitBool, Bool: *n.Bool}
	}
	if n.Value != nil {
		set++
		inner, err := n.Value.toNode()
		if err != nil {
			return nil, err
		}
		e.Inner = inner
	}
	if set != 1 {
		return nil, n.fail("eval needs exactly one of number, text, bool or value")
	}
	return e, nil
}

func (n *nodeDisk) ifElse(base ast.Base) (ast.Node, error) {
	if len(n.Branches) == 0 {
		return nil, n.fail("if needs at least one branch")
	}
	node := &ast.If{Base: base}
	for idx, d := range n.Branches {
		if d == nil {
			return nil, n.fail("empty branch")
		}
		span, err := d.span()
		if err != nil {
			return nil, err
		}
		cond, err := d.optional(d.Cond)
		if err != nil {
			return nil, err
		}
		if cond == nil && idx != len(n.Branches)-1 {
			return nil, d.fail("else must be the last branch")
		}
		body, err := d.block(span, d.Body)
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, ast.Branch{Cond: cond, Body: body})
	}
	return node, nil
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// parseError turns a decoder failure into an *ast.ParseError.
func parseError(err error) error {
	var pe *ast.ParseError
	if errors.As(err, &pe) {
		return pe
	}
	line := 0
	if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	return &ast.ParseError{Line: line, Msg: err.Error()}
}
