package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"pcode/pkg/ast"
)

// Native is a host-provided function. It receives already-evaluated arguments.
// Returning None means the call produced no value.
type Native func(c *CallContext, args []Value) (Value, error)

// Plugin is one set of host functions and host variables merged into a run.
type Plugin struct {
	Name      string
	Functions map[string]Native
	Vars      map[string]Value
}

// Function is a registry entry: a host native or a declared procedure.
type Function struct {
	Name  string
	Arity int // -1 accepts any number of arguments
	Fn    Native
	User  bool
}

// Registry is the single callable namespace of a run.
type Registry struct {
	funcs map[string]*Function
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*Function)}
}

// Install merges plugins in order. Functions go into the registry and host variables
// into global; for each name the last plugin wins. Variables are copied so a run never
// sees what a previous run did to them.
func (r *Registry) Install(global *Frame, plugins ...Plugin) {
	for _, p := range plugins {
		for name, fn := range p.Functions {
			r.Define(name, -1, fn)
		}
		for name, v := range p.Vars {
			global.Vars[name] = v.Clone()
		}
	}
}

// Define binds name to fn, replacing any earlier binding.
func (r *Registry) Define(name string, arity int, fn Native) {
	r.funcs[name] = &Function{Name: name, Arity: arity, Fn: fn}
}

// Declare binds name to a user procedure. Calling it pushes a frame, binds params by
// position, runs body and yields the returned value, if any.
func (r *Registry) Declare(name string, params []string, body *ast.Block) {
	r.funcs[name] = &Function{
		Name:  name,
		Arity: len(params),
		User:  true,
		Fn: func(c *CallContext, args []Value) (Value, error) {
			return c.x.invoke(name, params, body, args, c.site)
		},
	}
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes name with args on behalf of the call site.
func (r *Registry) Call(c *CallContext, name string, args []Value, site ast.Node) (ret Value, err error) {
	fn, ok := r.funcs[name]
	if !ok {
		e := errorAt(site, ErrUnknownFunction, "%s", name)
		e.Hint = closestMatch(name, r.Names())
		return None, e
	}
	if fn.Arity >= 0 && fn.Arity != len(args) {
		return None, errorAt(site, ErrArityMismatch, "%s: expected %d, got %d", name, fn.Arity, len(args))
	}

	if !fn.User {
		depth := c.x.store.Depth()
		defer func() {
			if p := recover(); p != nil {
				c.x.store.Truncate(depth)
				ret, err = None, errorAt(site, ErrHostFunction, "%s: %v", name, p)
			}
		}()
	}

	sub := &CallContext{x: c.x, site: site}
	ret, err = fn.Fn(sub, args)
	if err != nil {
		return None, hostError(err, name, site)
	}
	return ret, nil
}

// hostError wraps a failure from a native. Errors already raised by the evaluator pass through.
func hostError(err error, name string, site ast.Node) error {
	var re *RuntimeError
	if errors.As(err, &re) || errors.Is(err, errStopped) {
		return err
	}
	return &RuntimeError{Err: ErrHostFunction, Msg: fmt.Sprintf("%s: %v", name, err), Span: site.Span(), Cause: err}
}

// CallContext is what a Native sees of the running program.
type CallContext struct {
	x    *execution
	site ast.Node
}

// Context is cancelled when the run is stopped. Natives that block should honour it.
func (c *CallContext) Context() context.Context {
	return c.x.ctx
}

// Span locates the call that invoked the native.
func (c *CallContext) Span() ast.Span {
	if c.site == nil {
		return ast.Span{}
	}
	return c.site.Span()
}

// Output returns the run's console writer.
func (c *CallContext) Output() io.Writer {
	return c.x.out
}

// Display writes text to the console and remembers it as the default prompt.
func (c *CallContext) Display(text string) error {
	c.x.lastDisplay = text
	_, err := io.WriteString(c.x.out, text)
	return err
}

// Prompt shows prompt and reads one line of input. An empty prompt reuses the last display.
func (c *CallContext) Prompt(prompt string) (string, error) {
	if prompt == "" {
		prompt = c.x.lastDisplay
	}
	if prompt != "" && prompt != c.x.lastDisplay {
		if _, err := io.WriteString(c.x.out, prompt+" "); err != nil {
			return "", err
		}
	}
	if c.x.in == nil {
		return "", io.EOF
	}

	// blocks the evaluation goroutine; a stop takes effect at the next statement boundary
	raw, err := c.x.in.ReadString('\n')
	line := strings.TrimRight(raw, "\r\n")
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return line, nil
}

// Errorf reports a failure of kind sentinel located at the call site.
func (c *CallContext) Errorf(sentinel error, format string, args ...any) error {
	return errorAt(c.site, sentinel, format, args...)
}

// Call invokes another registered function by name. When it fails, frames pushed
// by the call are popped before the error reaches the native; the stack at the
// point of failure travels with the error.
func (c *CallContext) Call(name string, args ...Value) (Value, error) {
	depth := c.x.store.Depth()
	ret, err := c.x.funcs.Call(c, name, args, c.site)
	if err != nil && c.x.store.Depth() > depth {
		var re *RuntimeError
		if errors.As(err, &re) && re.stack == nil {
			re.stack = c.x.store.Snapshot()
		}
		c.x.store.Truncate(depth)
	}
	return ret, err
}
