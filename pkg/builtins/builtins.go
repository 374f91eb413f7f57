// Package builtins provides the functions every program can call: console I/O,
// random numbers and list manipulation.
package builtins

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"pcode/pkg/interpreter"
)

// ErrCanceled is reported by INPUT when the console has no more input.
var ErrCanceled = errors.New("CANCELED")

type config struct {
	rnd *rand.Rand
}

type Option func(*config)

// WithRand sets the source RANDOM draws from. Tests use it for reproducible runs.
func WithRand(r *rand.Rand) Option {
	return func(c *config) { c.rnd = r }
}

// WithSeed seeds the source RANDOM draws from
func WithSeed(seed int64) Option {
	return func(c *config) { c.rnd = rand.New(rand.NewSource(seed)) }
}

// Standard returns the plugin holding the builtin functions.
func Standard(opts ...Option) interpreter.Plugin {
	c := &config{}
	for _, o := range opts {
		o(c)
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return interpreter.Plugin{
		Name: "builtins",
		Functions: map[string]interpreter.Native{
			"DISPLAY": display,
			"INPUT":   input,
			"RANDOM":  c.random,
			"LENGTH":  length,
			"APPEND":  appendTo,
			"INSERT":  insert,
			"REMOVE":  remove,
		},
	}
}

// display prints its arguments separated by spaces, followed by a space.
func display(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	parts := make([]string, len(args))
	for idx, a := range args {
		parts[idx] = a.String()
	}
	return interpreter.None, c.Display(strings.Join(parts, " ") + " ")
}

// input reads one line. Numeric answers become numbers.
func input(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	prompt := ""
	if len(args) > 0 {
		prompt = args[0].String()
	}
	line, err := c.Prompt(prompt)
	if err != nil {
		return interpreter.None, ErrCanceled
	}
	if strings.TrimSpace(line) == "" {
		return interpreter.NewText(line), nil
	}
	if f := interpreter.NewText(line).AsNumber(); !math.IsNaN(f) {
		return interpreter.NewNumber(f), nil
	}
	return interpreter.NewText(line), nil
}

// random picks an integer from the inclusive range [a, b].
func (cfg *config) random(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	if len(args) != 2 {
		return interpreter.None, c.Errorf(interpreter.ErrArityMismatch, "RANDOM: expected 2, got %d", len(args))
	}
	lo, hi := args[0].AsNumber(), args[1].AsNumber()
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return interpreter.None, errors.New("RANDOM requires two numbers to specify a range to choose from")
	}
	lo, hi = math.Ceil(lo), math.Floor(hi)
	if hi < lo {
		return interpreter.None, errors.New("RANDOM requires the first number to be no larger than the second")
	}
	if hi-lo >= float64(math.MaxInt64) {
		return interpreter.None, errors.New("RANDOM range is too large")
	}
	n := int64(hi-lo) + 1
	return interpreter.NewNumber(lo + float64(cfg.rnd.Int63n(n))), nil
}

func length(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	l, err := listArg(c, "LENGTH", "a list to inspect", args)
	if err != nil {
		return interpreter.None, err
	}
	return interpreter.NewNumber(float64(len(l.Elems))), nil
}

func appendTo(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	l, err := listArg(c, "APPEND", "a list to append to", args)
	if err != nil {
		return interpreter.None, err
	}
	if len(args) < 2 {
		return interpreter.None, errors.New("nothing to APPEND")
	}
	l.Elems = append(l.Elems, args[1])
	return interpreter.None, nil
}

// insert puts a value before position i; i may be one past the end.
func insert(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	l, err := listArg(c, "INSERT", "a list to insert into", args)
	if err != nil {
		return interpreter.None, err
	}
	if len(args) < 2 {
		return interpreter.None, errors.New("INSERT requires an index to insert at")
	}
	idx, ok := position(args[1], len(l.Elems)+1)
	if !ok {
		return interpreter.None, c.Errorf(interpreter.ErrIndexOutOfRange, "INSERT: %s (length %d)", args[1], len(l.Elems))
	}
	if len(args) < 3 {
		return interpreter.None, errors.New("INSERT requires something to insert")
	}
	l.Elems = append(l.Elems, interpreter.None)
	copy(l.Elems[idx+1:], l.Elems[idx:])
	l.Elems[idx] = args[2]
	return interpreter.None, nil
}

func remove(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
	l, err := listArg(c, "REMOVE", "a list to remove from", args)
	if err != nil {
		return interpreter.None, err
	}
	if len(args) < 2 {
		return interpreter.None, errors.New("REMOVE requires an index to remove")
	}
	idx, ok := position(args[1], len(l.Elems))
	if !ok {
		return interpreter.None, c.Errorf(interpreter.ErrIndexOutOfRange, "REMOVE: %s (length %d)", args[1], len(l.Elems))
	}
	l.Elems = append(l.Elems[:idx], l.Elems[idx+1:]...)
	return interpreter.None, nil
}

func listArg(c *interpreter.CallContext, name, what string, args []interpreter.Value) (*interpreter.List, error) {
	if len(args) == 0 || args[0].Kind != interpreter.KindList {
		return nil, c.Errorf(interpreter.ErrNotAList, "%s requires %s", name, what)
	}
	return args[0].List, nil
}

// position converts a 1-based position in [1, limit] to a 0-based index.
func position(v interpreter.Value, limit int) (int, bool) {
	f := v.AsNumber()
	if math.IsNaN(f) || f != math.Trunc(f) || f < 1 || f > float64(limit) {
		return 0, false
	}
	return int(f) - 1, true
}
