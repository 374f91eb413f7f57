package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"pcode/internal/programfile"
	"pcode/pkg/ast"
	"pcode/pkg/builtins"
	"pcode/pkg/color"
	"pcode/pkg/interpreter"

	"github.com/charmbracelet/log"
)

type Runner struct {
	Help       bool   // Show help message
	Verbose    bool   // Enable verbose output
	NoColor    bool   // Disable colored output
	Step       bool   // Start in single-step mode with the debugger prompt
	Speed      int    // Delay between statements in milliseconds (0 = none)
	MaxSteps   int    // Statement budget per run (0 = unlimited)
	MaxDepth   int    // Procedure call depth limit (0 = default)
	Seed       int64  // RANDOM seed (0 = from the clock)
	ConfigFile string // Path to a TOML run configuration
	DumpConfig bool   // Print the effective configuration and exit
	SourceFile string // Path to the program document

	Stdout io.Writer // defaults to os.Stdout
	Stdin  io.Reader // defaults to os.Stdin
}

// ErrRunFailed is returned when the program itself failed.
var ErrRunFailed = errors.New("run failed")

// Run loads the program, executes it and reports the outcome.
func (opts *Runner) Run(ctx context.Context) error {
	log.Info("Processing file", "file", opts.SourceFile)

	prog, err := programfile.Load(opts.SourceFile)
	if err != nil {
		var pe *ast.ParseError
		if errors.As(err, &pe) {
			fmt.Fprintln(opts.stdout(), color.BrightRedText("=== Syntax Errors ==="))
			fmt.Fprintln(opts.stdout(), color.ErrorWithPosition(pe.Line, pe.Column, pe.Msg, opts.SourceFile))
		}
		return fmt.Errorf("loading program failed: %w", err)
	}

	in := opts.Stdin
	if in == nil {
		in = os.Stdin
	}

	var dbg *debugger
	if opts.Step {
		dbg = newDebugger(opts.stdout())
		defer dbg.Close()
		// program input shares the debugger's line editor
		in = dbg
	}

	iopts := []interpreter.Option{
		interpreter.WithWriter(opts.stdout()),
		interpreter.WithReader(in),
		interpreter.WithMaxSteps(opts.MaxSteps),
		interpreter.WithMaxDepth(opts.MaxDepth),
		interpreter.WithLogger(log.Default()),
	}
	if opts.Speed > 0 {
		iopts = append(iopts, interpreter.WithSpeed(opts.Speed))
	}
	if dbg != nil {
		iopts = append(iopts, interpreter.WithStateHook(dbg.observe))
	}
	it := interpreter.NewInterpreter(iopts...)

	results, err := it.Start(ctx, prog, opts.Step, opts.plugins()...)
	if err != nil {
		return fmt.Errorf("starting program failed: %w", err)
	}

	var res interpreter.Result
	if dbg != nil {
		res = dbg.drive(it, results)
	} else {
		res = <-results
	}

	return opts.report(it, res)
}

func (opts *Runner) plugins() []interpreter.Plugin {
	var bopts []builtins.Option
	if opts.Seed != 0 {
		bopts = append(bopts, builtins.WithSeed(opts.Seed))
	}
	return []interpreter.Plugin{builtins.Standard(bopts...)}
}

func (opts *Runner) report(it *interpreter.Interpreter, res interpreter.Result) error {
	out := opts.stdout()
	if it.Output() != "" {
		fmt.Fprintln(out)
	}

	switch res.State {
	case interpreter.Completed:
		if !res.Value.IsNone() {
			fmt.Fprintln(out, color.Info("returned "+res.Value.Inspect()))
		}
		if opts.Verbose {
			fmt.Fprintln(out, color.Success("program finished"))
		}
		return nil

	case interpreter.Stopped:
		fmt.Fprintln(out, color.Warning("program stopped"))
		return nil

	default:
		fmt.Fprintln(out, color.BrightRedText("=== Runtime Error ==="))
		fmt.Fprintln(out, color.ErrorWithPosition(res.Span.StartLine, res.Span.StartCol, res.Err.Error(), opts.SourceFile))
		return fmt.Errorf("%w: %w", ErrRunFailed, res.Err)
	}
}

func (opts *Runner) stdout() io.Writer {
	if opts.Stdout == nil {
		return os.Stdout
	}
	return opts.Stdout
}
