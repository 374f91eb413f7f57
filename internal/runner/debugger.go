package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pcode/pkg/color"
	"pcode/pkg/interpreter"

	"github.com/charmbracelet/log"
	"github.com/peterh/liner"
)

const historyFile = ".pcode_history"

const helpText = `Commands:
  step, s      run the next statement (also: empty line)
  continue, c  run to the end
  vars, v      show the call stack and its variables
  quit, q      stop the program
  help, h      show this help
`

// debugger is the single-step prompt. Program INPUT reads through it as well, so
// the terminal has one line editor.
type debugger struct {
	out      io.Writer
	line     *liner.State
	paused   chan interpreter.Status
	pending  []byte
	histPath string
}

func newDebugger(out io.Writer) *debugger {
	d := &debugger{
		out:    out,
		line:   liner.NewLiner(),
		paused: make(chan interpreter.Status, 1),
	}
	d.line.SetCtrlCAborts(true)

	if home, err := os.UserHomeDir(); err == nil {
		d.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(d.histPath); err == nil {
			_, _ = d.line.ReadHistory(f)
			_ = f.Close()
		}
	}
	return d
}

// Close restores the terminal and saves the command history.
func (d *debugger) Close() error {
	if d.histPath != "" {
		if f, err := os.Create(d.histPath); err == nil {
			_, _ = d.line.WriteHistory(f)
			_ = f.Close()
		}
	}
	return d.line.Close()
}

// observe is the interpreter's state hook. It must not block.
func (d *debugger) observe(s interpreter.Status) {
	if s.State != interpreter.Paused {
		return
	}
	select {
	case d.paused <- s:
	default:
	}
}

// Read serves program input one edited line at a time.
func (d *debugger) Read(p []byte) (int, error) {
	if len(d.pending) == 0 {
		text, err := d.line.Prompt("")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return 0, io.EOF
			}
			return 0, err
		}
		d.pending = []byte(text + "\n")
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// drive answers every pause with a command until the run ends.
func (d *debugger) drive(it *interpreter.Interpreter, results <-chan interpreter.Result) interpreter.Result {
	fmt.Fprint(d.out, helpText)
	for {
		select {
		case res := <-results:
			return res
		case st := <-d.paused:
			d.command(it, st)
		}
	}
}

func (d *debugger) command(it *interpreter.Interpreter, st interpreter.Status) {
	for {
		cmd, err := d.line.Prompt(fmt.Sprintf("[%s] > ", st.Span))
		if err != nil {
			it.RequestStop()
			return
		}
		cmd = strings.ToLower(strings.TrimSpace(cmd))
		if cmd != "" {
			d.line.AppendHistory(cmd)
		}

		switch cmd {
		case "", "s", "step":
			if err := it.RequestStep(); err != nil {
				log.Warn("Step ignored", "error", err)
			}
			return
		case "c", "continue":
			if err := it.RequestContinue(); err != nil {
				log.Warn("Continue ignored", "error", err)
			}
			return
		case "q", "quit":
			it.RequestStop()
			return
		case "v", "vars":
			d.printFrames(it)
		case "h", "help":
			fmt.Fprint(d.out, helpText)
		default:
			fmt.Fprintln(d.out, color.Warning("unknown command "+cmd))
		}
	}
}

func (d *debugger) printFrames(it *interpreter.Interpreter) {
	frames, err := it.Snapshot()
	if err != nil {
		fmt.Fprintln(d.out, color.Error(err.Error()))
		return
	}
	for _, f := range frames {
		fmt.Fprintln(d.out, color.BoldText(f.Label))
		names := make([]string, 0, len(f.Vars))
		for name := range f.Vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(d.out, "  %s = %s\n", color.CyanText(name), f.Vars[name].Inspect())
		}
	}
}
