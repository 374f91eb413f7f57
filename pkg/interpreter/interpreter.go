package interpreter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"pcode/pkg/ast"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	MinSpeed = 1    // shortest delay between statements, in milliseconds
	MaxSpeed = 2000 // longest delay between statements, in milliseconds

	DefaultMaxDepth = 10000
)

type RunState int

const (
	Idle RunState = iota
	Running
	Paused
	Stopping
	Stopped
	Completed
	Failed
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State    RunState
	Stepping bool     // single-step mode is active
	Span     ast.Span // statement about to run, or the one that failed
	Err      error    // set when State is Failed
}

// Mode reports the run mode as "step", "run", "end" or "stop".
func (s Status) Mode() string {
	switch s.State {
	case Running, Paused, Stopping:
		if s.Stepping {
			return "step"
		}
		return "run"
	case Completed, Failed, Stopped:
		return "end"
	default:
		return "stop"
	}
}

// Result is delivered once per run.
type Result struct {
	State RunState // Completed, Failed or Stopped
	Value Value    // value of a top-level return, None otherwise
	Err   error
	Span  ast.Span // statement that was executing when the run failed
}

// Interpreter executes programs one run at a time. A run evaluates on its own
// goroutine; every other method is safe to call concurrently with it.
type Interpreter struct {
	out    io.Writer     // console output
	in     *bufio.Reader // console input for prompts
	logger *log.Logger   // run lifecycle and per-statement tracing
	hook   func(Status)  // state change observer

	maxSteps int // maximum statements per run (0 = unlimited)
	maxDepth int // maximum procedure call depth

	start sync.Mutex // serialises Start

	mu       sync.Mutex
	state    RunState
	stepping bool
	span     ast.Span
	err      error
	program  *ast.Program
	run      *execution
	resume   chan struct{} // step tokens
	cancel   context.CancelFunc
	done     chan struct{} // closed when the current run ends
	limiter  *rate.Limiter // nil until a speed is set
	speed    int

	transcript transcript
}

type Option func(*Interpreter)

// WithWriter sets the output writer for console output
func WithWriter(w io.Writer) Option {
	return func(i *Interpreter) { i.out = w }
}

// WithReader sets where prompts read their answers from
func WithReader(r io.Reader) Option {
	return func(i *Interpreter) { i.in = bufio.NewReader(r) }
}

// WithMaxSteps limits the number of statements per run; exceeding it fails the run with ErrMaxStepsExceeded
func WithMaxSteps(n int) Option {
	return func(i *Interpreter) { i.maxSteps = n }
}

// WithMaxDepth limits procedure call nesting; exceeding it fails the run with ErrCallDepthExceeded.
// Zero or less selects DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(i *Interpreter) {
		if n <= 0 {
			n = DefaultMaxDepth
		}
		i.maxDepth = n
	}
}

// WithSpeed sets the initial delay between statements, see SetSpeed
func WithSpeed(n int) Option {
	return func(i *Interpreter) { i.SetSpeed(n) }
}

// WithLogger sets the logger used for run tracing
func WithLogger(l *log.Logger) Option {
	return func(i *Interpreter) { i.logger = l }
}

// WithStateHook registers fn to be called after every state change. It runs on
// whichever goroutine caused the change and must not block.
func WithStateHook(fn func(Status)) Option {
	return func(i *Interpreter) { i.hook = fn }
}

// NewInterpreter creates a new Interpreter instance
func NewInterpreter(opts ...Option) *Interpreter {
	it := &Interpreter{
		maxDepth: DefaultMaxDepth,
		state:    Idle,
	}

	for _, o := range opts {
		o(it)
	}

	if it.out == nil {
		it.out = os.Stdout
	}

	if it.in == nil {
		it.in = bufio.NewReader(os.Stdin)
	}

	if it.logger == nil {
		it.logger = log.Default()
	}

	return it
}

// Start begins running prog. Any run still in progress is stopped first. Global
// variables, functions and output from earlier runs are discarded. The returned
// channel yields the run's Result once it reaches Completed, Failed or Stopped.
func (i *Interpreter) Start(ctx context.Context, prog *ast.Program, singleStep bool, plugins ...Plugin) (<-chan Result, error) {
	if prog == nil {
		return nil, errors.New("no program to run")
	}

	i.start.Lock()
	defer i.start.Unlock()

	i.Stop()

	x := &execution{
		prog:     prog,
		store:    NewStore(),
		funcs:    NewRegistry(),
		out:      io.MultiWriter(&i.transcript, i.out),
		in:       i.in,
		logger:   i.logger,
		maxSteps: i.maxSteps,
		maxDepth: i.maxDepth,
	}
	x.funcs.Install(x.store.Global(), plugins...)
	if err := x.declare(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	x.ctx = runCtx
	x.pause = i.checkpoint(x)

	i.mu.Lock()
	i.state = Running
	i.stepping = singleStep
	i.span = ast.Span{}
	i.err = nil
	i.program = prog
	i.run = x
	i.resume = make(chan struct{}, 1)
	i.cancel = cancel
	done := make(chan struct{})
	i.done = done
	i.transcript.Reset()
	i.mu.Unlock()

	i.logger.Info("Run started", "statements", len(prog.Statements), "procedures", len(prog.Functions), "step", singleStep)
	i.notify()

	results := make(chan Result, 1)
	go func() {
		res := i.execute(x)
		i.finish(res, cancel, done)
		results <- res
		close(results)
	}()

	return results, nil
}

// Run executes prog continuously and waits for it to end.
func (i *Interpreter) Run(ctx context.Context, prog *ast.Program, plugins ...Plugin) Result {
	results, err := i.Start(ctx, prog, false, plugins...)
	if err != nil {
		return Result{State: Failed, Err: err}
	}
	return <-results
}

// execute drives the top-level statements. A top-level return ends the run normally.
func (i *Interpreter) execute(x *execution) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{State: Failed, Err: errorAt(x.current, ErrInvalidOperation, "internal error: %v", p)}
			if x.current != nil {
				res.Span = x.current.Span()
			}
		}
	}()

	for _, stmt := range x.prog.Statements {
		c, err := x.statement(stmt)
		if err != nil {
			// a stop request wins over whatever the finishing statement reported
			if x.ctx.Err() != nil || errors.Is(err, errStopped) {
				return Result{State: Stopped}
			}
			res := Result{State: Failed, Err: err}
			if x.current != nil {
				res.Span = x.current.Span()
			}
			var re *RuntimeError
			if errors.As(err, &re) && re.stack != nil {
				x.failed = re.stack
			}
			return res
		}
		if c.returned {
			return Result{State: Completed, Value: c.value}
		}
	}

	if x.ctx.Err() != nil {
		return Result{State: Stopped}
	}
	return Result{State: Completed}
}

func (i *Interpreter) finish(res Result, cancel context.CancelFunc, done chan struct{}) {
	i.mu.Lock()
	i.state = res.State
	i.err = res.Err
	if res.State == Failed {
		i.span = res.Span
	}
	cancel()
	close(done)
	i.mu.Unlock()

	switch res.State {
	case Failed:
		i.logger.Warn("Run failed", "error", res.Err)
	case Stopped:
		i.logger.Info("Run stopped")
	default:
		i.logger.Info("Run completed", "value", res.Value.Inspect())
	}
	i.notify()
}

// checkpoint returns the statement-boundary hook for x. It suspends while single
// stepping until a step or continue arrives, and otherwise waits out the throttle.
// Both waits end as soon as the run is stopped.
func (i *Interpreter) checkpoint(x *execution) func(ast.Node) error {
	return func(stmt ast.Node) error {
		if x.ctx.Err() != nil {
			return errStopped
		}

		i.mu.Lock()
		i.span = stmt.Span()
		limiter := i.limiter
		resume := i.resume
		stepping := i.stepping
		pause := false
		if stepping {
			select {
			case <-resume:
				// a step requested ahead of time is taken without pausing
			default:
				if i.state == Running {
					i.state = Paused
					pause = true
				}
			}
		}
		i.mu.Unlock()

		if pause {
			i.notify()
			select {
			case <-resume:
			case <-x.ctx.Done():
				return errStopped
			}
			i.mu.Lock()
			if i.state == Paused {
				i.state = Running
			}
			i.mu.Unlock()
			i.notify()
			return nil
		}
		if stepping {
			return nil
		}

		if limiter != nil {
			if err := limiter.Wait(x.ctx); err != nil {
				return errStopped
			}
		}
		return nil
	}
}

// RequestStop asks the current run to stop at its next statement boundary. The
// returned channel is closed once the run has ended.
func (i *Interpreter) RequestStop() <-chan struct{} {
	i.mu.Lock()
	done := i.done
	changed := false
	if i.state == Running || i.state == Paused {
		i.state = Stopping
		i.cancel()
		changed = true
	}
	i.mu.Unlock()

	if done == nil {
		done = make(chan struct{})
		close(done)
	}
	if changed {
		i.logger.Debug("Stop requested")
		i.notify()
	}
	return done
}

// Stop requests a stop and waits until the run has ended.
func (i *Interpreter) Stop() {
	<-i.RequestStop()
}

// RequestStep lets exactly one more statement run and switches to single-step mode.
func (i *Interpreter) RequestStep() error {
	return i.signal(true)
}

// RequestContinue leaves single-step mode and resumes continuous running.
func (i *Interpreter) RequestContinue() error {
	return i.signal(false)
}

func (i *Interpreter) signal(stepping bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != Running && i.state != Paused {
		return ErrNotRunning
	}
	i.stepping = stepping
	if stepping || i.state == Paused {
		select {
		case i.resume <- struct{}{}:
		default:
		}
	}
	return nil
}

// SetSpeed sets the delay between statements while running continuously, in
// milliseconds, clamped to [MinSpeed, MaxSpeed]. It applies to a run in progress.
func (i *Interpreter) SetSpeed(n int) {
	if n < MinSpeed {
		n = MinSpeed
	}
	if n > MaxSpeed {
		n = MaxSpeed
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.speed = n
	limit := rate.Every(time.Duration(n) * time.Millisecond)
	if i.limiter == nil {
		i.limiter = rate.NewLimiter(limit, 1)
		return
	}
	i.limiter.SetLimit(limit)
}

// Speed returns the configured delay, or 0 when none has been set.
func (i *Interpreter) Speed() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.speed
}

// State returns the current run state
func (i *Interpreter) State() RunState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Status returns the current run state with its details
func (i *Interpreter) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status()
}

func (i *Interpreter) status() Status {
	return Status{State: i.state, Stepping: i.stepping, Span: i.span, Err: i.err}
}

// Program returns the program of the current or last run
func (i *Interpreter) Program() *ast.Program {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.program
}

// Output returns everything the current or last run wrote to the console
func (i *Interpreter) Output() string {
	return i.transcript.String()
}

// Snapshot copies the call stack, global frame first. It is only available while
// paused or once the run has ended, when the evaluator is not touching it.
func (i *Interpreter) Snapshot() ([]Frame, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch i.state {
	case Paused, Stopped, Completed, Failed:
		if i.run == nil {
			return nil, nil
		}
		if i.state == Failed && i.run.failed != nil {
			frames := make([]Frame, len(i.run.failed))
			for idx := range i.run.failed {
				frames[idx] = i.run.failed[idx].copy()
			}
			return frames, nil
		}
		return i.run.store.Snapshot(), nil
	default:
		return nil, ErrNotPaused
	}
}

func (i *Interpreter) notify() {
	if i.hook == nil {
		return
	}
	i.hook(i.Status())
}

// transcript is the console output of the current run.
type transcript struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Write(p)
}

func (t *transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Reset()
}

func (t *transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
