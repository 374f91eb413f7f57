package interpreter_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pcode/pkg/ast"
	"pcode/pkg/builtins"
	"pcode/pkg/interpreter"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitLimit = 5 * time.Second

func newInterpreter(opts ...interpreter.Option) (*interpreter.Interpreter, *bytes.Buffer) {
	var out bytes.Buffer
	base := []interpreter.Option{
		interpreter.WithWriter(&out),
		interpreter.WithReader(strings.NewReader("")),
		interpreter.WithLogger(quiet()),
	}
	return interpreter.NewInterpreter(append(base, opts...)...), &out
}

func await(t *testing.T, results <-chan interpreter.Result) interpreter.Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(waitLimit):
		t.Fatal("run did not finish")
		return interpreter.Result{}
	}
}

func forever() *ast.Program {
	x := ast.Ident("x")
	return program(
		ast.Assign(x, ast.Num(0)),
		ast.Until(ast.Bool(false), ast.Assign(x, ast.Add(x, ast.Num(1)))),
	)
}

func TestStopEndsInfiniteLoop(t *testing.T) {
	it, _ := newInterpreter()
	results, err := it.Start(context.Background(), forever(), false)
	require.NoError(t, err)

	select {
	case <-it.RequestStop():
	case <-time.After(waitLimit):
		t.Fatal("stop was not honoured")
	}

	res := await(t, results)
	assert.Equal(t, interpreter.Stopped, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, interpreter.Stopped, it.State())
}

func TestStopEndsEmptyLoop(t *testing.T) {
	it, _ := newInterpreter()
	results, err := it.Start(context.Background(), program(ast.Until(ast.Bool(false))), false)
	require.NoError(t, err)

	it.Stop()
	assert.Equal(t, interpreter.Stopped, await(t, results).State)
}

func TestCancelledContextStopsRun(t *testing.T) {
	it, _ := newInterpreter()
	ctx, cancel := context.WithCancel(context.Background())
	results, err := it.Start(ctx, forever(), false)
	require.NoError(t, err)

	cancel()
	assert.Equal(t, interpreter.Stopped, await(t, results).State)
}

func TestStepThroughProgram(t *testing.T) {
	paused := make(chan interpreter.Status, 16)
	it, _ := newInterpreter(interpreter.WithStateHook(func(s interpreter.Status) {
		if s.State == interpreter.Paused {
			paused <- s
		}
	}))

	a, b, c := ast.Ident("a"), ast.Ident("b"), ast.Ident("c")
	prog := program(
		ast.At(ast.Assign(a, ast.Num(1)), ast.NewSpan(1, 1, 1, 7)),
		ast.At(ast.Assign(b, ast.Num(2)), ast.NewSpan(2, 1, 2, 7)),
		ast.At(ast.Assign(c, ast.Num(3)), ast.NewSpan(3, 1, 3, 7)),
	)

	results, err := it.Start(context.Background(), prog, true)
	require.NoError(t, err)

	next := func() interpreter.Status {
		t.Helper()
		select {
		case s := <-paused:
			return s
		case <-time.After(waitLimit):
			t.Fatal("run did not pause")
			return interpreter.Status{}
		}
	}

	st := next()
	assert.Equal(t, 1, st.Span.StartLine)
	assert.Equal(t, "step", st.Mode())

	frames, err := it.Snapshot()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, interpreter.GlobalLabel, frames[0].Label)
	assert.Empty(t, frames[0].Vars)

	require.NoError(t, it.RequestStep())
	st = next()
	assert.Equal(t, 2, st.Span.StartLine)

	frames, err = it.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "1", frames[0].Vars["a"].Inspect())
	assert.NotContains(t, frames[0].Vars, "b")

	require.NoError(t, it.RequestContinue())
	res := await(t, results)
	require.Equal(t, interpreter.Completed, res.State)

	frames, err = it.Snapshot()
	require.NoError(t, err)
	assert.Len(t, frames[0].Vars, 3)
}

func TestStepSwitchesRunningProgramToStepping(t *testing.T) {
	paused := make(chan interpreter.Status, 16)
	it, _ := newInterpreter(interpreter.WithStateHook(func(s interpreter.Status) {
		if s.State == interpreter.Paused {
			select {
			case paused <- s:
			default:
			}
		}
	}))

	results, err := it.Start(context.Background(), forever(), false)
	require.NoError(t, err)
	require.NoError(t, it.RequestStep())

	select {
	case st := <-paused:
		assert.True(t, st.Stepping)
	case <-time.After(waitLimit):
		t.Fatal("run did not pause")
	}
	assert.Equal(t, interpreter.Paused, it.State())

	it.Stop()
	assert.Equal(t, interpreter.Stopped, await(t, results).State)
}

func TestStopWhilePaused(t *testing.T) {
	paused := make(chan struct{}, 16)
	it, _ := newInterpreter(interpreter.WithStateHook(func(s interpreter.Status) {
		if s.State == interpreter.Paused {
			paused <- struct{}{}
		}
	}))

	results, err := it.Start(context.Background(), forever(), true)
	require.NoError(t, err)

	select {
	case <-paused:
	case <-time.After(waitLimit):
		t.Fatal("run did not pause")
	}

	it.Stop()
	assert.Equal(t, interpreter.Stopped, await(t, results).State)
}

func TestRequestsOutsideARun(t *testing.T) {
	it, _ := newInterpreter()

	assert.ErrorIs(t, it.RequestStep(), interpreter.ErrNotRunning)
	assert.ErrorIs(t, it.RequestContinue(), interpreter.ErrNotRunning)

	_, err := it.Snapshot()
	assert.ErrorIs(t, err, interpreter.ErrNotPaused)

	select {
	case <-it.RequestStop():
	default:
		t.Fatal("stop without a run should return a closed channel")
	}
	assert.Equal(t, interpreter.Idle, it.State())
}

func TestSnapshotRefusedWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	block := interpreter.Plugin{
		Name: "test",
		Functions: map[string]interpreter.Native{
			"WAIT": func(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
				close(entered)
				<-release
				return interpreter.None, nil
			},
		},
	}

	it, _ := newInterpreter()
	results, err := it.Start(context.Background(), program(ast.Call("WAIT")), false, block)
	require.NoError(t, err)

	<-entered
	assert.Equal(t, interpreter.Running, it.State())
	_, err = it.Snapshot()
	assert.ErrorIs(t, err, interpreter.ErrNotPaused)

	close(release)
	assert.Equal(t, interpreter.Completed, await(t, results).State)
}

func TestSetSpeedClamps(t *testing.T) {
	it, _ := newInterpreter()
	assert.Equal(t, 0, it.Speed())

	tests := []struct {
		in, want int
	}{
		{0, interpreter.MinSpeed},
		{-5, interpreter.MinSpeed},
		{150, 150},
		{5000, interpreter.MaxSpeed},
	}
	for _, test := range tests {
		it.SetSpeed(test.in)
		assert.Equal(t, test.want, it.Speed(), "SetSpeed(%d)", test.in)
	}
}

func TestSpeedThrottlesStatements(t *testing.T) {
	it, _ := newInterpreter(interpreter.WithSpeed(20))

	var stmts []ast.Node
	for i := 0; i < 6; i++ {
		stmts = append(stmts, &ast.Pass{})
	}

	start := time.Now()
	res := it.Run(context.Background(), program(stmts...))
	require.Equal(t, interpreter.Completed, res.State)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestStopInterruptsThrottle(t *testing.T) {
	it, _ := newInterpreter(interpreter.WithSpeed(interpreter.MaxSpeed))

	results, err := it.Start(context.Background(), program(&ast.Pass{}, &ast.Pass{}, &ast.Pass{}), false)
	require.NoError(t, err)

	start := time.Now()
	it.Stop()
	assert.Equal(t, interpreter.Stopped, await(t, results).State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRestartDiscardsPreviousRun(t *testing.T) {
	it, out := newInterpreter()
	x := ast.Ident("x")
	std := builtins.Standard()

	res := it.Run(context.Background(), program(
		ast.Assign(x, ast.Num(1)),
		ast.Call("DISPLAY", x),
	), std)
	require.Equal(t, interpreter.Completed, res.State)
	assert.Equal(t, "1 ", it.Output())

	res = it.Run(context.Background(), program(ast.Ret(x)), std)
	require.Equal(t, interpreter.Failed, res.State)
	assert.ErrorIs(t, res.Err, interpreter.ErrUndefinedVariable)
	assert.Empty(t, it.Output())

	// the writer sees everything, the transcript only the last run
	assert.Equal(t, "1 ", out.String())
}

func TestStartReplacesRunningProgram(t *testing.T) {
	it, _ := newInterpreter()

	first, err := it.Start(context.Background(), forever(), false)
	require.NoError(t, err)

	res := it.Run(context.Background(), program(ast.Ret(ast.Num(7))))
	assert.Equal(t, interpreter.Completed, res.State)
	assert.Equal(t, "7", res.Value.Inspect())

	assert.Equal(t, interpreter.Stopped, await(t, first).State)
}

func TestStateHookSeesLifecycle(t *testing.T) {
	var (
		mu     sync.Mutex
		states []interpreter.RunState
	)
	it, _ := newInterpreter(interpreter.WithStateHook(func(s interpreter.Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	}))

	res := it.Run(context.Background(), program(&ast.Pass{}))
	require.Equal(t, interpreter.Completed, res.State)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, interpreter.Running, states[0])
	assert.Equal(t, interpreter.Completed, states[len(states)-1])
}

func TestLimits(t *testing.T) {
	recurse := withProcs(
		[]*ast.Procedure{ast.Proc("r", nil, ast.Call("r"))},
		ast.Call("r"),
	)

	tests := []struct {
		name    string
		opt     interpreter.Option
		prog    *ast.Program
		wantErr error
	}{
		{"max steps", interpreter.WithMaxSteps(100), forever(), interpreter.ErrMaxStepsExceeded},
		{"call depth", interpreter.WithMaxDepth(20), recurse, interpreter.ErrCallDepthExceeded},
		{"call depth zero uses the default", interpreter.WithMaxDepth(0), recurse, interpreter.ErrCallDepthExceeded},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			it, _ := newInterpreter(test.opt)
			res := it.Run(context.Background(), test.prog)
			require.Equal(t, interpreter.Failed, res.State)
			assert.ErrorIs(t, res.Err, test.wantErr)
		})
	}
}

func TestFailureKeepsProcedureFrame(t *testing.T) {
	it, _ := newInterpreter()
	prog := withProcs(
		[]*ast.Procedure{ast.Proc("f", []string{"arg"}, ast.Ret(ast.Ident("missing")))},
		ast.Call("f", ast.Num(4)),
	)

	res := it.Run(context.Background(), prog)
	require.Equal(t, interpreter.Failed, res.State)

	status := it.Status()
	assert.Equal(t, interpreter.Failed, status.State)
	assert.ErrorIs(t, status.Err, interpreter.ErrUndefinedVariable)
	assert.Equal(t, "end", status.Mode())

	frames, err := it.Snapshot()
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "f", frames[1].Label)
	assert.Equal(t, "4", frames[1].Vars["arg"].Inspect())
}

func TestHostVariablesAreFreshEachRun(t *testing.T) {
	world := interpreter.Plugin{
		Name: "world",
		Vars: map[string]interpreter.Value{
			"limit": interpreter.NewNumber(3),
			"xs":    interpreter.NewList(interpreter.NewNumber(1)),
		},
	}
	limit, xs := ast.Ident("limit"), ast.Ident("xs")
	prog := program(
		ast.Assign(limit, ast.Add(limit, ast.Num(1))),
		ast.Call("APPEND", xs, ast.Num(2)),
		ast.Ret(ast.ListOf(limit, ast.Call("LENGTH", xs))),
	)

	it, _ := newInterpreter()
	for i := 0; i < 2; i++ {
		res := it.Run(context.Background(), prog, builtins.Standard(), world)
		require.Equal(t, interpreter.Completed, res.State)
		assert.Equal(t, "[4,2]", res.Value.Inspect(), "run %d", i+1)
	}
	assert.Equal(t, 1, len(world.Vars["xs"].List.Elems))
}

func TestSeededRunsAreDeterministic(t *testing.T) {
	random := ast.Call("RANDOM", ast.Num(1), ast.Num(1000))
	xs := ast.Ident("xs")
	prog := program(
		ast.Assign(xs, ast.ListOf(random, random, random, random)),
		ast.Assign(ast.Ident("first"), ast.Elem("xs", ast.Num(1))),
		ast.Call("DISPLAY", xs),
	)

	it, _ := newInterpreter()
	var outputs []string
	var globals []map[string]string
	for i := 0; i < 2; i++ {
		res := it.Run(context.Background(), prog, builtins.Standard(builtins.WithSeed(7)))
		require.Equal(t, interpreter.Completed, res.State)
		outputs = append(outputs, it.Output())

		frames, err := it.Snapshot()
		require.NoError(t, err)
		require.Len(t, frames, 1)
		vars := make(map[string]string)
		for name, v := range frames[0].Vars {
			vars[name] = v.Inspect()
		}
		globals = append(globals, vars)
	}
	assert.Equal(t, outputs[0], outputs[1])
	if diff := cmp.Diff(globals[0], globals[1]); diff != "" {
		t.Errorf("globals differ between runs (-first +second):\n%s", diff)
	}
}

func TestStopWinsOverFailingStatement(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	hang := interpreter.Plugin{
		Name: "test",
		Functions: map[string]interpreter.Native{
			"HANG": func(c *interpreter.CallContext, args []interpreter.Value) (interpreter.Value, error) {
				close(started)
				<-release
				return interpreter.None, errors.New("read interrupted")
			},
		},
	}

	it, out := newInterpreter()
	prog := program(ast.Call("HANG"), ast.Call("DISPLAY", ast.Text("after")))
	results, err := it.Start(context.Background(), prog, false, builtins.Standard(), hang)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(waitLimit):
		t.Fatal("native was not called")
	}
	done := it.RequestStop()
	assert.Equal(t, interpreter.Stopping, it.State())
	close(release)

	res := await(t, results)
	<-done
	assert.Equal(t, interpreter.Stopped, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, interpreter.Stopped, it.State())
	assert.NoError(t, it.Status().Err)
	assert.Empty(t, out.String())
}

func TestStartRejectsMalformedPrograms(t *testing.T) {
	it, _ := newInterpreter()

	_, err := it.Start(context.Background(), nil, false)
	assert.Error(t, err)

	_, err = it.Start(context.Background(), &ast.Program{Functions: []*ast.Procedure{{}}}, false)
	assert.ErrorIs(t, err, interpreter.ErrInvalidOperation)
	assert.Equal(t, interpreter.Idle, it.State())
}

func TestStatusMode(t *testing.T) {
	tests := []struct {
		status interpreter.Status
		want   string
	}{
		{interpreter.Status{State: interpreter.Idle}, "stop"},
		{interpreter.Status{State: interpreter.Running}, "run"},
		{interpreter.Status{State: interpreter.Running, Stepping: true}, "step"},
		{interpreter.Status{State: interpreter.Paused, Stepping: true}, "step"},
		{interpreter.Status{State: interpreter.Completed}, "end"},
		{interpreter.Status{State: interpreter.Failed}, "end"},
		{interpreter.Status{State: interpreter.Stopped}, "end"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.status.Mode(), "%s", test.status.State)
	}
}

func TestKeywords(t *testing.T) {
	world := interpreter.Plugin{
		Name:      "world",
		Functions: map[string]interpreter.Native{"MOVE": nil},
		Vars:      map[string]interpreter.Value{"heading": interpreter.NewNumber(0)},
	}

	kws := interpreter.Keywords(builtins.Standard(), world)
	require.NotEmpty(t, kws)
	assert.Equal(t, "<-", kws[0].Name)

	names := make([]string, len(kws))
	templates := make(map[string]string)
	for i, k := range kws {
		names[i] = k.Name
		templates[k.Name] = k.Template
	}
	assert.Contains(t, names, "DISPLAY()")
	assert.Contains(t, names, "MOVE()")
	assert.Equal(t, "heading", names[len(names)-1])
	assert.Equal(t, "REPEAT _ TIMES\n{\n\n}", templates["REPEAT TIMES"])
}
