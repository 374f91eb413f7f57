package interpreter

import "sort"

// GlobalLabel names the bottom frame.
const GlobalLabel = "Global"

// Frame represents one scope: the global frame or a procedure call.
type Frame struct {
	Label string           // procedure name, or GlobalLabel for frame 0
	Vars  map[string]Value // variables (name -> value)
}

func newFrame(label string) *Frame {
	return &Frame{Label: label, Vars: make(map[string]Value)}
}

// Store is the stack of frames. Frame 0 exists for the life of the store.
// Name lookup searches only the current frame and then frame 0.
type Store struct {
	frames []*Frame
}

// NewStore creates a store holding just the global frame.
func NewStore() *Store {
	s := &Store{frames: make([]*Frame, 0, 8)}
	s.frames = append(s.frames, newFrame(GlobalLabel))
	return s
}

// Ref is bound to one name in one frame. It must not be kept across a Push or Pop.
type Ref struct {
	frame *Frame
	name  string
}

func (r Ref) Get() Value {
	return r.frame.Vars[r.name]
}

func (r Ref) Set(v Value) {
	r.frame.Vars[r.name] = v
}

func (r Ref) Name() string {
	return r.name
}

// Global returns frame 0.
func (s *Store) Global() *Frame {
	return s.frames[0]
}

// Current returns the innermost frame.
func (s *Store) Current() *Frame {
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of frames, including the global one.
func (s *Store) Depth() int {
	return len(s.frames)
}

// Push adds a frame for a procedure call
func (s *Store) Push(label string) *Frame {
	f := newFrame(label)
	s.frames = append(s.frames, f)
	return f
}

// Pop removes the innermost frame. Frame 0 is never removed.
func (s *Store) Pop() *Frame {
	if len(s.frames) <= 1 {
		return nil
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

// Truncate pops frames until depth remain. Frame 0 is never removed.
func (s *Store) Truncate(depth int) {
	if depth < 1 {
		depth = 1
	}
	if depth < len(s.frames) {
		s.frames = s.frames[:depth]
	}
}

// Resolve finds name in the current frame, then in the global frame.
func (s *Store) Resolve(name string) (Ref, bool) {
	if cur := s.Current(); hasVar(cur, name) {
		return Ref{frame: cur, name: name}, true
	}
	if g := s.Global(); hasVar(g, name) {
		return Ref{frame: g, name: name}, true
	}
	return Ref{}, false
}

// ResolveOrCreate is Resolve, creating name in the current frame with initial when absent.
func (s *Store) ResolveOrCreate(name string, initial Value) Ref {
	if ref, ok := s.Resolve(name); ok {
		return ref
	}
	cur := s.Current()
	cur.Vars[name] = initial
	return Ref{frame: cur, name: name}
}

// Visible lists the names readable from the current frame, sorted.
func (s *Store) Visible() []string {
	seen := make(map[string]bool)
	for name := range s.Current().Vars {
		seen[name] = true
	}
	for name := range s.Global().Vars {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot deep-copies every frame, bottom first.
func (s *Store) Snapshot() []Frame {
	out := make([]Frame, len(s.frames))
	for idx, f := range s.frames {
		out[idx] = f.copy()
	}
	return out
}

func (f *Frame) copy() Frame {
	c := Frame{Label: f.Label, Vars: make(map[string]Value, len(f.Vars))}
	for name, v := range f.Vars {
		c.Vars[name] = v.Clone()
	}
	return c
}

func hasVar(f *Frame, name string) bool {
	_, ok := f.Vars[name]
	return ok
}
