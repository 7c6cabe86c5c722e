package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// maxIdlePasses bounds how many consecutive empty passes Peek will
// simulate before giving up (e.g. every step gated on a weekday that is
// months away).
const maxIdlePasses = 256

// Scheduler owns the monotonically increasing pass counter and the
// per-rule phase state. The display loop calls Advance serially; the
// admin surface calls Peek concurrently on a snapshot. Exactly one
// scheduler instance drives a display.
type Scheduler struct {
	mu       sync.Mutex
	doc      *schema.Document
	resolver *Resolver
	states   StateMap
	pass     int
	queue    []ResolvedScreen

	conditions *ConditionEvaluator
	rules      *RuleExpander
	maxDepth   int
	logger     *slog.Logger
	clock      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock injects the time source, for replayable tests and previews.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithMaxDepth overrides the resolution depth guard.
func WithMaxDepth(depth int) Option {
	return func(s *Scheduler) { s.maxDepth = depth }
}

// NewScheduler creates a Scheduler over a loaded document.
func NewScheduler(doc *schema.Document, opts ...Option) (*Scheduler, error) {
	conditions, err := NewConditionEvaluator()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		doc:        doc,
		states:     StateMap{},
		conditions: conditions,
		rules:      NewRuleExpander(),
		maxDepth:   DefaultMaxDepth,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewResolver(doc, s.conditions, s.rules, s.maxDepth)
	return s, nil
}

// Advance returns the next screen to show, or ok=false for an idle tick.
// Screens from one pass are returned one per call; once the pass's
// resolved sequence is exhausted the counter moves and the next pass is
// resolved. An empty resolution still consumes a pass so frequency-gated
// rules keep progressing. A ResolutionError is logged and treated as
// idle: an unattended device must keep running.
func (s *Scheduler) Advance(ctx context.Context) (ResolvedScreen, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		screens, err := s.resolver.Resolve(ctx, s.pass, s.clock(), s.states)
		s.pass++
		if err != nil {
			s.logger.Error("resolution failed; treating pass as idle",
				slog.Int("pass", s.pass-1),
				slog.String("error", err.Error()),
			)
			return ResolvedScreen{}, false
		}
		if len(screens) == 0 {
			return ResolvedScreen{}, false
		}
		s.queue = screens
	}

	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, true
}

// Peek returns up to n upcoming screens without mutating live state.
// It snapshots the counters under the lock and simulates future passes
// on the copy, so a concurrent Advance observes nothing.
func (s *Scheduler) Peek(ctx context.Context, n int) []ResolvedScreen {
	s.mu.Lock()
	queue := append([]ResolvedScreen(nil), s.queue...)
	states := s.states.Clone()
	pass := s.pass
	resolver := s.resolver
	now := s.clock()
	s.mu.Unlock()

	out := queue
	idle := 0
	for len(out) < n && idle < maxIdlePasses {
		screens, err := resolver.Resolve(ctx, pass, now, states)
		pass++
		if err != nil {
			break
		}
		if len(screens) == 0 {
			idle++
			continue
		}
		idle = 0
		out = append(out, screens...)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Reload swaps the active document atomically between passes. All rule
// state resets; the pass counter resets too unless preservePass is set.
// The swap is all-or-nothing: a concurrent Advance sees either the old
// or the new document, never a mix.
func (s *Scheduler) Reload(doc *schema.Document, preservePass bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	s.resolver = NewResolver(doc, s.conditions, s.rules, s.maxDepth)
	s.states = StateMap{}
	s.queue = nil
	if !preservePass {
		s.pass = 0
	}
	s.logger.Info("document reloaded",
		slog.Int("playlists", len(doc.Playlists)),
		slog.Bool("pass_preserved", preservePass),
	)
}

// Pass returns the next pass number to be resolved.
func (s *Scheduler) Pass() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pass
}

// Document returns the active document.
func (s *Scheduler) Document() *schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Checkpoint captures the counters for callers that persist scheduler
// state across restarts. The in-flight pass queue is not captured; a
// restored scheduler starts at the checkpointed pass boundary.
type Checkpoint struct {
	Pass  int            `json:"pass"`
	Rules map[string]int `json:"rules"`
}

// Checkpoint snapshots the current counters.
func (s *Scheduler) Checkpoint() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Checkpoint{Pass: s.pass, Rules: s.states.Checkpoint()}
}

// Restore replaces the counters from a checkpoint and drops any
// in-flight pass queue.
func (s *Scheduler) Restore(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pass = cp.Pass
	s.states = RestoreStateMap(cp.Rules)
	s.queue = nil
}
