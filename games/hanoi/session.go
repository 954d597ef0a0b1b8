/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hanoi

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultDisks        = 3
	DefaultStepDelay    = 400 * time.Millisecond
	DefaultTickInterval = time.Second

	// NoSelection is the Selected value when no peg is picked up.
	NoSelection = -1
)

// Phase is the session-level state derived from the session flags.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhaseSolving Phase = "solving"
	PhaseWon     Phase = "won"
)

// StopReason tells why an auto-solve run ended.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopCancelled StopReason = "cancelled"
)

// Snapshot is a consistent, read-only copy of a session.
type Snapshot struct {
	Pegs         [pegCount]Peg `json:"pegs"`
	Disks        int           `json:"disks"`
	Selected     int           `json:"selected"`
	Moves        int           `json:"moves"`
	Seconds      int           `json:"seconds"`
	Started      bool          `json:"started"`
	Won          bool          `json:"won"`
	Solving      bool          `json:"solving"`
	MinimumMoves uint64        `json:"minimum_moves"`
	Phase        Phase         `json:"phase"`
	Version      uint64        `json:"version"`
}

// State returns the puzzle configuration captured by the snapshot.
func (s Snapshot) State() State {
	return State{Pegs: s.Pegs, Disks: s.Disks}
}

// Hooks are called while the session lock is held, in the order the events
// happen. A hook must not call back into the Session.
type Hooks struct {
	OnChange      func(Snapshot)
	OnMoveApplied func(Move)
	OnWin         func(Snapshot)
	OnRestart     func(Snapshot)
	OnSolveEnd    func(StopReason)
}

// Options configure a Session. Zero values select the defaults.
type Options struct {
	Disks        int
	StepDelay    time.Duration
	TickInterval time.Duration
	Hooks        Hooks
}

type solveRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session wraps a puzzle with the bookkeeping of one game: the picked-up
// peg, move counter, elapsed seconds, and the clock and auto-solve
// goroutines. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	stepDelay    time.Duration
	tickInterval time.Duration
	hooks        Hooks

	state    State
	selected int
	moves    int
	seconds  int
	started  bool
	won      bool
	solving  bool
	closed   bool
	version  uint64

	solve     *solveRun
	clockStop chan struct{}
}

func NewSession(opts Options) *Session {
	if opts.Disks < 1 {
		opts.Disks = DefaultDisks
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	return &Session{
		stepDelay:    opts.StepDelay,
		tickInterval: opts.TickInterval,
		hooks:        opts.Hooks,
		state:        NewState(opts.Disks),
		selected:     NoSelection,
	}
}

// Snapshot returns the current read model.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	phase := PhaseIdle
	switch {
	case s.won:
		phase = PhaseWon
	case s.solving:
		phase = PhaseSolving
	case s.started:
		phase = PhasePlaying
	}

	return Snapshot{
		Pegs:         s.state.Pegs,
		Disks:        s.state.Disks,
		Selected:     s.selected,
		Moves:        s.moves,
		Seconds:      s.seconds,
		Started:      s.started,
		Won:          s.won,
		Solving:      s.solving,
		MinimumMoves: MinimumMoves(s.state.Disks),
		Phase:        phase,
		Version:      s.version,
	}
}

// SelectPeg implements the two-click protocol: the first click picks up a
// peg, the second tries to move its top disk there. The selection is cleared
// after the second click whether or not the move was legal. Clicks are
// ignored while solving and after a win. It reports whether a disk moved.
func (s *Session) SelectPeg(i int) bool {
	checkPeg(i)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.solving || s.won {
		return false
	}

	if s.selected == NoSelection {
		s.selected = i
		s.changedLocked()
		return false
	}

	from := s.selected
	s.selected = NoSelection

	if s.applyLocked(Move{From: from, To: i}) {
		return true
	}

	s.changedLocked()

	return false
}

// applyLocked is the single path through which moves reach the puzzle, for
// both clicks and the solver.
func (s *Session) applyLocked(m Move) bool {
	next, ok := s.state.Move(m.From, m.To)
	if !ok {
		return false
	}

	s.state = next
	s.moves++
	s.started = true

	won := s.checkWinLocked()
	s.syncClockLocked()
	snap := s.changedLocked()

	if s.hooks.OnMoveApplied != nil {
		s.hooks.OnMoveApplied(m)
	}
	if won && s.hooks.OnWin != nil {
		s.hooks.OnWin(snap)
	}

	return true
}

// checkWinLocked marks the session won once every disk is on the goal peg.
// A puzzle that starts solved is not a win until a move has been made.
func (s *Session) checkWinLocked() bool {
	if s.won || s.moves == 0 || !s.state.Solved() {
		return false
	}

	s.won = true

	return true
}

func (s *Session) changedLocked() Snapshot {
	s.version++
	snap := s.snapshotLocked()

	if s.hooks.OnChange != nil {
		s.hooks.OnChange(snap)
	}

	return snap
}

func (s *Session) clockRunningLocked() bool {
	return s.started && !s.won && !s.solving && !s.closed
}

// Tick advances the elapsed time by one second if the clock is running. The
// session's own clock goroutine calls it once per tick interval.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tickLocked()
}

func (s *Session) tickLocked() bool {
	if !s.clockRunningLocked() {
		return false
	}

	s.seconds++
	s.changedLocked()

	return true
}

// syncClockLocked starts or stops the clock goroutine to match the clock
// guard. It is called after every transition that can flip the guard.
func (s *Session) syncClockLocked() {
	if s.clockRunningLocked() {
		if s.clockStop == nil {
			stop := make(chan struct{})
			s.clockStop = stop
			go s.runClock(stop)
		}
		return
	}

	if s.clockStop != nil {
		close(s.clockStop)
		s.clockStop = nil
	}
}

func (s *Session) runClock(stop chan struct{}) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.clockStop != stop {
				s.mu.Unlock()
				return
			}
			s.tickLocked()
			s.mu.Unlock()
		}
	}
}

// AutoSolve starts replaying the optimal move sequence from the current
// position, one move per step delay, through the same bookkeeping as a
// manual move. It returns a channel that is closed when the run ends, or
// nil if a run is already active or the game is already won.
func (s *Session) AutoSolve() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.solving || s.won {
		return nil
	}

	plan, err := Plan(s.state, Goal)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &solveRun{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.solve = run
	s.solving = true
	s.started = true
	s.selected = NoSelection

	s.syncClockLocked()
	s.changedLocked()

	go s.runSolve(ctx, run, plan)

	return run.done
}

func (s *Session) runSolve(ctx context.Context, run *solveRun, plan []Move) {
	defer close(run.done)

	timer := time.NewTimer(s.stepDelay)
	defer timer.Stop()

	for _, m := range plan {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.Lock()
		if ctx.Err() != nil || s.solve != run {
			s.mu.Unlock()
			return
		}
		s.applyLocked(m)
		s.mu.Unlock()

		timer.Reset(s.stepDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solve == run {
		s.stopSolveLocked(StopCompleted)
		s.syncClockLocked()
		s.changedLocked()
	}
}

// stopSolveLocked ends the active run, if any. Moves already applied stay.
func (s *Session) stopSolveLocked(reason StopReason) {
	if s.solve == nil {
		return
	}

	s.solve.cancel()
	s.solve = nil
	s.solving = false

	if s.hooks.OnSolveEnd != nil {
		s.hooks.OnSolveEnd(reason)
	}
}

// CancelAutoSolve halts an active auto-solve run. No further solver move is
// applied once it returns. It does nothing when no run is active.
func (s *Session) CancelAutoSolve() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solve == nil {
		return
	}

	s.stopSolveLocked(StopCancelled)
	s.syncClockLocked()
	s.changedLocked()
}

// Restart cancels any auto-solve and starts over with the current disk count.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(s.state.Disks)
}

// SetDiskCount cancels any auto-solve and starts over with n disks.
func (s *Session) SetDiskCount(n int) error {
	if n < 1 {
		return fmt.Errorf("invalid disk count %d", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(n)

	return nil
}

func (s *Session) resetLocked(disks int) {
	if s.closed {
		return
	}

	s.stopSolveLocked(StopCancelled)

	s.state = NewState(disks)
	s.selected = NoSelection
	s.moves = 0
	s.seconds = 0
	s.started = false
	s.won = false
	s.solving = false

	s.syncClockLocked()
	snap := s.changedLocked()

	if s.hooks.OnRestart != nil {
		s.hooks.OnRestart(snap)
	}
}

// Close stops the clock and any auto-solve run. A closed session ignores
// every further command.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.stopSolveLocked(StopCancelled)
	s.closed = true
	s.syncClockLocked()
}
