/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hanoi

import (
	"sync"
	"testing"
	"time"
)

// recorder collects hook calls. It only touches its own lock, so it is safe
// to use from hooks that run under the session lock.
type recorder struct {
	mu       sync.Mutex
	moves    []Move
	wins     int
	restarts int
	stops    []StopReason
	changes  int
	applied  chan Move
}

func newRecorder() *recorder {
	return &recorder{applied: make(chan Move, 1024)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnChange: func(Snapshot) {
			r.mu.Lock()
			r.changes++
			r.mu.Unlock()
		},
		OnMoveApplied: func(m Move) {
			r.mu.Lock()
			r.moves = append(r.moves, m)
			r.mu.Unlock()

			select {
			case r.applied <- m:
			default:
			}
		},
		OnWin: func(Snapshot) {
			r.mu.Lock()
			r.wins++
			r.mu.Unlock()
		},
		OnRestart: func(Snapshot) {
			r.mu.Lock()
			r.restarts++
			r.mu.Unlock()
		},
		OnSolveEnd: func(reason StopReason) {
			r.mu.Lock()
			r.stops = append(r.stops, reason)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) counts() (moves, wins, restarts int, stops []StopReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.moves), r.wins, r.restarts, append([]StopReason(nil), r.stops...)
}

// newTestSession returns a session whose clock never fires on its own.
func newTestSession(disks int, stepDelay time.Duration, r *recorder) *Session {
	return NewSession(Options{
		Disks:        disks,
		StepDelay:    stepDelay,
		TickInterval: time.Hour,
		Hooks:        r.hooks(),
	})
}

func waitDone(t *testing.T, done <-chan struct{}, timeout time.Duration) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("auto-solve did not finish within %s", timeout)
	}
}

func waitMove(t *testing.T, r *recorder, timeout time.Duration) Move {
	t.Helper()

	select {
	case m := <-r.applied:
		return m
	case <-time.After(timeout):
		t.Fatalf("no move applied within %s", timeout)
	}

	return Move{}
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(Options{})
	snap := s.Snapshot()

	if snap.Disks != DefaultDisks {
		t.Fatalf("Disks = %d, want %d", snap.Disks, DefaultDisks)
	}
	if snap.Selected != NoSelection || snap.Moves != 0 || snap.Seconds != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
	if snap.Started || snap.Won || snap.Solving {
		t.Fatalf("unexpected initial flags: %+v", snap)
	}
	if snap.Phase != PhaseIdle {
		t.Fatalf("Phase = %s, want %s", snap.Phase, PhaseIdle)
	}
	if snap.MinimumMoves != 7 {
		t.Fatalf("MinimumMoves = %d, want 7", snap.MinimumMoves)
	}
}

func TestSelectPegTwoClickWin(t *testing.T) {
	r := newRecorder()
	s := newTestSession(3, time.Hour, r)

	for _, m := range []Move{{0, 2}, {0, 1}, {2, 1}, {0, 2}, {1, 0}, {1, 2}, {0, 2}} {
		if s.SelectPeg(m.From) {
			t.Fatalf("first click on %d moved a disk", m.From)
		}
		if got := s.Snapshot().Selected; got != m.From {
			t.Fatalf("Selected = %d, want %d", got, m.From)
		}
		if !s.SelectPeg(m.To) {
			t.Fatalf("move %s rejected", m)
		}
	}

	snap := s.Snapshot()
	if !snap.Won || snap.Moves != 7 || snap.Phase != PhaseWon {
		t.Fatalf("after solution: %+v", snap)
	}
	if snap.Selected != NoSelection {
		t.Fatalf("Selected = %d after move", snap.Selected)
	}

	moves, wins, _, _ := r.counts()
	if moves != 7 || wins != 1 {
		t.Fatalf("hooks: moves=%d wins=%d", moves, wins)
	}

	// Won is terminal: clicks and auto-solve are ignored.
	s.SelectPeg(Goal)
	s.SelectPeg(Source)
	if s.Snapshot().Moves != 7 {
		t.Fatal("move applied after win")
	}
	if s.AutoSolve() != nil {
		t.Fatal("auto-solve started after win")
	}
}

func TestSelectPegIllegalDeselects(t *testing.T) {
	r := newRecorder()
	s := newTestSession(3, time.Hour, r)

	s.SelectPeg(Aux)
	if s.SelectPeg(Goal) {
		t.Fatal("move from empty peg succeeded")
	}

	snap := s.Snapshot()
	if snap.Selected != NoSelection {
		t.Fatalf("Selected = %d, want none", snap.Selected)
	}
	if snap.Moves != 0 || snap.Started {
		t.Fatalf("illegal move counted: %+v", snap)
	}
	if moves, _, _, _ := r.counts(); moves != 0 {
		t.Fatalf("OnMoveApplied fired %d times", moves)
	}
}

func TestSelectSamePegDeselects(t *testing.T) {
	s := newTestSession(3, time.Hour, newRecorder())

	s.SelectPeg(Source)
	s.SelectPeg(Source)

	if snap := s.Snapshot(); snap.Selected != NoSelection || snap.Moves != 0 {
		t.Fatalf("after double click: %+v", snap)
	}
}

func TestWinRequiresAMove(t *testing.T) {
	s := newTestSession(1, time.Hour, newRecorder())

	s.mu.Lock()
	s.state = State{Pegs: [pegCount]Peg{{}, {}, {1}}, Disks: 1}
	won := s.checkWinLocked()
	s.mu.Unlock()

	if won || s.Snapshot().Won {
		t.Fatal("solved state counted as a win before any move")
	}
}

func TestTickGuards(t *testing.T) {
	s := newTestSession(3, time.Hour, newRecorder())

	if s.Tick() {
		t.Fatal("clock ticked before the game started")
	}

	s.SelectPeg(Source)
	s.SelectPeg(Goal)

	if !s.Tick() || !s.Tick() {
		t.Fatal("clock did not tick while playing")
	}
	if got := s.Snapshot().Seconds; got != 2 {
		t.Fatalf("Seconds = %d, want 2", got)
	}

	s.AutoSolve()
	if s.Tick() {
		t.Fatal("clock ticked while solving")
	}

	s.CancelAutoSolve()
	if !s.Tick() {
		t.Fatal("clock did not resume after cancelling the solve")
	}

	s.Restart()
	if s.Tick() {
		t.Fatal("clock ticked after restart")
	}
	if got := s.Snapshot().Seconds; got != 0 {
		t.Fatalf("Seconds = %d after restart", got)
	}
}

func TestClockRunsWhilePlaying(t *testing.T) {
	s := NewSession(Options{Disks: 3, TickInterval: 5 * time.Millisecond})
	defer s.Close()

	time.Sleep(30 * time.Millisecond)
	if got := s.Snapshot().Seconds; got != 0 {
		t.Fatalf("clock ran before the first move: %d", got)
	}

	s.SelectPeg(Source)
	s.SelectPeg(Aux)

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Seconds < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("clock stuck at %d", s.Snapshot().Seconds)
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Close()
	stopped := s.Snapshot().Seconds
	time.Sleep(30 * time.Millisecond)
	if got := s.Snapshot().Seconds; got != stopped {
		t.Fatalf("clock kept running after Close: %d -> %d", stopped, got)
	}
}

func TestClockStopsOnWin(t *testing.T) {
	s := NewSession(Options{Disks: 1, TickInterval: 5 * time.Millisecond})
	defer s.Close()

	s.SelectPeg(Source)
	s.SelectPeg(Goal)

	if !s.Snapshot().Won {
		t.Fatal("one-disk game not won")
	}

	before := s.Snapshot().Seconds
	time.Sleep(30 * time.Millisecond)
	if got := s.Snapshot().Seconds; got != before {
		t.Fatalf("clock ran after win: %d -> %d", before, got)
	}
}

func TestAutoSolveCompletes(t *testing.T) {
	r := newRecorder()
	s := newTestSession(4, time.Millisecond, r)

	done := s.AutoSolve()
	if done == nil {
		t.Fatal("AutoSolve did not start")
	}
	if again := s.AutoSolve(); again != nil {
		t.Fatal("second AutoSolve started while solving")
	}

	snap := s.Snapshot()
	if !snap.Solving || !snap.Started || snap.Phase != PhaseSolving {
		t.Fatalf("while solving: %+v", snap)
	}

	waitDone(t, done, 5*time.Second)

	snap = s.Snapshot()
	if !snap.Won || snap.Solving || snap.Moves != 15 {
		t.Fatalf("after solve: %+v", snap)
	}

	moves, wins, _, stops := r.counts()
	if moves != 15 || wins != 1 {
		t.Fatalf("hooks: moves=%d wins=%d", moves, wins)
	}
	if len(stops) != 1 || stops[0] != StopCompleted {
		t.Fatalf("stops = %v", stops)
	}
}

func TestAutoSolveIgnoresClicks(t *testing.T) {
	s := newTestSession(3, time.Hour, newRecorder())
	defer s.Close()

	s.AutoSolve()
	s.SelectPeg(Source)
	s.SelectPeg(Goal)

	if snap := s.Snapshot(); snap.Moves != 0 || snap.Selected != NoSelection {
		t.Fatalf("click handled while solving: %+v", snap)
	}
}

func TestAutoSolveFromMidGame(t *testing.T) {
	r := newRecorder()
	s := newTestSession(3, time.Millisecond, r)

	s.SelectPeg(Source)
	s.SelectPeg(Aux)

	waitDone(t, s.AutoSolve(), 5*time.Second)

	snap := s.Snapshot()
	if !snap.Won {
		t.Fatalf("mid-game solve did not finish the puzzle: %+v", snap)
	}
	if err := snap.State().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelAutoSolve(t *testing.T) {
	const delay = 100 * time.Millisecond

	r := newRecorder()
	s := newTestSession(4, delay, r)

	done := s.AutoSolve()
	for i := 0; i < 3; i++ {
		waitMove(t, r, 5*time.Second)
	}
	s.CancelAutoSolve()

	snap := s.Snapshot()
	if snap.Solving {
		t.Fatal("still solving after cancel")
	}
	if snap.Moves != 3 || snap.Won {
		t.Fatalf("after cancel: %+v", snap)
	}
	if snap.Phase != PhasePlaying {
		t.Fatalf("Phase = %s, want %s", snap.Phase, PhasePlaying)
	}

	waitDone(t, done, delay)

	time.Sleep(3 * delay)
	if got := s.Snapshot().Moves; got != 3 {
		t.Fatalf("moves applied after cancel: %d", got)
	}

	_, _, _, stops := r.counts()
	if len(stops) != 1 || stops[0] != StopCancelled {
		t.Fatalf("stops = %v", stops)
	}

	// Idempotent, and a no-op without a run.
	s.CancelAutoSolve()
	s.CancelAutoSolve()
	if _, _, _, stops = r.counts(); len(stops) != 1 {
		t.Fatalf("extra solve-end hooks: %v", stops)
	}
}

func TestSetDiskCountWhileSolving(t *testing.T) {
	const delay = 20 * time.Millisecond

	r := newRecorder()
	s := newTestSession(4, delay, r)

	done := s.AutoSolve()
	waitMove(t, r, 5*time.Second)

	if err := s.SetDiskCount(5); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Solving || snap.Started || snap.Won {
		t.Fatalf("flags not reset: %+v", snap)
	}
	if snap.Moves != 0 || snap.Seconds != 0 || snap.Disks != 5 {
		t.Fatalf("counters not reset: %+v", snap)
	}
	if !snap.State().Equal(NewState(5)) {
		t.Fatalf("pegs = %s", snap.State())
	}

	waitDone(t, done, 2*delay)
	time.Sleep(3 * delay)

	if got := s.Snapshot().Moves; got != 0 {
		t.Fatalf("stale solver moved %d disks", got)
	}

	_, _, restarts, stops := r.counts()
	if restarts != 1 {
		t.Fatalf("restarts = %d", restarts)
	}
	if len(stops) != 1 || stops[0] != StopCancelled {
		t.Fatalf("stops = %v", stops)
	}
}

func TestSetDiskCountRejectsNonPositive(t *testing.T) {
	s := newTestSession(3, time.Hour, newRecorder())

	for _, n := range []int{0, -2} {
		if err := s.SetDiskCount(n); err == nil {
			t.Fatalf("SetDiskCount(%d) accepted", n)
		}
	}
	if got := s.Snapshot().Disks; got != 3 {
		t.Fatalf("Disks = %d", got)
	}
}

func TestRestart(t *testing.T) {
	r := newRecorder()
	s := newTestSession(3, time.Hour, r)

	s.SelectPeg(Source)
	s.SelectPeg(Goal)
	s.Tick()
	s.SelectPeg(Source)

	s.Restart()

	snap := s.Snapshot()
	if snap.Moves != 0 || snap.Seconds != 0 || snap.Started || snap.Selected != NoSelection {
		t.Fatalf("after restart: %+v", snap)
	}
	if !snap.State().Equal(NewState(3)) {
		t.Fatalf("pegs = %s", snap.State())
	}
	if _, _, restarts, _ := r.counts(); restarts != 1 {
		t.Fatalf("restarts = %d", restarts)
	}
}

func TestSnapshotVersionIncreases(t *testing.T) {
	s := newTestSession(3, time.Hour, newRecorder())

	v0 := s.Snapshot().Version
	s.SelectPeg(Source)
	v1 := s.Snapshot().Version
	s.SelectPeg(Goal)
	v2 := s.Snapshot().Version

	if !(v0 < v1 && v1 < v2) {
		t.Fatalf("versions not increasing: %d %d %d", v0, v1, v2)
	}
}

func TestClosedSessionIgnoresCommands(t *testing.T) {
	s := newTestSession(3, time.Millisecond, newRecorder())
	s.Close()

	s.SelectPeg(Source)
	s.SelectPeg(Goal)

	if s.AutoSolve() != nil {
		t.Fatal("AutoSolve started on closed session")
	}
	if s.Snapshot().Moves != 0 {
		t.Fatal("move applied on closed session")
	}
}

func TestConcurrentClicksKeepInvariant(t *testing.T) {
	s := NewSession(Options{Disks: 5, StepDelay: time.Millisecond, TickInterval: time.Millisecond})
	defer s.Close()

	done := s.AutoSolve()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.SelectPeg((w + i) % pegCount)
				if i%50 == 0 {
					s.CancelAutoSolve()
				}
				if err := s.Snapshot().State().Validate(); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	<-done
	if err := s.Snapshot().State().Validate(); err != nil {
		t.Fatal(err)
	}
}
