/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package hanoi implements the Tower of Hanoi puzzle: the peg state and its
// move rules, the optimal solver, and a Session that layers selection,
// counters, a clock and an animated auto-solve on top of them.
package hanoi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Peg indices.
const (
	Source = 0
	Aux    = 1
	Goal   = 2

	pegCount = 3
)

// Peg is a stack of disk sizes, bottom first. The top disk is the last element.
type Peg []int

// Top returns the disk on top of the peg, or 0 if the peg is empty.
func (p Peg) Top() int {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// State is one configuration of the puzzle. States are never modified in
// place; Move returns a fresh State, so a State can be shared freely.
type State struct {
	Pegs  [pegCount]Peg `json:"pegs"`
	Disks int           `json:"disks"`
}

// Move relocates the top disk of From onto To.
type Move struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (m Move) String() string {
	return strconv.Itoa(m.From) + "->" + strconv.Itoa(m.To)
}

// NewState returns the standard starting configuration: all disks on the
// source peg, largest at the bottom.
func NewState(disks int) State {
	if disks < 0 {
		panic(fmt.Sprintf("hanoi: negative disk count %d", disks))
	}

	src := make(Peg, disks)
	for i := range src {
		src[i] = disks - i
	}

	return State{
		Pegs:  [pegCount]Peg{src, {}, {}},
		Disks: disks,
	}
}

func checkPeg(i int) {
	if i < 0 || i >= pegCount {
		panic(fmt.Sprintf("hanoi: peg index %d out of range", i))
	}
}

// CanMove reports whether the top disk of from may be placed on to.
func (s State) CanMove(from, to int) bool {
	checkPeg(from)
	checkPeg(to)

	if from == to {
		return false
	}

	disk := s.Pegs[from].Top()
	if disk == 0 {
		return false
	}

	top := s.Pegs[to].Top()

	return top == 0 || top > disk
}

// Move applies a move. An illegal move is not an error: the receiver is
// returned unchanged together with false.
func (s State) Move(from, to int) (State, bool) {
	if !s.CanMove(from, to) {
		return s, false
	}

	next := State{Disks: s.Disks}
	for i, p := range s.Pegs {
		next.Pegs[i] = append(make(Peg, 0, len(p)+1), p...)
	}

	disk := next.Pegs[from].Top()
	next.Pegs[from] = next.Pegs[from][:len(next.Pegs[from])-1]
	next.Pegs[to] = append(next.Pegs[to], disk)

	return next, true
}

// Solved reports whether every disk sits on the goal peg.
func (s State) Solved() bool {
	return len(s.Pegs[Goal]) == s.Disks
}

// Validate checks that no disk rests on a smaller one and that the pegs
// together hold exactly the disks 1..Disks.
func (s State) Validate() error {
	if s.Disks < 0 {
		return fmt.Errorf("negative disk count %d", s.Disks)
	}

	seen := make([]bool, s.Disks+1)
	total := 0

	for i, p := range s.Pegs {
		for j, d := range p {
			if d < 1 || d > s.Disks {
				return fmt.Errorf("peg %d: disk %d outside 1..%d", i, d, s.Disks)
			}
			if seen[d] {
				return fmt.Errorf("peg %d: duplicate disk %d", i, d)
			}
			seen[d] = true
			total++

			if j > 0 && p[j-1] <= d {
				return fmt.Errorf("peg %d: disk %d rests on disk %d", i, d, p[j-1])
			}
		}
	}

	if total != s.Disks {
		return errors.New("disks missing from pegs")
	}

	return nil
}

// Equal reports whether both states hold the same disks on the same pegs.
func (s State) Equal(o State) bool {
	if s.Disks != o.Disks {
		return false
	}
	for i := range s.Pegs {
		if len(s.Pegs[i]) != len(o.Pegs[i]) {
			return false
		}
		for j := range s.Pegs[i] {
			if s.Pegs[i][j] != o.Pegs[i][j] {
				return false
			}
		}
	}
	return true
}

func (s State) String() string {
	var b strings.Builder
	for i, p := range s.Pegs {
		if i > 0 {
			b.WriteString(" | ")
		}
		for j, d := range p {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(d))
		}
	}
	return b.String()
}
