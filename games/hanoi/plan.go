/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hanoi

import (
	"fmt"
	"math"
)

// MinimumMoves returns 2^disks - 1, the fewest moves that solve a puzzle of
// the given size.
func MinimumMoves(disks int) uint64 {
	if disks <= 0 {
		return 0
	}
	if disks >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<uint(disks) - 1
}

// OptimalMoves returns the classical recursive solution that carries a tower
// of n disks from one peg to another: n-1 disks onto aux, the largest disk
// onto to, then the n-1 disks from aux onto to.
func OptimalMoves(n, from, aux, to int) []Move {
	checkPeg(from)
	checkPeg(aux)
	checkPeg(to)

	if n <= 0 {
		return nil
	}

	out := make([]Move, 0, MinimumMoves(min(n, 16)))
	towers(n, from, aux, to, &out)

	return out
}

func towers(n, from, aux, to int, out *[]Move) {
	if n == 0 {
		return
	}
	towers(n-1, from, to, aux, out)
	*out = append(*out, Move{From: from, To: to})
	towers(n-1, aux, from, to, out)
}

// Solution returns the optimal sequence from the starting configuration
// of the given size to the goal peg.
func Solution(disks int) []Move {
	return OptimalMoves(disks, Source, Aux, Goal)
}

// Plan returns the shortest move sequence that gathers every disk of s on
// goal. From the starting configuration with goal == Goal it is identical
// to Solution(s.Disks).
func Plan(s State, goal int) ([]Move, error) {
	checkPeg(goal)

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("cannot plan from invalid state: %w", err)
	}

	// pos[d] is the peg currently holding disk d.
	pos := make([]int, s.Disks+1)
	for i, p := range s.Pegs {
		for _, d := range p {
			pos[d] = i
		}
	}

	var out []Move
	gather(pos, s.Disks, goal, &out)

	return out, nil
}

// gather moves disks 1..n onto target. If disk n is elsewhere it has to go
// straight to target, so every smaller disk is first parked on the third peg.
func gather(pos []int, n, target int, out *[]Move) {
	if n == 0 {
		return
	}

	if pos[n] == target {
		gather(pos, n-1, target, out)
		return
	}

	spare := pegCount - pos[n] - target
	gather(pos, n-1, spare, out)

	*out = append(*out, Move{From: pos[n], To: target})
	pos[n] = target

	gather(pos, n-1, target, out)
}
