// Package exchange moves interface values between the partitions of a
// decomposed system and computes global reductions over them.
//
// All partitions derive the same Schedule from the same list of neighbouring
// partition pairs. The schedule groups the pairs into rounds in which no
// partition appears twice, and every partition walks its own steps in round
// order. Within a step the lower numbered partition sends first and the
// higher numbered one receives first, so with a rendezvous transport every
// blocking send meets a waiting receive.
package exchange

import (
	"fmt"
	"sort"
)

// Pair couples partitions A < B sharing at least one bond.
type Pair struct {
	A, B int
}

// Step is one pairwise exchange from the point of view of one partition.
type Step struct {
	Round     int
	Peer      int
	SendFirst bool
}

type Schedule struct {
	nParts int
	rounds [][]Pair
	steps  [][]Step // per partition, in round order
}

// NewSchedule deduplicates and sorts the pairs, then colours them greedily
// into rounds.
func NewSchedule(nParts int, pairs []Pair) (s *Schedule, err error) {
	if nParts < 1 {
		err = fmt.Errorf("exchange: partition count %d must be positive", nParts)
		return
	}
	var (
		seen   = make(map[Pair]bool, len(pairs))
		sorted = make([]Pair, 0, len(pairs))
	)
	for _, p := range pairs {
		if p.A > p.B {
			p.A, p.B = p.B, p.A
		}
		if p.A == p.B || p.A < 0 || p.B >= nParts {
			err = fmt.Errorf("exchange: invalid partition pair (%d,%d) for %d partitions", p.A, p.B, nParts)
			return
		}
		if !seen[p] {
			seen[p] = true
			sorted = append(sorted, p)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].A != sorted[j].A {
			return sorted[i].A < sorted[j].A
		}
		return sorted[i].B < sorted[j].B
	})
	s = &Schedule{
		nParts: nParts,
		steps:  make([][]Step, nParts),
	}
	var busy []map[int]bool // per round, partitions already exchanging
	for _, p := range sorted {
		round := 0
		for ; round < len(busy); round++ {
			if !busy[round][p.A] && !busy[round][p.B] {
				break
			}
		}
		if round == len(busy) {
			busy = append(busy, map[int]bool{})
			s.rounds = append(s.rounds, nil)
		}
		busy[round][p.A], busy[round][p.B] = true, true
		s.rounds[round] = append(s.rounds[round], p)
	}
	for round, ps := range s.rounds {
		for _, p := range ps {
			s.steps[p.A] = append(s.steps[p.A], Step{Round: round, Peer: p.B, SendFirst: true})
			s.steps[p.B] = append(s.steps[p.B], Step{Round: round, Peer: p.A, SendFirst: false})
		}
	}
	return
}

func (s *Schedule) NParts() int { return s.nParts }

// Rounds returns the pairs exchanged in each round.
func (s *Schedule) Rounds() [][]Pair { return s.rounds }

// Steps returns the exchanges of partition part in round order.
func (s *Schedule) Steps(part int) []Step { return s.steps[part] }

// Peers lists the partitions part exchanges with, in schedule order.
func (s *Schedule) Peers(part int) (peers []int) {
	for _, st := range s.steps[part] {
		peers = append(peers, st.Peer)
	}
	return
}
