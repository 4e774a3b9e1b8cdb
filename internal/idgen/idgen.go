// Package idgen generates the trace identifiers attached to domain
// events (§SPEC_FULL ambient stack), wrapping segmentio/ksuid behind a
// small interface so callers can substitute a deterministic generator in
// tests without linking against the real one.
package idgen

import "github.com/segmentio/ksuid"

// Generator produces trace identifiers.
type Generator interface {
	New() string
}

// KSUID is the production Generator, time-sortable and collision
// resistant without coordination (§SPEC_FULL: the engine itself has no
// notion of wall time, so the sortable prefix is a diagnostic nicety,
// not load-bearing).
type KSUID struct{}

func (KSUID) New() string { return ksuid.New().String() }

// Fixed is a test Generator returning the same ID every call.
type Fixed string

func (f Fixed) New() string { return string(f) }

// Sequence is a test Generator returning ids[0], ids[1], ... in order,
// repeating the last one once exhausted.
type Sequence struct {
	ids []string
	at  int
}

func NewSequence(ids ...string) *Sequence { return &Sequence{ids: ids} }

func (s *Sequence) New() string {
	if len(s.ids) == 0 {
		return ""
	}
	id := s.ids[s.at]
	if s.at < len(s.ids)-1 {
		s.at++
	}
	return id
}
