package domain

import "sync/atomic"

// Sequencer generates strictly monotonic history keys.
type Sequencer struct {
	last atomic.Uint64
}

// NewSequencer creates a sequencer whose first Next returns start+1.
// Pass the highest key already persisted when reopening a store.
func NewSequencer(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next key. Safe for concurrent use.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued key.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
