package cast

import (
	"time"

	"spellcast/server/internal/ability"
)

// StepRecord is the snapshot of one step taken when the sequencer reaches it.
// Records are appended to the block's step log and never modified afterward.
// Payload is a private copy; writes to it never reach the descriptor.
type StepRecord struct {
	Index        int
	Payload      ability.Payload
	Interval     time.Duration
	CanInterrupt bool
	// Count is a repeat counter for steps that play more than once. The
	// sequencer plays every step once and leaves it zero.
	Count int
}

func recordFor(d *ability.Descriptor, index int) StepRecord {
	return StepRecord{
		Index:        index,
		Payload:      d.Payload(index).Clone(),
		Interval:     d.Interval(index),
		CanInterrupt: d.Interruptible(index),
	}
}
