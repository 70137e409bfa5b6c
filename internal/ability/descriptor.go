// Package ability models the read-only ability data the cast sequencer walks
// through and the per-caster runtime instances that carry cast timestamps.
package ability

import "time"

// StepType identifies the effect-watcher handler a step is dispatched to.
type StepType string

// StepInterrupt is reserved for interruption notifications. Abilities never
// list it as one of their own steps.
const StepInterrupt StepType = "interrupt"

// Payload is the opaque per-step data handed to effect handlers.
type Payload map[string]any

// Descriptor is the timeline of an ability: an ordered list of step types and
// parallel per-step lists addressed by the same index. The parallel lists may
// be shorter than StepTypes; missing entries fall back to a nil payload, a
// zero interval and a non-interruptible step.
type Descriptor struct {
	StepTypes    []StepType
	Payloads     []Payload
	Intervals    []time.Duration
	CanInterrupt []bool
}

// Len reports the number of steps.
func (d *Descriptor) Len() int {
	if d == nil {
		return 0
	}
	return len(d.StepTypes)
}

// StepType returns the type of the step at index.
func (d *Descriptor) StepType(index int) (StepType, bool) {
	if d == nil || index < 0 || index >= len(d.StepTypes) {
		return "", false
	}
	return d.StepTypes[index], true
}

// Payload returns the payload of the step at index, or nil.
func (d *Descriptor) Payload(index int) Payload {
	if d == nil || index < 0 || index >= len(d.Payloads) {
		return nil
	}
	return d.Payloads[index]
}

// Interval returns how long the sequencer waits after the step at index
// before the next one may fire.
func (d *Descriptor) Interval(index int) time.Duration {
	if d == nil || index < 0 || index >= len(d.Intervals) {
		return 0
	}
	return d.Intervals[index]
}

// Interruptible reports whether a cooperative interrupt may cancel the cast
// while the step at index is current.
func (d *Descriptor) Interruptible(index int) bool {
	if d == nil || index < 0 || index >= len(d.CanInterrupt) {
		return false
	}
	return d.CanInterrupt[index]
}

// Clone deep-copies the descriptor lists. Payload maps are copied one level
// deep.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	clone := &Descriptor{
		StepTypes:    append([]StepType(nil), d.StepTypes...),
		Intervals:    append([]time.Duration(nil), d.Intervals...),
		CanInterrupt: append([]bool(nil), d.CanInterrupt...),
	}
	if d.Payloads != nil {
		clone.Payloads = make([]Payload, len(d.Payloads))
		for i, payload := range d.Payloads {
			clone.Payloads[i] = payload.Clone()
		}
	}
	return clone
}

// Clone copies the top level of the payload map.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	copied := make(Payload, len(p))
	for k, v := range p {
		copied[k] = v
	}
	return copied
}
