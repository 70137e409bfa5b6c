package cast

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/geom"
)

// Unit is the minimal view of a combat-capable entity the sequencer needs.
type Unit interface {
	ID() string
	Position() geom.Vec3
}

// Block is the mutable state of one active cast. It is owned by the Caster
// that acquired it and handed to effect handlers for the duration of a
// dispatch. Handlers must not keep the pointer after Dispatch returns: the
// pool recycles released blocks and a retained pointer sees a later cast.
type Block struct {
	castID      string
	caster      Unit
	target      Unit
	position    geom.Vec3
	hasPosition bool
	rotation    geom.Quat
	hasRotation bool
	ability     *ability.Ability
	currentStep int
	steps       []StepRecord

	ctx  context.Context
	span trace.Span
	live bool
	pool *Pool
}

func (b *Block) CastID() string {
	return b.castID
}

func (b *Block) Caster() Unit {
	return b.caster
}

func (b *Block) Target() (Unit, bool) {
	return b.target, b.target != nil
}

func (b *Block) Position() (geom.Vec3, bool) {
	return b.position, b.hasPosition
}

func (b *Block) Rotation() (geom.Quat, bool) {
	return b.rotation, b.hasRotation
}

func (b *Block) Ability() *ability.Ability {
	return b.ability
}

// CurrentStep is the index of the most recently dispatched step.
func (b *Block) CurrentStep() int {
	return b.currentStep
}

// Current returns the record of the step being played, if any.
func (b *Block) Current() (StepRecord, bool) {
	if len(b.steps) == 0 {
		return StepRecord{}, false
	}
	return b.steps[len(b.steps)-1], true
}

// Steps returns a copy of the step log.
func (b *Block) Steps() []StepRecord {
	if len(b.steps) == 0 {
		return nil
	}
	return append([]StepRecord(nil), b.steps...)
}

// Context carries the cast's trace span. Handlers should derive from it.
func (b *Block) Context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// Live reports whether the block still belongs to an active cast.
func (b *Block) Live() bool {
	return b.live
}

func (b *Block) appendStep(record StepRecord) {
	b.steps = append(b.steps, record)
	b.currentStep = record.Index
}

func (b *Block) reset() {
	b.castID = ""
	b.caster = nil
	b.target = nil
	b.position = geom.Vec3{}
	b.hasPosition = false
	b.rotation = geom.Quat{}
	b.hasRotation = false
	b.ability = nil
	b.currentStep = 0
	clear(b.steps)
	b.steps = b.steps[:0]
	b.ctx = nil
	b.span = nil
	b.live = false
}
