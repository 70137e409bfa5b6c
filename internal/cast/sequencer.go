package cast

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spellcast/server/internal/ability"
	"spellcast/server/logging/casting"
)

// advance plays steps from index until the timeline ends or a step asks for
// a delay, in which case a timer re-enters advance at the following step.
func (c *Caster) advance(index int) {
	block := c.block
	if c.activeAbilityID == 0 || block == nil {
		return
	}
	c.advancing = true
	defer func() { c.advancing = false }()

	for {
		ab := c.ActiveAbility()
		if ab == nil || index >= ab.Descriptor.Len() {
			c.finish(block)
			return
		}

		stepType, _ := ab.Descriptor.StepType(index)
		record := recordFor(ab.Descriptor, index)
		block.appendStep(record)
		castID, ctx, span := block.castID, block.Context(), block.span

		err := c.dispatch(block, stepType)
		if err == nil {
			c.deps.Metrics.Add("cast_steps", 1)
			if span != nil {
				span.AddEvent("step", trace.WithAttributes(
					attribute.Int("step.index", index),
					attribute.String("step.type", string(stepType)),
					attribute.Int64("step.interval_ms", record.Interval.Milliseconds()),
				))
			}
			casting.Step(ctx, c.deps.Publisher, c.deps.Tick(), c.actor(), casting.StepPayload{
				CastID:       castID,
				AbilityID:    ab.ID,
				Index:        index,
				StepType:     string(stepType),
				IntervalMs:   record.Interval.Milliseconds(),
				CanInterrupt: record.CanInterrupt,
			}, nil)
		}
		if !c.owns(block, castID) {
			// The handler ended the cast.
			return
		}
		if err != nil {
			c.fault(block, record, stepType, err)
			return
		}

		index++
		if record.Interval > 0 {
			c.nextStep = index
			at := c.deps.Clock.Now().Add(record.Interval)
			c.timer = c.deps.Timers.Schedule(at, func() { c.resume(block, castID) })
			return
		}
	}
}

// resume is the timer callback. Callbacks left over from an ended cast do
// nothing, even when the block has since been recycled for a new cast.
func (c *Caster) resume(block *Block, castID string) {
	if !c.owns(block, castID) {
		return
	}
	c.timer = 0
	c.advance(c.nextStep)
}

// owns reports whether block still carries the cast identified by castID.
func (c *Caster) owns(block *Block, castID string) bool {
	return c.activeAbilityID != 0 && c.block == block && block.castID == castID
}

// finish ends a cast that played past its last step.
func (c *Caster) finish(block *Block) {
	abilityID := c.activeAbilityID
	if ab := c.ActiveAbility(); ab != nil {
		ab.LastCompletedTime = c.deps.Clock.Now()
	}
	castID, ctx, steps := block.castID, block.Context(), len(block.steps)

	c.activeAbilityID = 0
	c.block = nil
	c.nextStep = 0
	c.stalled = false
	c.cancelTimer()

	c.deps.Metrics.Add("casts_completed", 1)
	casting.Completed(ctx, c.deps.Publisher, c.deps.Tick(), c.actor(), casting.CompletedPayload{
		CastID:    castID,
		AbilityID: abilityID,
		Steps:     steps,
	}, nil)
	c.release(block)
}

func (c *Caster) fault(block *Block, record StepRecord, stepType ability.StepType, err error) {
	abilityID := c.activeAbilityID
	c.deps.Logger.Printf("cast: caster %s ability %d step %d (%s) failed: %v", c.owner.ID(), abilityID, record.Index, stepType, err)
	c.deps.Metrics.Add("cast_faults", 1)
	if block.span != nil {
		block.span.RecordError(err)
		block.span.SetStatus(codes.Error, err.Error())
	}
	casting.StepFault(block.Context(), c.deps.Publisher, c.deps.Tick(), c.actor(), casting.StepFaultPayload{
		CastID:    block.castID,
		AbilityID: abilityID,
		Index:     record.Index,
		StepType:  string(stepType),
		Error:     err.Error(),
		Policy:    c.deps.FaultPolicy.String(),
	}, nil)

	if c.deps.FaultPolicy == FaultHold {
		c.stalled = true
		return
	}
	c.terminate(block, true, "fault")
}

// dispatch hands the step to the dispatcher, converting panics to errors.
func (c *Caster) dispatch(block *Block, stepType ability.StepType) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStepPanicked, stepType, r)
		}
	}()
	return c.deps.Dispatcher.Dispatch(block.Context(), stepType, block)
}

func (c *Caster) release(block *Block) {
	if block.span != nil {
		block.span.End()
	}
	if err := c.deps.Pool.Release(block); err != nil {
		c.deps.Logger.Printf("cast: caster %s release block: %v", c.owner.ID(), err)
	}
}
