package cast

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"spellcast/server/internal/ability"
	"spellcast/server/logging/casting"
)

// Interrupt ends the active cast when force is set or the current step is
// interruptible. It reports whether a cast was ended.
func (c *Caster) Interrupt(force bool) bool {
	return c.interrupt(force, "")
}

func (c *Caster) interrupt(force bool, reason string) bool {
	block := c.block
	if c.activeAbilityID == 0 || block == nil || c.interrupting {
		return false
	}
	if !force {
		if c.stalled {
			return false
		}
		record, ok := block.Current()
		if !ok || !record.CanInterrupt {
			return false
		}
	}
	c.terminate(block, force, reason)
	return true
}

// terminate notifies the interrupt handler, clears the cast state and returns
// the block to the pool.
func (c *Caster) terminate(block *Block, forced bool, reason string) {
	c.interrupting = true
	defer func() { c.interrupting = false }()

	abilityID := c.activeAbilityID
	castID := block.castID
	ctx := block.Context()
	step := block.currentStep

	if err := c.dispatch(block, ability.StepInterrupt); err != nil {
		c.deps.Logger.Printf("cast: caster %s interrupt notification for ability %d failed: %v", c.owner.ID(), abilityID, err)
	}
	if !c.owns(block, castID) {
		return
	}

	c.activeAbilityID = 0
	c.block = nil
	c.nextStep = 0
	c.stalled = false
	c.cancelTimer()

	if block.span != nil {
		block.span.AddEvent("interrupted", trace.WithAttributes(
			attribute.Bool("forced", forced),
			attribute.String("reason", reason),
		))
	}
	c.deps.Metrics.Add("casts_interrupted", 1)
	casting.Interrupted(ctx, c.deps.Publisher, c.deps.Tick(), c.actor(), casting.InterruptedPayload{
		CastID:    castID,
		AbilityID: abilityID,
		Step:      step,
		Forced:    forced,
		Reason:    reason,
	}, nil)
	c.release(block)
}

func (c *Caster) cancelTimer() {
	if c.timer == 0 {
		return
	}
	c.deps.Timers.Cancel(c.timer)
	c.timer = 0
}
