// Package cast runs ability casts: it validates cast requests, walks an
// ability's step timeline through an effect dispatcher and suspends on timers
// between delayed steps. A Caster is driven from a single goroutine and does
// no locking of its own.
package cast

import (
	"spellcast/server/internal/ability"
	"spellcast/server/internal/timer"
	"spellcast/server/logging"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAdvancing Phase = "advancing"
	PhaseAwaiting  Phase = "awaiting"
	// PhaseStalled is a cast held after a step fault under FaultHold.
	PhaseStalled Phase = "stalled"
)

// Caster is the cast state of one unit. The zero value is not usable; create
// casters with NewCaster.
type Caster struct {
	owner     Unit
	abilities ability.Lookup
	deps      Deps

	activeAbilityID int
	enabled         bool
	timer           timer.Handle
	block           *Block
	nextStep        int

	advancing    bool
	stalled      bool
	interrupting bool
}

func NewCaster(owner Unit, abilities ability.Lookup, deps Deps) (*Caster, error) {
	if owner == nil {
		return nil, ErrNoOwner
	}
	resolved, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	if abilities == nil {
		abilities = ability.NewCollection()
	}
	return &Caster{
		owner:     owner,
		abilities: abilities,
		deps:      resolved,
		enabled:   true,
	}, nil
}

func (c *Caster) Owner() Unit {
	return c.owner
}

func (c *Caster) Enabled() bool {
	return c.enabled
}

// ActiveAbilityID is zero while idle.
func (c *Caster) ActiveAbilityID() int {
	return c.activeAbilityID
}

// ActiveAbility resolves the active ability id through the caster's
// abilities. It returns nil when idle or when the id is unknown.
func (c *Caster) ActiveAbility() *ability.Ability {
	if c.activeAbilityID == 0 || c.abilities == nil {
		return nil
	}
	ab, ok := c.abilities.Ability(c.activeAbilityID)
	if !ok {
		return nil
	}
	return ab
}

// Block returns the active cast's block, or nil when idle.
func (c *Caster) Block() *Block {
	return c.block
}

func (c *Caster) Phase() Phase {
	switch {
	case c.activeAbilityID == 0:
		return PhaseIdle
	case c.advancing:
		return PhaseAdvancing
	case c.stalled:
		return PhaseStalled
	default:
		return PhaseAwaiting
	}
}

// PendingTimer is the handle of the timer the cast is waiting on, or zero.
func (c *Caster) PendingTimer() timer.Handle {
	return c.timer
}

// SetEnabled toggles whether the caster accepts cast requests. Disabling
// force-interrupts any active cast.
func (c *Caster) SetEnabled(enabled bool) {
	c.enabled = enabled
	if !enabled {
		c.interrupt(true, "disabled")
	}
}

// CanInterrupt reports whether a non-forced Interrupt would end the active
// cast. An idle caster is always interruptible.
func (c *Caster) CanInterrupt() bool {
	if c.activeAbilityID == 0 || c.block == nil {
		return true
	}
	if c.stalled {
		return false
	}
	record, ok := c.block.Current()
	return ok && record.CanInterrupt
}

// Destroy tears the caster down with its unit.
func (c *Caster) Destroy() {
	c.interrupt(true, "destroyed")
	c.enabled = false
}

func (c *Caster) actor() logging.EntityRef {
	return logging.UnitRef(c.owner.ID())
}
