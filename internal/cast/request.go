package cast

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/geom"
	"spellcast/server/logging"
	"spellcast/server/logging/casting"
)

// CastAtTarget starts ab against target. Targets beyond the ability's
// preview range are refused. It reports whether a cast started.
func (c *Caster) CastAtTarget(ab *ability.Ability, target Unit) bool {
	if !c.admit(ab, casting.ModeTarget) {
		return false
	}
	if target == nil {
		c.reject(ab, casting.ModeTarget, casting.ReasonNoTarget)
		return false
	}
	if geom.PlanarDistance(c.owner.Position(), target.Position()) > ab.PreviewRange {
		c.reject(ab, casting.ModeTarget, casting.ReasonOutOfRange)
		return false
	}
	block := c.deps.Pool.Acquire()
	block.target = target
	c.start(ab, block, casting.ModeTarget, false)
	return true
}

// CastAtPoint starts ab at a ground point. Points beyond the preview range
// are pulled in to exactly that range along the caster→point direction.
func (c *Caster) CastAtPoint(ab *ability.Ability, point geom.Vec3) bool {
	if !c.admit(ab, casting.ModePoint) {
		return false
	}
	clampedPoint, clamped := geom.ClampPlanar(c.owner.Position(), point, ab.PreviewRange)
	block := c.deps.Pool.Acquire()
	block.position = clampedPoint
	block.hasPosition = true
	c.start(ab, block, casting.ModePoint, clamped)
	return true
}

// CastInDirection starts ab facing point. The point is levelled to the
// caster's height and no range check applies.
func (c *Caster) CastInDirection(ab *ability.Ability, point geom.Vec3) bool {
	if !c.admit(ab, casting.ModeDirection) {
		return false
	}
	origin := c.owner.Position()
	point.Y = origin.Y
	block := c.deps.Pool.Acquire()
	block.position = point
	block.hasPosition = true
	block.rotation = geom.LookRotation(point.Sub(origin), geom.Up)
	block.hasRotation = true
	c.start(ab, block, casting.ModeDirection, false)
	return true
}

// admit applies the preconditions shared by every cast request.
func (c *Caster) admit(ab *ability.Ability, mode casting.Mode) bool {
	switch {
	case !c.enabled:
		c.reject(ab, mode, casting.ReasonDisabled)
	case c.activeAbilityID != 0:
		c.reject(ab, mode, casting.ReasonBusy)
	case ab == nil || ab.ID == 0:
		c.reject(ab, mode, casting.ReasonInvalid)
	case !c.deps.Usability.CanUse(ab):
		c.reject(ab, mode, casting.ReasonUnusable)
	default:
		return true
	}
	return false
}

func (c *Caster) reject(ab *ability.Ability, mode casting.Mode, reason string) {
	id := 0
	if ab != nil {
		id = ab.ID
	}
	c.deps.Metrics.Add("casts_rejected", 1)
	casting.Rejected(context.Background(), c.deps.Publisher, c.deps.Tick(), c.actor(), casting.RejectedPayload{
		AbilityID: id,
		Mode:      mode,
		Reason:    reason,
	}, nil)
}

func (c *Caster) start(ab *ability.Ability, block *Block, mode casting.Mode, clamped bool) {
	block.caster = c.owner
	block.ability = ab
	c.activeAbilityID = ab.ID
	c.block = block
	c.nextStep = 0
	c.stalled = false

	if active := c.ActiveAbility(); active != nil {
		active.LastCastTime = c.deps.Clock.Now()
	}

	attrs := []attribute.KeyValue{
		attribute.String("cast.id", block.castID),
		attribute.String("cast.mode", string(mode)),
		attribute.String("caster.id", c.owner.ID()),
		attribute.Int("ability.id", ab.ID),
		attribute.Int("ability.steps", ab.Descriptor.Len()),
	}
	var targets []logging.EntityRef
	if block.target != nil {
		targets = []logging.EntityRef{logging.UnitRef(block.target.ID())}
		attrs = append(attrs, attribute.String("target.id", block.target.ID()))
	}
	block.ctx, block.span = c.deps.Tracer.Start(context.Background(), "cast "+abilityName(ab), trace.WithAttributes(attrs...))

	payload := casting.StartedPayload{
		CastID:    block.castID,
		AbilityID: ab.ID,
		Ability:   ab.Name,
		Mode:      mode,
		Steps:     ab.Descriptor.Len(),
		Clamped:   clamped,
	}
	if block.hasPosition {
		payload.Point = &[3]float64{block.position.X, block.position.Y, block.position.Z}
	}
	c.deps.Metrics.Add("casts_started", 1)
	casting.Started(block.ctx, c.deps.Publisher, c.deps.Tick(), c.actor(), targets, payload, nil)

	c.advance(0)
}

func abilityName(ab *ability.Ability) string {
	if ab.Name != "" {
		return ab.Name
	}
	return "ability"
}
