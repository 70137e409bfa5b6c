package watcher

import (
	"context"

	"spellcast/server/internal/cast"
	"spellcast/server/logging"
)

// EffectPayload describes a step as seen by an effect handler.
type EffectPayload struct {
	CastID    string         `json:"castId"`
	AbilityID int            `json:"abilityId"`
	Step      int            `json:"step"`
	Payload   map[string]any `json:"payload,omitempty"`
	Point     *[3]float64    `json:"point,omitempty"`
	Facing    *[3]float64    `json:"facing,omitempty"`
}

// Publish returns a handler that reports each step it receives as an
// "effect.<type>" event. The arena host wires it for step types that have no
// gameplay handler of their own.
func Publish(eventType logging.EventType, pub logging.Publisher, tick func() uint64) Handler {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return HandlerFunc(func(ctx context.Context, block *cast.Block) error {
		payload := EffectPayload{
			CastID: block.CastID(),
			Step:   block.CurrentStep(),
		}
		if ab := block.Ability(); ab != nil {
			payload.AbilityID = ab.ID
		}
		if record, ok := block.Current(); ok && len(record.Payload) > 0 {
			payload.Payload = record.Payload.Clone()
		}
		if pos, ok := block.Position(); ok {
			payload.Point = &[3]float64{pos.X, pos.Y, pos.Z}
		}
		if rot, ok := block.Rotation(); ok {
			f := rot.Forward()
			payload.Facing = &[3]float64{f.X, f.Y, f.Z}
		}
		event := logging.Event{
			Type:     eventType,
			Severity: logging.SeverityDebug,
			Category: "effect",
			Payload:  payload,
		}
		if tick != nil {
			event.Tick = tick()
		}
		if caster := block.Caster(); caster != nil {
			event.Actor = logging.UnitRef(caster.ID())
		}
		if target, ok := block.Target(); ok {
			event.Targets = []logging.EntityRef{logging.UnitRef(target.ID())}
		}
		pub.Publish(ctx, event)
		return nil
	})
}
