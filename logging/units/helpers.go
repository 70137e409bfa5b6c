package units

import (
	"context"

	"spellcast/server/logging"
)

const (
	// EventSpawned is emitted when a unit joins the arena.
	EventSpawned logging.EventType = "arena.unit_spawned"
	// EventDespawned is emitted when a unit leaves the arena.
	EventDespawned logging.EventType = "arena.unit_despawned"
	// EventCommandRejected is emitted when a queued command cannot be applied.
	EventCommandRejected logging.EventType = "arena.command_rejected"
)

type SpawnedPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Abilities int     `json:"abilities"`
}

type DespawnedPayload struct {
	Interrupted bool `json:"interrupted"`
}

type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// Spawned publishes a unit spawn event.
func Spawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryArena,
		Payload:  payload,
		Extra:    extra,
	})
}

// Despawned publishes a unit removal event.
func Despawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DespawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDespawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryArena,
		Payload:  payload,
		Extra:    extra,
	})
}

// CommandRejected publishes a command that failed to apply.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryArena,
		Payload:  payload,
		Extra:    extra,
	})
}
