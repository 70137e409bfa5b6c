package app

import (
	"spellcast/server/internal/ability"
	"spellcast/server/internal/watcher"
	"spellcast/server/logging"
)

// BuiltinSteps are the step types the server can dispatch. Catalog entries
// may only reference these.
var BuiltinSteps = []ability.StepType{
	"windup",
	"channel",
	"projectile",
	"impact",
	"area",
	"heal",
	"buff",
	"recover",
}

// NewEffects registers a publishing handler for every builtin step type and
// for interrupt notifications.
func NewEffects(pub logging.Publisher, tick func() uint64) *watcher.Registry {
	registry := watcher.NewRegistry()
	for _, step := range BuiltinSteps {
		registry.MustRegister(step, watcher.Publish(logging.EventType("effect."+string(step)), pub, tick))
	}
	registry.MustRegister(ability.StepInterrupt, watcher.Publish("effect.interrupt", pub, tick))
	return registry
}
