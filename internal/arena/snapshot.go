package arena

import (
	"spellcast/server/internal/cast"
	"spellcast/server/internal/geom"
)

type UnitSnapshot struct {
	ID            string     `json:"id"`
	Position      geom.Vec3  `json:"position"`
	Enabled       bool       `json:"enabled"`
	ActiveAbility int        `json:"activeAbility,omitempty"`
	Phase         cast.Phase `json:"phase"`
	CastID        string     `json:"castId,omitempty"`
	Step          int        `json:"step,omitempty"`
	Abilities     []int      `json:"abilities"`
}

type Snapshot struct {
	Tick           uint64         `json:"tick"`
	Units          []UnitSnapshot `json:"units"`
	PendingTimers  int            `json:"pendingTimers"`
	QueuedCommands int            `json:"queuedCommands"`
	Pool           cast.PoolStats `json:"pool"`
}

// Snapshot reports the arena state between ticks.
func (a *Arena) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Tick:           a.Tick(),
		Units:          make([]UnitSnapshot, 0, len(a.units)),
		PendingTimers:  a.timers.Pending(),
		QueuedCommands: a.buffer.Len(),
		Pool:           a.pool.Stats(),
	}
	for _, id := range a.sortedIDs() {
		u := a.units[id]
		us := UnitSnapshot{
			ID:            u.id,
			Position:      u.pos,
			Enabled:       u.caster.Enabled(),
			ActiveAbility: u.caster.ActiveAbilityID(),
			Phase:         u.caster.Phase(),
			Abilities:     u.skills.IDs(),
		}
		if block := u.caster.Block(); block != nil {
			us.CastID = block.CastID()
			us.Step = block.CurrentStep()
		}
		snap.Units = append(snap.Units, us)
	}
	return snap
}
