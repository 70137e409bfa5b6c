package arena

import (
	"context"
	"errors"
	"testing"
	"time"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/cast"
	"spellcast/server/internal/geom"
	"spellcast/server/internal/telemetry"
	"spellcast/server/logging"
	"spellcast/server/logging/casting"
	"spellcast/server/logging/sinks"
	"spellcast/server/logging/units"
)

type catalogFunc func() *ability.Collection

func (f catalogFunc) NewCollection() *ability.Collection { return f() }

type fixture struct {
	arena    *Arena
	now      time.Time
	events   *sinks.Memory
	counters *telemetry.Counters
	steps    []ability.StepType
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	f := &fixture{
		now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		events:   sinks.NewMemory(),
		counters: telemetry.NewCounters(),
	}
	abilities := catalogFunc(func() *ability.Collection {
		return ability.NewCollection(&ability.Ability{
			ID:           1,
			Name:         "bolt",
			PreviewRange: 10,
			Descriptor: &ability.Descriptor{
				StepTypes: []ability.StepType{"windup", "hit"},
				Intervals: []time.Duration{100 * time.Millisecond, 0},
			},
		})
	})
	a, err := New(Config{TickRate: 20, CommandCapacity: capacity}, Deps{
		Abilities: abilities,
		Dispatcher: cast.DispatcherFunc(func(_ context.Context, step ability.StepType, _ *cast.Block) error {
			f.steps = append(f.steps, step)
			return nil
		}),
		Clock:     logging.ClockFunc(func() time.Time { return f.now }),
		Publisher: f.events,
		Metrics:   f.counters,
		Logger:    telemetry.LoggerFunc(func(string, ...any) {}),
	})
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	f.arena = a
	return f
}

func (f *fixture) enqueue(t *testing.T, cmd Command) {
	t.Helper()
	if err := f.arena.Enqueue(cmd); err != nil {
		t.Fatalf("enqueue %s: %v", cmd.Type, err)
	}
}

func (f *fixture) step(d time.Duration) StepResult {
	f.now = f.now.Add(d)
	return f.arena.Step(f.now)
}

func TestArenaTargetCastRunsAcrossTicks(t *testing.T) {
	f := newFixture(t, 16)
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "dummy", Position: &geom.Vec3{X: 3}})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 1, Mode: casting.ModeTarget, TargetID: "dummy"}})

	result := f.step(0)
	if result.Applied != 3 || result.Rejected != 0 {
		t.Fatalf("expected three applied commands, got %+v", result)
	}
	if len(f.steps) != 1 || f.steps[0] != "windup" {
		t.Fatalf("expected windup dispatched on the first tick, got %v", f.steps)
	}
	snap := f.arena.Snapshot()
	if len(snap.Units) != 2 || snap.Units[0].ID != "dummy" || snap.Units[1].ID != "mage" {
		t.Fatalf("expected sorted units, got %+v", snap.Units)
	}
	mage := snap.Units[1]
	if mage.ActiveAbility != 1 || mage.Phase != cast.PhaseAwaiting || mage.CastID == "" {
		t.Fatalf("expected mage awaiting its next step, got %+v", mage)
	}
	if snap.PendingTimers != 1 || snap.Pool.Outstanding != 1 {
		t.Fatalf("expected one timer and one block outstanding, got %+v", snap)
	}

	f.step(50 * time.Millisecond)
	if len(f.steps) != 1 {
		t.Fatalf("expected no step before the interval elapsed, got %v", f.steps)
	}
	result = f.step(50 * time.Millisecond)
	if result.TimersFired != 1 {
		t.Fatalf("expected the resume timer to fire, got %+v", result)
	}
	if len(f.steps) != 2 || f.steps[1] != "hit" {
		t.Fatalf("expected hit dispatched, got %v", f.steps)
	}
	snap = f.arena.Snapshot()
	if snap.Units[1].Phase != cast.PhaseIdle || snap.Pool.Outstanding != 0 {
		t.Fatalf("expected completed cast, got %+v", snap)
	}
	if len(f.events.OfType(casting.EventCompleted)) != 1 {
		t.Fatalf("expected one completed event")
	}
	if snap.Tick != 3 {
		t.Fatalf("expected tick 3, got %d", snap.Tick)
	}
}

func TestArenaRejectsCommandsOnApply(t *testing.T) {
	f := newFixture(t, 16)
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandMove, UnitID: "ghost", Position: &geom.Vec3{}})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 9, Mode: casting.ModeTarget}})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 1, Mode: casting.ModeTarget, TargetID: "ghost"}})

	result := f.step(0)
	if result.Applied != 1 || result.Rejected != 4 {
		t.Fatalf("expected one applied and four rejected, got %+v", result)
	}
	rejected := f.events.OfType(units.EventCommandRejected)
	if len(rejected) != 4 {
		t.Fatalf("expected four rejection events, got %d", len(rejected))
	}
	if got := f.counters.Get("arena_commands_rejected"); got != 4 {
		t.Fatalf("expected rejection counter 4, got %d", got)
	}
	if len(f.steps) != 0 {
		t.Fatalf("expected no dispatched steps, got %v", f.steps)
	}
}

func TestArenaCasterRefusalIsNotCommandError(t *testing.T) {
	f := newFixture(t, 16)
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 1, Mode: casting.ModeTarget}})

	result := f.step(0)
	if result.Rejected != 0 {
		t.Fatalf("expected caster refusal to apply cleanly, got %+v", result)
	}
	refused := f.events.OfType(casting.EventRejected)
	if len(refused) != 1 {
		t.Fatalf("expected one cast rejection, got %d", len(refused))
	}
	if payload, ok := refused[0].Payload.(casting.RejectedPayload); !ok || payload.Reason != casting.ReasonNoTarget {
		t.Fatalf("expected no_target rejection, got %+v", refused[0].Payload)
	}
}

func TestArenaInterruptAndDespawn(t *testing.T) {
	f := newFixture(t, 16)
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 1, Mode: casting.ModePoint, Point: &geom.Vec3{X: 2}}})
	f.step(0)

	f.enqueue(t, Command{Type: CommandInterrupt, UnitID: "mage"})
	f.step(0)
	if snap := f.arena.Snapshot(); snap.Units[0].ActiveAbility != 1 {
		t.Fatalf("expected cooperative interrupt refused by non-interruptible step")
	}

	f.enqueue(t, Command{Type: CommandDespawn, UnitID: "mage"})
	f.step(0)
	snap := f.arena.Snapshot()
	if len(snap.Units) != 0 || snap.PendingTimers != 0 || snap.Pool.Outstanding != 0 {
		t.Fatalf("expected despawn to release the cast, got %+v", snap)
	}
	despawned := f.events.OfType(units.EventDespawned)
	if len(despawned) != 1 {
		t.Fatalf("expected one despawn event")
	}
	if payload := despawned[0].Payload.(units.DespawnedPayload); !payload.Interrupted {
		t.Fatalf("expected despawn to report the interrupted cast")
	}
	if steps := f.steps; len(steps) != 2 || steps[1] != ability.StepInterrupt {
		t.Fatalf("expected interrupt notification, got %v", steps)
	}
}

func TestArenaSetEnabled(t *testing.T) {
	f := newFixture(t, 16)
	disabled := false
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandSetEnabled, UnitID: "mage", Enabled: &disabled})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 1, Mode: casting.ModeDirection, Point: &geom.Vec3{Z: 1}}})
	f.step(0)

	snap := f.arena.Snapshot()
	if snap.Units[0].Enabled || snap.Units[0].ActiveAbility != 0 {
		t.Fatalf("expected disabled idle caster, got %+v", snap.Units[0])
	}
	refused := f.events.OfType(casting.EventRejected)
	if len(refused) != 1 || refused[0].Payload.(casting.RejectedPayload).Reason != casting.ReasonDisabled {
		t.Fatalf("expected disabled rejection, got %+v", refused)
	}
}

func TestArenaEnqueue(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.arena.Enqueue(Command{Type: CommandMove, UnitID: "a"}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected invalid command, got %v", err)
	}
	f.enqueue(t, Command{Type: CommandSpawn})
	if err := f.arena.Enqueue(Command{Type: CommandSpawn}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
	if snap := f.arena.Snapshot(); snap.QueuedCommands != 1 {
		t.Fatalf("expected one queued command, got %d", snap.QueuedCommands)
	}
	f.step(0)
	snap := f.arena.Snapshot()
	if len(snap.Units) != 1 || snap.Units[0].ID == "" {
		t.Fatalf("expected a spawned unit with a generated id, got %+v", snap.Units)
	}
}

func TestArenaRunStopsAndReleases(t *testing.T) {
	f := newFixture(t, 16)
	f.enqueue(t, Command{Type: CommandSpawn, UnitID: "mage"})
	f.enqueue(t, Command{Type: CommandCast, UnitID: "mage", Cast: &CastCommand{AbilityID: 1, Mode: casting.ModePoint, Point: &geom.Vec3{X: 1}}})
	f.step(0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := f.arena.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap := f.arena.Snapshot(); snap.Pool.Outstanding != 0 {
		t.Fatalf("expected shutdown to release outstanding casts, got %+v", snap.Pool)
	}
}

func TestNewRequiresDispatcher(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatalf("expected missing dispatcher error")
	}
}
