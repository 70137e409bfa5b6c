package cast

import (
	"context"
	"testing"
	"time"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/geom"
	"spellcast/server/internal/telemetry"
	"spellcast/server/internal/timer"
	"spellcast/server/logging/sinks"
)

type testUnit struct {
	id  string
	pos geom.Vec3
}

func (u *testUnit) ID() string          { return u.id }
func (u *testUnit) Position() geom.Vec3 { return u.pos }

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

type dispatchCall struct {
	step   ability.StepType
	index  int
	castID string
}

type recordingDispatcher struct {
	calls []dispatchCall
	hook  func(step ability.StepType, block *Block) error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, step ability.StepType, block *Block) error {
	d.calls = append(d.calls, dispatchCall{step: step, index: block.CurrentStep(), castID: block.CastID()})
	if d.hook != nil {
		return d.hook(step, block)
	}
	return nil
}

func (d *recordingDispatcher) steps() []ability.StepType {
	out := make([]ability.StepType, 0, len(d.calls))
	for _, call := range d.calls {
		out = append(out, call.step)
	}
	return out
}

type harness struct {
	t         *testing.T
	clock     *manualClock
	timers    *timer.Queue
	pool      *Pool
	dispatch  *recordingDispatcher
	events    *sinks.Memory
	counters  *telemetry.Counters
	logs      []string
	abilities *ability.Collection
	owner     *testUnit
	caster    *Caster
}

func newHarness(t *testing.T, policy FaultPolicy, abilities ...*ability.Ability) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clock:     &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		timers:    timer.NewQueue(),
		pool:      NewPool(),
		dispatch:  &recordingDispatcher{},
		events:    sinks.NewMemory(),
		counters:  telemetry.NewCounters(),
		abilities: ability.NewCollection(abilities...),
		owner:     &testUnit{id: "caster"},
	}
	caster, err := NewCaster(h.owner, h.abilities, Deps{
		Timers:      h.timers,
		Dispatcher:  h.dispatch,
		Clock:       h.clock,
		Pool:        h.pool,
		Publisher:   h.events,
		Metrics:     h.counters,
		FaultPolicy: policy,
		Logger: telemetry.LoggerFunc(func(format string, args ...any) {
			h.logs = append(h.logs, format)
		}),
	})
	if err != nil {
		t.Fatalf("new caster: %v", err)
	}
	h.caster = caster
	return h
}

// elapse moves the clock forward and fires every due timer.
func (h *harness) elapse(d time.Duration) int {
	h.clock.now = h.clock.now.Add(d)
	return h.timers.Advance(h.clock.now)
}

func (h *harness) assertIdle() {
	h.t.Helper()
	if id := h.caster.ActiveAbilityID(); id != 0 {
		h.t.Fatalf("expected idle caster, active ability %d", id)
	}
	if h.caster.Block() != nil {
		h.t.Fatalf("expected no block on idle caster")
	}
	if h.caster.PendingTimer() != 0 {
		h.t.Fatalf("expected no pending timer on idle caster")
	}
	if phase := h.caster.Phase(); phase != PhaseIdle {
		h.t.Fatalf("expected idle phase, got %s", phase)
	}
	if out := h.pool.Stats().Outstanding; out != 0 {
		h.t.Fatalf("expected every block released, %d outstanding", out)
	}
}

func ms(values ...int) []time.Duration {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}

func newAbility(id int, previewRange float64, types []ability.StepType, intervals []time.Duration, interruptible []bool) *ability.Ability {
	return &ability.Ability{
		ID:           id,
		Name:         "test",
		PreviewRange: previewRange,
		Descriptor: &ability.Descriptor{
			StepTypes:    types,
			Intervals:    intervals,
			CanInterrupt: interruptible,
		},
	}
}
