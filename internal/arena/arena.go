// Package arena hosts units and their casters and drives the shared timer
// queue on a fixed-timestep loop.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/cast"
	"spellcast/server/internal/geom"
	"spellcast/server/internal/telemetry"
	"spellcast/server/internal/timer"
	"spellcast/server/logging"
	"spellcast/server/logging/casting"
	"spellcast/server/logging/units"
)

var (
	ErrQueueFull      = errors.New("arena: command queue full")
	ErrUnknownUnit    = errors.New("arena: unknown unit")
	ErrUnitExists     = errors.New("arena: unit already exists")
	ErrUnknownAbility = errors.New("arena: unknown ability")
)

// Abilities hands out a fresh ability collection for each spawned unit.
type Abilities interface {
	NewCollection() *ability.Collection
}

type Config struct {
	TickRate        int
	CommandCapacity int
	CatchupMaxTicks int
	FaultPolicy     cast.FaultPolicy
}

type Deps struct {
	Abilities  Abilities
	Dispatcher cast.Dispatcher
	Clock      logging.Clock
	Publisher  logging.Publisher
	Logger     telemetry.Logger
	Metrics    telemetry.Metrics
	Tracer     trace.Tracer
}

type unit struct {
	id     string
	pos    geom.Vec3
	caster *cast.Caster
	skills *ability.Collection
}

func (u *unit) ID() string          { return u.id }
func (u *unit) Position() geom.Vec3 { return u.pos }

// Arena owns units and the collaborators their casters share. Commands are
// staged from any goroutine and applied by Step.
type Arena struct {
	cfg  Config
	deps Deps

	mu     sync.Mutex
	units  map[string]*unit
	timers *timer.Queue
	pool   *cast.Pool
	buffer *CommandBuffer
	tick   atomic.Uint64
}

func New(cfg Config, deps Deps) (*Arena, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("arena: dispatcher required")
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 256
	}
	if cfg.CatchupMaxTicks <= 0 {
		cfg.CatchupMaxTicks = 4
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.WrapLogger(log.Default())
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	return &Arena{
		cfg:    cfg,
		deps:   deps,
		units:  make(map[string]*unit),
		timers: timer.NewQueue(),
		pool:   cast.NewPool(),
		buffer: NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
	}, nil
}

func (a *Arena) Tick() uint64 {
	return a.tick.Load()
}

// Enqueue stages a command for the next tick.
func (a *Arena) Enqueue(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = a.deps.Clock.Now()
	}
	if !a.buffer.Push(cmd) {
		return ErrQueueFull
	}
	return nil
}

type StepResult struct {
	Tick        uint64
	Applied     int
	Rejected    int
	TimersFired int
}

// Step applies every staged command, then fires the timers due at now.
func (a *Arena) Step(now time.Time) StepResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := StepResult{Tick: a.tick.Add(1)}
	for _, cmd := range a.buffer.Drain() {
		if err := a.apply(cmd); err != nil {
			result.Rejected++
			a.deps.Metrics.Add("arena_commands_rejected", 1)
			a.deps.Logger.Printf("arena: tick %d: %s %s: %v", result.Tick, cmd.Type, cmd.UnitID, err)
			units.CommandRejected(context.Background(), a.deps.Publisher, result.Tick, logging.UnitRef(cmd.UnitID), units.CommandRejectedPayload{
				Command: string(cmd.Type),
				Reason:  err.Error(),
			}, nil)
			continue
		}
		result.Applied++
	}
	result.TimersFired = a.timers.Advance(now)
	a.deps.Metrics.Store("arena_units", uint64(len(a.units)))
	a.deps.Metrics.Store("arena_pending_timers", uint64(a.timers.Pending()))
	return result
}

// Run drives Step at the configured tick rate until ctx is done.
func (a *Arena) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(a.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	maxCatchup := interval * time.Duration(a.cfg.CatchupMaxTicks)
	last := a.deps.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case <-ticker.C:
			now := a.deps.Clock.Now()
			if behind := now.Sub(last); behind > maxCatchup {
				a.deps.Logger.Printf("arena: tick loop behind by %s", behind)
			}
			last = now
			a.Step(now)
		}
	}
}

// shutdown destroys every caster so outstanding casts release their blocks.
func (a *Arena) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range a.sortedIDs() {
		a.units[id].caster.Destroy()
	}
}

func (a *Arena) apply(cmd Command) error {
	switch cmd.Type {
	case CommandSpawn:
		return a.spawn(cmd)
	}
	u, ok := a.units[cmd.UnitID]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownUnit, cmd.UnitID)
	}
	switch cmd.Type {
	case CommandMove:
		u.pos = *cmd.Position
	case CommandCast:
		return a.cast(u, *cmd.Cast)
	case CommandInterrupt:
		u.caster.Interrupt(cmd.Force)
	case CommandSetEnabled:
		u.caster.SetEnabled(*cmd.Enabled)
	case CommandDespawn:
		interrupted := u.caster.ActiveAbilityID() != 0
		u.caster.Destroy()
		delete(a.units, u.id)
		units.Despawned(context.Background(), a.deps.Publisher, a.Tick(), logging.UnitRef(u.id), units.DespawnedPayload{Interrupted: interrupted}, nil)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, cmd.Type)
	}
	return nil
}

func (a *Arena) spawn(cmd Command) error {
	id := cmd.UnitID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := a.units[id]; exists {
		return fmt.Errorf("%w %q", ErrUnitExists, id)
	}
	u := &unit{id: id}
	if cmd.Position != nil {
		u.pos = *cmd.Position
	}
	if a.deps.Abilities != nil {
		u.skills = a.deps.Abilities.NewCollection()
	} else {
		u.skills = ability.NewCollection()
	}
	caster, err := cast.NewCaster(u, u.skills, cast.Deps{
		Timers:      a.timers,
		Dispatcher:  a.deps.Dispatcher,
		Clock:       a.deps.Clock,
		Pool:        a.pool,
		Logger:      a.deps.Logger,
		Publisher:   a.deps.Publisher,
		Metrics:     a.deps.Metrics,
		Tracer:      a.deps.Tracer,
		FaultPolicy: a.cfg.FaultPolicy,
		Tick:        a.Tick,
	})
	if err != nil {
		return err
	}
	u.caster = caster
	a.units[id] = u
	units.Spawned(context.Background(), a.deps.Publisher, a.Tick(), logging.UnitRef(id), units.SpawnedPayload{
		X: u.pos.X, Y: u.pos.Y, Z: u.pos.Z,
		Abilities: u.skills.Len(),
	}, nil)
	return nil
}

// cast forwards a cast command. Refusals by the caster itself are reported
// through its own events and are not command errors.
func (a *Arena) cast(u *unit, cmd CastCommand) error {
	ab, ok := u.skills.Ability(cmd.AbilityID)
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownAbility, cmd.AbilityID)
	}
	switch cmd.Mode {
	case casting.ModeTarget:
		var target cast.Unit
		if cmd.TargetID != "" {
			t, ok := a.units[cmd.TargetID]
			if !ok {
				return fmt.Errorf("%w %q", ErrUnknownUnit, cmd.TargetID)
			}
			target = t
		}
		u.caster.CastAtTarget(ab, target)
	case casting.ModePoint:
		u.caster.CastAtPoint(ab, *cmd.Point)
	case casting.ModeDirection:
		u.caster.CastInDirection(ab, *cmd.Point)
	default:
		return fmt.Errorf("%w: unknown cast mode %q", ErrInvalidCommand, cmd.Mode)
	}
	return nil
}

func (a *Arena) sortedIDs() []string {
	ids := make([]string, 0, len(a.units))
	for id := range a.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
