package cast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"spellcast/server/internal/ability"
	"spellcast/server/internal/telemetry"
	"spellcast/server/internal/timer"
	"spellcast/server/logging"
)

const tracerName = "spellcast/server/internal/cast"

// Dispatcher routes a step to the effect handler registered for its type.
// The reserved ability.StepInterrupt type notifies handlers that the cast was
// cut short.
type Dispatcher interface {
	Dispatch(ctx context.Context, step ability.StepType, block *Block) error
}

type DispatcherFunc func(ctx context.Context, step ability.StepType, block *Block) error

func (f DispatcherFunc) Dispatch(ctx context.Context, step ability.StepType, block *Block) error {
	if f == nil {
		return nil
	}
	return f(ctx, step, block)
}

// FaultPolicy decides what happens to a cast whose step handler failed.
type FaultPolicy int

const (
	// FaultAbort ends the cast as if it had been force-interrupted.
	FaultAbort FaultPolicy = iota
	// FaultHold leaves the cast where it stopped. Only a forced interrupt,
	// disabling the caster or destroying it ends the cast.
	FaultHold
)

func (p FaultPolicy) String() string {
	switch p {
	case FaultAbort:
		return "abort"
	case FaultHold:
		return "hold"
	default:
		return fmt.Sprintf("FaultPolicy(%d)", int(p))
	}
}

func ParseFaultPolicy(raw string) (FaultPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "abort":
		return FaultAbort, nil
	case "hold":
		return FaultHold, nil
	default:
		return FaultAbort, fmt.Errorf("cast: unknown fault policy %q", raw)
	}
}

var (
	ErrNoOwner      = errors.New("cast: caster requires an owning unit")
	ErrNoTimers     = errors.New("cast: timer service required")
	ErrNoDispatcher = errors.New("cast: dispatcher required")
	ErrStepPanicked = errors.New("cast: step handler panicked")
)

// Deps are the collaborators a Caster drives. Timers and Dispatcher are
// required; everything else has a default.
type Deps struct {
	Timers      timer.Service
	Dispatcher  Dispatcher
	Usability   ability.UsabilityPolicy
	Clock       logging.Clock
	Pool        *Pool
	Logger      telemetry.Logger
	Publisher   logging.Publisher
	Metrics     telemetry.Metrics
	Tracer      trace.Tracer
	FaultPolicy FaultPolicy
	// Tick reports the host tick stamped on published events.
	Tick func() uint64
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Timers == nil {
		return d, ErrNoTimers
	}
	if d.Dispatcher == nil {
		return d, ErrNoDispatcher
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Usability == nil {
		d.Usability = ability.CooldownPolicy{Clock: d.Clock}
	}
	if d.Pool == nil {
		d.Pool = NewPool()
	}
	if d.Logger == nil {
		d.Logger = telemetry.WrapLogger(log.Default())
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}
	if d.Tick == nil {
		d.Tick = func() uint64 { return 0 }
	}
	return d, nil
}
