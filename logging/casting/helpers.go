package casting

import (
	"context"

	"spellcast/server/logging"
)

const (
	// EventStarted is emitted when a cast request is accepted.
	EventStarted logging.EventType = "cast.started"
	// EventStep is emitted after a step has been dispatched.
	EventStep logging.EventType = "cast.step"
	// EventCompleted is emitted when a cast plays past its last step.
	EventCompleted logging.EventType = "cast.completed"
	// EventInterrupted is emitted when an active cast is cut short.
	EventInterrupted logging.EventType = "cast.interrupted"
	// EventRejected is emitted when a cast request is refused.
	EventRejected logging.EventType = "cast.rejected"
	// EventStepFault is emitted when a step handler fails or panics.
	EventStepFault logging.EventType = "cast.step_fault"
)

type Mode string

const (
	ModeTarget    Mode = "target"
	ModePoint     Mode = "point"
	ModeDirection Mode = "direction"
)

// Rejection reasons.
const (
	ReasonDisabled   = "disabled"
	ReasonBusy       = "busy"
	ReasonUnusable   = "unusable"
	ReasonOutOfRange = "out_of_range"
	ReasonNoTarget   = "no_target"
	ReasonInvalid    = "invalid"
)

type StartedPayload struct {
	CastID    string      `json:"castId"`
	AbilityID int         `json:"abilityId"`
	Ability   string      `json:"ability,omitempty"`
	Mode      Mode        `json:"mode"`
	Steps     int         `json:"steps"`
	Point     *[3]float64 `json:"point,omitempty"`
	Clamped   bool        `json:"clamped,omitempty"`
}

type StepPayload struct {
	CastID       string `json:"castId"`
	AbilityID    int    `json:"abilityId"`
	Index        int    `json:"index"`
	StepType     string `json:"stepType"`
	IntervalMs   int64  `json:"intervalMs"`
	CanInterrupt bool   `json:"canInterrupt"`
}

type CompletedPayload struct {
	CastID    string `json:"castId"`
	AbilityID int    `json:"abilityId"`
	Steps     int    `json:"steps"`
}

type InterruptedPayload struct {
	CastID    string `json:"castId"`
	AbilityID int    `json:"abilityId"`
	Step      int    `json:"step"`
	Forced    bool   `json:"forced"`
	Reason    string `json:"reason,omitempty"`
}

type RejectedPayload struct {
	AbilityID int    `json:"abilityId"`
	Mode      Mode   `json:"mode"`
	Reason    string `json:"reason"`
}

type StepFaultPayload struct {
	CastID    string `json:"castId"`
	AbilityID int    `json:"abilityId"`
	Index     int    `json:"index"`
	StepType  string `json:"stepType"`
	Error     string `json:"error"`
	Policy    string `json:"policy"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryCasting
	pub.Publish(ctx, event)
}

// Started publishes a cast start event.
func Started(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload StartedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventStarted,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

// Step publishes a step dispatch event.
func Step(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StepPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventStep,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Payload:  payload,
		Extra:    extra,
	})
}

func Completed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CompletedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventCompleted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

func Interrupted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload InterruptedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventInterrupted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

// Rejected publishes a refused cast request at debug severity.
func Rejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Payload:  payload,
		Extra:    extra,
	})
}

func StepFault(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StepFaultPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventStepFault,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Payload:  payload,
		Extra:    extra,
	})
}
