package logging

import (
	"context"
	"maps"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindUnit    EntityKind = "unit"
	EntityKindCast    EntityKind = "cast"
	EntityKindArena   EntityKind = "arena"
)

type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
	TraceID  string         `json:"traceId,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// UnitRef is shorthand for a unit entity reference.
func UnitRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindUnit}
}

const (
	CategoryCasting = "casting"
	CategoryArena   = "arena"
	CategorySystem  = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next != nil {
		p.next.Publish(ctx, mergeFields(event, p.fields))
	}
}

// mergeFields returns a copy of event whose Extra holds fields underneath
// the keys the event already sets.
func mergeFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	merged := cloneForFields(event)
	if merged.Extra == nil {
		merged.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, set := merged.Extra[k]; !set {
			merged.Extra[k] = v
		}
	}
	return merged
}

// cloneForFields copies the slices and maps of event so later edits do not
// leak between sinks.
func cloneForFields(event Event) Event {
	if n := len(event.Targets); n > 0 {
		event.Targets = append(make([]EntityRef, 0, n), event.Targets...)
	}
	if event.Extra != nil {
		event.Extra = maps.Clone(event.Extra)
	}
	return event
}

// WithFields decorates p so every event carries fields unless it already
// sets them.
func WithFields(p Publisher, fields map[string]any) Publisher {
	switch {
	case p == nil:
		return NopPublisher()
	case len(fields) == 0:
		return p
	}
	return &fieldPublisher{next: p, fields: maps.Clone(fields)}
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}
