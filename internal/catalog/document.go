package catalog

import (
	"time"

	"spellcast/server/internal/ability"
)

// StepDocument is one step of an ability timeline as authored on disk.
type StepDocument struct {
	Type         string         `json:"type" yaml:"type" toml:"type" jsonschema:"title=Step type,description=Effect handler the step is dispatched to.,minLength=1,required"`
	IntervalMs   int64          `json:"intervalMs,omitempty" yaml:"intervalMs,omitempty" toml:"intervalMs,omitempty" jsonschema:"title=Interval,description=Milliseconds to wait before the next step. Zero plays the next step immediately.,minimum=0"`
	CanInterrupt bool           `json:"canInterrupt,omitempty" yaml:"canInterrupt,omitempty" toml:"canInterrupt,omitempty" jsonschema:"title=Interruptible,description=Whether a non-forced interrupt may end the cast while this step is current."`
	Payload      map[string]any `json:"payload,omitempty" yaml:"payload,omitempty" toml:"payload,omitempty" jsonschema:"title=Payload,description=Opaque data forwarded to the effect handler."`
}

// AbilityDocument is a single catalog entry as it appears on disk. It is
// exported so the schema generator can reflect over it.
type AbilityDocument struct {
	ID           string         `json:"id" yaml:"id" toml:"id" jsonschema:"title=Catalog id,description=Designer-facing identifier.,pattern=^[a-z0-9-]+$,minLength=1,required"`
	ConfigID     int            `json:"configId" yaml:"configId" toml:"configId" jsonschema:"title=Config id,description=Non-zero runtime ability id.,required"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty" jsonschema:"title=Display name"`
	PreviewRange float64        `json:"previewRange" yaml:"previewRange" toml:"previewRange" jsonschema:"title=Preview range,description=Maximum targeting distance on the ground plane.,minimum=0"`
	CooldownMs   int64          `json:"cooldownMs,omitempty" yaml:"cooldownMs,omitempty" toml:"cooldownMs,omitempty" jsonschema:"title=Cooldown,description=Milliseconds between cast starts.,minimum=0"`
	Steps        []StepDocument `json:"steps" yaml:"steps" toml:"steps" jsonschema:"title=Steps,description=Ordered ability timeline."`
}

// FileDocuments models the canonical array form of a catalog file.
type FileDocuments []AbilityDocument

type tomlFile struct {
	Abilities []AbilityDocument `toml:"abilities"`
}

// Entry is a validated catalog entry.
type Entry struct {
	ID           string
	ConfigID     int
	Name         string
	PreviewRange float64
	Cooldown     time.Duration
	Descriptor   *ability.Descriptor
	Source       string
}

func (e Entry) clone() Entry {
	e.Descriptor = e.Descriptor.Clone()
	return e
}

// Instantiate creates a fresh runtime ability. Runtime timestamps belong to
// the caster that owns the instance; the descriptor is shared.
func (e Entry) Instantiate() *ability.Ability {
	return &ability.Ability{
		ID:           e.ConfigID,
		Name:         e.Name,
		Descriptor:   e.Descriptor,
		PreviewRange: e.PreviewRange,
		Cooldown:     e.Cooldown,
	}
}

func buildDescriptor(steps []StepDocument) *ability.Descriptor {
	d := &ability.Descriptor{
		StepTypes:    make([]ability.StepType, len(steps)),
		Payloads:     make([]ability.Payload, len(steps)),
		Intervals:    make([]time.Duration, len(steps)),
		CanInterrupt: make([]bool, len(steps)),
	}
	for i, step := range steps {
		d.StepTypes[i] = ability.StepType(step.Type)
		if len(step.Payload) > 0 {
			d.Payloads[i] = ability.Payload(step.Payload).Clone()
		}
		d.Intervals[i] = time.Duration(step.IntervalMs) * time.Millisecond
		d.CanInterrupt[i] = step.CanInterrupt
	}
	return d
}
