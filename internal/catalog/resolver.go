// Package catalog loads designer-authored ability definitions and turns them
// into runtime abilities.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"spellcast/server/internal/ability"
)

// StepTypes reports which step types have an effect handler.
type StepTypes interface {
	Has(step ability.StepType) bool
}

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Resolver merges one or more catalog sources into a lookup table. Call
// Reload to pick up on-disk changes.
type Resolver struct {
	mu       sync.RWMutex
	sources  []source
	known    StepTypes
	entries  map[string]Entry
	byConfig map[int]string
}

// DefaultPaths returns the catalog locations tried when none are configured.
func DefaultPaths() []string {
	return []string{
		filepath.Join("config", "abilities.yaml"),
		filepath.Join("..", "config", "abilities.yaml"),
	}
}

// Load builds a Resolver over catalog files. Missing files are skipped. When
// known is non-nil every step type must have a registered handler.
func Load(known StepTypes, paths ...string) (*Resolver, error) {
	sources := make([]source, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		sources = append(sources, fileSource{path: filepath.Clean(trimmed)})
	}
	return NewResolver(known, sources...)
}

func NewResolver(known StepTypes, sources ...source) (*Resolver, error) {
	r := &Resolver{
		sources:  append([]source(nil), sources...),
		known:    known,
		entries:  make(map[string]Entry),
		byConfig: make(map[int]string),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses all sources. Later sources override entries with the same
// id from earlier ones. On error the previous contents are kept.
func (r *Resolver) Reload() error {
	if r == nil {
		return nil
	}
	entries := make(map[string]Entry)
	for _, src := range r.sources {
		loaded, err := r.load(src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		for _, entry := range loaded {
			entries[entry.ID] = entry
		}
	}

	byConfig := make(map[int]string, len(entries))
	for _, id := range sortedKeys(entries) {
		entry := entries[id]
		if other, dup := byConfig[entry.ConfigID]; dup {
			return fmt.Errorf("catalog: entries %q and %q share configId %d", other, id, entry.ConfigID)
		}
		byConfig[entry.ConfigID] = id
	}

	r.mu.Lock()
	r.entries = entries
	r.byConfig = byConfig
	r.mu.Unlock()
	return nil
}

func (r *Resolver) load(src source) ([]Entry, error) {
	f, err := formatFor(src.Path())
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", src.Path(), err)
	}
	data, err := src.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("catalog: failed loading %s: %w", src.Path(), err)
	}
	docs, err := decodeDocuments(f, data)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed parsing %s: %w", src.Path(), err)
	}

	entries := make([]Entry, 0, len(docs))
	seenIDs := make(map[string]struct{}, len(docs))
	seenConfig := make(map[int]string, len(docs))
	for i, doc := range docs {
		entry, err := r.validate(doc)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s entry %d: %w", src.Path(), i, err)
		}
		if _, dup := seenIDs[entry.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %q in %s", entry.ID, src.Path())
		}
		seenIDs[entry.ID] = struct{}{}
		if other, dup := seenConfig[entry.ConfigID]; dup {
			return nil, fmt.Errorf("catalog: entries %q and %q share configId %d in %s", other, entry.ID, entry.ConfigID, src.Path())
		}
		seenConfig[entry.ConfigID] = entry.ID
		entry.Source = src.Path()
		entries = append(entries, entry)
	}
	return entries, nil
}

// maxDurationMs is the largest millisecond count a time.Duration can hold.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

func (r *Resolver) validate(doc AbilityDocument) (Entry, error) {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return Entry{}, errors.New("missing id")
	}
	if !idPattern.MatchString(id) {
		return Entry{}, fmt.Errorf("id %q must match %s", id, idPattern)
	}
	if doc.ConfigID == 0 {
		return Entry{}, fmt.Errorf("entry %q must set a non-zero configId", id)
	}
	if math.IsNaN(doc.PreviewRange) || math.IsInf(doc.PreviewRange, 0) {
		return Entry{}, fmt.Errorf("entry %q has non-finite previewRange", id)
	}
	if doc.PreviewRange < 0 {
		return Entry{}, fmt.Errorf("entry %q has negative previewRange", id)
	}
	if doc.CooldownMs < 0 {
		return Entry{}, fmt.Errorf("entry %q has negative cooldownMs", id)
	}
	if doc.CooldownMs > maxDurationMs {
		return Entry{}, fmt.Errorf("entry %q cooldownMs exceeds %d", id, maxDurationMs)
	}
	for i, step := range doc.Steps {
		stepType := ability.StepType(strings.TrimSpace(step.Type))
		switch {
		case stepType == "":
			return Entry{}, fmt.Errorf("entry %q step %d is missing a type", id, i)
		case stepType == ability.StepInterrupt:
			return Entry{}, fmt.Errorf("entry %q step %d uses the reserved %q type", id, i, ability.StepInterrupt)
		case step.IntervalMs < 0:
			return Entry{}, fmt.Errorf("entry %q step %d has negative intervalMs", id, i)
		case step.IntervalMs > maxDurationMs:
			return Entry{}, fmt.Errorf("entry %q step %d intervalMs exceeds %d", id, i, maxDurationMs)
		case r.known != nil && !r.known.Has(stepType):
			return Entry{}, fmt.Errorf("entry %q step %d references unregistered step type %q", id, i, stepType)
		}
		doc.Steps[i].Type = string(stepType)
	}

	name := strings.TrimSpace(doc.Name)
	if name == "" {
		name = id
	}
	return Entry{
		ID:           id,
		ConfigID:     doc.ConfigID,
		Name:         name,
		PreviewRange: doc.PreviewRange,
		Cooldown:     msDuration(doc.CooldownMs),
		Descriptor:   buildDescriptor(doc.Steps),
	}, nil
}

func (r *Resolver) Resolve(id string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

func (r *Resolver) ByConfigID(configID int) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	r.mu.RLock()
	id, ok := r.byConfig[configID]
	r.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return r.Resolve(id)
}

// IDs lists the catalog ids in sorted order.
func (r *Resolver) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.entries)
}

func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StepTypes lists every step type referenced by the catalog.
func (r *Resolver) StepTypes() []ability.StepType {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[ability.StepType]struct{})
	for _, entry := range r.entries {
		for _, step := range entry.Descriptor.StepTypes {
			seen[step] = struct{}{}
		}
	}
	types := make([]ability.StepType, 0, len(seen))
	for step := range seen {
		types = append(types, step)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// NewCollection instantiates every catalog ability for one caster.
func (r *Resolver) NewCollection() *ability.Collection {
	collection := ability.NewCollection()
	if r == nil {
		return collection
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range sortedKeys(r.entries) {
		collection.Add(r.entries[id].Instantiate())
	}
	return collection
}

// Validate checks catalog files without building a Resolver. Unlike Load it
// reports missing files. It returns the number of valid entries.
func Validate(known StepTypes, paths ...string) (int, error) {
	r := &Resolver{known: known}
	total := 0
	for _, path := range paths {
		entries, err := r.load(fileSource{path: filepath.Clean(path)})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return total, fmt.Errorf("catalog: %s: %w", path, err)
			}
			return total, err
		}
		total += len(entries)
	}
	return total, nil
}
