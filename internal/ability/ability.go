package ability

import (
	"sort"
	"time"
)

// Ability is a caster's runtime instance of a configured ability. The
// descriptor is shared read-only data; the timestamps belong to this caster.
type Ability struct {
	ID           int
	Name         string
	Descriptor   *Descriptor
	PreviewRange float64
	Cooldown     time.Duration

	// LastCastTime is stamped when a cast of this ability starts.
	LastCastTime time.Time
	// LastCompletedTime is stamped when a cast runs to natural completion.
	LastCompletedTime time.Time
}

// Lookup resolves an ability id against a caster's abilities.
type Lookup interface {
	Ability(id int) (*Ability, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(id int) (*Ability, bool)

func (f LookupFunc) Ability(id int) (*Ability, bool) {
	if f == nil {
		return nil, false
	}
	return f(id)
}

// Collection is the set of abilities a single caster owns, keyed by id.
type Collection struct {
	byID map[int]*Ability
}

// NewCollection builds a collection from the provided abilities. Nil entries
// and entries with a zero id are skipped; later duplicates replace earlier
// ones.
func NewCollection(abilities ...*Ability) *Collection {
	c := &Collection{byID: make(map[int]*Ability, len(abilities))}
	for _, ab := range abilities {
		c.Add(ab)
	}
	return c
}

// Add inserts or replaces an ability.
func (c *Collection) Add(ab *Ability) bool {
	if c == nil || ab == nil || ab.ID == 0 {
		return false
	}
	if c.byID == nil {
		c.byID = make(map[int]*Ability)
	}
	c.byID[ab.ID] = ab
	return true
}

// Remove drops the ability with the provided id.
func (c *Collection) Remove(id int) {
	if c == nil || c.byID == nil {
		return
	}
	delete(c.byID, id)
}

// Ability implements Lookup.
func (c *Collection) Ability(id int) (*Ability, bool) {
	if c == nil || id == 0 {
		return nil, false
	}
	ab, ok := c.byID[id]
	return ab, ok
}

// IDs returns the ability ids in ascending order.
func (c *Collection) IDs() []int {
	if c == nil {
		return nil
	}
	ids := make([]int, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len reports the number of abilities.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}
