package ability

import "time"

// Clock reports the authoritative simulation time.
type Clock interface {
	Now() time.Time
}

// UsabilityPolicy decides whether an ability may start a cast right now
// (cooldowns, resources, silences).
type UsabilityPolicy interface {
	CanUse(ab *Ability) bool
}

// PolicyFunc adapts a function to UsabilityPolicy.
type PolicyFunc func(ab *Ability) bool

func (f PolicyFunc) CanUse(ab *Ability) bool {
	if f == nil {
		return true
	}
	return f(ab)
}

// CooldownPolicy refuses abilities whose cooldown, measured from the last
// cast start, has not yet elapsed.
type CooldownPolicy struct {
	Clock Clock
}

func (p CooldownPolicy) CanUse(ab *Ability) bool {
	if ab == nil {
		return false
	}
	if ab.Cooldown <= 0 || ab.LastCastTime.IsZero() {
		return true
	}
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	return now.Sub(ab.LastCastTime) >= ab.Cooldown
}

// AllOf combines policies; the ability is usable only if every policy agrees.
func AllOf(policies ...UsabilityPolicy) UsabilityPolicy {
	return PolicyFunc(func(ab *Ability) bool {
		for _, policy := range policies {
			if policy != nil && !policy.CanUse(ab) {
				return false
			}
		}
		return true
	})
}
