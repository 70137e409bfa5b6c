package arena

import (
	"errors"
	"fmt"
	"time"

	"spellcast/server/internal/geom"
	"spellcast/server/logging/casting"
)

type CommandType string

const (
	CommandSpawn      CommandType = "spawn"
	CommandMove       CommandType = "move"
	CommandCast       CommandType = "cast"
	CommandInterrupt  CommandType = "interrupt"
	CommandSetEnabled CommandType = "set_enabled"
	CommandDespawn    CommandType = "despawn"
)

var ErrInvalidCommand = errors.New("arena: invalid command")

// CastCommand requests a cast. TargetID is used by target mode, Point by the
// point and direction modes.
type CastCommand struct {
	AbilityID int          `json:"abilityId"`
	Mode      casting.Mode `json:"mode"`
	TargetID  string       `json:"targetId,omitempty"`
	Point     *geom.Vec3   `json:"point,omitempty"`
}

// Command is an intent applied on the next tick.
type Command struct {
	Type     CommandType  `json:"type"`
	UnitID   string       `json:"unitId,omitempty"`
	Position *geom.Vec3   `json:"position,omitempty"`
	Cast     *CastCommand `json:"cast,omitempty"`
	Enabled  *bool        `json:"enabled,omitempty"`
	Force    bool         `json:"force,omitempty"`
	IssuedAt time.Time    `json:"issuedAt,omitempty"`
}

// Validate checks the command's shape. Whether the referenced units and
// abilities exist is only known when it is applied.
func (c Command) Validate() error {
	switch c.Type {
	case CommandSpawn:
		return nil
	case CommandMove:
		if c.Position == nil {
			return fmt.Errorf("%w: move requires a position", ErrInvalidCommand)
		}
	case CommandCast:
		if c.Cast == nil {
			return fmt.Errorf("%w: cast requires a cast block", ErrInvalidCommand)
		}
		switch c.Cast.Mode {
		case casting.ModeTarget:
		case casting.ModePoint, casting.ModeDirection:
			if c.Cast.Point == nil {
				return fmt.Errorf("%w: %s cast requires a point", ErrInvalidCommand, c.Cast.Mode)
			}
		default:
			return fmt.Errorf("%w: unknown cast mode %q", ErrInvalidCommand, c.Cast.Mode)
		}
	case CommandSetEnabled:
		if c.Enabled == nil {
			return fmt.Errorf("%w: set_enabled requires enabled", ErrInvalidCommand)
		}
	case CommandInterrupt, CommandDespawn:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, c.Type)
	}
	if c.UnitID == "" {
		return fmt.Errorf("%w: %s requires a unitId", ErrInvalidCommand, c.Type)
	}
	return nil
}
