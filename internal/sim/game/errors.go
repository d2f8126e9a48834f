package game

import (
	"errors"
	"fmt"

	"sitelocation.ai/internal/sim/model"
)

// Stable codes recorded in turn reports and the index.
const (
	CodeTurnTimeout     = "E_TURN_TIMEOUT"
	CodeTurnError       = "E_TURN_ERROR"
	CodeTurnPanic       = "E_TURN_PANIC"
	CodeRuleStoreType   = "E_RULE_STORE_TYPE"
	CodeRuleOutOfBounds = "E_RULE_OUT_OF_BOUNDS"
	CodeConfig          = "E_CONFIG"
)

var (
	ErrTurnTimeout  = errors.New("turn exceeded time budget")
	ErrTurnPanic    = errors.New("turn panicked")
	ErrGameFinished = errors.New("game already finished")
	ErrGameAborted  = errors.New("game aborted")
	ErrNotFinished  = errors.New("game not finished")
)

// TurnError is a failure of a player's decision capability: an error, a panic or a timeout.
type TurnError struct {
	Player model.PlayerID
	Name   string
	Round  int
	Code   string
	Err    error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("round %d: player %d (%s): %s: %v", e.Round, e.Player, e.Name, e.Code, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// RuleViolationError is a protocol breach by a player: an unknown store type or a position off the map.
// It is distinct from running out of money, which silently stops acceptance.
type RuleViolationError struct {
	Player model.PlayerID
	Round  int
	Index  int
	Code   string
	Store  model.Store
}

func (e *RuleViolationError) Error() string {
	switch e.Code {
	case CodeRuleStoreType:
		return fmt.Sprintf("round %d: player %d: candidate %d: invalid store type %q", e.Round, e.Player, e.Index, e.Store.Type)
	case CodeRuleOutOfBounds:
		return fmt.Sprintf("round %d: player %d: candidate %d: position %v out of bounds", e.Round, e.Player, e.Index, e.Store.Pos)
	default:
		return fmt.Sprintf("round %d: player %d: candidate %d: %s", e.Round, e.Player, e.Index, e.Code)
	}
}

// ConfigError is raised at construction time; configuration problems are never defaulted away.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: config %s: %s", CodeConfig, e.Field, e.Reason)
}
