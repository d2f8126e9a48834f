package game

import "fmt"

type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseRoundInProgress
	PhaseRoundComplete
	PhaseFinished
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseRoundInProgress:
		return "RoundInProgress"
	case PhaseRoundComplete:
		return "RoundComplete"
	case PhaseFinished:
		return "Finished"
	case PhaseAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the engine's position in NotStarted → RoundInProgress(k) → RoundComplete(k) → … → Finished.
// Aborted is entered when a fatal error stops the game.
type State struct {
	Phase Phase
	Round int
}

func (s State) String() string {
	switch s.Phase {
	case PhaseRoundInProgress, PhaseRoundComplete:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Round)
	default:
		return s.Phase.String()
	}
}
