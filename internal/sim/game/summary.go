package game

import "sitelocation.ai/internal/sim/model"

// RoundLogger receives one summary per completed round. Implementations must not block the engine
// for long; slow consumers should buffer or drop.
type RoundLogger interface {
	WriteRound(s RoundSummary) error
}

// RoundSummary is the flat, serializable view of a settled round handed to loggers, the index and
// observers.
type RoundSummary struct {
	GameID  string        `json:"game_id"`
	Round   int           `json:"round"`
	Rounds  int           `json:"rounds"`
	Final   bool          `json:"final,omitempty"`
	Winner  *int          `json:"winner,omitempty"`
	Digest  string        `json:"digest"`
	Players []PlayerRound `json:"players"`
}

type PlayerRound struct {
	Player      model.PlayerID `json:"player"`
	Name        string         `json:"name"`
	Funds       float64        `json:"funds"`
	Revenue     float64        `json:"revenue"`
	Cost        float64        `json:"cost"`
	Share       float64        `json:"share"`
	Placed      []model.Store  `json:"placed,omitempty"`
	TotalStores int            `json:"total_stores"`
	Turn        TurnReport     `json:"turn"`
}

// Summarize flattens an entry. names maps player ids to display names and may be nil.
func Summarize(gameID string, rounds int, e *Entry, names []string) RoundSummary {
	s := RoundSummary{
		GameID: gameID,
		Round:  e.Round(),
		Rounds: rounds,
		Final:  e.Round() == rounds,
		Digest: e.Digest(),
	}
	for _, id := range e.Players() {
		name := ""
		if int(id) >= 0 && int(id) < len(names) {
			name = names[id]
		}
		turn, _ := e.Turn(id)
		s.Players = append(s.Players, PlayerRound{
			Player:      id,
			Name:        name,
			Funds:       e.Funds(id),
			Revenue:     e.Revenue(id),
			Cost:        e.Cost(id),
			Share:       e.Share(id),
			Placed:      e.Placed(id),
			TotalStores: len(e.stores[id]),
			Turn:        turn,
		})
	}
	if s.Final {
		if w, ok := winnerOf(e); ok {
			wi := int(w)
			s.Winner = &wi
		}
	}
	return s
}
