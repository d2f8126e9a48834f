// Package game runs the round loop: turns, validation, allocation, scoring and the append-only history.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sitelocation.ai/internal/sim/allocation"
	"sitelocation.ai/internal/sim/gridmap"
	"sitelocation.ai/internal/sim/model"
)

type Option func(*Game)

// WithLogger sets the engine logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(g *Game) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRoundLogger registers a sink that receives every completed round. May be given more than once.
func WithRoundLogger(l RoundLogger) Option {
	return func(g *Game) {
		if l != nil {
			g.sinks = append(g.sinks, l)
		}
	}
}

// WithID overrides the generated game id.
func WithID(id string) Option {
	return func(g *Game) {
		if id != "" {
			g.id = id
		}
	}
}

// WithPolicy overrides the allocation policy named in the config.
func WithPolicy(p allocation.Policy) Option {
	return func(g *Game) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithMap supplies the round-0 map instead of generating one from the config seed.
// Its size must match the config.
func WithMap(m *gridmap.Map) Option {
	return func(g *Game) { g.initialMap = m }
}

// Game owns the history and is the only writer to it. Rounds are played one at a time.
type Game struct {
	id      string
	cfg     Config
	policy  allocation.Policy
	players []Player
	names   []string
	logger  *log.Logger
	sinks   []RoundLogger

	initialMap *gridmap.Map
	startedAt  time.Time

	playMu sync.Mutex

	mu         sync.RWMutex
	state      State
	abortErr   error
	timeouts   map[model.PlayerID]int
	failures   map[model.PlayerID]int
	violations map[model.PlayerID]int

	history History
}

// New validates the config, builds the round-0 map and seeds the history. Player i gets id i.
func New(cfg Config, players []Player, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, &ConfigError{Field: "players", Reason: "at least one player is required"}
	}
	g := &Game{
		id:         uuid.NewString(),
		cfg:        cfg,
		players:    make([]Player, len(players)),
		names:      make([]string, len(players)),
		logger:     log.New(io.Discard, "", 0),
		startedAt:  time.Now().UTC(),
		timeouts:   map[model.PlayerID]int{},
		failures:   map[model.PlayerID]int{},
		violations: map[model.PlayerID]int{},
	}
	for i, p := range players {
		if p == nil {
			return nil, &ConfigError{Field: "players", Reason: fmt.Sprintf("player %d is nil", i)}
		}
		g.players[i] = p
		g.names[i] = p.Name()
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.policy == nil {
		p, err := allocation.ByName(cfg.AllocationPolicy, cfg.MaxDistance)
		if err != nil {
			return nil, &ConfigError{Field: "allocation.policy", Reason: err.Error()}
		}
		g.policy = p
	}

	m := g.initialMap
	if m == nil {
		var err error
		m, err = gridmap.New(cfg.Rows, cfg.Cols, cfg.Population, cfg.Seed)
		if err != nil {
			return nil, &ConfigError{Field: "map_size", Reason: err.Error()}
		}
	} else if m.Rows() != cfg.Rows || m.Cols() != cfg.Cols {
		return nil, &ConfigError{Field: "map_size", Reason: fmt.Sprintf("map is %dx%d, config wants %dx%d", m.Rows(), m.Cols(), cfg.Rows, cfg.Cols)}
	} else {
		m = m.Clone()
	}

	seed := SeedEntry(cfg, g.policy, m, len(players))
	g.history.append(seed)
	return g, nil
}

func (g *Game) ID() string                { return g.id }
func (g *Game) Config() Config            { return g.cfg }
func (g *Game) Policy() allocation.Policy { return g.policy }
func (g *Game) History() *History         { return &g.history }
func (g *Game) StartedAt() time.Time      { return g.startedAt }

// PlayerNames returns the display names indexed by player id.
func (g *Game) PlayerNames() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

func (g *Game) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Err returns the error that aborted the game, if any.
func (g *Game) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.abortErr
}

// Play runs the remaining rounds. ctx is checked between rounds only: a round that has started
// always runs to completion under its turn budgets.
func (g *Game) Play(ctx context.Context) (Result, error) {
	for {
		st := g.State()
		if st.Phase == PhaseFinished {
			return g.Result()
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if _, err := g.PlayRound(ctx); err != nil {
			return Result{}, err
		}
	}
}

// PlayRound plays the next round and returns its history entry.
func (g *Game) PlayRound(ctx context.Context) (*Entry, error) {
	g.playMu.Lock()
	defer g.playMu.Unlock()

	g.mu.Lock()
	switch g.state.Phase {
	case PhaseFinished:
		g.mu.Unlock()
		return nil, ErrGameFinished
	case PhaseAborted:
		err := g.abortErr
		g.mu.Unlock()
		return nil, err
	}
	prev := g.history.Latest()
	round := prev.round + 1
	g.state = State{Phase: PhaseRoundInProgress, Round: round}
	g.mu.Unlock()

	g.logger.Printf("game=%s round=%d/%d start", g.id, round, g.cfg.Rounds)

	m := prev.m.Clone()
	results := g.runTurns(ctx, round, m, prev)

	placed := make(map[model.PlayerID][]model.Store, len(g.players))
	turns := make(map[model.PlayerID]TurnReport, len(g.players))
	var timeouts, failures, violations []model.PlayerID
	for i, res := range results {
		id := model.PlayerID(i)
		report := res.report
		if res.err != nil {
			if res.err.Code == CodeTurnTimeout {
				timeouts = append(timeouts, id)
			} else {
				failures = append(failures, id)
			}
			if g.cfg.Isolation == Strict {
				g.countTurns(timeouts, failures, violations)
				return nil, g.abort(round, res.err)
			}
			g.logger.Printf("game=%s round=%d player=%d (%s) turn failed code=%s kept=%d: %v", g.id, round, id, g.names[i], res.err.Code, len(res.candidates), res.err.Err)
		}

		accepted, _, err := ValidateStores(g.cfg, id, round, res.candidates, prev.funds[id])
		if err != nil {
			violations = append(violations, id)
			if g.cfg.Isolation == Strict {
				g.countTurns(timeouts, failures, violations)
				return nil, g.abort(round, err)
			}
			g.logger.Printf("game=%s round=%d player=%d (%s) rule violation, turn void: %v", g.id, round, id, g.names[i], err)
			if report.Outcome == OutcomeOK {
				report.Outcome = OutcomeRuleViolation
			}
			var rv *RuleViolationError
			if errors.As(err, &rv) {
				report.Code = rv.Code
			}
			report.Error = err.Error()
			accepted = nil
		}
		for _, s := range accepted {
			g.logger.Printf("game=%s round=%d player=%d (%s) placed %s at %v", g.id, round, id, g.names[i], s.Type, s.Pos)
		}
		report.Accepted = len(accepted)
		placed[id] = accepted
		turns[id] = report
	}
	g.countTurns(timeouts, failures, violations)

	st := Settle(g.cfg, g.policy, m, prev.stores, prev.funds, placed)
	e := newEntry(round, m, st, placed, turns)
	for _, id := range e.Players() {
		g.logger.Printf("game=%s round=%d player=%d (%s) earned=%.2f spent=%.2f funds=%.2f", g.id, round, id, g.names[id], e.revenue[id], e.cost[id], e.funds[id])
	}

	g.mu.Lock()
	g.history.append(e)
	if round >= g.cfg.Rounds {
		g.state = State{Phase: PhaseFinished, Round: round}
	} else {
		g.state = State{Phase: PhaseRoundComplete, Round: round}
	}
	g.mu.Unlock()

	if round >= g.cfg.Rounds {
		if w, ok := winnerOf(e); ok {
			g.logger.Printf("game=%s finished winner=%d (%s) funds=%.2f", g.id, w, g.names[w], e.funds[w])
		}
	}
	g.emit(e)
	return e, nil
}

// runTurns executes every player's turn against the previous round's state. Each player gets a
// private copy of the store view, so turns never observe each other.
func (g *Game) runTurns(ctx context.Context, round int, m *gridmap.Map, prev *Entry) []turnResult {
	results := make([]turnResult, len(g.players))
	view := func(i int) TurnView {
		id := model.PlayerID(i)
		return TurnView{
			Player: id,
			Round:  round,
			Map:    m,
			Stores: prev.stores.Clone(),
			Funds:  prev.funds[id],
			Config: g.cfg,
		}
	}

	if !g.cfg.ParallelTurns {
		for i, p := range g.players {
			results[i] = executeTurn(ctx, g.cfg.TurnBudget, p, view(i))
			if results[i].err != nil && g.cfg.Isolation == Strict {
				return results[:i+1]
			}
		}
		return results
	}

	var eg errgroup.Group
	for i, p := range g.players {
		i, p := i, p
		v := view(i)
		eg.Go(func() error {
			results[i] = executeTurn(ctx, g.cfg.TurnBudget, p, v)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (g *Game) countTurns(timeouts, failures, violations []model.PlayerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range timeouts {
		g.timeouts[id]++
	}
	for _, id := range failures {
		g.failures[id]++
	}
	for _, id := range violations {
		g.violations[id]++
	}
}

func (g *Game) abort(round int, cause error) error {
	err := fmt.Errorf("%w in round %d: %w", ErrGameAborted, round, cause)
	g.mu.Lock()
	g.state = State{Phase: PhaseAborted, Round: round}
	g.abortErr = err
	g.mu.Unlock()
	g.logger.Printf("game=%s aborted: %v", g.id, cause)
	return err
}

func (g *Game) emit(e *Entry) {
	if len(g.sinks) == 0 {
		return
	}
	s := Summarize(g.id, g.cfg.Rounds, e, g.names)
	for _, sink := range g.sinks {
		if err := sink.WriteRound(s); err != nil {
			g.logger.Printf("game=%s round=%d round logger: %v", g.id, e.round, err)
		}
	}
}

// Timeouts returns the number of timed-out turns across all players.
func (g *Game) Timeouts() int { return g.total(g.timeouts) }

// Failures returns the number of turns that returned an error or panicked.
func (g *Game) Failures() int { return g.total(g.failures) }

// RuleViolations returns the number of turns voided by a rule violation.
func (g *Game) RuleViolations() int { return g.total(g.violations) }

func (g *Game) total(m map[model.PlayerID]int) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Winner returns the player with the highest funds after the last round; ties go to the lowest id.
func (g *Game) Winner() (model.PlayerID, error) {
	if g.State().Phase != PhaseFinished {
		return 0, ErrNotFinished
	}
	w, _ := winnerOf(g.history.Latest())
	return w, nil
}

// Scores returns each player's share of the total final funds, indexed by player id.
// All scores are zero when the total is not positive.
func (g *Game) Scores() ([]float64, error) {
	if g.State().Phase != PhaseFinished {
		return nil, ErrNotFinished
	}
	return scoresOf(g.history.Latest(), len(g.players)), nil
}

// Result is the final standing of a finished game.
type Result struct {
	GameID         string                 `json:"game_id"`
	Rounds         int                    `json:"rounds"`
	Winner         model.PlayerID         `json:"winner"`
	WinnerName     string                 `json:"winner_name"`
	Players        []string               `json:"players"`
	Funds          []float64              `json:"funds"`
	Scores         []float64              `json:"scores"`
	Digest         string                 `json:"digest"`
	Timeouts       map[model.PlayerID]int `json:"timeouts,omitempty"`
	Failures       map[model.PlayerID]int `json:"failures,omitempty"`
	RuleViolations map[model.PlayerID]int `json:"rule_violations,omitempty"`
}

func (g *Game) Result() (Result, error) {
	w, err := g.Winner()
	if err != nil {
		return Result{}, err
	}
	last := g.history.Latest()
	r := Result{
		GameID:     g.id,
		Rounds:     last.round,
		Winner:     w,
		WinnerName: g.names[w],
		Players:    g.PlayerNames(),
		Funds:      make([]float64, len(g.players)),
		Scores:     scoresOf(last, len(g.players)),
		Digest:     last.digest,
	}
	for i := range g.players {
		r.Funds[i] = last.funds[model.PlayerID(i)]
	}
	g.mu.RLock()
	r.Timeouts = copyCounts(g.timeouts)
	r.Failures = copyCounts(g.failures)
	r.RuleViolations = copyCounts(g.violations)
	g.mu.RUnlock()
	return r, nil
}

func winnerOf(e *Entry) (model.PlayerID, bool) {
	ids := e.Players()
	if len(ids) == 0 {
		return 0, false
	}
	best := ids[0]
	for _, id := range ids[1:] {
		if e.funds[id] > e.funds[best] {
			best = id
		}
	}
	return best, true
}

func scoresOf(e *Entry, n int) []float64 {
	out := make([]float64, n)
	ids := e.Players()
	total := 0.0
	for _, id := range ids {
		total += e.funds[id]
	}
	if total <= 0 {
		return out
	}
	for _, id := range ids {
		if int(id) >= 0 && int(id) < n {
			out[id] = e.funds[id] / total
		}
	}
	return out
}

func copyCounts(m map[model.PlayerID]int) map[model.PlayerID]int {
	out := make(map[model.PlayerID]int, len(m))
	for k, v := range m {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}
