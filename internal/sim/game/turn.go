package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitelocation.ai/internal/sim/model"
)

type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeError         Outcome = "error"
	OutcomePanic         Outcome = "panic"
	OutcomeRuleViolation Outcome = "rule_violation"
)

// TurnReport records how a player's turn went.
type TurnReport struct {
	Outcome    Outcome `json:"outcome"`
	Code       string  `json:"code,omitempty"`
	Error      string  `json:"error,omitempty"`
	ElapsedMS  float64 `json:"elapsed_ms"`
	Candidates int     `json:"candidates"`
	Accepted   int     `json:"accepted"`
}

// Failed reports whether the turn did not complete normally.
func (r TurnReport) Failed() bool { return r.Outcome != "" && r.Outcome != OutcomeOK }

type turnResult struct {
	candidates []model.Store
	report     TurnReport
	err        *TurnError
}

// executeTurn runs one player's decision capability under the turn budget.
//
// The call runs in its own goroutine with a deadline context. On timeout the engine stops waiting,
// seals the placement and moves on; a player that ignores ctx keeps running but can no longer change
// what was taken. Panics are recovered and reported as turn errors.
func executeTurn(ctx context.Context, budget time.Duration, p Player, view TurnView) turnResult {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	defer cancel()

	out := &Placement{}
	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrTurnPanic, r)
			}
		}()
		done <- p.PlaceStores(tctx, view, out)
	}()

	var err error
	timedOut := false
	select {
	case err = <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			timedOut = true
		}
	case <-tctx.Done():
		timedOut = true
	}
	candidates := out.seal()
	elapsed := time.Since(start)

	res := turnResult{
		candidates: candidates,
		report: TurnReport{
			Outcome:    OutcomeOK,
			ElapsedMS:  float64(elapsed.Microseconds()) / 1000.0,
			Candidates: len(candidates),
		},
	}
	if !timedOut && err == nil {
		return res
	}

	te := &TurnError{Player: view.Player, Name: p.Name(), Round: view.Round}
	switch {
	case timedOut:
		te.Code = CodeTurnTimeout
		te.Err = fmt.Errorf("%w after %s", ErrTurnTimeout, budget)
		res.report.Outcome = OutcomeTimeout
	case errors.Is(err, ErrTurnPanic):
		te.Code = CodeTurnPanic
		te.Err = err
		res.report.Outcome = OutcomePanic
	default:
		te.Code = CodeTurnError
		te.Err = err
		res.report.Outcome = OutcomeError
	}
	res.report.Code = te.Code
	res.report.Error = te.Err.Error()
	res.err = te
	return res
}
