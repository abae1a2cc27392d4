/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package feud

import (
	"errors"
	"fmt"
)

var (
	ErrWrongPhase       = errors.New("command not allowed in this phase")
	ErrNoFaceOffWinner  = errors.New("no face-off winner")
	ErrInvalidTeam      = errors.New("invalid team")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrSlotOutOfRange   = errors.New("answer index out of range")
	ErrSlotRevealed     = errors.New("answer already revealed")
	ErrStrikesExhausted = errors.New("no strikes remaining")
	ErrNoStealSelection = errors.New("no steal answer selected")
	ErrNoVisiblePoints  = errors.New("no points on the board")
	ErrAdvancePending   = errors.New("round is over, waiting for the next round")
	ErrNoPendingAdvance = errors.New("no round advance is pending")
	ErrGameOver         = errors.New("game is over")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Command is a moderator action. The set is closed; see Apply.
type Command interface {
	command()
}

type DeclareFaceOffWinner struct{ Team Team }

type DecideControl struct{ Choice Choice }

// RevealAnswer marks a slot revealed while playing. During a steal it only
// selects the slot, exactly like SelectStealCandidate.
type RevealAnswer struct{ Index int }

type RecordStrike struct{}

// SelectStealCandidate toggles the steal selection on an unrevealed slot.
type SelectStealCandidate struct{ Index int }

type ConfirmSteal struct{ Team Team }

type FailSteal struct{}

// EndRound awards the visible points and moves straight on to the next round.
type EndRound struct{ Team Team }

// SkipRound moves on to the next round without awarding anything.
type SkipRound struct{}

// Advance applies a pending advance once its delay has elapsed.
type Advance struct{}

func (DeclareFaceOffWinner) command() {}
func (DecideControl) command()        {}
func (RevealAnswer) command()         {}
func (RecordStrike) command()         {}
func (SelectStealCandidate) command() {}
func (ConfirmSteal) command()         {}
func (FailSteal) command()            {}
func (EndRound) command()             {}
func (SkipRound) command()            {}
func (Advance) command()              {}

// Apply runs cmd against g and returns the resulting state. g is never
// modified. On error the returned state is g unchanged.
func Apply(g GameState, cmd Command) (GameState, error) {
	if g.Over() {
		return g, ErrGameOver
	}

	if g.Pending != nil {
		if _, ok := cmd.(Advance); !ok {
			return g, ErrAdvancePending
		}
	}

	next := g.clone()

	var err error
	switch c := cmd.(type) {
	case DeclareFaceOffWinner:
		err = next.declareFaceOffWinner(c.Team)
	case DecideControl:
		err = next.decideControl(c.Choice)
	case RevealAnswer:
		err = next.revealAnswer(c.Index)
	case RecordStrike:
		err = next.recordStrike()
	case SelectStealCandidate:
		err = next.selectStealCandidate(c.Index)
	case ConfirmSteal:
		err = next.confirmSteal(c.Team)
	case FailSteal:
		err = next.failSteal()
	case EndRound:
		err = next.endRound(c.Team)
	case SkipRound:
		next.advance()
	case Advance:
		err = next.applyPending()
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return g, err
	}

	return next, nil
}

func (g *GameState) requirePhase(want Phase) error {
	if g.Round.Phase != want {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongPhase, g.Round.Phase, want)
	}

	return nil
}

func (g *GameState) slotIndex(i int) error {
	if i < 0 || i >= len(g.Slots) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, i)
	}

	return nil
}

func (g *GameState) declareFaceOffWinner(t Team) error {
	if err := g.requirePhase(PhaseFaceOff); err != nil {
		return err
	}
	if !t.Valid() {
		return ErrInvalidTeam
	}

	g.Round.FaceOffWinner = t
	g.Round.Phase = PhaseDecision

	return nil
}

func (g *GameState) decideControl(c Choice) error {
	if err := g.requirePhase(PhaseDecision); err != nil {
		return err
	}
	if !g.Round.FaceOffWinner.Valid() {
		return ErrNoFaceOffWinner
	}

	switch c {
	case ChoicePlay:
		g.Round.Controlling = g.Round.FaceOffWinner
	case ChoicePass:
		g.Round.Controlling = g.Round.FaceOffWinner.Opposite()
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChoice, c)
	}

	g.Round.OriginalControlling = g.Round.Controlling
	g.Round.Phase = PhasePlaying

	return nil
}

func (g *GameState) revealAnswer(i int) error {
	if g.Round.Phase == PhaseRobbing {
		return g.selectStealCandidate(i)
	}
	if err := g.requirePhase(PhasePlaying); err != nil {
		return err
	}
	if err := g.slotIndex(i); err != nil {
		return err
	}
	if g.Slots[i].Revealed {
		return fmt.Errorf("%w: %d", ErrSlotRevealed, i)
	}

	g.Slots[i].Revealed = true

	return nil
}

func (g *GameState) recordStrike() error {
	if err := g.requirePhase(PhasePlaying); err != nil {
		return err
	}
	if g.Round.Strikes >= MaxStrikes {
		return ErrStrikesExhausted
	}

	g.Round.Strikes++

	if g.Round.Strikes == MaxStrikes {
		g.Round.OriginalControlling = g.Round.Controlling
		g.Round.Controlling = g.Round.Controlling.Opposite()
		g.Round.StealSlot = NoSlot
		g.Round.Phase = PhaseRobbing
	}

	return nil
}

func (g *GameState) selectStealCandidate(i int) error {
	if err := g.requirePhase(PhaseRobbing); err != nil {
		return err
	}
	if err := g.slotIndex(i); err != nil {
		return err
	}

	if g.Round.StealSlot == i {
		g.Round.StealSlot = NoSlot

		return nil
	}

	if g.Slots[i].Revealed {
		return fmt.Errorf("%w: %d", ErrSlotRevealed, i)
	}

	g.Round.StealSlot = i

	return nil
}

func (g *GameState) confirmSteal(t Team) error {
	if err := g.requirePhase(PhaseRobbing); err != nil {
		return err
	}
	if g.Round.StealSlot == NoSlot {
		return ErrNoStealSelection
	}
	if !t.Valid() {
		return ErrInvalidTeam
	}

	points := stealPoints(g.Slots, g.Round.StealSlot)
	g.schedule("steal", t, points)

	return nil
}

func (g *GameState) failSteal() error {
	if err := g.requirePhase(PhaseRobbing); err != nil {
		return err
	}

	g.schedule("steal_failed", g.Round.OriginalControlling, VisiblePoints(g.Slots))

	return nil
}

func (g *GameState) endRound(t Team) error {
	if err := g.requirePhase(PhasePlaying); err != nil {
		return err
	}
	if !t.Valid() {
		return ErrInvalidTeam
	}

	points := VisiblePoints(g.Slots)
	if points <= 0 {
		return ErrNoVisiblePoints
	}

	g.Scores = g.Scores.Add(t, points)
	g.advance()

	return nil
}

// schedule computes the award now, reveals the board for display and parks
// the score snapshot until Advance.
func (g *GameState) schedule(reason string, t Team, points int) {
	g.Pending = &PendingAdvance{
		Reason: reason,
		Team:   t,
		Points: points,
		Scores: g.Scores.Add(t, points),
		Delay:  StealDelay,
	}

	revealAll(g.Slots)
}

func (g *GameState) applyPending() error {
	if g.Pending == nil {
		return ErrNoPendingAdvance
	}

	g.Scores = g.Pending.Scores
	g.Pending = nil
	g.advance()

	return nil
}

// advance moves to the next round, or ends the game when none remain.
func (g *GameState) advance() {
	g.Pending = nil
	g.Round = newRoundState()

	next := g.RoundIndex + 1
	if next >= len(g.Rounds) {
		g.Result = &Result{
			Scores: g.Scores,
			Winner: g.Scores.Leader(),
		}

		return
	}

	g.RoundIndex = next
	g.Slots = newSlots(g.Rounds[next])
}
