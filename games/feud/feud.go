/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package feud implements the round engine for a two-team survey board game.
//
// A moderator reveals ranked answers to a question, records strikes on wrong
// guesses, and resolves control of each round through a face-off, a play/pass
// decision and a final steal. All state lives in a GameState value; commands
// are applied with Apply, which never mutates its input.
package feud

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StealDelay is how long a steal outcome stays on the board before the round advances.
const StealDelay = 2 * time.Second

// NoSlot marks the absence of a steal selection.
const NoSlot = -1

// MaxStrikes is the strike that hands the round to the other team.
const MaxStrikes = 3

type Team int

const (
	NoTeam Team = iota
	TeamA
	TeamB
)

func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Opposite returns the other team, or NoTeam for NoTeam.
func (t Team) Opposite() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return NoTeam
	}
}

func (t Team) String() string {
	switch t {
	case TeamA:
		return "team_a"
	case TeamB:
		return "team_b"
	default:
		return ""
	}
}

func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTeam accepts "a", "team_a" or "1" (and the same for team b).
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "team_a", "1":
		return TeamA, nil
	case "b", "team_b", "2":
		return TeamB, nil
	}

	return NoTeam, fmt.Errorf("%w: %q", ErrInvalidTeam, s)
}

type Phase string

const (
	PhaseFaceOff  Phase = "face_off"
	PhaseDecision Phase = "decision"
	PhasePlaying  Phase = "playing"
	PhaseRobbing  Phase = "robbing"
)

type Choice string

const (
	ChoicePlay Choice = "play"
	ChoicePass Choice = "pass"
)

type Answer struct {
	Label  string `json:"label" mapstructure:"label"`
	Points int    `json:"points" mapstructure:"points"`
}

type Round struct {
	Question string   `json:"question" mapstructure:"question"`
	Answers  []Answer `json:"answers" mapstructure:"answers"`
}

// Total is the sum of every answer's points, the most a round can award.
func (r Round) Total() int {
	total := 0
	for _, a := range r.Answers {
		total += a.Points
	}

	return total
}

func (r Round) validate() error {
	if len(r.Answers) == 0 {
		return errors.New("round has no answers")
	}

	for i, a := range r.Answers {
		if strings.TrimSpace(a.Label) == "" {
			return fmt.Errorf("answer %d has an empty label", i+1)
		}
		if a.Points <= 0 {
			return fmt.Errorf("answer %d (%q) must be worth a positive number of points, got %d", i+1, a.Label, a.Points)
		}
	}

	return nil
}

// Slot is one answer on the board for the live round.
type Slot struct {
	Label    string `json:"label"`
	Points   int    `json:"points"`
	Revealed bool   `json:"revealed"`
}

func newSlots(r Round) []Slot {
	slots := make([]Slot, len(r.Answers))
	for i, a := range r.Answers {
		slots[i] = Slot{Label: a.Label, Points: a.Points}
	}

	return slots
}

type RoundState struct {
	Phase               Phase `json:"phase"`
	Strikes             int   `json:"strikes"`
	Controlling         Team  `json:"controlling"`
	FaceOffWinner       Team  `json:"face_off_winner"`
	OriginalControlling Team  `json:"original_controlling"`
	StealSlot           int   `json:"steal_slot"`
}

func newRoundState() RoundState {
	return RoundState{
		Phase:     PhaseFaceOff,
		StealSlot: NoSlot,
	}
}

type Scores struct {
	A int `json:"team_a"`
	B int `json:"team_b"`
}

func (s Scores) Get(t Team) int {
	switch t {
	case TeamA:
		return s.A
	case TeamB:
		return s.B
	default:
		return 0
	}
}

// Add returns a copy of s with points credited to t.
func (s Scores) Add(t Team, points int) Scores {
	if points <= 0 {
		return s
	}

	switch t {
	case TeamA:
		s.A += points
	case TeamB:
		s.B += points
	}

	return s
}

// Leader returns the team ahead, or NoTeam on a tie.
func (s Scores) Leader() Team {
	switch {
	case s.A > s.B:
		return TeamA
	case s.B > s.A:
		return TeamB
	default:
		return NoTeam
	}
}

// PendingAdvance is a round advance scheduled by a steal outcome. Scores is
// the snapshot computed when the steal was resolved; it is applied as-is
// when the advance fires.
type PendingAdvance struct {
	Reason string        `json:"reason"`
	Team   Team          `json:"team"`
	Points int           `json:"points"`
	Scores Scores        `json:"scores"`
	Delay  time.Duration `json:"delay"`
}

type Result struct {
	Scores Scores `json:"scores"`
	Winner Team   `json:"winner"`
}

type GameState struct {
	Rounds     []Round
	RoundIndex int
	Round      RoundState
	Slots      []Slot
	Scores     Scores
	Pending    *PendingAdvance
	Result     *Result
}

// New starts a fresh game over rounds. Nothing from an earlier game carries over.
func New(rounds []Round) (GameState, error) {
	if len(rounds) == 0 {
		return GameState{}, errors.New("no rounds to play")
	}

	for i, r := range rounds {
		if err := r.validate(); err != nil {
			return GameState{}, fmt.Errorf("round %d: %w", i+1, err)
		}
	}

	return GameState{
		Rounds: rounds,
		Round:  newRoundState(),
		Slots:  newSlots(rounds[0]),
	}, nil
}

func (g GameState) Over() bool {
	return g.Result != nil
}

func (g GameState) CurrentRound() Round {
	if g.RoundIndex < 0 || g.RoundIndex >= len(g.Rounds) {
		return Round{}
	}

	return g.Rounds[g.RoundIndex]
}

func (g GameState) clone() GameState {
	c := g
	c.Slots = append([]Slot(nil), g.Slots...)
	if g.Pending != nil {
		p := *g.Pending
		c.Pending = &p
	}
	if g.Result != nil {
		r := *g.Result
		c.Result = &r
	}

	return c
}
