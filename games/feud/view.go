/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package feud

// SlotView is a board slot as a client sees it. Hidden slots carry no label
// or points for non-moderator clients.
type SlotView struct {
	Number   int    `json:"number"`
	Label    string `json:"label,omitempty"`
	Points   int    `json:"points,omitempty"`
	Revealed bool   `json:"revealed"`
	Selected bool   `json:"selected,omitempty"`
}

// View is the snapshot sent to clients after every command.
type View struct {
	Moderator     bool            `json:"moderator"`
	Round         int             `json:"round"`
	Rounds        int             `json:"rounds"`
	Question      string          `json:"question"`
	Phase         Phase           `json:"phase"`
	Strikes       int             `json:"strikes"`
	MaxStrikes    int             `json:"max_strikes"`
	Controlling   Team            `json:"controlling,omitempty"`
	FaceOffWinner Team            `json:"face_off_winner,omitempty"`
	Original      Team            `json:"original_controlling,omitempty"`
	Slots         []SlotView      `json:"slots"`
	Visible       int             `json:"visible_points"`
	Scores        Scores          `json:"scores"`
	Pending       *PendingAdvance `json:"pending,omitempty"`
	Result        *Result         `json:"result,omitempty"`
}

func NewView(g GameState, moderator bool) View {
	v := View{
		Moderator:     moderator,
		Round:         g.RoundIndex + 1,
		Rounds:        len(g.Rounds),
		Question:      g.CurrentRound().Question,
		Phase:         g.Round.Phase,
		Strikes:       g.Round.Strikes,
		MaxStrikes:    MaxStrikes,
		Controlling:   g.Round.Controlling,
		FaceOffWinner: g.Round.FaceOffWinner,
		Original:      g.Round.OriginalControlling,
		Slots:         make([]SlotView, len(g.Slots)),
		Visible:       VisiblePoints(g.Slots),
		Scores:        g.Scores,
		Pending:       g.Pending,
		Result:        g.Result,
	}

	for i, s := range g.Slots {
		sv := SlotView{
			Number:   i + 1,
			Revealed: s.Revealed,
		}

		if moderator || s.Revealed {
			sv.Label = s.Label
			sv.Points = s.Points
		}

		// Display clients only learn a steal guess once it is confirmed.
		if moderator && g.Round.StealSlot == i {
			sv.Selected = true
		}

		v.Slots[i] = sv
	}

	return v
}
