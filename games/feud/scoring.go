/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package feud

// VisiblePoints is the sum of points over revealed slots.
func VisiblePoints(slots []Slot) int {
	total := 0
	for _, s := range slots {
		if s.Revealed {
			total += s.Points
		}
	}

	return total
}

// stealPoints is the visible total plus the stolen slot, counted once.
func stealPoints(slots []Slot, stolen int) int {
	points := VisiblePoints(slots)

	if stolen >= 0 && stolen < len(slots) && !slots[stolen].Revealed {
		points += slots[stolen].Points
	}

	return points
}

func revealAll(slots []Slot) {
	for i := range slots {
		slots[i].Revealed = true
	}
}
