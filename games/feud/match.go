/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package feud

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	return strings.Join(fields, " ")
}

// tolerance allows roughly one typo per four characters of the label.
func tolerance(label string) int {
	return len([]rune(label)) / 4
}

// Match finds the unrevealed slot whose label best fits a typed guess.
// It only suggests; nothing on the board changes.
func Match(g GameState, guess string) (int, bool) {
	want := normalize(guess)
	if want == "" {
		return NoSlot, false
	}

	best, bestDist := NoSlot, 0
	for i, s := range g.Slots {
		if s.Revealed {
			continue
		}

		label := normalize(s.Label)
		dist := levenshtein.ComputeDistance(want, label)
		if dist > tolerance(label) {
			continue
		}

		if best == NoSlot || dist < bestDist {
			best, bestDist = i, dist
		}
	}

	return best, best != NoSlot
}
