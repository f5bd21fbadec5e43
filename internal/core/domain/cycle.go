package domain

import (
	"fmt"
	"time"
)

// IsElectionCycle reports whether year is on the canonical cycle grid.
func IsElectionCycle(year int) bool {
	return year%4 == 0
}

// LatestElectionCycle returns the latest cycle not after now.
func LatestElectionCycle(now time.Time) int {
	y := now.Year()
	for !IsElectionCycle(y) {
		y--
	}
	return y
}

// CyclesBetween returns every cycle in [start, end].
func CyclesBetween(start, end int) []int {
	var out []int
	for y := start; y <= end; y++ {
		if IsElectionCycle(y) {
			out = append(out, y)
		}
	}
	return out
}

// ValidateCycles rejects years off the cycle grid.
func ValidateCycles(cycles []int) error {
	for _, c := range cycles {
		if !IsElectionCycle(c) {
			return fmt.Errorf("cycle %d is not divisible by 4", c)
		}
	}
	return nil
}
