package model

import (
	"math"
	"testing"
)

func TestBoundTimeSpent(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{120, 120},
		{MaxTimeSpentSeconds, MaxTimeSpentSeconds},
		{MaxTimeSpentSeconds + 1, MaxTimeSpentSeconds},
		{math.MaxInt32, MaxTimeSpentSeconds},
	}
	for _, tt := range tests {
		if got := BoundTimeSpent(tt.in); got != tt.want {
			t.Errorf("BoundTimeSpent(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
