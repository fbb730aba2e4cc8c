package rules

import (
	"testing"
	"time"
)

func TestMessageBeforeBreaksTiesByID(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		aTime    time.Time
		aID      int64
		bTime    time.Time
		bID      int64
		expected bool
	}{
		{name: "earlier timestamp wins", aTime: at, aID: 9, bTime: at.Add(time.Second), bID: 1, expected: true},
		{name: "later timestamp loses", aTime: at.Add(time.Second), aID: 1, bTime: at, bID: 9, expected: false},
		{name: "equal timestamps fall back to id", aTime: at, aID: 3, bTime: at, bID: 4, expected: true},
		{name: "equal timestamps reversed ids", aTime: at, aID: 4, bTime: at, bID: 3, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MessageBefore(tc.aTime, tc.aID, tc.bTime, tc.bID); got != tc.expected {
				t.Fatalf("unexpected ordering: got %v want %v", got, tc.expected)
			}
		})
	}
}
