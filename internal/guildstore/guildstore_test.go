package guildstore

import "testing"

func TestMaxTranscribers(t *testing.T) {
	tests := []struct {
		tier uint8
		want int
	}{
		{0, 5},
		{1, 10},
		{2, 15},
		{4, 25},
		{10, 25}, // capped
	}
	for _, tt := range tests {
		if got := MaxTranscribers(tt.tier); got != tt.want {
			t.Errorf("MaxTranscribers(%d) = %d, want %d", tt.tier, got, tt.want)
		}
	}
}
