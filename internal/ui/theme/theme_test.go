package theme

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total, width int
		filled             int
	}{
		{0, 5, 10, 0},
		{2, 5, 10, 4},
		{5, 5, 10, 10},
		{7, 5, 10, 10},
		{1, 0, 10, 0},
	}
	for _, tt := range tests {
		bar := ProgressBar(tt.done, tt.total, tt.width)
		if got := lipgloss.Width(bar); got != tt.width {
			t.Errorf("ProgressBar(%d, %d, %d) width = %d", tt.done, tt.total, tt.width, got)
		}
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("ProgressBar(%d, %d, %d) filled = %d, want %d", tt.done, tt.total, tt.width, got, tt.filled)
		}
	}
	if ProgressBar(1, 2, 0) != "" {
		t.Error("zero width should render nothing")
	}
}
