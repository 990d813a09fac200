package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		left    time.Duration
		want    string
		warning bool
	}{
		{2 * time.Minute, "02:00", false},
		{119*time.Second + 200*time.Millisecond, "02:00", false},
		{61 * time.Second, "01:01", false},
		{31 * time.Second, "00:31", false},
		{30 * time.Second, "00:30", true},
		{500 * time.Millisecond, "00:01", true},
		{0, "00:00", true},
		{-5 * time.Second, "00:00", true},
	}
	for _, tt := range tests {
		deadline := now.Add(tt.left)
		assert.Equal(t, tt.want, FormatCountdown(deadline, now), "left %v", tt.left)
		assert.Equal(t, tt.warning, CountdownWarning(deadline, now), "left %v", tt.left)
	}
	assert.Equal(t, time.Duration(0), Remaining(now.Add(-time.Minute), now))
	assert.Equal(t, 90*time.Second, Remaining(now.Add(90*time.Second), now))
}
