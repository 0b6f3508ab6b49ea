package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// QuietHours is a daily window during which scheduled firings are
// skipped. Format: "HH:MM-HH:MM" (24-hour); "23:00-07:00" wraps midnight.
type QuietHours struct {
	Start time.Duration // offset from midnight
	End   time.Duration
}

// ParseQuietHours parses a "HH:MM-HH:MM" string.
func ParseQuietHours(s string) (QuietHours, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return QuietHours{}, fmt.Errorf("%w: expected HH:MM-HH:MM, got %q", ErrInvalidQuiet, s)
	}

	start, err := parseClock(strings.TrimSpace(from))
	if err != nil {
		return QuietHours{}, fmt.Errorf("%w: start: %w", ErrInvalidQuiet, err)
	}
	end, err := parseClock(strings.TrimSpace(to))
	if err != nil {
		return QuietHours{}, fmt.Errorf("%w: end: %w", ErrInvalidQuiet, err)
	}

	return QuietHours{Start: start, End: end}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether t falls inside the window. The caller converts
// t to the desired timezone. An empty window (Start == End) contains nothing.
func (q QuietHours) Contains(t time.Time) bool {
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	if q.Start <= q.End {
		return offset >= q.Start && offset < q.End
	}
	return offset >= q.Start || offset < q.End
}

func (q QuietHours) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		int(q.Start.Hours()), int(q.Start.Minutes())%60,
		int(q.End.Hours()), int(q.End.Minutes())%60)
}
