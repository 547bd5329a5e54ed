package appointment

import "fmt"

// parseHHMM converts an "HH:MM" string to minutes since midnight.
func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

func formatHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GenerateSlots produces the ordered slot-start times for a working-hours
// window. Each slot occupies durationMin minutes and must end at or before
// the window end; the cursor advances by durationMin+bufferMin. A degenerate
// window yields an empty result.
func GenerateSlots(start, end string, durationMin, bufferMin int) []string {
	if durationMin <= 0 || bufferMin < 0 {
		return nil
	}
	startMin, err := parseHHMM(start)
	if err != nil {
		return nil
	}
	endMin, err := parseHHMM(end)
	if err != nil {
		return nil
	}

	var slots []string
	for cur := startMin; cur+durationMin <= endMin; cur += durationMin + bufferMin {
		slots = append(slots, formatHHMM(cur))
	}
	return slots
}
