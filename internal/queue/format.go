package queue

import "fmt"

// FormatDuration: 65 -> "1:05", 3600 -> "60:00", 0 -> "Unknown".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func (it Item) FormattedDuration() string {
	return FormatDuration(it.Duration)
}
