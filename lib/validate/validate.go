package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	goalTitleMin = 3
	taskTitleMin = 2
	titleMax     = 120
)

// GoalTitle checks the title of a big or medium goal. Titles are trimmed
// before measuring; the returned title is the trimmed form to persist.
func GoalTitle(title string) (string, error) {
	return titleBetween(title, goalTitleMin, titleMax, "goal")
}

// TaskTitle checks the title of a daily task.
func TaskTitle(title string) (string, error) {
	return titleBetween(title, taskTitleMin, titleMax, "task")
}

func titleBetween(title string, min, max int, kind string) (string, error) {
	trimmed := strings.TrimSpace(title)
	// Bounds are in characters, not bytes; multibyte titles count each rune once.
	if length := utf8.RuneCountInString(trimmed); length < min || length > max {
		return "", fmt.Errorf("%s title must be between %d and %d characters", kind, min, max)
	}
	return trimmed, nil
}
