package habits

import (
	"context"
	"strings"

	"github.com/julianstephens/habitenforcer/internal/models"
)

// TitleMatcher matches by case-insensitive title: an exact match wins,
// otherwise the description must be contained in exactly one title (or
// contain exactly one title).
type TitleMatcher struct{}

func (TitleMatcher) Match(_ context.Context, description string, habits []models.Habit) (models.Habit, bool, error) {
	want := strings.ToLower(strings.TrimSpace(description))
	if want == "" {
		return models.Habit{}, false, nil
	}
	for _, h := range habits {
		if strings.ToLower(h.Title) == want {
			return h, true, nil
		}
	}
	var found []models.Habit
	for _, h := range habits {
		title := strings.ToLower(h.Title)
		if strings.Contains(title, want) || strings.Contains(want, title) {
			found = append(found, h)
		}
	}
	if len(found) == 1 {
		return found[0], true, nil
	}
	return models.Habit{}, false, nil
}

// FindByTitle returns the habit whose title equals title, ignoring case.
func FindByTitle(habits []models.HabitStatus, title string) (models.HabitStatus, bool) {
	for _, h := range habits {
		if strings.EqualFold(strings.TrimSpace(h.Title), strings.TrimSpace(title)) {
			return h, true
		}
	}
	return models.HabitStatus{}, false
}
