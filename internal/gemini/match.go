package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/julianstephens/habitenforcer/internal/models"
)

var matchSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"habit_id": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
	},
	Required: []string{"habit_id"},
}

// Match implements habits.Matcher by semantic similarity.
func (c *Client) Match(ctx context.Context, description string, habits []models.Habit) (models.Habit, bool, error) {
	if len(habits) == 0 {
		return models.Habit{}, false, nil
	}
	var list strings.Builder
	for _, h := range habits {
		fmt.Fprintf(&list, "%s: %s\n", h.ID, h.Title)
	}
	var out struct {
		HabitID *string `json:"habit_id"`
	}
	parts := []*genai.Part{genai.NewPartFromText(matchPrompt(description, list.String()))}
	if err := c.generateJSON(ctx, c.chatModel, matchSystemPrompt, parts, matchSchema, &out); err != nil {
		return models.Habit{}, false, err
	}
	if out.HabitID == nil {
		return models.Habit{}, false, nil
	}
	for _, h := range habits {
		if h.ID == *out.HabitID {
			return h, true, nil
		}
	}
	return models.Habit{}, false, nil
}
