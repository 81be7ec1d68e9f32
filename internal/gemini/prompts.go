package gemini

import (
	"fmt"
	"strings"
)

const matchSystemPrompt = "You are a semantic matching assistant. Return only valid JSON."

func matchPrompt(input, habitList string) string {
	return fmt.Sprintf(`Given the user input: %q
And these existing habits (id: title):
%s
Return a JSON object with the id of the best matching habit, or null if no good match exists:
{"habit_id": "<id or null>"}

Match semantically: consider synonyms, abbreviations and different phrasings.`, input, habitList)
}

const analysisSystemPrompt = `You analyze images for a habit tracking system. Look at BOTH the user's message and the image and identify ALL habits from the available list that the evidence proves.

A single image can prove MULTIPLE habits. Look carefully at every activity, metric and number shown.

Consider:
1. What the user said in their message (strong signal)
2. What the image shows (activities, distances, durations)
3. Every habit from the available list the image could prove

Extract every numerical value visible in the image with precise units.`

func analysisPrompt(userMessage string, titles []string) string {
	var list strings.Builder
	for _, t := range titles {
		list.WriteString("- " + t + "\n")
	}
	return fmt.Sprintf(`The user sent this message: %q

Along with an image.

Available habits to match against:
%s
Return a JSON object with:
- matched_habit_titles: the EXACT titles from the list above proven by this image (may be several)
- habit_identified: description of all activities shown
- activity_type: primary category (exercise, meditation, reading, nutrition, productivity)
- key_details: all numerical data visible (distances with units, durations, dates)
- confidence: "high", "medium" or "low"
- multiple_habits_detected: true if the image proves two or more habits`, userMessage, list.String())
}

const verificationSystemPrompt = `You verify whether an image is legitimate proof that a habit was completed.

Reason step by step:
1. What do I see in the image? (specific details, numbers, context)
2. What does the habit require?
3. Do they match? (including any comparisons or unit conversions)
4. Final decision

Be rigorous but fair:
- ACCEPT clear, legitimate proof that the user completed or surpassed the requirement
- REJECT images that do not show completion, show unclear evidence or fall short of the requirement`

func verificationPrompt(habitTitle, extra string) string {
	var ctxLine string
	if extra != "" {
		ctxLine = "\nAdditional context: " + extra
	}
	return fmt.Sprintf(`Verify if this image is legitimate proof for completing the habit: %q
%s
Return a JSON object with:
- verified: true or false
- confidence: "high", "medium" or "low"
- reasoning: a step-by-step explanation of 4-6 sentences`, habitTitle, ctxLine)
}
