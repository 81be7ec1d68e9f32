package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/julianstephens/habitenforcer/internal/proof"
)

var confidenceSchema = &genai.Schema{Type: genai.TypeString, Enum: []string{"high", "medium", "low"}}

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"verified":   {Type: genai.TypeBoolean},
		"confidence": confidenceSchema,
		"reasoning":  {Type: genai.TypeString},
	},
	Required: []string{"verified", "confidence", "reasoning"},
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"matched_habit_titles":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"habit_identified":         {Type: genai.TypeString},
		"activity_type":            {Type: genai.TypeString},
		"key_details":              {Type: genai.TypeString},
		"confidence":               confidenceSchema,
		"multiple_habits_detected": {Type: genai.TypeBoolean},
	},
	Required: []string{"matched_habit_titles", "habit_identified", "activity_type", "key_details", "confidence", "multiple_habits_detected"},
}

func imagePart(img proof.Image) *genai.Part {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return genai.NewPartFromBytes(img.Data, mime)
}

// Verify implements proof.Vision.
func (c *Client) Verify(ctx context.Context, img proof.Image, habitTitle, extraContext string) (proof.Verdict, error) {
	var v proof.Verdict
	parts := []*genai.Part{genai.NewPartFromText(verificationPrompt(habitTitle, extraContext)), imagePart(img)}
	if err := c.generateJSON(ctx, c.visionModel, verificationSystemPrompt, parts, verdictSchema, &v); err != nil {
		return proof.Verdict{}, err
	}
	return v, nil
}

// Analyze implements proof.Vision.
func (c *Client) Analyze(ctx context.Context, img proof.Image, userMessage string, habitTitles []string) (proof.Analysis, error) {
	var a proof.Analysis
	parts := []*genai.Part{genai.NewPartFromText(analysisPrompt(userMessage, habitTitles)), imagePart(img)}
	if err := c.generateJSON(ctx, c.visionModel, analysisSystemPrompt, parts, analysisSchema, &a); err != nil {
		return proof.Analysis{}, err
	}
	return a, nil
}
