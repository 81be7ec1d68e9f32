package gemini

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/proof"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	reply    *genai.GenerateContentResponse
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.reply, nil
}

func reply(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: string(genai.RoleModel), Parts: parts},
	}}}
}

func TestRespondToolCalls(t *testing.T) {
	fake := &fakeModels{reply: reply(&genai.Part{FunctionCall: &genai.FunctionCall{
		Name: "add_habit", Args: map[string]any{"title": "Run"},
	}})}
	c := newClient(fake, Config{ChatModel: "chat-test"})

	resp, err := c.Respond(context.Background(), oracle.Request{
		System: "be strict",
		Messages: []oracle.Message{
			{Role: oracle.RoleSystem, Content: "BASELINE"},
			{Role: oracle.RoleUser, Content: "add run"},
		},
		Tools: []oracle.ToolSpec{{Name: "add_habit", Params: []oracle.Param{
			{Name: "title", Type: oracle.TypeString, Required: true},
			{Name: "start_time", Type: oracle.TypeString, Nullable: true},
		}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "add_habit", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Empty(t, resp.Text)

	assert.Equal(t, "chat-test", fake.model)
	require.Len(t, fake.contents, 2)
	assert.Equal(t, "BASELINE", fake.contents[0].Parts[0].Text)
	decl := fake.config.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, []string{"title"}, decl.Parameters.Required)
	assert.True(t, *decl.Parameters.Properties["start_time"].Nullable)
}

func TestDeclaration(t *testing.T) {
	tests := []struct {
		name     string
		spec     oracle.ToolSpec
		wantNil  bool
		required []string
	}{
		{name: "no params", spec: oracle.ToolSpec{Name: "get_current_time"}, wantNil: true},
		{name: "empty params", spec: oracle.ToolSpec{Name: "get_database_schema", Params: []oracle.Param{}}, wantNil: true},
		{
			name: "with params",
			spec: oracle.ToolSpec{Name: "add_habit", Params: []oracle.Param{
				{Name: "title", Type: oracle.TypeString, Required: true},
				{Name: "deadline", Type: oracle.TypeString, Nullable: true},
			}},
			required: []string{"title"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := Declaration(tt.spec)
			assert.Equal(t, tt.spec.Name, decl.Name)
			if tt.wantNil {
				assert.Nil(t, decl.Parameters)
				return
			}
			require.NotNil(t, decl.Parameters)
			assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
			assert.Len(t, decl.Parameters.Properties, len(tt.spec.Params))
			assert.Equal(t, tt.required, decl.Parameters.Required)
		})
	}
}

func TestRespondSendsFullCatalog(t *testing.T) {
	fake := &fakeModels{reply: reply(&genai.Part{Text: "ok"})}
	c := newClient(fake, Config{ChatModel: "chat-test"})

	_, err := c.Respond(context.Background(), oracle.Request{
		Messages: []oracle.Message{{Role: oracle.RoleUser, Content: "what time is it"}},
		Tools: []oracle.ToolSpec{
			{Name: "get_current_time"},
			{Name: "add_habit", Params: []oracle.Param{{Name: "title", Type: oracle.TypeString, Required: true}}},
		},
	})
	require.NoError(t, err)
	decls := fake.config.Tools[0].FunctionDeclarations
	require.Len(t, decls, 2)
	assert.Nil(t, decls[0].Parameters)
	assert.NotNil(t, decls[1].Parameters)
}

func TestToContentsToolRoundTrip(t *testing.T) {
	contents := toContents([]oracle.Message{
		{Role: oracle.RoleUser, Content: "hi"},
		{Role: oracle.RoleAssistant, ToolCalls: []oracle.ToolCall{{ID: "1", Name: "get_current_time"}}},
		{Role: oracle.RoleTool, ToolResults: []oracle.ToolResult{{CallID: "1", Name: "get_current_time", Payload: map[string]any{"success": true}}}},
		{Role: oracle.RoleAssistant, Content: "done"},
	})
	require.Len(t, contents, 4)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "get_current_time", contents[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, string(genai.RoleUser), contents[2].Role)
	assert.Equal(t, true, contents[2].Parts[0].FunctionResponse.Response["success"])
}

func TestVerifyDecodesVerdict(t *testing.T) {
	fake := &fakeModels{reply: reply(genai.NewPartFromText(`{"verified": true, "confidence": "high", "reasoning": "5.2 km shown"}`))}
	c := newClient(fake, Config{VisionModel: "vision-test"})

	v, err := c.Verify(context.Background(), proof.Image{Data: []byte("img"), MIMEType: "image/png"}, "Run 5K", "")
	require.NoError(t, err)
	assert.Equal(t, proof.Verdict{Verified: true, Confidence: proof.ConfidenceHigh, Reasoning: "5.2 km shown"}, v)
	assert.Equal(t, "vision-test", fake.model)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.True(t, strings.Contains(parts[0].Text, `"Run 5K"`))
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestMatch(t *testing.T) {
	habits := []models.Habit{{ID: "h1", Title: "Run 5K"}, {ID: "h2", Title: "Meditate"}}

	fake := &fakeModels{reply: reply(genai.NewPartFromText(`{"habit_id": "h2"}`))}
	h, ok, err := newClient(fake, Config{}).Match(context.Background(), "mindfulness", habits)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "h2", h.ID)

	fake.reply = reply(genai.NewPartFromText(`{"habit_id": null}`))
	_, ok, err = newClient(fake, Config{}).Match(context.Background(), "swim", habits)
	require.NoError(t, err)
	assert.False(t, ok)
}
