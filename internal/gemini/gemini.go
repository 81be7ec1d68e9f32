// Package gemini backs the oracle, proof vision and habit matching
// contracts with Google's Gemini models.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/oracle"
)

// generator is the part of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey      string
	ChatModel   string
	VisionModel string
}

type Client struct {
	models      generator
	chatModel   string
	visionModel string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newClient(client.Models, cfg), nil
}

func newClient(g generator, cfg Config) *Client {
	if cfg.ChatModel == "" {
		cfg.ChatModel = constants.DefaultChatModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = constants.DefaultVisionModel
	}
	return &Client{models: g, chatModel: cfg.ChatModel, visionModel: cfg.VisionModel}
}

// Respond sends the conversation and tool catalog to the chat model.
func (c *Client) Respond(ctx context.Context, req oracle.Request) (oracle.Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, spec := range req.Tools {
			decls = append(decls, Declaration(spec))
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := c.models.GenerateContent(ctx, c.chatModel, toContents(req.Messages), cfg)
	if err != nil {
		return oracle.Response{}, fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return oracle.Response{}, fmt.Errorf("gemini returned no candidates")
	}

	out := oracle.Response{}
	for i, fc := range resp.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}
		out.ToolCalls = append(out.ToolCalls, oracle.ToolCall{ID: id, Name: fc.Name, Args: fc.Args})
	}
	if len(out.ToolCalls) == 0 {
		out.Text = resp.Text()
	}
	return out, nil
}

// toContents maps the conversation onto Gemini's two roles. System
// messages inside the conversation are sent as user text.
func toContents(msgs []oracle.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case oracle.RoleAssistant:
			content := &genai.Content{Role: string(genai.RoleModel)}
			if m.Content != "" {
				content.Parts = append(content.Parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Args}})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case oracle.RoleTool:
			content := &genai.Content{Role: string(genai.RoleUser)}
			for _, tr := range m.ToolResults {
				content.Parts = append(content.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: tr.CallID, Name: tr.Name, Response: tr.Payload}})
			}
			contents = append(contents, content)
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents
}

var paramTypes = map[oracle.ParamType]genai.Type{
	oracle.TypeString:  genai.TypeString,
	oracle.TypeInteger: genai.TypeInteger,
	oracle.TypeNumber:  genai.TypeNumber,
	oracle.TypeBoolean: genai.TypeBoolean,
}

// Declaration converts a tool spec into a function declaration. Tools
// without parameters carry no schema; the API rejects an OBJECT with no
// properties.
func Declaration(spec oracle.ToolSpec) *genai.FunctionDeclaration {
	decl := &genai.FunctionDeclaration{Name: spec.Name, Description: spec.Description}
	if len(spec.Params) == 0 {
		return decl
	}
	schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	for _, p := range spec.Params {
		prop := &genai.Schema{Type: paramTypes[p.Type], Description: p.Description}
		if p.Nullable {
			prop.Nullable = genai.Ptr(true)
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	decl.Parameters = schema
	return decl
}

// generateJSON asks model for a JSON reply matching schema and decodes it
// into out.
func (c *Client) generateJSON(ctx context.Context, model, system string, parts []*genai.Part, schema *genai.Schema, out any) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}
	contents := []*genai.Content{{Role: string(genai.RoleUser), Parts: parts}}
	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fmt.Errorf("gemini returned an empty response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return nil
}
