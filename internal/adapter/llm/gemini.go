package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// GeminiProvider talks to the Gemini API through the genai SDK.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration

	mu     sync.Mutex
	client *genai.Client
}

// Ensure GeminiProvider implements Provider interface.
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a provider. The SDK client is created on first use
// so a missing key only fails remote calls.
func NewGeminiProvider(apiKey, model string, timeout time.Duration) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, model: model, timeout: timeout}
}

// WithBaseURL points the SDK at a different endpoint.
func (p *GeminiProvider) WithBaseURL(baseURL string) *GeminiProvider {
	p.baseURL = baseURL
	return p
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, &domain.ConfigurationError{Setting: "API_KEY"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cc.HTTPOptions.BaseURL = p.baseURL
	}
	if p.timeout > 0 {
		cc.HTTPOptions.Timeout = genai.Ptr(p.timeout)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return client, nil
}

// NewConversation returns a lazily created chat.
func (p *GeminiProvider) NewConversation(ctx context.Context, cfg ConversationConfig) (Conversation, error) {
	return &geminiConversation{provider: p, config: generateConfig(cfg)}, nil
}

// Generate runs a single prompt.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

type geminiConversation struct {
	provider *GeminiProvider
	config   *genai.GenerateContentConfig

	mu   sync.Mutex
	chat *genai.Chat
}

func (c *geminiConversation) getChat(ctx context.Context) (*genai.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chat != nil {
		return c.chat, nil
	}
	client, err := c.provider.getClient(ctx)
	if err != nil {
		return nil, err
	}
	chat, err := client.Chats.Create(ctx, c.provider.model, c.config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	c.chat = chat
	return chat, nil
}

// SendStream sends the parts and relays text and function calls.
func (c *geminiConversation) SendStream(ctx context.Context, parts ...Part) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		chat, err := c.getChat(ctx)
		if err != nil {
			yield(Event{}, err)
			return
		}
		gparts, err := toGenaiParts(parts)
		if err != nil {
			yield(Event{}, err)
			return
		}

		// Function calls are held until the chat has recorded this exchange,
		// so the follow-up turn extends a complete history.
		var calls []domain.ToolInvocation
		for resp, err := range chat.SendMessageStream(ctx, gparts...) {
			if err != nil {
				yield(Event{}, err)
				return
			}
			ev := fromGenaiResponse(resp)
			calls = append(calls, ev.ToolCalls...)
			if ev.Text == "" {
				continue
			}
			if !yield(Event{Text: ev.Text}, nil) {
				return
			}
		}
		if len(calls) > 0 {
			yield(Event{ToolCalls: calls}, nil)
		}
	}
}

func generateConfig(cfg ConversationConfig) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, t := range cfg.Tools {
			decls = append(decls, functionDeclaration(t))
		}
		gc.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return gc
}

func functionDeclaration(t domain.ToolDeclaration) *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(t.Parameters)),
	}
	for _, p := range t.Parameters {
		schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

func toGenaiParts(parts []Part) ([]genai.Part, error) {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Blob != nil:
			data, err := base64.StdEncoding.DecodeString(p.Blob.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline data: %w", err)
			}
			out = append(out, genai.Part{InlineData: &genai.Blob{MIMEType: p.Blob.MIMEType, Data: data}})
		case p.ToolResult != nil:
			out = append(out, genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       p.ToolResult.CallID,
				Name:     p.ToolResult.Name,
				Response: map[string]any{"result": p.ToolResult.Result},
			}})
		default:
			out = append(out, genai.Part{Text: p.Text})
		}
	}
	return out, nil
}

func fromGenaiResponse(resp *genai.GenerateContentResponse) Event {
	var ev Event
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ev
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			ev.ToolCalls = append(ev.ToolCalls, domain.ToolInvocation{
				CallID: part.FunctionCall.ID,
				Name:   part.FunctionCall.Name,
				Args:   part.FunctionCall.Args,
			})
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	ev.Text = text.String()
	return ev
}
