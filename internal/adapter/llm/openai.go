package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// Client is an OpenAI-compatible chat completions client (LiteLLM or any
// gateway exposing /v1/chat/completions).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChatCompletionRequest represents the OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
}

// ChatMessage represents a chat message.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// MessageContent is either plain text or a list of typed parts.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	ImageURL *ImageURL  `json:"image_url,omitempty"`
	File     *InputFile `json:"file,omitempty"`
}

// ImageURL carries an image as a data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// InputFile carries a document as a data URL.
type InputFile struct {
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data"`
}

// MarshalJSON emits a string unless parts are present.
func (m MessageContent) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(m.Parts)
	}
	return json.Marshal(m.Text)
}

// UnmarshalJSON accepts a string, null or a parts array.
func (m *MessageContent) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = MessageContent{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &m.Text)
	}
	if err := json.Unmarshal(data, &m.Parts); err != nil {
		return err
	}
	var text strings.Builder
	for _, p := range m.Parts {
		text.WriteString(p.Text)
	}
	m.Text = text.String()
	return nil
}

// Tool represents a tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction represents a function definition.
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// ToolCall represents a tool call from the assistant. Index is only set on
// streamed deltas.
type ToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function in a tool call.
type ToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ChatCompletionResponse represents the OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *ChatMessage `json:"delta,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// StreamChunk represents a single SSE chunk from the stream.
type StreamChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError represents the error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// CreateChatCompletion sends a chat completion request (non-streaming).
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	req.Stream = false

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, respBody)
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// StreamCallback is called for each chunk in a streaming response.
type StreamCallback func(chunk *StreamChunk) error

// CreateChatCompletionStream sends a streaming chat completion request.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) error {
	req.Stream = true

	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, respBody)
	}

	// Parse SSE stream
	reader := bufio.NewReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks
			continue
		}
		if err := callback(&chunk); err != nil {
			return err
		}
	}
}

func (c *Client) post(ctx context.Context, req *ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func apiError(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("LLM API error [%d]: %s (type: %s)", status, errResp.Error.Message, errResp.Error.Type)
	}
	return fmt.Errorf("LLM API error [%d]: %s", status, string(body))
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// OpenAIProvider adapts Client to the Provider interface.
type OpenAIProvider struct {
	client *Client
	apiKey string
	model  string
}

// Ensure OpenAIProvider implements Provider interface.
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider for an OpenAI-compatible gateway.
func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		client: NewClient(baseURL, apiKey, timeout),
		apiKey: apiKey,
		model:  model,
	}
}

// NewConversation returns a conversation that keeps its history locally.
func (p *OpenAIProvider) NewConversation(ctx context.Context, cfg ConversationConfig) (Conversation, error) {
	conv := &openAIConversation{provider: p, temperature: cfg.Temperature}
	if cfg.SystemPrompt != "" {
		conv.history = append(conv.history, ChatMessage{Role: "system", Content: MessageContent{Text: cfg.SystemPrompt}})
	}
	for _, t := range cfg.Tools {
		conv.tools = append(conv.tools, openAITool(t))
	}
	return conv, nil
}

// Generate runs a single prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if p.apiKey == "" {
		return "", &domain.ConfigurationError{Setting: "API_KEY"}
	}
	resp, err := p.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model:       p.model,
		Messages:    []ChatMessage{{Role: "user", Content: MessageContent{Text: prompt}}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", nil
	}
	return resp.Choices[0].Message.Content.Text, nil
}

var errStreamStopped = errors.New("stream consumer stopped")

type openAIConversation struct {
	provider    *OpenAIProvider
	temperature float32
	tools       []Tool

	mu      sync.Mutex
	history []ChatMessage
}

// SendStream appends parts to the history, streams the reply and records it.
func (c *openAIConversation) SendStream(ctx context.Context, parts ...Part) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if c.provider.apiKey == "" {
			yield(Event{}, &domain.ConfigurationError{Setting: "API_KEY"})
			return
		}

		c.mu.Lock()
		pending := append(append([]ChatMessage(nil), c.history...), toChatMessages(parts)...)
		c.mu.Unlock()

		req := &ChatCompletionRequest{
			Model:       c.provider.model,
			Messages:    pending,
			Temperature: &c.temperature,
			Tools:       c.tools,
		}

		var text strings.Builder
		calls := make(map[int]*ToolCall)
		err := c.provider.client.CreateChatCompletionStream(ctx, req, func(chunk *StreamChunk) error {
			for _, choice := range chunk.Choices {
				if choice.Delta == nil {
					continue
				}
				for _, tc := range choice.Delta.ToolCalls {
					mergeToolCallDelta(calls, tc)
				}
				if s := choice.Delta.Content.Text; s != "" {
					text.WriteString(s)
					if !yield(Event{Text: s}, nil) {
						return errStreamStopped
					}
				}
			}
			return nil
		})
		if errors.Is(err, errStreamStopped) {
			return
		}
		if err != nil {
			yield(Event{}, err)
			return
		}

		ordered := orderedToolCalls(calls)
		c.mu.Lock()
		c.history = append(pending, ChatMessage{
			Role:      "assistant",
			Content:   MessageContent{Text: text.String()},
			ToolCalls: ordered,
		})
		c.mu.Unlock()
		if len(ordered) > 0 {
			yield(Event{ToolCalls: toInvocations(ordered)}, nil)
		}
	}
}

func mergeToolCallDelta(calls map[int]*ToolCall, delta ToolCall) {
	idx := len(calls)
	if delta.Index != nil {
		idx = *delta.Index
	}
	call, ok := calls[idx]
	if !ok {
		call = &ToolCall{Type: "function"}
		calls[idx] = call
	}
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Function.Name != "" {
		call.Function.Name += delta.Function.Name
	}
	call.Function.Arguments += delta.Function.Arguments
}

func orderedToolCalls(calls map[int]*ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	keys := make([]int, 0, len(calls))
	for k := range calls {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]ToolCall, 0, len(keys))
	for _, k := range keys {
		out = append(out, *calls[k])
	}
	return out
}

func toInvocations(calls []ToolCall) []domain.ToolInvocation {
	out := make([]domain.ToolInvocation, 0, len(calls))
	for _, tc := range calls {
		out = append(out, domain.ToolInvocation{
			CallID: tc.ID,
			Name:   tc.Function.Name,
			Args:   parseArguments(tc.Function.Arguments),
		})
	}
	return out
}

// parseArguments decodes tool arguments, repairing truncated or sloppy JSON.
func parseArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}
	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return map[string]any{}
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(fixed), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func toChatMessages(parts []Part) []ChatMessage {
	var out []ChatMessage
	var user []ContentPart
	for _, p := range parts {
		switch {
		case p.ToolResult != nil:
			out = append(out, ChatMessage{
				Role:       "tool",
				ToolCallID: p.ToolResult.CallID,
				Content:    MessageContent{Text: p.ToolResult.Result},
			})
		case p.Blob != nil:
			dataURL := "data:" + p.Blob.MIMEType + ";base64," + p.Blob.Data
			if strings.HasPrefix(p.Blob.MIMEType, "image/") {
				user = append(user, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}})
			} else {
				user = append(user, ContentPart{Type: "file", File: &InputFile{FileData: dataURL}})
			}
		default:
			user = append(user, ContentPart{Type: "text", Text: p.Text})
		}
	}
	if len(user) == 1 && user[0].Type == "text" {
		out = append(out, ChatMessage{Role: "user", Content: MessageContent{Text: user[0].Text}})
	} else if len(user) > 0 {
		out = append(out, ChatMessage{Role: "user", Content: MessageContent{Parts: user}})
	}
	return out
}

func openAITool(t domain.ToolDeclaration) Tool {
	props := make(map[string]interface{}, len(t.Parameters))
	required := []string{}
	for _, p := range t.Parameters {
		props[p.Name] = map[string]interface{}{"type": "string", "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}
