package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/google"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openaicompat"
)

// Transient provider failures are retried with doubling backoff,
// capped per wait.
const (
	chatMaxRetries  = 5
	chatBaseBackoff = 1 * time.Second
	chatMaxBackoff  = 60 * time.Second
)

// failClass sorts a provider error into its retry behavior.
type failClass int

const (
	failPermanent failClass = iota // bad request, auth, unknown: give up
	failTransient                  // rate limit or 5xx: worth retrying
	failBilling                    // account problem: never retry
)

// Marker substrings matched case-insensitively against provider error
// text. Billing wins over transient so a quota-exhausted account does
// not burn retries.
var (
	billingMarkers = []string{
		"billing", "payment", "credits", "quota exceeded",
		"insufficient", "402", "subscription", "expired",
	}
	transientMarkers = []string{
		"rate limit", "too many requests", "429", "overloaded", "capacity",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable",
		"gateway timeout", "temporarily unavailable",
	}
)

func classifyProviderError(err error) failClass {
	if err == nil {
		return failPermanent
	}
	text := strings.ToLower(err.Error())
	for _, m := range billingMarkers {
		if strings.Contains(text, m) {
			return failBilling
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(text, m) {
			return failTransient
		}
	}
	return failPermanent
}

// chatBackoffWait returns the wait before retry number attempt
// (1-based): base, 2*base, 4*base, capped at chatMaxBackoff.
func chatBackoffWait(attempt int) time.Duration {
	wait := chatBaseBackoff << (attempt - 1)
	if wait > chatMaxBackoff || wait <= 0 {
		return chatMaxBackoff
	}
	return wait
}

// FantasyAdapter bridges a fantasy.LanguageModel to the Provider
// interface, adding retry with backoff around each generate call.
type FantasyAdapter struct {
	model     fantasy.LanguageModel
	maxTokens int

	// sleep is swappable in tests; it must honor ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFantasyAdapter wraps a fantasy model. maxTokens is the default
// output cap when the request does not set one.
func NewFantasyAdapter(model fantasy.LanguageModel, maxTokens int) *FantasyAdapter {
	return &FantasyAdapter{model: model, maxTokens: maxTokens, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Chat sends the conversation to the model and decodes the reply.
func (a *FantasyAdapter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	maxTokens := int64(a.maxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	call := fantasy.Call{
		Prompt:          encodePrompt(req.Messages),
		Tools:           encodeTools(req.Tools),
		MaxOutputTokens: &maxTokens,
	}

	resp, err := a.generate(ctx, call)
	if err != nil {
		return nil, err
	}
	return a.decodeResponse(resp), nil
}

// generate runs one model call, retrying transient failures.
func (a *FantasyAdapter) generate(ctx context.Context, call fantasy.Call) (*fantasy.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= chatMaxRetries; attempt++ {
		if attempt > 0 {
			if werr := a.sleep(ctx, chatBackoffWait(attempt)); werr != nil {
				return nil, werr
			}
		}

		resp, err := a.model.Generate(ctx, call)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		switch classifyProviderError(err) {
		case failBilling:
			return nil, fmt.Errorf("billing error, not retrying: %w", err)
		case failPermanent:
			return nil, fmt.Errorf("model request failed: %w", err)
		}
	}
	return nil, fmt.Errorf("model request failed after %d retries: %w", chatMaxRetries, lastErr)
}

// encodePrompt converts our flat message list to a fantasy prompt.
// Unknown roles are dropped.
func encodePrompt(messages []Message) fantasy.Prompt {
	var prompt fantasy.Prompt
	for _, m := range messages {
		switch m.Role {
		case "system":
			prompt = append(prompt, fantasy.NewSystemMessage(m.Content))
		case "user":
			prompt = append(prompt, fantasy.NewUserMessage(m.Content))
		case "assistant":
			var parts []fantasy.MessagePart
			if m.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Args)
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID: tc.ID,
					ToolName:   tc.Name,
					Input:      string(args),
				})
			}
			prompt = append(prompt, fantasy.Message{Role: fantasy.MessageRoleAssistant, Content: parts})
		case "tool":
			prompt = append(prompt, fantasy.Message{
				Role: fantasy.MessageRoleTool,
				Content: []fantasy.MessagePart{
					fantasy.ToolResultPart{
						ToolCallID: m.ToolCallID,
						Output:     fantasy.ToolResultOutputContentText{Text: m.Content},
					},
				},
			})
		}
	}
	return prompt
}

func encodeTools(defs []ToolDef) []fantasy.Tool {
	var tools []fantasy.Tool
	for _, t := range defs {
		tools = append(tools, fantasy.FunctionTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return tools
}

// decodeResponse flattens the reply's content parts into one
// ChatResponse.
func (a *FantasyAdapter) decodeResponse(resp *fantasy.Response) *ChatResponse {
	out := &ChatResponse{
		StopReason:   string(resp.FinishReason),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Model:        a.model.Model(),
	}
	for _, part := range resp.Content {
		decodePart(out, part)
	}
	return out
}

// decodePart accumulates one content part. Parts arrive either by
// value or behind a pointer depending on the provider; pointers are
// dereferenced and re-dispatched.
func decodePart(out *ChatResponse, part any) {
	switch c := part.(type) {
	case *fantasy.TextContent:
		decodePart(out, *c)
	case *fantasy.ReasoningContent:
		decodePart(out, *c)
	case *fantasy.ToolCallContent:
		decodePart(out, *c)
	case fantasy.TextContent:
		out.Content += c.Text
	case fantasy.ReasoningContent:
		out.Thinking += c.Text
	case fantasy.ToolCallContent:
		var args map[string]interface{}
		json.Unmarshal([]byte(c.Input), &args)
		out.ToolCalls = append(out.ToolCalls, ToolCallResponse{
			ID:   c.ToolCallID,
			Name: c.ToolName,
			Args: args,
		})
	}
}

// InferProviderFromModel guesses the provider from well-known model
// name prefixes. Returns "" when the name matches nothing.
func InferProviderFromModel(model string) string {
	model = strings.ToLower(model)
	prefixes := []struct {
		provider string
		names    []string
	}{
		{"anthropic", []string{"claude"}},
		{"openai", []string{"gpt-", "o1", "o3", "chatgpt"}},
		{"google", []string{"gemini", "gemma"}},
		{"mistral", []string{"mistral", "mixtral", "codestral", "pixtral"}},
	}
	for _, p := range prefixes {
		for _, name := range p.names {
			if strings.HasPrefix(model, name) {
				return p.provider
			}
		}
	}
	return ""
}

// compatProvider builds an OpenAI-compatible provider under the given
// display name.
func compatProvider(name, apiKey, baseURL string) (fantasy.Provider, error) {
	return openaicompat.New(
		openaicompat.WithBaseURL(baseURL),
		openaicompat.WithAPIKey(apiKey),
		openaicompat.WithName(name),
	)
}

// buildFantasyProvider maps a provider name to its fantasy
// implementation. Native providers with a custom base URL go through
// the OpenAI-compatible client.
func buildFantasyProvider(providerName, apiKey, baseURL string) (fantasy.Provider, error) {
	switch providerName {
	case "anthropic":
		if baseURL != "" {
			return compatProvider(providerName, apiKey, baseURL)
		}
		return anthropic.New(anthropic.WithAPIKey(apiKey))
	case "openai":
		if baseURL != "" {
			return compatProvider(providerName, apiKey, baseURL)
		}
		return openai.New(openai.WithAPIKey(apiKey))
	case "google":
		return google.New(google.WithGeminiAPIKey(apiKey))
	case "groq":
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai/v1"
		}
		return compatProvider(providerName, apiKey, baseURL)
	case "mistral":
		if baseURL == "" {
			baseURL = "https://api.mistral.ai/v1"
		}
		return compatProvider(providerName, apiKey, baseURL)
	case "openai-compat", "openrouter", "litellm", "ollama", "lmstudio":
		if baseURL == "" {
			return nil, fmt.Errorf("base_url is required for provider %s", providerName)
		}
		return compatProvider(providerName, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// NewProvider builds a Provider from config. An empty Provider field
// is inferred from the model name.
func NewProvider(cfg FantasyConfig) (Provider, error) {
	if cfg.Provider == "" && cfg.Model != "" {
		cfg.Provider = InferProviderFromModel(cfg.Model)
		if cfg.Provider == "" {
			return nil, fmt.Errorf("cannot determine provider for model %q; set provider explicitly", cfg.Model)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	fantasyProvider, err := buildFantasyProvider(cfg.Provider, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	model, err := fantasyProvider.LanguageModel(context.Background(), cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", cfg.Model, err)
	}
	return NewFantasyAdapter(model, cfg.MaxTokens), nil
}
