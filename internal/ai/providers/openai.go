package providers

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"relaybot/internal/ai"
)

// OpenAI implements ai.TextGenerator over the official SDK. With a custom
// base URL it also serves any OpenAI-compatible endpoint (Groq uses this).
type OpenAI struct {
	name   string
	client openai.Client
	model  string
}

// NewOpenAI builds the adapter for api.openai.com.
func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		name:   "openai",
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// NewOpenAICompatible builds the adapter for an OpenAI-compatible endpoint
// under a different provider identity.
func NewOpenAICompatible(name, apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		name:   name,
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *OpenAI) Name() string  { return p.name }
func (p *OpenAI) Model() string { return p.model }

func (p *OpenAI) Generate(ctx context.Context, prompt string, opt ai.Options) (string, error) {
	return p.GenerateWithContext(ctx, prompt, nil, opt)
}

func (p *OpenAI) GenerateWithContext(ctx context.Context, prompt string, history []ai.HistoryEntry, opt ai.Options) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if opt.System != "" {
		messages = append(messages, openai.SystemMessage(opt.System))
	}
	for _, h := range history {
		switch h.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(h.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(h.Content))
		default:
			messages = append(messages, openai.UserMessage(h.Content))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if opt.Temperature > 0 {
		params.Temperature = openai.Float(opt.Temperature)
	}
	if opt.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opt.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError(p.name, apiErr.StatusCode, err)
		}
		return "", transportError(p.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ai.ResponseError{Provider: p.name, Msg: "empty completion"}
	}
	return resp.Choices[0].Message.Content, nil
}
