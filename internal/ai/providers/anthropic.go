package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"relaybot/internal/ai"
)

const anthropicDefaultMaxTokens = 1024

// Anthropic implements ai.TextGenerator over the official SDK.
type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *Anthropic) Name() string  { return "anthropic" }
func (p *Anthropic) Model() string { return p.model }

func (p *Anthropic) Generate(ctx context.Context, prompt string, opt ai.Options) (string, error) {
	return p.GenerateWithContext(ctx, prompt, nil, opt)
}

func (p *Anthropic) GenerateWithContext(ctx context.Context, prompt string, history []ai.HistoryEntry, opt ai.Options) (string, error) {
	maxTokens := opt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	var messages []anthropic.MessageParam
	system := opt.System
	for _, h := range history {
		switch h.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(h.Content)))
		case "system":
			// Anthropic takes system text out of band.
			if system == "" {
				system = h.Content
			} else {
				system += "\n" + h.Content
			}
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(h.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if opt.Temperature > 0 {
		params.Temperature = anthropic.Float(opt.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError("anthropic", apiErr.StatusCode, err)
		}
		return "", transportError("anthropic", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &ai.ResponseError{Provider: "anthropic", Msg: "no text blocks in response"}
	}
	return b.String(), nil
}
