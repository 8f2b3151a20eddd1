package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"relaybot/internal/ai"
)

// Google implements ai.TextGenerator over the Gemini SDK.
//
// The genai client wants a context at construction time, so it is created per
// call and closed before returning.
type Google struct {
	apiKey string
	model  string
}

func NewGoogle(apiKey, model string) *Google {
	return &Google{apiKey: apiKey, model: model}
}

func (p *Google) Name() string  { return "google" }
func (p *Google) Model() string { return p.model }

func (p *Google) Generate(ctx context.Context, prompt string, opt ai.Options) (string, error) {
	return p.GenerateWithContext(ctx, prompt, nil, opt)
}

func (p *Google) GenerateWithContext(ctx context.Context, prompt string, history []ai.HistoryEntry, opt ai.Options) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", transportError("google", err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	if opt.Temperature > 0 {
		m.SetTemperature(float32(opt.Temperature))
	}
	if opt.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(opt.MaxTokens))
	}
	if opt.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(opt.System)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(flattenHistory(prompt, history)))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", statusError("google", apiErr.Code, err)
		}
		return "", transportError("google", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	if b.Len() == 0 {
		return "", &ai.ResponseError{Provider: "google", Msg: "no text parts in response"}
	}
	return b.String(), nil
}
