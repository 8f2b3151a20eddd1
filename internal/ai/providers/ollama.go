package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"relaybot/internal/ai"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// Ollama implements ai.TextGenerator against a local Ollama daemon.
type Ollama struct {
	client *api.Client
	model  string
}

func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		u, _ = url.Parse(ollamaDefaultBaseURL)
	}
	// Local inference can be slow; keep a generous client timeout.
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	return &Ollama{
		client: api.NewClient(u, httpClient),
		model:  model,
	}
}

func (p *Ollama) Name() string  { return "ollama" }
func (p *Ollama) Model() string { return p.model }

func (p *Ollama) options(opt ai.Options) map[string]any {
	opts := map[string]any{}
	if opt.Temperature > 0 {
		opts["temperature"] = opt.Temperature
	}
	if opt.MaxTokens > 0 {
		opts["num_predict"] = opt.MaxTokens
	}
	return opts
}

func (p *Ollama) Generate(ctx context.Context, prompt string, opt ai.Options) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   p.model,
		Prompt:  prompt,
		System:  opt.System,
		Stream:  &stream,
		Options: p.options(opt),
	}

	var b strings.Builder
	err := p.client.Generate(ctx, req, func(r api.GenerateResponse) error {
		b.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", transportError("ollama", err)
	}
	if b.Len() == 0 {
		return "", &ai.ResponseError{Provider: "ollama", Msg: "empty response"}
	}
	return b.String(), nil
}

func (p *Ollama) GenerateWithContext(ctx context.Context, prompt string, history []ai.HistoryEntry, opt ai.Options) (string, error) {
	stream := false
	msgs := make([]api.Message, 0, len(history)+2)
	if opt.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: opt.System})
	}
	for _, h := range history {
		msgs = append(msgs, api.Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	req := &api.ChatRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  p.options(opt),
	}

	var b strings.Builder
	err := p.client.Chat(ctx, req, func(r api.ChatResponse) error {
		b.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", transportError("ollama", err)
	}
	if b.Len() == 0 {
		return "", &ai.ResponseError{Provider: "ollama", Msg: "empty response"}
	}
	return b.String(), nil
}
