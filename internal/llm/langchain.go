package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainClient usa langchaingo para modelos de chat sin opciones especiales.
type LangchainClient struct {
	model llms.Model
}

func NewLangchainClient(baseURL, apiKey string) (*LangchainClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: missing api key", ErrProviderUnavailable)
	}
	m, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, err
	}
	return &LangchainClient{model: m}, nil
}

func (c *LangchainClient) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	out := make(chan Delta)
	opts := []llms.CallOption{
		llms.WithModel(req.Model),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !send(ctx, out, Delta{Kind: DeltaText, Text: string(chunk)}) {
				return ctx.Err()
			}
			return nil
		}),
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}

	go func() {
		defer close(out)
		if _, err := c.model.GenerateContent(ctx, content, opts...); err != nil && ctx.Err() == nil {
			send(ctx, out, Delta{Err: err})
		}
	}()
	return out, nil
}
