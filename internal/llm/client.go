package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxSSELineSize = 1 << 20

// OpenAIStreamClient habla el protocolo de chat completions en streaming
// de proveedores OpenAI-compatibles (Groq, Gemini, GitHub Models).
// Expone deltas de razonamiento y opciones propias de cada proveedor.
type OpenAIStreamClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAIStreamClient construye un cliente apuntando a baseURL. El cliente
// HTTP no debe tener Timeout global: la duracion la controla el ctx de cada turno.
func NewOpenAIStreamClient(baseURL, apiKey string, httpClient *http.Client) *OpenAIStreamClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	return &OpenAIStreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

type streamRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	ExtraBody   *extraBody    `json:"extra_body,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type extraBody struct {
	Google *googleOptions `json:"google,omitempty"`
}

type googleOptions struct {
	ThinkingConfig thinkingConfig `json:"thinking_config"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinking_budget"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			Reasoning        string `json:"reasoning"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIStreamClient) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	body := streamRequest{
		Model:       req.Model,
		Messages:    toChatMessages(req),
		Stream:      true,
		Temperature: req.Temperature,
	}
	if req.ThinkingBudget != nil {
		body.ExtraBody = &extraBody{Google: &googleOptions{
			ThinkingConfig: thinkingConfig{ThinkingBudget: *req.ThinkingBudget},
		}}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("llm http error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		c.readStream(ctx, resp.Body, out)
	}()
	return out, nil
}

// readStream parsea lineas "data:" hasta [DONE] o EOF.
func (c *OpenAIStreamClient) readStream(ctx context.Context, r io.Reader, out chan<- Delta) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			send(ctx, out, Delta{Err: fmt.Errorf("unmarshal chunk: %w", err)})
			return
		}
		if chunk.Error != nil {
			send(ctx, out, Delta{Err: fmt.Errorf("llm api error: %s", chunk.Error.Message)})
			return
		}
		for _, choice := range chunk.Choices {
			reasoning := choice.Delta.ReasoningContent
			if reasoning == "" {
				reasoning = choice.Delta.Reasoning
			}
			if reasoning != "" && !send(ctx, out, Delta{Kind: DeltaReasoning, Text: reasoning}) {
				return
			}
			if choice.Delta.Content != "" && !send(ctx, out, Delta{Kind: DeltaText, Text: choice.Delta.Content}) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(ctx, out, Delta{Err: fmt.Errorf("read stream: %w", err)})
	}
}

func toChatMessages(req Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}
