package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"chat-llm/internal/domain"
)

// apiClient habla con la API HTTP del servidor de chat.
type apiClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{},
	}
}

type streamEvent struct {
	Name string
	Data json.RawMessage
}

func (a *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return nil, fmt.Errorf("%s %s: status=%d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	return resp, nil
}

func (a *apiClient) getJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := a.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (a *apiClient) listSessions(ctx context.Context) ([]domain.ChatSession, error) {
	var resp struct {
		Sessions []domain.ChatSession `json:"sessions"`
	}
	err := a.getJSON(ctx, http.MethodGet, "/api/sessions", nil, &resp)
	return resp.Sessions, err
}

func (a *apiClient) createSession(ctx context.Context, title string) (domain.ChatSession, error) {
	var resp struct {
		Session domain.ChatSession `json:"session"`
	}
	err := a.getJSON(ctx, http.MethodPost, "/api/sessions", map[string]string{"title": title}, &resp)
	return resp.Session, err
}

func (a *apiClient) deleteSession(ctx context.Context, id string) error {
	return a.getJSON(ctx, http.MethodDelete, "/api/sessions/"+id, nil, nil)
}

type modelsResponse struct {
	Default string `json:"default"`
	Models  []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Group     string `json:"group"`
		Reasoning bool   `json:"reasoning"`
	} `json:"models"`
}

func (a *apiClient) models(ctx context.Context) (modelsResponse, error) {
	var resp modelsResponse
	err := a.getJSON(ctx, http.MethodGet, "/api/models", nil, &resp)
	return resp, err
}

type chatOptions struct {
	SessionID string
	ModelID   string
	Search    bool
	Reasoning bool
}

// chat envia un turno y llama a onEvent por cada evento SSE recibido.
func (a *apiClient) chat(ctx context.Context, opts chatOptions, content string, onEvent func(streamEvent) error) error {
	body := map[string]any{
		"message": domain.ChatMessage{
			ID:      uuid.NewString(),
			Role:    domain.RoleUser,
			Content: content,
		},
		"selectedModelId":    opts.ModelID,
		"sessionId":          opts.SessionID,
		"isReasoningEnabled": opts.Reasoning,
		"isSearchEnabled":    opts.Search,
	}
	resp, err := a.do(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return readEvents(resp.Body, onEvent)
}

// readEvents parsea un stream text/event-stream en eventos nombrados.
func readEvents(r io.Reader, onEvent func(streamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var ev streamEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Name != "" || len(ev.Data) > 0 {
				if err := onEvent(ev); err != nil {
					return err
				}
			}
			ev = streamEvent{}
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = append(ev.Data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	if ev.Name != "" || len(ev.Data) > 0 {
		return onEvent(ev)
	}
	return nil
}
