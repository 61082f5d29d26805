package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-llm/internal/domain"
)

const (
	MaxResults      = 5
	maxSnippetRunes = 1200
	iconService     = "https://favicon.im/"
)

var ErrNotConfigured = errors.New("search not configured")

// Searcher obtiene resultados web rankeados para una consulta.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// TavilyClient implementa Searcher contra la API REST de Tavily.
type TavilyClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

func NewTavilyClient(baseURL, apiKey string, timeout time.Duration) *TavilyClient {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TavilyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	ExcludeDomains []string `json:"exclude_domains"`
	APIKey         string   `json:"api_key"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search hace un unico intento, sin reintentos.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(tavilyRequest{
		Query:          BuildQuery(c.now(), query),
		MaxResults:     MaxResults,
		ExcludeDomains: []string{},
		APIKey:         c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search http error: status=%d", resp.StatusCode)
	}

	var tr tavilyResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	results := make([]domain.SearchResult, 0, MaxResults)
	for _, r := range tr.Results {
		if len(results) == MaxResults {
			break
		}
		results = append(results, Normalize(r.Title, r.URL, r.Content))
	}
	return results, nil
}

// BuildQuery antepone la fecha actual (UTC) para sesgar hacia resultados recientes.
func BuildQuery(now time.Time, query string) string {
	return fmt.Sprintf("today is %s \r\n %s", now.UTC().Format("2006-01-02"), query)
}

// Normalize recorta campos y deriva el favicon desde el hostname.
func Normalize(title, rawURL, snippet string) domain.SearchResult {
	snippet = strings.TrimSpace(snippet)
	if runes := []rune(snippet); len(runes) > maxSnippetRunes {
		snippet = string(runes[:maxSnippetRunes])
	}
	rawURL = strings.TrimSpace(rawURL)
	return domain.SearchResult{
		Title:   strings.TrimSpace(title),
		URL:     rawURL,
		Snippet: snippet,
		IconURL: IconURL(rawURL),
	}
}

// IconURL devuelve "" si la URL no tiene hostname.
func IconURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return iconService + u.Hostname()
}
