package service

import (
	"strings"
	"testing"

	"chat-llm/internal/domain"
)

func TestBuildSystemPrompt(t *testing.T) {
	if got := BuildSystemPrompt("hola", nil); got != DefaultSystemPrompt {
		t.Fatalf("expected default prompt, got %q", got)
	}

	results := []domain.SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}
	got := BuildSystemPrompt("que es go?", results)
	for _, want := range []string{
		"## Citation Rules:",
		"[1][2][3][4]",
		"## My question is: que es go?",
		`"url":"https://go.dev"`,
		`"content":"The Go language"`,
		"Please respond in the same language as the user's question.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}
