package domain

import "testing"

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name     string
		messages []ChatMessage
		want     string
	}{
		{"no messages", nil, ""},
		{"only assistant", []ChatMessage{{Role: RoleAssistant, Content: "hola"}}, ""},
		{"short", []ChatMessage{{Role: RoleUser, Content: "  What's the weather?  "}}, "What's the weather?"},
		{"exactly thirty", []ChatMessage{{Role: RoleUser, Content: "123456789012345678901234567890"}}, "123456789012345678901234567890"},
		{"long", []ChatMessage{{Role: RoleUser, Content: "What's the weather in Paris tomorrow morning?"}}, "What's the weather in Paris to..."},
		{"multibyte", []ChatMessage{{Role: RoleUser, Content: "今天巴黎的天气怎么样今天巴黎的天气怎么样今天巴黎的天气怎么样还有明天"}}, "今天巴黎的天气怎么样今天巴黎的天气怎么样今天巴黎的天气怎么样..."},
		{"collapses whitespace", []ChatMessage{{Role: RoleUser, Content: "hola\n\nmundo"}}, "hola mundo"},
		{"first user wins", []ChatMessage{{Role: RoleUser, Content: "first"}, {Role: RoleUser, Content: "second"}}, "first"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DeriveTitle(c.messages); got != c.want {
				t.Fatalf("DeriveTitle() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestNextTitle_OnlyReplacesPlaceholder(t *testing.T) {
	msgs := []ChatMessage{{Role: RoleUser, Content: "Plan a trip"}}

	if got := NextTitle(DefaultSessionTitle, msgs); got != "Plan a trip" {
		t.Fatalf("expected derived title, got %q", got)
	}
	if got := NextTitle("Custom", msgs); got != "Custom" {
		t.Fatalf("expected custom title kept, got %q", got)
	}
	if got := NextTitle(DefaultSessionTitle, nil); got != DefaultSessionTitle {
		t.Fatalf("expected placeholder kept without messages, got %q", got)
	}
}

func TestValidateUserMessage(t *testing.T) {
	if err := ValidateUserMessage(ChatMessage{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := ValidateUserMessage(ChatMessage{Role: RoleAssistant, Content: "hi"}); err != ErrMessageInvalid {
		t.Fatalf("expected ErrMessageInvalid for assistant role, got %v", err)
	}
	if err := ValidateUserMessage(ChatMessage{Role: RoleUser, Content: "  "}); err != ErrMessageInvalid {
		t.Fatalf("expected ErrMessageInvalid for blank content, got %v", err)
	}
}
