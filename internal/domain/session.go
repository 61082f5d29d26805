package domain

import (
	"strings"
	"time"
)

const (
	DefaultSessionTitle  = "New Chat"
	sessionTitleMaxRunes = 30
)

// ChatSession pertenece a un unico owner y guarda la transcripcion completa.
type ChatSession struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []ChatMessage `json:"messages"`
}

// DeriveTitle calcula el titulo a partir del primer mensaje de usuario.
// Devuelve "" si no hay un mensaje de usuario con texto.
func DeriveTitle(messages []ChatMessage) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		content := strings.Join(strings.Fields(m.Content), " ")
		if content == "" {
			return ""
		}
		runes := []rune(content)
		if len(runes) > sessionTitleMaxRunes {
			return string(runes[:sessionTitleMaxRunes]) + "..."
		}
		return content
	}
	return ""
}

// NextTitle decide el titulo tras guardar: solo reemplaza el placeholder.
func NextTitle(current string, messages []ChatMessage) string {
	if current != DefaultSessionTitle {
		return current
	}
	if derived := DeriveTitle(messages); derived != "" {
		return derived
	}
	return current
}
