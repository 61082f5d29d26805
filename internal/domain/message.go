package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrMessageInvalid = errors.New("message invalid")

// ChatMessage es un mensaje de la conversacion tal como lo consume el front-end.
// Una vez persistido solo cambia por anotaciones agregadas al completar la respuesta.
type ChatMessage struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Reasoning   string       `json:"reasoning,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// ValidateUserMessage verifica que el mensaje entrante sea un turno de usuario utilizable.
func ValidateUserMessage(m ChatMessage) error {
	if m.Role != RoleUser {
		return ErrMessageInvalid
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrMessageInvalid
	}
	return nil
}

// LastUserContent devuelve el texto del ultimo mensaje si es del usuario.
func LastUserContent(messages []ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return ""
	}
	return last.Content
}
