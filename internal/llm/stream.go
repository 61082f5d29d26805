package llm

import (
	"context"
	"errors"
)

var ErrProviderUnavailable = errors.New("llm provider unavailable")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message es un turno del contexto enviado al modelo.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request es una llamada de generacion en streaming ya resuelta a un modelo upstream.
type Request struct {
	Model          string
	System         string
	Messages       []Message
	Temperature    *float64
	ThinkingBudget *int
}

type DeltaKind int

const (
	DeltaText DeltaKind = iota
	DeltaReasoning
)

// Delta es un fragmento producido por el modelo. Un Delta con Err distinto
// de nil es terminal: el productor cierra el canal despues de enviarlo.
type Delta struct {
	Kind DeltaKind
	Text string
	Err  error
}

// StreamClient genera texto en streaming. El canal se cierra al terminar
// el stream o al cancelarse ctx.
type StreamClient interface {
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
}

func send(ctx context.Context, out chan<- Delta, d Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// recv lee el siguiente Delta; devuelve false si in se cerro o ctx se cancelo.
func recv(ctx context.Context, in <-chan Delta) (Delta, bool) {
	select {
	case d, ok := <-in:
		return d, ok
	case <-ctx.Done():
		return Delta{}, false
	}
}

type unavailableClient struct {
	err error
}

func (c unavailableClient) Stream(context.Context, Request) (<-chan Delta, error) {
	return nil, c.err
}
