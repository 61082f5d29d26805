package llm

import (
	"context"
	"sync"
)

// MockStreamClient permite tests sin llamar a un LLM real. Emite Deltas en
// orden y, si StreamErr no es nil, un Delta terminal con ese error.
type MockStreamClient struct {
	Deltas    []Delta
	StartErr  error
	StreamErr error
	// Block mantiene el stream abierto despues de los Deltas hasta que ctx se cancele.
	Block bool

	mu       sync.Mutex
	requests []Request
}

func (m *MockStreamClient) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.StartErr != nil {
		return nil, m.StartErr
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		for _, d := range m.Deltas {
			if !send(ctx, out, d) {
				return
			}
		}
		if m.StreamErr != nil {
			send(ctx, out, Delta{Err: m.StreamErr})
			return
		}
		if m.Block {
			<-ctx.Done()
		}
	}()
	return out, nil
}

// Requests devuelve las llamadas recibidas.
func (m *MockStreamClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// MockFactory devuelve siempre el mismo cliente, para registros de prueba.
func MockFactory(client StreamClient) ClientFactory {
	return func(string, string) (StreamClient, error) {
		return client, nil
	}
}

// TextDeltas arma Deltas de texto a partir de fragmentos.
func TextDeltas(parts ...string) []Delta {
	out := make([]Delta, 0, len(parts))
	for _, p := range parts {
		out = append(out, Delta{Kind: DeltaText, Text: p})
	}
	return out
}
