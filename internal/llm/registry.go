package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverOpenAI    = "openai"
	DriverLangchain = "langchain"

	ThinkingBudgetTokens = 1024
	lineSmoothingDelay   = 10 * time.Millisecond
)

var ErrUnknownModel = errors.New("unknown model")

// Model describe un modelo seleccionable y sus capacidades.
type Model struct {
	ID                      string   `yaml:"id"`
	Name                    string   `yaml:"name"`
	Group                   string   `yaml:"group"`
	Provider                string   `yaml:"provider"`
	Driver                  string   `yaml:"driver"`
	Upstream                string   `yaml:"upstream"`
	Temperature             *float64 `yaml:"temperature"`
	Reasoning               bool     `yaml:"reasoning"`
	SupportsReasoningBudget bool     `yaml:"reasoning_budget"`
	SupportsLineSmoothing   bool     `yaml:"line_smoothing"`
	ReasoningTag            string   `yaml:"reasoning_tag"`
	StartWithReasoning      bool     `yaml:"start_with_reasoning"`

	client StreamClient
}

// Catalog es el contenido del archivo de modelos (MODELS_FILE).
type Catalog struct {
	Default string        `yaml:"default"`
	Groups  []GroupConfig `yaml:"groups"`
	Models  []Model       `yaml:"models"`
}

type GroupConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// TurnOptions son las opciones por turno que el registro traduce a opciones del proveedor.
type TurnOptions struct {
	System           string
	Messages         []Message
	ReasoningEnabled bool
}

// Stream invoca el modelo aplicando solo las opciones que el modelo soporta.
func (m Model) Stream(ctx context.Context, opts TurnOptions) (<-chan Delta, error) {
	if m.client == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, m.ID)
	}
	req := Request{
		Model:       m.upstream(),
		System:      opts.System,
		Messages:    opts.Messages,
		Temperature: m.Temperature,
	}
	if m.SupportsReasoningBudget {
		budget := 0
		if opts.ReasoningEnabled {
			budget = ThinkingBudgetTokens
		}
		req.ThinkingBudget = &budget
	}

	stream, err := m.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	if m.ReasoningTag != "" {
		stream = ExtractReasoning(ctx, stream, m.ReasoningTag, m.StartWithReasoning)
	}
	if m.SupportsLineSmoothing {
		stream = SmoothLines(ctx, stream, lineSmoothingDelay)
	}
	return stream, nil
}

func (m Model) upstream() string {
	if m.Upstream != "" {
		return m.Upstream
	}
	return m.ID
}

// ClientFactory crea el cliente de un proveedor para un driver dado.
type ClientFactory func(provider, driver string) (StreamClient, error)

// ProviderCredentials son las credenciales de un proveedor OpenAI-compatible.
type ProviderCredentials struct {
	BaseURL string
	APIKey  string
}

// NewClientFactory devuelve una fabrica sobre credenciales explicitas. Un
// proveedor sin credenciales produce un cliente que falla en cada llamada.
func NewClientFactory(creds map[string]ProviderCredentials) ClientFactory {
	return func(provider, driver string) (StreamClient, error) {
		c, ok := creds[provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", provider)
		}
		if strings.TrimSpace(c.APIKey) == "" {
			return unavailableClient{err: fmt.Errorf("%w: provider %s has no api key", ErrProviderUnavailable, provider)}, nil
		}
		switch driver {
		case DriverOpenAI, "":
			return NewOpenAIStreamClient(c.BaseURL, c.APIKey, nil), nil
		case DriverLangchain:
			client, err := NewLangchainClient(c.BaseURL, c.APIKey)
			if err != nil {
				return nil, err
			}
			return client, nil
		default:
			return nil, fmt.Errorf("unknown driver %q", driver)
		}
	}
}

// Registry mapea ids de modelo a su configuracion y cliente.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]Model
	order     []string
	groups    []GroupConfig
	defaultID string
}

func NewRegistry(catalog Catalog, factory ClientFactory) (*Registry, error) {
	if len(catalog.Models) == 0 {
		return nil, errors.New("model catalog is empty")
	}
	r := &Registry{
		models:    make(map[string]Model, len(catalog.Models)),
		groups:    catalog.Groups,
		defaultID: catalog.Default,
	}
	clients := make(map[string]StreamClient)
	for _, m := range catalog.Models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, errors.New("model id is required")
		}
		if _, dup := r.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model %q", m.ID)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		key := m.Provider + "|" + m.Driver
		client, ok := clients[key]
		if !ok {
			var err error
			client, err = factory(m.Provider, m.Driver)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", m.ID, err)
			}
			clients[key] = client
		}
		m.client = client
		r.models[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	if r.defaultID == "" {
		r.defaultID = r.order[0]
	}
	if _, ok := r.models[r.defaultID]; !ok {
		return nil, fmt.Errorf("default model %q not in catalog", r.defaultID)
	}
	return r, nil
}

func (r *Registry) Lookup(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return m, nil
}

// Models devuelve los modelos en el orden del catalogo.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

func (r *Registry) Groups() []GroupConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]GroupConfig(nil), r.groups...)
}

func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// LoadCatalog lee un catalogo YAML; con path vacio devuelve DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read models file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse models file: %w", err)
	}
	return c, nil
}

// DefaultCatalog es el catalogo incorporado.
func DefaultCatalog() Catalog {
	temp := 0.8
	return Catalog{
		Default: "gemini-2.5-flash-preview-04-17",
		Groups: []GroupConfig{
			{Name: "DeepSeek", Description: "DeepSeek models"},
			{Name: "Copilot", Description: "GPT models"},
			{Name: "Groq", Description: "Groq-optimized models"},
			{Name: "Google", Description: "Google Gemini models"},
		},
		Models: []Model{
			{ID: "gpt-4o", Name: "GPT-4o", Group: "Copilot", Provider: "copilot", Driver: DriverLangchain, Temperature: &temp},
			{ID: "gpt-4.1", Name: "GPT-4.1", Group: "Copilot", Provider: "copilot", Driver: DriverLangchain},
			{ID: "qwen-qwq-32b", Name: "Qwen-QWQ-32B", Group: "Groq", Provider: "groq", Driver: DriverOpenAI,
				Reasoning: true, SupportsLineSmoothing: true, ReasoningTag: "think", StartWithReasoning: true},
			{ID: "DeepSeek-R1", Name: "DeepSeek R1", Group: "DeepSeek", Provider: "github", Driver: DriverOpenAI,
				Reasoning: true, ReasoningTag: "think"},
			{ID: "DeepSeek-V3-0324", Name: "DeepSeek V3", Group: "DeepSeek", Provider: "github", Driver: DriverLangchain},
			{ID: "gemini-2.5-flash-preview-04-17", Name: "Gemini 2.5 Flash", Group: "Google", Provider: "google", Driver: DriverOpenAI,
				Reasoning: true, SupportsReasoningBudget: true},
			{ID: "o4-mini", Name: "o4-mini", Group: "Copilot", Provider: "copilot", Driver: DriverOpenAI, Reasoning: true},
		},
	}
}
