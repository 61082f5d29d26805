package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`

	TavilyAPIKey         string `env:"TAVILY_API_KEY"`
	TavilyBaseURL        string `env:"TAVILY_BASE_URL" envDefault:"https://api.tavily.com"`
	SearchTimeoutSeconds int    `env:"SEARCH_TIMEOUT_SECONDS" envDefault:"10"`

	ModelsFile string `env:"MODELS_FILE"`

	CopilotAPIKey string `env:"COPILOT_API_KEY"`
	CopilotAPIURL string `env:"COPILOT_API_URL" envDefault:"https://api.githubcopilot.com"`
	GroqAPIKey    string `env:"GROQ_API_KEY"`
	GroqAPIURL    string `env:"GROQ_API_URL" envDefault:"https://api.groq.com/openai/v1"`
	GoogleAPIKey  string `env:"GOOGLE_API_KEY"`
	GoogleAPIURL  string `env:"GOOGLE_API_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai"`
	GithubAPIKey  string `env:"GITHUB_API_KEY"`
	GithubAPIURL  string `env:"GITHUB_API_URL" envDefault:"https://models.inference.ai.azure.com"`

	SessionCacheTTLSeconds int `env:"SESSION_CACHE_TTL_SECONDS" envDefault:"60"`
	ChatRateLimitPerMinute int `env:"CHAT_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
}

// ProviderConfig describe las credenciales de un proveedor OpenAI-compatible.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Providers devuelve los proveedores conocidos indexados por nombre.
func (c *Config) Providers() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"copilot": {BaseURL: c.CopilotAPIURL, APIKey: c.CopilotAPIKey},
		"groq":    {BaseURL: c.GroqAPIURL, APIKey: c.GroqAPIKey},
		"google":  {BaseURL: c.GoogleAPIURL, APIKey: c.GoogleAPIKey},
		"github":  {BaseURL: c.GithubAPIURL, APIKey: c.GithubAPIKey},
	}
}

func (c *Config) UsesSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite://")
}

// SQLitePath extrae la ruta del archivo de un DATABASE_URL sqlite://.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
}

func (c *Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.SessionCacheTTLSeconds) * time.Second
}

func (c *Config) SearchTimeout() time.Duration {
	if c.SearchTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SearchTimeoutSeconds) * time.Second
}

func (c *Config) JWTAccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}
