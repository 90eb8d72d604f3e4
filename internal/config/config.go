package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"PORT" envDefault:"8080"`
	APIHost  string `env:"API_HOST" envDefault:"0.0.0.0"`

	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	DatabaseURL         string `env:"DATABASE_URL,required"`
	SupabaseServiceRole string `env:"SUPABASE_SERVICE_ROLE"`

	GeminiAPIKey          string   `env:"GEMINI_API_KEY"`
	DefaultGeminiModel    string   `env:"DEFAULT_GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiAlternateModels []string `env:"GEMINI_ALTERNATE_MODELS" envSeparator:"," envDefault:"gemini-2.0-flash-exp"`
	OpenAIAPIKey          string   `env:"OPENAI_API_KEY"`
	DefaultOpenAIModel    string   `env:"DEFAULT_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	LLMProvider           string   `env:"LLM_PROVIDER" envDefault:"gemini"`

	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	DBQueryTimeout   time.Duration `env:"DATABASE_QUERY_TIMEOUT" envDefault:"30s"`
	DBAuthTimeout    time.Duration `env:"DATABASE_AUTH_TIMEOUT" envDefault:"10s"`
	DBConnectTimeout time.Duration `env:"DATABASE_CONNECTION_TIMEOUT" envDefault:"5s"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno y la valida.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza valores placeholder y combinaciones inválidas.
func (c *Config) Validate() error {
	if looksLikePlaceholder(c.DatabaseURL) {
		return fmt.Errorf("config: DATABASE_URL contains a placeholder value")
	}
	if c.IsProduction() && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("config: ALLOWED_ORIGINS is required in production")
	}
	if c.RequestTimeout <= 0 || c.DBQueryTimeout <= 0 || c.DBAuthTimeout <= 0 || c.DBConnectTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	switch c.LLMProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// IsProduction indica si el servicio corre en modo producción.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func looksLikePlaceholder(v string) bool {
	lower := strings.ToLower(v)
	for _, p := range []string{"your-", "sk-your", "changeme", "example.com"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
