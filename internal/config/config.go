package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultLineAPIBase       = "https://api.line.me"
	DefaultLineBlobBase      = "https://api-data.line.me"
	DefaultAgentTimeout      = 120
	DefaultVisionModel       = "claude-sonnet-4-5"
	DefaultVisionMaxTokens   = 1024
	DefaultSessionTTLHours   = 24
	DefaultShortTermLimit    = 10
	DefaultFactTopK          = 3
	DefaultDedupWindowMin    = 10
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "kaiwa"
	DefaultPGSSLMode         = "disable"
	DefaultQdrantHost        = "127.0.0.1"
	DefaultQdrantPort        = 6334
	DefaultQdrantCollection  = "memory"
	DefaultSweepSchedule     = "@hourly"
	DefaultEmbeddingBaseURL  = "https://api.openai.com/v1"
	DefaultEmbeddingModel    = "text-embedding-3-small"
	DefaultEmbeddingDims     = 1536
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Admin      AdminConfig      `toml:"admin"`
	Line       LineConfig       `toml:"line"`
	Agent      AgentConfig      `toml:"agent"`
	Vision     VisionConfig     `toml:"vision"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Qdrant     QdrantConfig     `toml:"qdrant"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Memory     MemoryConfig     `toml:"memory"`
	Dedup      DedupConfig      `toml:"dedup"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type AdminConfig struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
}

// LineConfig holds the messaging platform credentials. ChannelSecret signs
// inbound webhooks; AccessToken authorizes reply and content downloads.
type LineConfig struct {
	ChannelSecret string `toml:"channel_secret" validate:"required"`
	AccessToken   string `toml:"access_token" validate:"required"`
	APIBase       string `toml:"api_base"`
	BlobBase      string `toml:"blob_base"`
}

type AgentConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type VisionConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// URL renders a pgx-compatible connection URL.
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type QdrantConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	APIKey     string `toml:"api_key"`
	UseTLS     bool   `toml:"use_tls"`
	Collection string `toml:"collection"`
	Enabled    bool   `toml:"enabled"`
}

type EmbeddingsConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

type MemoryConfig struct {
	SessionTTLHours int      `toml:"session_ttl_hours" validate:"gt=0"`
	ShortTermLimit  int      `toml:"short_term_limit" validate:"gt=0"`
	FactTopK        int      `toml:"fact_top_k" validate:"gt=0"`
	Namespaces      []string `toml:"namespaces" validate:"min=1"`
	SweepSchedule   string   `toml:"sweep_schedule"`
}

// SessionTTL returns the rolling session expiry window.
func (c MemoryConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

type DedupConfig struct {
	Enabled       bool `toml:"enabled"`
	WindowMinutes int  `toml:"window_minutes"`
}

func (c DedupConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Line: LineConfig{
			APIBase:  DefaultLineAPIBase,
			BlobBase: DefaultLineBlobBase,
		},
		Agent: AgentConfig{
			TimeoutSeconds: DefaultAgentTimeout,
		},
		Vision: VisionConfig{
			Model:     DefaultVisionModel,
			MaxTokens: DefaultVisionMaxTokens,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Qdrant: QdrantConfig{
			Host:       DefaultQdrantHost,
			Port:       DefaultQdrantPort,
			Collection: DefaultQdrantCollection,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:    DefaultEmbeddingBaseURL,
			Model:      DefaultEmbeddingModel,
			Dimensions: DefaultEmbeddingDims,
		},
		Memory: MemoryConfig{
			SessionTTLHours: DefaultSessionTTLHours,
			ShortTermLimit:  DefaultShortTermLimit,
			FactTopK:        DefaultFactTopK,
			Namespaces:      []string{"facts", "preferences"},
			SweepSchedule:   DefaultSweepSchedule,
		},
		Dedup: DedupConfig{
			Enabled:       true,
			WindowMinutes: DefaultDedupWindowMin,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration for required fields.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
