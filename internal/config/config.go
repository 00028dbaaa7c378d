package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/clnpth/newsroom/pkg/logger"
)

// Config is the full, immutable runtime configuration. It is loaded
// once at startup and passed by value into component constructors;
// components never reach into process-global settings.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logger      logger.Config     `yaml:"logger"`
	Engine      EngineConfig      `yaml:"engine"`
	Queue       QueueConfig       `yaml:"queue"`
	Translation TranslationConfig `yaml:"translation"`
	LLM         LLMConfig         `yaml:"llm"`
	Image       ImageConfig       `yaml:"image"`
	Publisher   PublisherConfig   `yaml:"publisher"`
	Auth        AuthConfig        `yaml:"auth"`
	Features    Features          `yaml:"features"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// EngineConfig points at the external workflow engine that performs
// the actual text generation and calls us back.
type EngineConfig struct {
	URL          string `yaml:"url"`
	WebhookPath  string `yaml:"webhook_path"`
	CallbackURL  string `yaml:"callback_url"`
	WebhookToken string `yaml:"webhook_token"`
	Timeout      string `yaml:"timeout"`
}

// QueueConfig drives the generation queue watchdog. The watchdog runs
// unless explicitly disabled.
type QueueConfig struct {
	Disabled      bool   `yaml:"disabled"`
	SweepInterval string `yaml:"sweep_interval"`
	RetryWindow   string `yaml:"retry_window"`
	MaxRetries    int    `yaml:"max_retries"`
}

// TranslationConfig configures the structural translation provider.
type TranslationConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	SourceLanguage string `yaml:"source_language"`
}

// LLMConfig configures the model used for translation review,
// supervisor evaluation, embeddings and social snippets.
type LLMConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// ImageConfig wires the ordered image backend fallback chain.
type ImageConfig struct {
	StoragePath string       `yaml:"storage_path"`
	Local       LocalBackend `yaml:"local"`
	Cloud       CloudBackend `yaml:"cloud"`
}

type LocalBackend struct {
	URL          string `yaml:"url"`
	PollInterval string `yaml:"poll_interval"`
	PollTimeout  string `yaml:"poll_timeout"`
}

type CloudBackend struct {
	APIKey       string `yaml:"api_key"`
	EndpointID   string `yaml:"endpoint_id"`
	PollInterval string `yaml:"poll_interval"`
	PollTimeout  string `yaml:"poll_timeout"`
}

// PublisherConfig configures the WordPress publication target.
type PublisherConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TOTPSecret string `yaml:"totp_secret"`
}

// Features gates optional surfaces explicitly; there is no reflective
// flag lookup.
type Features struct {
	RSS     bool `yaml:"rss"`
	Social  bool `yaml:"social"`
	Publish bool `yaml:"publish"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8321
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Engine.URL == "" {
		cfg.Engine.URL = "http://localhost:5678"
	}
	if cfg.Engine.WebhookPath == "" {
		cfg.Engine.WebhookPath = "/webhook/newsroom-generate"
	}
	if cfg.Engine.CallbackURL == "" {
		cfg.Engine.CallbackURL = "http://localhost:8321/api/webhook/engine"
	}
	if cfg.Engine.Timeout == "" {
		cfg.Engine.Timeout = "10s"
	}
	if cfg.Queue.SweepInterval == "" {
		cfg.Queue.SweepInterval = "60s"
	}
	if cfg.Queue.RetryWindow == "" {
		cfg.Queue.RetryWindow = "10m"
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Translation.APIURL == "" {
		cfg.Translation.APIURL = "https://api-free.deepl.com/v2"
	}
	if cfg.Translation.SourceLanguage == "" {
		cfg.Translation.SourceLanguage = "de"
	}
	if cfg.LLM.APIURL == "" {
		cfg.LLM.APIURL = "https://api.mistral.ai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral-large-latest"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "mistral-embed"
	}
	if cfg.Image.StoragePath == "" {
		cfg.Image.StoragePath = "static/images"
	}
	if cfg.Image.Local.URL == "" {
		cfg.Image.Local.URL = "http://localhost:8188"
	}
	if cfg.Image.Local.PollInterval == "" {
		cfg.Image.Local.PollInterval = "2s"
	}
	if cfg.Image.Local.PollTimeout == "" {
		cfg.Image.Local.PollTimeout = "5m"
	}
	if cfg.Image.Cloud.PollInterval == "" {
		cfg.Image.Cloud.PollInterval = "5s"
	}
	if cfg.Image.Cloud.PollTimeout == "" {
		cfg.Image.Cloud.PollTimeout = "10m"
	}

	return cfg, nil
}
