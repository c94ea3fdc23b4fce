package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Chat       ChatConfig       `mapstructure:"chat"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
}

// ServerConfig describes the HTTP listener. TrustedProxies lists the IPs or
// CIDRs whose X-Forwarded-For header is believed; empty trusts nobody.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

type ProvidersConfig struct {
	// Timeout bounds a single provider call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Deadline bounds the whole cascade; zero disables it.
	Deadline    time.Duration  `mapstructure:"deadline"`
	Gemini      ProviderConfig `mapstructure:"gemini"`
	Groq        ProviderConfig `mapstructure:"groq"`
	Cohere      ProviderConfig `mapstructure:"cohere"`
	HuggingFace ProviderConfig `mapstructure:"huggingface"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MemoryConfig struct {
	Budget int `mapstructure:"budget"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Window            time.Duration `mapstructure:"window"`
	Exempt            []string      `mapstructure:"exempt"`
	OCR               IPLimitConfig `mapstructure:"ocr"`
}

type IPLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type ChatConfig struct {
	Backend          string `mapstructure:"backend"`
	MaxMessageLength int    `mapstructure:"max_message_length"`
	ReferenceCap     int    `mapstructure:"reference_cap"`
	MaxReferences    int    `mapstructure:"max_references"`
	DebugReplies     bool   `mapstructure:"debug_replies"`
	RenderHTML       bool   `mapstructure:"render_html"`
}

type OCRConfig struct {
	Languages     string        `mapstructure:"languages"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DPI           float64       `mapstructure:"dpi"`
	MinTextLength int           `mapstructure:"min_text_length"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// KnowledgeConfig controls the subject library. A zero RefreshInterval
// loads the directory once at startup.
type KnowledgeConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Directory       string        `mapstructure:"directory"`
	MaxDocuments    int           `mapstructure:"max_documents"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("providers.timeout", 60*time.Second)
	v.SetDefault("providers.deadline", 0)
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	v.SetDefault("providers.groq.api_key", "")
	v.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("providers.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("providers.cohere.api_key", "")
	v.SetDefault("providers.cohere.base_url", "https://api.cohere.ai")
	v.SetDefault("providers.cohere.model", "command-r-plus")
	v.SetDefault("providers.huggingface.api_key", "")
	v.SetDefault("providers.huggingface.base_url", "https://router.huggingface.co/hf-inference")
	v.SetDefault("providers.huggingface.model", "mistralai/Mistral-7B-Instruct-v0.3")

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.ttl", 72*time.Hour)

	v.SetDefault("memory.budget", 2500)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 20)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.exempt", []string{"guest"})
	v.SetDefault("rate_limit.ocr.enabled", true)
	v.SetDefault("rate_limit.ocr.requests_per_minute", 30)
	v.SetDefault("rate_limit.ocr.burst", 5)

	v.SetDefault("chat.backend", "go-unified")
	v.SetDefault("chat.max_message_length", 20000)
	v.SetDefault("chat.reference_cap", 15000)
	v.SetDefault("chat.max_references", 8)
	v.SetDefault("chat.debug_replies", false)
	v.SetDefault("chat.render_html", false)

	v.SetDefault("ocr.languages", "eng+hin")
	v.SetDefault("ocr.timeout", 60*time.Second)
	v.SetDefault("ocr.dpi", 300.0)
	v.SetDefault("ocr.min_text_length", 5)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.max_size", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.path", "logs/appana.log")
	v.SetDefault("logging.file.max_size", 50)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age", 14)

	v.SetDefault("monitoring.metrics.enabled", false)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.languages", []string{"en", "hi"})

	v.SetDefault("knowledge.enabled", false)
	v.SetDefault("knowledge.directory", "knowledge")
	v.SetDefault("knowledge.max_documents", 2)
	v.SetDefault("knowledge.refresh_interval", 15*time.Minute)
}

// LoadConfig loads configuration from file and environment variables.
// An empty or missing config file leaves the defaults in place.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Provider credentials keep the names the frontend deployment already uses
	_ = v.BindEnv("providers.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("providers.groq.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("providers.cohere.api_key", "COHERE_API_KEY")
	_ = v.BindEnv("providers.huggingface.api_key", "HF_API_KEY")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("storage.type", "STORAGE_TYPE")
	_ = v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("storage.redis.db", "REDIS_DB")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := v.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := v.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if cfg.Memory.Budget <= 0 {
		return fmt.Errorf("memory budget must be positive")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}
	if cfg.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}
	switch cfg.Storage.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	return nil
}

// ProviderKeys reports which providers have a credential configured
func (c *ProvidersConfig) ProviderKeys() map[string]bool {
	return map[string]bool{
		"gemini":      c.Gemini.APIKey != "",
		"groq":        c.Groq.APIKey != "",
		"cohere":      c.Cohere.APIKey != "",
		"huggingface": c.HuggingFace.APIKey != "",
	}
}
