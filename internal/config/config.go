package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Bot          BotConfig          `mapstructure:"bot"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Session      SessionConfig      `mapstructure:"session"`
	Journal      JournalConfig      `mapstructure:"journal"`
	Mail         MailConfig         `mapstructure:"mail"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Security     SecurityConfig     `mapstructure:"security"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// BotConfig holds the Bot Framework registration. An empty AppID disables
// inbound token checks and outbound authentication, as the emulator expects.
type BotConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppPassword string `mapstructure:"app_password"`
	TenantID    string `mapstructure:"tenant_id"`
	OpenIDURL   string `mapstructure:"openid_url" validate:"required,url"`
	TokenURL    string `mapstructure:"token_url" validate:"required,url"`
	Scope       string `mapstructure:"scope" validate:"required"`
}

// AuthEnabled reports whether Bot Framework authentication is configured
func (c BotConfig) AuthEnabled() bool {
	return c.AppID != ""
}

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=postgres mysql sqlite mongo"`
	URL           string `mapstructure:"url"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	SSLMode       string `mapstructure:"ssl_mode"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
	Migrations    string `mapstructure:"migrations"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	MySQLDSN      string `mapstructure:"mysql_dsn"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// DSN returns the PostgreSQL connection string. A DATABASE_URL in the
// SQLAlchemy form (postgresql+asyncpg://) is accepted and normalised.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		if i := strings.Index(c.URL, "://"); i > 0 {
			scheme := c.URL[:i]
			if plus := strings.Index(scheme, "+"); plus > 0 {
				return scheme[:plus] + c.URL[i:]
			}
		}
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL     time.Duration `mapstructure:"ttl"`
	// EncryptionKey is a base64 AES key; when set, Redis session payloads are sealed.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type JournalConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Path           string        `mapstructure:"path"`
	ReplayInterval time.Duration `mapstructure:"replay_interval"`
	ReplayBatch    int           `mapstructure:"replay_batch" validate:"min=0"`
}

// MailConfig configures Microsoft Graph sendMail. AccessToken wins over
// client credentials when both are set.
type MailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SenderEmail  string `mapstructure:"sender_email"`
	AccessToken  string `mapstructure:"access_token"`
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// TokenURL overrides the tenant token endpoint derived from TenantID.
	TokenURL string        `mapstructure:"token_url" validate:"omitempty,url"`
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ConversationConfig struct {
	IOTimeout time.Duration `mapstructure:"io_timeout"`
}

// CompletionBudget is the longest a survey completion may take: one
// IOTimeout each for the identity lookup, journal, report store and mail.
func (c ConversationConfig) CompletionBudget() time.Duration {
	return 4 * c.IOTimeout
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	MessagesPerMinute int `mapstructure:"messages_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format" validate:"oneof=json console"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

var validate = validator.New()

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-field requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.Backend == "redis" && !c.Redis.Enabled {
		return errors.New("invalid config: session.backend redis requires redis.enabled")
	}
	if c.Session.EncryptionKey != "" && c.Session.Backend != "redis" {
		return errors.New("invalid config: session.encryption_key requires session.backend redis")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("invalid config: journal.path is required when the journal is enabled")
	}
	// The reply to the last answer goes out after the completion, on the request context.
	if mt := c.Server.MiddlewareTimeout; mt > 0 && c.Conversation.IOTimeout > 0 {
		if need := c.Conversation.CompletionBudget() + c.Conversation.IOTimeout; need > mt {
			return fmt.Errorf("invalid config: server.middleware_timeout %s is shorter than the completion budget plus reply (%s)", mt, need)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3978)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "75s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Bot Framework
	v.SetDefault("bot.openid_url", "https://login.botframework.com/v1/.well-known/openidconfiguration")
	v.SetDefault("bot.token_url", "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token")
	v.SetDefault("bot.scope", "https://api.botframework.com/.default")

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "oneonone")
	v.SetDefault("database.database", "oneonone")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.migrations", "file://migrations")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.sqlite_path", "oneonone.db")
	v.SetDefault("database.mongo_database", "oneonone")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Sessions
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", "24h")

	// Journal
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "journal.db")
	v.SetDefault("journal.replay_interval", "5m")
	v.SetDefault("journal.replay_batch", 50)

	// Mail
	v.SetDefault("mail.enabled", true)
	v.SetDefault("mail.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("mail.timeout", "15s")

	// Conversation
	v.SetDefault("conversation.io_timeout", "10s")

	// Security
	v.SetDefault("security.rate_limit.messages_per_minute", 30)
	v.SetDefault("security.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h") // 7 days
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Bot Framework
	v.BindEnv("bot.app_id", "MICROSOFT_APP_ID")
	v.BindEnv("bot.app_password", "MICROSOFT_APP_PASSWORD")
	v.BindEnv("bot.tenant_id", "MICROSOFT_APP_TENANT_ID")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "POSTGRES_PASSWORD")
	v.BindEnv("database.mysql_dsn", "MYSQL_DSN")
	v.BindEnv("database.mongo_uri", "MONGO_URI")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Sessions
	v.BindEnv("session.encryption_key", "SESSION_ENCRYPTION_KEY")

	// Mail
	v.BindEnv("mail.sender_email", "SENDER_EMAIL")
	v.BindEnv("mail.access_token", "GRAPH_ACCESS_TOKEN")
	v.BindEnv("mail.tenant_id", "GRAPH_TENANT_ID")
	v.BindEnv("mail.client_id", "GRAPH_CLIENT_ID")
	v.BindEnv("mail.client_secret", "GRAPH_CLIENT_SECRET")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("logging.level", "LOG_LEVEL")
}
