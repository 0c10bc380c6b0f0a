package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the chatbot service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Booking   BookingConfig   `mapstructure:"booking"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and admin auth settings
type ServerConfig struct {
	Address           string `mapstructure:"address"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt hash
}

// RedisConfig contains the session store connection settings
type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// PostgresConfig contains the lead archive settings. The archive is
// optional: leave URL and Host empty to run without it.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Enabled reports whether a lead archive is configured.
func (p PostgresConfig) Enabled() bool {
	return p.URL != "" || p.Host != ""
}

// DSN builds the connection string.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// LLMConfig contains the model provider settings
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // openai
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// KnowledgeConfig locates the persisted document index
type KnowledgeConfig struct {
	Dir  string `mapstructure:"dir"`
	TopK int    `mapstructure:"top_k"`
}

func (k KnowledgeConfig) Validate() error {
	if strings.TrimSpace(k.Dir) == "" {
		return fmt.Errorf("knowledge.dir is required")
	}
	if k.TopK <= 0 {
		return fmt.Errorf("knowledge.top_k must be > 0")
	}
	return nil
}

// BookingConfig contains calendar settings
type BookingConfig struct {
	CalendarID      string `mapstructure:"calendar_id"`
	TimeZone        string `mapstructure:"time_zone"`
	WorkdayStart    int    `mapstructure:"workday_start"` // hour, 24h clock
	WorkdayEnd      int    `mapstructure:"workday_end"`
	SlotMinutes     int    `mapstructure:"slot_minutes"`
	HorizonDays     int    `mapstructure:"horizon_days"`
	MaxOffered      int    `mapstructure:"max_offered"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
}

func (b BookingConfig) Validate() error {
	if b.WorkdayStart < 0 || b.WorkdayEnd > 24 || b.WorkdayStart >= b.WorkdayEnd {
		return fmt.Errorf("booking.workday_start/workday_end invalid")
	}
	if b.SlotMinutes <= 0 {
		return fmt.Errorf("booking.slot_minutes must be > 0")
	}
	if b.MaxOffered <= 0 {
		return fmt.Errorf("booking.max_offered must be > 0")
	}
	return nil
}

// LoadConfig loads config from file, with PRESALES_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.timeout", "5s")
	viper.SetDefault("redis.session_ttl", "24h")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("knowledge.dir", "vectorstore")
	viper.SetDefault("knowledge.top_k", 7)
	viper.SetDefault("booking.calendar_id", "primary")
	viper.SetDefault("booking.time_zone", "Asia/Kolkata")
	viper.SetDefault("booking.workday_start", 9)
	viper.SetDefault("booking.workday_end", 18)
	viper.SetDefault("booking.slot_minutes", 30)
	viper.SetDefault("booking.horizon_days", 2)
	viper.SetDefault("booking.max_offered", 10)
	viper.SetDefault("booking.credentials_file", "credentials.json")
	viper.SetDefault("booking.token_file", "token.json")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PRESALES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional: defaults plus env cover a full setup.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := config.Knowledge.Validate(); err != nil {
		panic(err)
	}
	if err := config.Booking.Validate(); err != nil {
		panic(err)
	}
	return &config
}
