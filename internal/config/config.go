package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Twilio    TwilioConfig
	Gemini    GeminiConfig
	Speech    SpeechConfig
	Session   SessionConfig
	Order     OrderConfig
	RateLimit RateLimitConfig
	Script    ScriptConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	CatalogTTL time.Duration
}

type LogConfig struct {
	Level    string
	Encoding string
}

type TwilioConfig struct {
	AccountSID         string
	AuthToken          string
	ValidateSignatures bool
	// StreamURL overrides the websocket URL handed to Twilio. Empty means
	// derive it from the webhook request host.
	StreamURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SpeechConfig struct {
	CredentialsFile   string
	LanguageCode      string
	VoiceName         string
	OutputSampleRate  int
	BrowserSampleRate int
}

type SessionConfig struct {
	EngineStartTimeout time.Duration
	ToolTimeout        time.Duration
	CatalogLoadTimeout time.Duration
	CatalogMaxAttempts int
	InboundQueueSize   int
	MaxCallDuration    time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type OrderConfig struct {
	TotalPolicy   string
	CommitTimeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type ScriptConfig struct {
	Path string
}

const (
	TotalPolicyTrust  = "trust"
	TotalPolicyStrict = "strict"
)

// Load reads configuration from the optional file at path and the
// environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	durations := map[string]*time.Duration{}
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		Twilio: TwilioConfig{
			AccountSID:         v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:          v.GetString("TWILIO_AUTH_TOKEN"),
			ValidateSignatures: v.GetBool("TWILIO_VALIDATE_SIGNATURE"),
			StreamURL:          v.GetString("TWILIO_STREAM_URL"),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("GEMINI_API_KEY"),
			Model:  v.GetString("GEMINI_MODEL"),
		},
		Speech: SpeechConfig{
			CredentialsFile:   v.GetString("GOOGLE_CREDENTIALS_FILE"),
			LanguageCode:      v.GetString("SPEECH_LANGUAGE_CODE"),
			VoiceName:         v.GetString("TTS_VOICE_NAME"),
			OutputSampleRate:  v.GetInt("AUDIO_OUTPUT_SAMPLE_RATE"),
			BrowserSampleRate: v.GetInt("AUDIO_BROWSER_SAMPLE_RATE"),
		},
		Session: SessionConfig{
			CatalogMaxAttempts: v.GetInt("SESSION_CATALOG_MAX_ATTEMPTS"),
			InboundQueueSize:   v.GetInt("SESSION_INBOUND_QUEUE_SIZE"),
		},
		Order: OrderConfig{
			TotalPolicy: v.GetString("ORDER_TOTAL_POLICY"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
		},
		Script: ScriptConfig{
			Path: v.GetString("SCRIPT_PATH"),
		},
	}

	durations["DB_CONN_MAX_LIFETIME"] = &cfg.Database.ConnMaxLifetime
	durations["REDIS_CATALOG_TTL"] = &cfg.Redis.CatalogTTL
	durations["SESSION_ENGINE_START_TIMEOUT"] = &cfg.Session.EngineStartTimeout
	durations["SESSION_TOOL_TIMEOUT"] = &cfg.Session.ToolTimeout
	durations["SESSION_CATALOG_TIMEOUT"] = &cfg.Session.CatalogLoadTimeout
	durations["SESSION_MAX_CALL_DURATION"] = &cfg.Session.MaxCallDuration
	durations["SESSION_READ_TIMEOUT"] = &cfg.Session.ReadTimeout
	durations["SESSION_WRITE_TIMEOUT"] = &cfg.Session.WriteTimeout
	durations["ORDER_COMMIT_TIMEOUT"] = &cfg.Order.CommitTimeout

	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "pizzacall")
	v.SetDefault("DB_PASSWORD", "secret")
	v.SetDefault("DB_NAME", "pizzacall")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CATALOG_TTL", "2m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_VALIDATE_SIGNATURE", true)
	v.SetDefault("TWILIO_STREAM_URL", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "")
	v.SetDefault("SPEECH_LANGUAGE_CODE", "fr-FR")
	v.SetDefault("TTS_VOICE_NAME", "fr-FR-Standard-A")
	v.SetDefault("AUDIO_OUTPUT_SAMPLE_RATE", 8000)
	v.SetDefault("AUDIO_BROWSER_SAMPLE_RATE", 16000)
	v.SetDefault("SESSION_ENGINE_START_TIMEOUT", "10s")
	v.SetDefault("SESSION_TOOL_TIMEOUT", "8s")
	v.SetDefault("SESSION_CATALOG_TIMEOUT", "5s")
	v.SetDefault("SESSION_CATALOG_MAX_ATTEMPTS", 3)
	v.SetDefault("SESSION_INBOUND_QUEUE_SIZE", 64)
	v.SetDefault("SESSION_MAX_CALL_DURATION", "15m")
	v.SetDefault("SESSION_READ_TIMEOUT", "30s")
	v.SetDefault("SESSION_WRITE_TIMEOUT", "5s")
	v.SetDefault("ORDER_TOTAL_POLICY", TotalPolicyTrust)
	v.SetDefault("ORDER_COMMIT_TIMEOUT", "5s")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("SCRIPT_PATH", "")
}

func (c *Config) validate() error {
	switch c.Order.TotalPolicy {
	case TotalPolicyTrust, TotalPolicyStrict:
	default:
		return fmt.Errorf("invalid ORDER_TOTAL_POLICY %q: must be %q or %q", c.Order.TotalPolicy, TotalPolicyTrust, TotalPolicyStrict)
	}
	if c.Session.CatalogMaxAttempts < 1 {
		return fmt.Errorf("SESSION_CATALOG_MAX_ATTEMPTS must be at least 1")
	}
	if c.Session.InboundQueueSize < 1 {
		return fmt.Errorf("SESSION_INBOUND_QUEUE_SIZE must be at least 1")
	}
	if c.Speech.OutputSampleRate <= 0 || c.Speech.BrowserSampleRate <= 0 {
		return fmt.Errorf("audio sample rates must be positive")
	}
	return nil
}
