package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the value shipped in the sample .env file.
const PlaceholderAPIKey = "your_google_api_key_here"

// Report store backends.
const (
	StoreFile  = "file"
	StoreMinIO = "minio"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	AIAPIKey     string        `mapstructure:"AI_API_KEY"`
	GoogleAPIKey string        `mapstructure:"GOOGLE_API_KEY"`
	AIModel      string        `mapstructure:"AI_MODEL"`
	AIBaseURL    string        `mapstructure:"AI_BASE_URL"`
	AITimeout    time.Duration `mapstructure:"AI_TIMEOUT"`

	STTAPIKey     string `mapstructure:"STT_API_KEY"`
	STTBaseURL    string `mapstructure:"STT_BASE_URL"`
	STTModel      string `mapstructure:"STT_MODEL"`
	STTLanguage   string `mapstructure:"STT_LANGUAGE"`
	RecordCommand string `mapstructure:"RECORD_COMMAND"`
	RecordSeconds int    `mapstructure:"RECORD_SECONDS"`
	RecordingsDir string `mapstructure:"RECORDINGS_DIR"`

	OutputDir      string `mapstructure:"OUTPUT_DIR"`
	ReportStore    string `mapstructure:"REPORT_STORE"`
	MinIOEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket    string `mapstructure:"MINIO_BUCKET"`
	MinIOUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	MinIORegion    string `mapstructure:"MINIO_REGION"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	TemplateDir    string   `mapstructure:"TEMPLATE_DIR"`
}

var keys = []string{
	"PORT", "ENV",
	"AI_API_KEY", "GOOGLE_API_KEY", "AI_MODEL", "AI_BASE_URL", "AI_TIMEOUT",
	"STT_API_KEY", "STT_BASE_URL", "STT_MODEL", "STT_LANGUAGE",
	"RECORD_COMMAND", "RECORD_SECONDS", "RECORDINGS_DIR",
	"OUTPUT_DIR", "REPORT_STORE",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL", "MINIO_REGION",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "TEMPLATE_DIR",
}

// Load reads .env (if present) and the environment. It does not validate;
// callers that need the AI service call Validate.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AI_MODEL", "gemini-2.5-flash")
	v.SetDefault("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("AI_TIMEOUT", "120s")
	v.SetDefault("STT_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("STT_MODEL", "whisper-1")
	v.SetDefault("STT_LANGUAGE", "zh")
	v.SetDefault("RECORD_COMMAND", "rec -q -c 1 -r 16000 {file} trim 0 {seconds}")
	v.SetDefault("RECORD_SECONDS", 10)
	v.SetDefault("RECORDINGS_DIR", "recordings")
	v.SetDefault("OUTPUT_DIR", "output")
	v.SetDefault("REPORT_STORE", StoreFile)
	v.SetDefault("MINIO_BUCKET", "ehr-reports")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("TEMPLATE_DIR", "templates")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.AIAPIKey == "" {
		cfg.AIAPIKey = cfg.GoogleAPIKey
	}
	if cfg.STTAPIKey == "" {
		cfg.STTAPIKey = cfg.AIAPIKey
	}
	cfg.ReportStore = strings.ToLower(strings.TrimSpace(cfg.ReportStore))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// AuthEnabled reports whether /api requires a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.AuthSigningKey != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	key := strings.TrimSpace(c.AIAPIKey)
	if key == "" {
		return fmt.Errorf("AI_API_KEY (or GOOGLE_API_KEY) is required")
	}
	if key == PlaceholderAPIKey {
		return fmt.Errorf("AI_API_KEY is still the placeholder %q; set a real key", PlaceholderAPIKey)
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive, got %s", c.AITimeout)
	}

	switch c.ReportStore {
	case StoreFile:
		if c.OutputDir == "" {
			return fmt.Errorf("OUTPUT_DIR is required when REPORT_STORE is %q", StoreFile)
		}
	case StoreMinIO:
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required when REPORT_STORE is %q", StoreMinIO)
		}
	default:
		return fmt.Errorf("REPORT_STORE must be %q or %q, got %q", StoreFile, StoreMinIO, c.ReportStore)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// Warnings returns non-fatal configuration problems worth logging at start-up.
func (c *Config) Warnings() []string {
	var out []string
	key := strings.TrimSpace(c.AIAPIKey)
	if strings.HasPrefix(key, "AIza") && len(key) < 39 {
		out = append(out, fmt.Sprintf("AI_API_KEY looks truncated (%d characters, Google keys have 39)", len(key)))
	}
	if c.AuthSigningKey == "" && !c.IsDev() {
		out = append(out, "AUTH_SIGNING_KEY is empty; /api is unauthenticated")
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		out = append(out, "AUTH_SIGNING_KEY is shorter than 32 bytes")
	}
	return out
}
