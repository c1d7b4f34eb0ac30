package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

// MinJWTSecretLen is 512 bits, the key size HS512 expects.
const MinJWTSecretLen = 64

type FilesConfig struct {
	RootDir  string `yaml:"root_dir" env:"FILES_ROOT_DIR"`
	FontPath string `yaml:"font_path" env:"FILES_FONT_PATH"`
}

type MobizonConfig struct {
	APIKey   string `yaml:"api_key" env:"MOBIZON_API_KEY"`
	SenderID string `yaml:"sender_id" env:"MOBIZON_SENDER_ID"`
	DryRun   bool   `yaml:"dry_run" env:"MOBIZON_DRY_RUN"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
}

type AuthConfig struct {
	// JWTSecret has no default and must come from the environment or the
	// deployment's config file.
	JWTSecret              string  `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer                 string  `yaml:"issuer" env:"AUTH_ISSUER"`
	OTPChannel             string  `yaml:"otp_channel" env:"AUTH_OTP_CHANNEL"`
	BcryptCost             int     `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST"`
	ConcealUnknownAccounts bool    `yaml:"conceal_unknown_accounts" env:"AUTH_CONCEAL_UNKNOWN_ACCOUNTS"`
	RateLimitRPS           float64 `yaml:"rate_limit_rps" env:"AUTH_RATE_LIMIT_RPS"`
	RateLimitBurst         int     `yaml:"rate_limit_burst" env:"AUTH_RATE_LIMIT_BURST"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port" env:"SERVER_PORT"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
		SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
		SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
		SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
		FromEmail    string `yaml:"from_email" env:"SMTP_FROM"`
	} `yaml:"email"`
	Files    FilesConfig    `yaml:"files"`
	Mobizon  MobizonConfig  `yaml:"mobizon"`
	Telegram TelegramConfig `yaml:"telegram"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed), then
// overlays environment variables, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// environment only
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Files.RootDir == "" {
		c.Files.RootDir = "./files"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "hospitalrecords"
	}
	if c.Auth.OTPChannel == "" {
		c.Auth.OTPChannel = "email"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Auth.RateLimitRPS == 0 {
		c.Auth.RateLimitRPS = 5
	}
	if c.Auth.RateLimitBurst == 0 {
		c.Auth.RateLimitBurst = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes (set AUTH_JWT_SECRET)", MinJWTSecretLen)
	}
	switch c.Auth.OTPChannel {
	case "email", "sms", "telegram":
	default:
		return fmt.Errorf("auth.otp_channel %q: want email, sms or telegram", c.Auth.OTPChannel)
	}
	if c.Database.DSN == "" {
		return errors.New("database.url is required (set DATABASE_URL)")
	}
	return nil
}
