package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config carries every operator-tunable knob. Values load from the
// environment; a local .env file is honored when present so development
// setups need no exported variables.
type Config struct {
	ServerAddr     string `env:"IDENTITY_SERVER_ADDR" envDefault:":9292"`
	DatabaseDSN    string `env:"IDENTITY_DATABASE_DSN" envDefault:"file::memory:?cache=shared"`
	DatabaseDriver string `env:"IDENTITY_DATABASE_DRIVER" envDefault:"sqlite"`

	SigningKey      string   `env:"IDENTITY_JWT_SIGNING_KEY"`
	TokenExpiration int      `env:"IDENTITY_JWT_TTL_HOURS" envDefault:"72"`
	Issuer          string   `env:"IDENTITY_JWT_ISSUER" envDefault:"portlib-identity"`
	Audience        []string `env:"IDENTITY_JWT_AUDIENCE" envSeparator:"," envDefault:"portlib"`

	VerifyWindow time.Duration `env:"IDENTITY_OTP_VERIFY_WINDOW" envDefault:"10m"`
	ResetWindow  time.Duration `env:"IDENTITY_OTP_RESET_WINDOW" envDefault:"15m"`

	WarningThreshold   int           `env:"IDENTITY_WARNING_THRESHOLD" envDefault:"3"`
	SuspensionDuration time.Duration `env:"IDENTITY_SUSPENSION_DURATION" envDefault:"720h"`

	SMTPAddr     string `env:"IDENTITY_SMTP_ADDR"`
	SMTPUsername string `env:"IDENTITY_SMTP_USERNAME"`
	SMTPPassword string `env:"IDENTITY_SMTP_PASSWORD"`
	SMTPFrom     string `env:"IDENTITY_SMTP_FROM" envDefault:"PortLib <no-reply@portlib.io>"`

	SMSEndpoint string `env:"IDENTITY_SMS_ENDPOINT"`
	SMSAccount  string `env:"IDENTITY_SMS_ACCOUNT"`
	SMSToken    string `env:"IDENTITY_SMS_TOKEN"`
	SMSFrom     string `env:"IDENTITY_SMS_FROM"`

	UploadDir string `env:"IDENTITY_UPLOAD_DIR" envDefault:"./uploads"`
}

// LoadConfig reads .env (when present) then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse environment configuration")
	}

	if cfg.SigningKey == "" {
		return nil, goerrors.New("IDENTITY_JWT_SIGNING_KEY is required", goerrors.CategoryInternal)
	}

	return cfg, nil
}

// GetSigningKey implements TokenConfig.
func (c *Config) GetSigningKey() string { return c.SigningKey }

// GetTokenExpiration implements TokenConfig. The value is hours.
func (c *Config) GetTokenExpiration() int { return c.TokenExpiration }

// GetIssuer implements TokenConfig.
func (c *Config) GetIssuer() string { return c.Issuer }

// GetAudience implements TokenConfig.
func (c *Config) GetAudience() []string { return c.Audience }

// SuspensionPolicy derives the disciplinary policy knobs.
func (c *Config) SuspensionPolicy() SuspensionPolicy {
	policy := SuspensionPolicy{
		Threshold: c.WarningThreshold,
		Duration:  c.SuspensionDuration,
	}
	if policy.Threshold < 1 {
		policy.Threshold = 3
	}
	if policy.Duration <= 0 {
		policy.Duration = 30 * 24 * time.Hour
	}
	return policy
}
