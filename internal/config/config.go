package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

type Config struct {
	Env           string `env:"ENV" env-default:"local"`
	HTTPAddr      string `env:"HTTP_ADDR" env-default:":8080"`
	AllowedUserID string `env:"ALLOWED_USER_ID"`
	JWTSecret     string `env:"API_JWT_SECRET"`
	Timezone      string `env:"USER_TIMEZONE" env-default:"America/Chicago"`

	// ShutdownTimeout bounds the graceful drain of HTTP requests and turns.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// QueueIdle is how long a user's turn worker lingers without messages.
	QueueIdle       time.Duration `env:"QUEUE_IDLE" env-default:"5m"`

	Postgres Postgres
	Calendar Calendar
	Model    Model
	Resolver Resolver
	Session  Session
	Briefing Briefing
}

type Postgres struct {
	Host           string        `env:"POSTGRES_HOST" env-default:"localhost"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME" env-default:"agenda"`
	Password       string        `env:"POSTGRES_PASSWORD"`
	Database       string        `env:"POSTGRES_DATABASE" env-default:"agenda"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
}

// URL builds the connection string for pgxpool.
func (p Postgres) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.Username, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type Calendar struct {
	CredentialsPath string        `env:"GOOGLE_CALENDAR_CREDENTIALS_PATH" env-default:"./credentials.json"`
	TokenPath       string        `env:"GOOGLE_CALENDAR_TOKEN_PATH" env-default:"./token.json"`
	TokenBase64     string        `env:"GOOGLE_CALENDAR_TOKEN_BASE64"`
	CalendarID      string        `env:"GOOGLE_CALENDAR_ID" env-default:"primary"`
	Timeout         time.Duration `env:"CALENDAR_TIMEOUT" env-default:"5s"`
	MaxAge          time.Duration `env:"CALENDAR_MAX_AGE" env-default:"5m"`
}

type Model struct {
	Command string        `env:"CLAUDE_COMMAND" env-default:"claude"`
	Name    string        `env:"CLAUDE_MODEL"`
	Timeout time.Duration `env:"MODEL_TIMEOUT" env-default:"60s"`

	// HistoryTurns is how many recent turns are included in the prompt.
	HistoryTurns int `env:"MODEL_HISTORY_TURNS" env-default:"6"`
}

type Resolver struct {
	Threshold     float64 `env:"RESOLVER_THRESHOLD" env-default:"0.35"`
	Margin        float64 `env:"RESOLVER_MARGIN" env-default:"0.1"`
	MaxCandidates int     `env:"RESOLVER_MAX_CANDIDATES" env-default:"5"`
}

type Session struct {
	TTL           time.Duration `env:"SESSION_TTL" env-default:"120s"`
	MaxRounds     int           `env:"SESSION_MAX_ROUNDS" env-default:"3"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
}

type Briefing struct {
	MinGap    time.Duration `env:"BRIEFING_MIN_GAP" env-default:"2h"`
	WakeStart int           `env:"BRIEFING_WAKE_START" env-default:"8"`
	WakeEnd   int           `env:"BRIEFING_WAKE_END" env-default:"22"`
	Lookahead time.Duration `env:"BRIEFING_LOOKAHEAD" env-default:"48h"`
}

// Read loads the configuration from the environment (and .env, if present).
func Read() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured user timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		return fmt.Errorf("unknown env: %s", c.Env)
	}
	if c.Briefing.WakeStart < 0 || c.Briefing.WakeEnd > 24 || c.Briefing.WakeStart >= c.Briefing.WakeEnd {
		return fmt.Errorf("invalid waking hours %d-%d", c.Briefing.WakeStart, c.Briefing.WakeEnd)
	}
	if c.Resolver.Margin < 0 || c.Resolver.Threshold < 0 || c.Resolver.Threshold > 1 {
		return fmt.Errorf("invalid resolver thresholds")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
