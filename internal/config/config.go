package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultMaxPolls       = 3
	defaultExpireGrace    = 24 * 60 * 60
	defaultExpireInterval = time.Minute
	defaultSyncInterval   = 10 * time.Second
	defaultLogLevel       = "info"
	defaultRabbitMQQueue  = "poll-events"
	defaultMMUserName     = "PollingBot"
	defaultMMTeamName     = "PollingBot"
)

type Config struct {
	HTTPAddress string
	// HTTPAccessLog - file for the combined access log of the HTTP API. Empty disables it.
	HTTPAccessLog string
	MaxPolls      int

	// ExpireGraceSeconds - how long a closed poll is kept before the expirer removes it.
	ExpireGraceSeconds int64
	ExpireInterval     time.Duration
	SyncInterval       time.Duration

	LogLevel  string
	LogFormat string
	LogOutput string

	Tarantool  TarantoolConfig
	RabbitMQ   RabbitMQConfig
	Mattermost MattermostConfig
}

// TarantoolConfig - persistence of poll snapshots. Empty Address disables it.
type TarantoolConfig struct {
	Address  string
	User     string
	Password string
}

// RabbitMQConfig - poll event notifications. Empty URL disables them.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// MattermostConfig - chat gateway. Empty Server disables the bot.
type MattermostConfig struct {
	UserName string
	TeamName string
	Token    string
	Server   string
}

// Load reads configuration from the environment, falling back to defaults.
func Load() (Config, error) {
	var cfg Config
	var err error

	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", defaultHTTPAddress)
	cfg.HTTPAccessLog = os.Getenv("HTTP_ACCESS_LOG")
	if cfg.MaxPolls, err = getEnvInt("MAX_POLLS", defaultMaxPolls); err != nil {
		return Config{}, err
	}
	grace, err := getEnvInt("EXPIRE_GRACE_SECONDS", defaultExpireGrace)
	if err != nil {
		return Config{}, err
	}
	cfg.ExpireGraceSeconds = int64(grace)
	if cfg.ExpireInterval, err = getEnvDuration("EXPIRE_INTERVAL", defaultExpireInterval); err != nil {
		return Config{}, err
	}
	if cfg.SyncInterval, err = getEnvDuration("SYNC_INTERVAL", defaultSyncInterval); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", defaultLogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", "")
	cfg.LogOutput = getEnv("LOG_OUTPUT", "")

	cfg.Tarantool.Address = os.Getenv("TT_ADDRESS")
	cfg.Tarantool.User = os.Getenv("TT_USER")
	cfg.Tarantool.Password = os.Getenv("TT_PASSWORD")

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.RabbitMQ.Queue = getEnv("RABBITMQ_QUEUE", defaultRabbitMQQueue)

	cfg.Mattermost.UserName = getEnv("MM_USERNAME", defaultMMUserName)
	cfg.Mattermost.TeamName = getEnv("MM_TEAM", defaultMMTeamName)
	cfg.Mattermost.Token = os.Getenv("MM_TOKEN")
	cfg.Mattermost.Server = os.Getenv("MM_SERVER")

	return cfg, nil
}

// Validate checks values that may have been overridden after Load.
func (c Config) Validate() error {
	if c.MaxPolls <= 0 {
		return errors.New("max polls must be positive")
	}
	if c.ExpireInterval <= 0 {
		return errors.New("expire interval must be positive")
	}
	if c.SyncInterval <= 0 {
		return errors.New("sync interval must be positive")
	}
	if c.Tarantool.Address != "" && c.Tarantool.User == "" {
		return errors.New("tarantool user is not set")
	}
	if c.Mattermost.Server != "" && c.Mattermost.Token == "" {
		return errors.New("mattermost token is not set")
	}
	return nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	return v, nil
}

func getEnvDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	return v, nil
}
