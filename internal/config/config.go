package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"

	BrokerLocal = "local"
	BrokerRedis = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel   string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Redis      Redis    `yaml:"redis" env-prefix:"REDIS_"`
	Storage    Storage  `yaml:"storage" env-prefix:"STORAGE_"`
	Game       Game     `yaml:"game" env-prefix:"GAME_"`
	Notifier   Notifier `yaml:"notifier" env-prefix:"NOTIFIER_"`
}

type Redis struct {
	Host     string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"PORT" env-default:"6379"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB" env-default:"0"`
}

type Storage struct {
	// Driver holds live sessions and queues: redis or memory.
	Driver string `yaml:"driver" env:"DRIVER" env-default:"redis"`
	// SQLitePath enables the finished-game archive when set.
	SQLitePath  string        `yaml:"sqlite-path" env:"SQLITE_PATH"`
	FinishedTTL time.Duration `yaml:"finished-ttl" env:"FINISHED_TTL" env-default:"1h"`
	RematchTTL  time.Duration `yaml:"rematch-ttl" env:"REMATCH_TTL" env-default:"10m"`
}

type Game struct {
	BoardSize     int           `yaml:"board-size" env:"BOARD_SIZE" env-default:"15"`
	WinLength     int           `yaml:"win-length" env:"WIN_LENGTH" env-default:"5"`
	TurnTimeout   time.Duration `yaml:"turn-timeout" env:"TURN_TIMEOUT" env-default:"5m"`
	SweepInterval time.Duration `yaml:"sweep-interval" env:"SWEEP_INTERVAL" env-default:"30s"`
	InviteTTL     time.Duration `yaml:"invite-ttl" env:"INVITE_TTL" env-default:"30m"`
	// Observers may read and watch any session.
	Observers []string `yaml:"observers" env:"OBSERVERS" env-separator:","`
}

type Notifier struct {
	Broker           string        `yaml:"broker" env:"BROKER" env-default:"local"`
	TopicBuffer      int           `yaml:"topic-buffer" env:"TOPIC_BUFFER" env-default:"64"`
	SubscriberBuffer int           `yaml:"subscriber-buffer" env:"SUBSCRIBER_BUFFER" env-default:"64"`
	PublishTimeout   time.Duration `yaml:"publish-timeout" env:"PUBLISH_TIMEOUT" env-default:"1s"`
}

const (
	// PathEnv overrides DefaultPath when no -config flag is given.
	PathEnv     = "GOMOKU_CONFIG"
	DefaultPath = "config.yml"
)

// ResolvePath picks the config file: the flag value, then PathEnv, then
// DefaultPath.
func ResolvePath(flagValue string, getenv func(string) string) string {
	if flagValue != "" {
		return flagValue
	}

	if path := getenv(PathEnv); path != "" {
		return path
	}

	return DefaultPath
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	if _, err := parseLevel(that.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, that.LogLevel)
	}

	switch that.Storage.Driver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, that.Storage.Driver)
	}

	switch that.Notifier.Broker {
	case BrokerLocal, BrokerRedis:
	default:
		return fmt.Errorf("%w: unknown notifier broker %q", ErrInvalidConfig, that.Notifier.Broker)
	}

	if that.Game.BoardSize < 1 || that.Game.WinLength < 1 || that.Game.WinLength > that.Game.BoardSize {
		return fmt.Errorf("%w: board size %d with win length %d", ErrInvalidConfig, that.Game.BoardSize, that.Game.WinLength)
	}

	if that.Game.TurnTimeout <= 0 || that.Game.SweepInterval <= 0 || that.Game.InviteTTL <= 0 {
		return fmt.Errorf("%w: turn timeout, sweep interval and invite ttl must be positive", ErrInvalidConfig)
	}

	return nil
}

// SlogLevel is the validated LogLevel; anything unparsable logs at info.
func (that *Config) SlogLevel() slog.Level {
	level, err := parseLevel(that.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// parseLevel accepts debug, info, warn and error in any case.
func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, err
	}

	return level, nil
}

// NeedsRedis reports whether any component talks to redis.
func (that *Config) NeedsRedis() bool {
	return that.Storage.Driver == DriverRedis || that.Notifier.Broker == BrokerRedis
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}
