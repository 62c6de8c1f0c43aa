package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	AMQP      AMQPConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Dispatch  DispatchConfig
	Analytics AnalyticsConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Address string
}

// DatabaseConfig holds the Postgres DSN. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
}

type AMQPConfig struct {
	Enabled bool
	URL     string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
}

type DispatchConfig struct {
	Delay       time.Duration
	SuccessRate float64
	Concurrency int
}

type AnalyticsConfig struct {
	WeekStart time.Weekday
	Location  *time.Location
}

func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	jwtSecret, err := requireEnv("JWT_SECRET")
	collect(err)

	interval, err := getEnvInt("SCHED_INTERVAL_SECONDS", 60)
	collect(err)
	delayMs, err := getEnvInt("DISPATCH_DELAY_MS", 50)
	collect(err)
	concurrency, err := getEnvInt("DISPATCH_CONCURRENCY", 1)
	collect(err)
	successRate, err := getEnvFloat("DISPATCH_SUCCESS_RATE", 0.9)
	collect(err)
	weekStart, err := parseWeekday(getEnv("WEEK_START", "sunday"))
	collect(err)
	loc, err := loadLocation(getEnv("TIMEZONE", "Local"))
	collect(err)

	redisCfg, err := loadRedisConfig()
	collect(err)

	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "production"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		AMQP: loadAMQPConfig(),
		Redis: redisCfg,
		Scheduler: SchedulerConfig{
			Interval: time.Duration(interval) * time.Second,
		},
		Dispatch: DispatchConfig{
			Delay:       time.Duration(delayMs) * time.Millisecond,
			SuccessRate: successRate,
			Concurrency: concurrency,
		},
		Analytics: AnalyticsConfig{
			WeekStart: weekStart,
			Location:  loc,
		},
	}

	if len(errs) == 0 {
		errs = validate(cfg)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAMQPConfig() AMQPConfig {
	url := os.Getenv("AMQP_URL")
	return AMQPConfig{Enabled: url != "", URL: url}
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, dbErr := getEnvInt("REDIS_DB", 0)
	ttl, ttlErr := getEnvInt("ANALYTICS_CACHE_TTL_SECONDS", 30)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, errors.Join(dbErr, ttlErr)
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Dispatch.Delay < 0 {
		errs = append(errs, errors.New("DISPATCH_DELAY_MS must be >= 0"))
	}
	if cfg.Dispatch.Concurrency <= 0 {
		errs = append(errs, errors.New("DISPATCH_CONCURRENCY must be > 0"))
	}
	if cfg.Dispatch.SuccessRate < 0 || cfg.Dispatch.SuccessRate > 1 {
		errs = append(errs, errors.New("DISPATCH_SUCCESS_RATE must be within [0,1]"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("ANALYTICS_CACHE_TTL_SECONDS must be > 0"))
	}
	return errs
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(raw string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return time.Sunday, fmt.Errorf("invalid WEEK_START: %q", raw)
	}
	return d, nil
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return v, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid float for env %s: %s", key, v)
	}
	return f, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
