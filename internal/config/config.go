package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type StorageType string

const (
	StoragePostgres StorageType = "postgres"
	StorageMemory   StorageType = "memory"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultMigrationsDir   = "internal/db/migrations"
	defaultLockTimeout     = 2 * time.Second
	defaultStartingBalance = "1000"
	defaultKafkaTopic      = "transfers"
)

type Config struct {
	RunAddress      string          `env:"RUN_ADDRESS"`
	DatabaseDSN     string          `env:"DATABASE_URI"`
	MigrationsDir   string          `env:"MIGRATIONS_DIR"`
	JWTUserSecret   string          `env:"JWT_SECRET"`
	Storage         StorageType     `env:"STORAGE"`
	LockTimeout     time.Duration   `env:"LOCK_TIMEOUT"`
	StartingBalance decimal.Decimal `env:"STARTING_BALANCE"`
	KafkaBrokers    []string        `env:"KAFKA_BROKERS"    envSeparator:","`
	KafkaTopic      string          `env:"KAFKA_TOPIC"`
}

// LoadConfig собирает конфиг из переменных окружения и флагов. Переменные окружения приоритетнее.
// Если в рабочей директории есть .env, он загружается до чтения окружения и уже выставленные переменные не
// перезаписывает.
func LoadConfig(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %s", err.Error())
	}

	var envConfig Config
	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	flagsConfig, flagsErr := loadFlags(args)
	if flagsErr != nil {
		return nil, flagsErr
	}

	conf := mergeConfig(&envConfig, flagsConfig)
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return config
}

// KafkaEnabled true если задан хотя бы один брокер.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseDSN == "" {
			return errors.New("database DSN is not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage `%s`", c.Storage)
	}
	if c.JWTUserSecret == "" {
		return errors.New("jwt secret is not set")
	}
	if c.LockTimeout < 0 {
		return errors.New("lock timeout must not be negative")
	}
	if c.StartingBalance.IsNegative() {
		return errors.New("starting balance must not be negative")
	}
	return nil
}

func loadFlags(args []string) (*Config, error) {
	var flagConfig Config
	var storage, brokers string

	fs := flag.NewFlagSet("wallet", flag.ContinueOnError)
	fs.StringVar(&flagConfig.RunAddress, "a", defaultRunAddress, "Run address in format host:port")
	fs.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	fs.StringVar(&flagConfig.MigrationsDir, "m", defaultMigrationsDir, "Database migrations directory")
	fs.StringVar(&flagConfig.JWTUserSecret, "j", "", "JWT secret")
	fs.StringVar(&storage, "s", string(StoragePostgres), "Storage: postgres or memory")
	fs.DurationVar(&flagConfig.LockTimeout, "l", defaultLockTimeout, "Account row lock wait bound")
	fs.StringVar(&brokers, "k", "", "Comma separated Kafka brokers, empty disables event publishing")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	flagConfig.Storage = StorageType(storage)
	flagConfig.StartingBalance = decimal.RequireFromString(defaultStartingBalance)
	flagConfig.KafkaTopic = defaultKafkaTopic
	if brokers != "" {
		flagConfig.KafkaBrokers = strings.Split(brokers, ",")
	}
	return &flagConfig, nil
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	conf := &Config{
		RunAddress:      defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress),
		DatabaseDSN:     defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		MigrationsDir:   defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir),
		JWTUserSecret:   defaultIfBlank(envConfig.JWTUserSecret, flagsConfig.JWTUserSecret),
		Storage:         StorageType(defaultIfBlank(string(envConfig.Storage), string(flagsConfig.Storage))),
		LockTimeout:     envConfig.LockTimeout,
		StartingBalance: envConfig.StartingBalance,
		KafkaBrokers:    envConfig.KafkaBrokers,
		KafkaTopic:      defaultIfBlank(envConfig.KafkaTopic, flagsConfig.KafkaTopic),
	}
	if conf.LockTimeout == 0 {
		conf.LockTimeout = flagsConfig.LockTimeout
	}
	if _, set := os.LookupEnv("STARTING_BALANCE"); !set {
		conf.StartingBalance = flagsConfig.StartingBalance
	}
	if len(conf.KafkaBrokers) == 0 {
		conf.KafkaBrokers = flagsConfig.KafkaBrokers
	}
	return conf
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
