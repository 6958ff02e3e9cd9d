// Package config загружает настройки приложения через viper:
// значения по умолчанию, необязательный файл todo.yaml и переменные окружения TODO_*.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type AppConfig struct {
	// Timezone - IANA-имя пояса, в котором считается "сегодня"
	Timezone string `mapstructure:"timezone"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// Port - совместимость со старой переменной PORT; если задан, перекрывает Addr
	Port            string        `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		App: AppConfig{
			Timezone: "UTC",
		},
		HTTP: HTTPConfig{
			Addr:            ":5555",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Mongo: MongoConfig{
				Database:       "todoapp",
				Collection:     "todos",
				ConnectTimeout: 10 * time.Second,
			},
			SQLite: SQLiteConfig{
				Path: "data/todoapp.db",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// New создаёт экземпляр viper с дефолтами и привязкой к окружению
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Старые имена переменных из .env исходного сервиса
	_ = v.BindEnv("http.port", "TODO_HTTP_PORT", "PORT")
	_ = v.BindEnv("storage.mongo.uri", "TODO_STORAGE_MONGO_URI", "MONGOURI")

	return v
}

// SetDefaults регистрирует значения по умолчанию в viper
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("app.timezone", defaults.App.Timezone)

	v.SetDefault("http.addr", defaults.HTTP.Addr)
	v.SetDefault("http.port", "")
	v.SetDefault("http.cors_origins", defaults.HTTP.CORSOrigins)
	v.SetDefault("http.shutdown_timeout", defaults.HTTP.ShutdownTimeout)

	v.SetDefault("storage.driver", defaults.Storage.Driver)
	v.SetDefault("storage.mongo.uri", "")
	v.SetDefault("storage.mongo.database", defaults.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", defaults.Storage.Mongo.Collection)
	v.SetDefault("storage.mongo.connect_timeout", defaults.Storage.Mongo.ConnectTimeout)
	v.SetDefault("storage.sqlite.path", defaults.Storage.SQLite.Path)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("telegram.token", "")
}

// Load читает файл конфигурации (если есть) и собирает Config.
// Пустой configFile означает поиск todo.yaml в текущей директории и ~/.config/todo.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("todo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/todo")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.HTTP.Port != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(cfg.HTTP.Port, ":")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverMongo:
		if c.Storage.Mongo.URI == "" {
			return errors.New("storage.mongo.uri (MONGOURI) is required for the mongo driver")
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("http.shutdown_timeout must be positive")
	}
	return nil
}

// Location загружает часовой пояс app.timezone; пустое значение означает UTC
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}
