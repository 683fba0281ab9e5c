// Package config загружает конфигурацию ReleaseTrain через Viper.
//
// Приоритет (от высшего к низшему):
//  1. Переменные окружения с префиксом RELEASETRAIN_
//     (RELEASETRAIN_DATABASE_DSN, RELEASETRAIN_GITHUB_TIMEOUT, ...)
//  2. YAML файл из RELEASETRAIN_CONFIG
//  3. ./releasetrain.yaml
//  4. [Default]
package config

import (
	"time"
)

// Config — корневая конфигурация.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq" yaml:"rabbitmq"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	GitHub     GitHubConfig     `mapstructure:"github" yaml:"github"`
	Watch      WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler" yaml:"reconciler"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig — PostgreSQL.
type DatabaseConfig struct {
	// DSN — строка подключения pgx. Пусто: хранилище в памяти (только API).
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
	// Migrate — применять миграции при старте.
	Migrate bool `mapstructure:"migrate" yaml:"migrate"`
}

// RabbitMQConfig — брокер событий для watch feed.
type RabbitMQConfig struct {
	// URL — пусто: события доставляются только внутри процесса.
	URL string `mapstructure:"url" yaml:"url"`
}

// APIConfig — HTTP сервер и адрес для CLI.
type APIConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	URL             string        `mapstructure:"url" yaml:"url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// GitHubConfig — клиент GitHub API.
type GitHubConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	WebURL          string        `mapstructure:"web_url" yaml:"web_url"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	ValidationTTL   time.Duration `mapstructure:"validation_ttl" yaml:"validation_ttl"`
	RunLookupSkew   time.Duration `mapstructure:"run_lookup_skew" yaml:"run_lookup_skew"`
	DefaultBuildRef string        `mapstructure:"default_build_ref" yaml:"default_build_ref"`
}

// WatchConfig — лента изменений.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ReconcilerConfig — фоновая сверка с GitHub.
type ReconcilerConfig struct {
	// Enabled — запускать сверку внутри API (без отдельного процесса).
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule       string `mapstructure:"schedule" yaml:"schedule"`
	Batch          int    `mapstructure:"batch" yaml:"batch"`
	LeaderElection bool   `mapstructure:"leader_election" yaml:"leader_election"`
	MetricsAddr    string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	// RunWaitTimeout — после этого срока шаг без найденного run падает.
	RunWaitTimeout time.Duration `mapstructure:"run_wait_timeout" yaml:"run_wait_timeout"`
}

// LogConfig — slog.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns: 10,
			Migrate:  true,
		},
		API: APIConfig{
			Addr:            ":8080",
			URL:             "http://localhost:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		GitHub: GitHubConfig{
			BaseURL:         "https://api.github.com",
			WebURL:          "https://github.com",
			Timeout:         15 * time.Second,
			MaxRetries:      3,
			ValidationTTL:   5 * time.Minute,
			RunLookupSkew:   5 * time.Second,
			DefaultBuildRef: "release",
		},
		Watch: WatchConfig{
			Interval: 5 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			Schedule:       "@every 1m",
			Batch:          100,
			LeaderElection: true,
			MetricsAddr:    ":8081",
			RunWaitTimeout: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}
