package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/shaiso/ReleaseTrain/internal/scheduler"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "RELEASETRAIN"

// EnvConfigPath — путь к YAML файлу конфигурации.
const EnvConfigPath = EnvPrefix + "_CONFIG"

// defaultFile — файл в рабочей директории.
const defaultFile = "releasetrain.yaml"

// Loader загружает конфигурацию через Viper.
type Loader struct {
	v *viper.Viper
}

// NewLoader создаёт Loader с дефолтами и переопределением из окружения.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return &Loader{v: v}
}

// Load читает файл из RELEASETRAIN_CONFIG или ./releasetrain.yaml,
// если он есть. Без файла используются дефолты и окружение.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return l.LoadFromFile(path)
	}
	if _, err := os.Stat(defaultFile); err == nil {
		return l.LoadFromFile(defaultFile)
	}
	return l.unmarshal()
}

// LoadFromFile читает YAML файл и применяет окружение поверх.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя молча исправить.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHub.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("github.max_retries must be at least 1, got %d", c.GitHub.MaxRetries))
	}
	if c.Watch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval))
	}
	if err := scheduler.ValidateCronExpr(c.Reconciler.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("reconciler.schedule: %w", err))
	}
	return errors.Join(errs...)
}

// setDefaults регистрирует все ключи: без этого AutomaticEnv
// не подхватит переменные при Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.migrate", d.Database.Migrate)

	v.SetDefault("rabbitmq.url", d.RabbitMQ.URL)

	v.SetDefault("api.addr", d.API.Addr)
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.shutdown_timeout", d.API.ShutdownTimeout)

	v.SetDefault("github.base_url", d.GitHub.BaseURL)
	v.SetDefault("github.web_url", d.GitHub.WebURL)
	v.SetDefault("github.timeout", d.GitHub.Timeout)
	v.SetDefault("github.max_retries", d.GitHub.MaxRetries)
	v.SetDefault("github.validation_ttl", d.GitHub.ValidationTTL)
	v.SetDefault("github.run_lookup_skew", d.GitHub.RunLookupSkew)
	v.SetDefault("github.default_build_ref", d.GitHub.DefaultBuildRef)

	v.SetDefault("watch.interval", d.Watch.Interval)

	v.SetDefault("reconciler.enabled", d.Reconciler.Enabled)
	v.SetDefault("reconciler.schedule", d.Reconciler.Schedule)
	v.SetDefault("reconciler.batch", d.Reconciler.Batch)
	v.SetDefault("reconciler.leader_election", d.Reconciler.LeaderElection)
	v.SetDefault("reconciler.metrics_addr", d.Reconciler.MetricsAddr)
	v.SetDefault("reconciler.run_wait_timeout", d.Reconciler.RunWaitTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
