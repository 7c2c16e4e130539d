package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentTest        = "test"
	EnvironmentProduction  = "production"
)

const (
	configFileEnv     = "CONFIG_FILE"
	defaultConfigFile = "/config/shelf.yaml"
)

type Config struct {
	CacheDir                  string        `koanf:"cache_dir" default:"/config/cache"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseDriver            string        `koanf:"database_driver" default:"sqlite"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	DatabaseURL               string        `koanf:"database_url"`
	Environment               string        `koanf:"environment" default:"development"`
	Hostname                  string        `koanf:"-"`
	JWTSecret                 string        `koanf:"jwt_secret"`
	LoginRateLimitPerMinute   int           `koanf:"login_rate_limit_per_minute" default:"10"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"3689"`
	SweepBatchSize            int           `koanf:"sweep_batch_size" default:"200"`
	SweepIntervalMinutes      int           `koanf:"sweep_interval_minutes" default:"15"`
	WorkerProcesses           int           `koanf:"worker_processes" default:"2"`
}

// New loads the config from the YAML file pointed to by CONFIG_FILE (if it
// exists) and then overlays environment variables on top of it, so env vars
// always win.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileEnv)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.Hostname = hostname

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for tests: an in-memory database and
// everything bound to localhost.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.CacheDir = os.TempDir()
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.Environment = EnvironmentTest
	cfg.JWTSecret = "test-secret"
	cfg.ServerHost = "127.0.0.1"
	cfg.WorkerProcesses = 1
	return cfg
}

func (cfg *Config) IsPostgres() bool {
	return cfg.DatabaseDriver == DatabaseDriverPostgres
}

func (cfg *Config) SweepInterval() time.Duration {
	return time.Duration(cfg.SweepIntervalMinutes) * time.Minute
}

func (cfg *Config) validate() error {
	missing := []string{}

	switch cfg.DatabaseDriver {
	case DatabaseDriverSQLite:
		if cfg.DatabaseFilePath == "" {
			missing = append(missing, "DatabaseFilePath")
		}
	case DatabaseDriverPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DatabaseURL")
		}
	default:
		return errors.Errorf("unsupported database_driver %q", cfg.DatabaseDriver)
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWTSecret")
	}

	if len(missing) == 0 {
		return nil
	}

	parts := make([]string, 0, len(missing))
	for _, field := range missing {
		key := toSnakeCase(field)
		parts = append(parts, fmt.Sprintf("%s (env) or %s (file)", strings.ToUpper(key), key))
	}
	return errors.Errorf("missing required config: %s", strings.Join(parts, ", "))
}

// knownKeys returns the set of koanf keys declared on Config. Only these are
// picked up from the environment.
func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		keys[tag] = struct{}{}
	}
	return keys
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
