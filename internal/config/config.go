package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	StoreDriverDuckDB   = "duckdb"
	StoreDriverPostgres = "pgx"

	HistoryDriverMemory   = "memory"
	HistoryDriverPostgres = "postgres"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	ObjectStore   ObjectStoreConfig
	History       HistoryConfig
	AI            AIConfig
	Agent         AgentConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver          string
	DSN             string
	DatasetObject   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type HistoryConfig struct {
	Driver string
	DSN    string
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// RequireAPIKey reports ErrMissingAPIKey when no credential was configured.
func (c AIConfig) RequireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

type AgentConfig struct {
	RowLimit   int
	SampleRows int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("CASEDESK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid CASEDESK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	str := func(raw string) (string, error) { return strings.TrimSpace(raw), nil }
	errs := []error{
		apply(lookup, "CASEDESK_SERVICE_NAME", &cfg.Service.Name, str),
		apply(lookup, "CASEDESK_HTTP_ADDR", &cfg.HTTP.Address, str),
		apply(lookup, "CASEDESK_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout, time.ParseDuration),
		apply(lookup, "CASEDESK_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout, time.ParseDuration),
		apply(lookup, "CASEDESK_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout, time.ParseDuration),

		apply(lookup, "CASEDESK_STORE_DRIVER", &cfg.Store.Driver, str),
		apply(lookup, "CASEDESK_STORE_DSN", &cfg.Store.DSN, str),
		apply(lookup, "CASEDESK_DATASET_OBJECT", &cfg.Store.DatasetObject, str),
		apply(lookup, "CASEDESK_STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns, strconv.Atoi),
		apply(lookup, "CASEDESK_STORE_MAX_IDLE_CONNS", &cfg.Store.MaxIdleConns, strconv.Atoi),
		apply(lookup, "CASEDESK_STORE_CONN_MAX_IDLE_TIME", &cfg.Store.ConnMaxIdleTime, time.ParseDuration),
		apply(lookup, "CASEDESK_STORE_CONN_MAX_LIFETIME", &cfg.Store.ConnMaxLifetime, time.ParseDuration),

		apply(lookup, "CASEDESK_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint, str),
		apply(lookup, "CASEDESK_OBJECTSTORE_REGION", &cfg.ObjectStore.Region, str),
		apply(lookup, "CASEDESK_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket, str),
		apply(lookup, "CASEDESK_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID, str),
		apply(lookup, "CASEDESK_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey, str),
		apply(lookup, "CASEDESK_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL, strconv.ParseBool),
		apply(lookup, "CASEDESK_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix, str),
		apply(lookup, "CASEDESK_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket, strconv.ParseBool),

		apply(lookup, "CASEDESK_HISTORY_DRIVER", &cfg.History.Driver, str),
		apply(lookup, "CASEDESK_HISTORY_DSN", &cfg.History.DSN, str),

		apply(lookup, "CASEDESK_AI_BASE_URL", &cfg.AI.BaseURL, str),
		// The CASEDESK_ name wins over the conventional one.
		apply(lookup, "OPENAI_API_KEY", &cfg.AI.APIKey, str),
		apply(lookup, "CASEDESK_AI_API_KEY", &cfg.AI.APIKey, str),
		apply(lookup, "CASEDESK_AI_MODEL", &cfg.AI.Model, str),
		apply(lookup, "CASEDESK_AI_TEMPERATURE", &cfg.AI.Temperature, parseFloat),
		apply(lookup, "CASEDESK_AI_TIMEOUT", &cfg.AI.Timeout, time.ParseDuration),
		apply(lookup, "CASEDESK_AGENT_ROW_LIMIT", &cfg.Agent.RowLimit, strconv.Atoi),
		apply(lookup, "CASEDESK_AGENT_SAMPLE_ROWS", &cfg.Agent.SampleRows, strconv.Atoi),

		apply(lookup, "CASEDESK_LOG_JSON", &cfg.Observability.LogJSON, strconv.ParseBool),
		apply(lookup, "CASEDESK_LOG_LEVEL", &cfg.Observability.LogLevel, parseLogLevel),
		apply(lookup, "CASEDESK_AUTH_REQUIRED", &cfg.Auth.Required, strconv.ParseBool),
		apply(lookup, "CASEDESK_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys, str),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Service.Name == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.Store.Driver != StoreDriverDuckDB && c.Store.Driver != StoreDriverPostgres {
		errs = append(errs, fmt.Errorf("invalid CASEDESK_STORE_DRIVER: %q", c.Store.Driver))
	}
	switch c.History.Driver {
	case HistoryDriverMemory:
	case HistoryDriverPostgres:
		if c.History.DSN == "" {
			errs = append(errs, errors.New("CASEDESK_HISTORY_DSN is required for the postgres history driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid CASEDESK_HISTORY_DRIVER: %q", c.History.Driver))
	}
	if c.Agent.RowLimit < 0 || c.Agent.SampleRows < 0 {
		errs = append(errs, errors.New("agent row limits must be >= 0"))
	}
	return errors.Join(errs...)
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "casedesk-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:          StoreDriverDuckDB,
			DSN:             "social3.duckdb",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "casedesk",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		History: HistoryConfig{
			Driver: HistoryDriverMemory,
		},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			Timeout:     60 * time.Second,
		},
		Agent: AgentConfig{
			RowLimit:   10,
			SampleRows: 3,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Store.DSN = ""
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

// apply overwrites dst when key is set. Unset keys keep the profile default.
func apply[T any](lookup LookupFunc, key string, dst *T, parse func(string) (T, error)) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func parseFloat(raw string) (float64, error) {
	return strconv.ParseFloat(raw, 64)
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", raw)
}
