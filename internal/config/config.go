package config

import (
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

type Backend string

const (
	BackendAthena Backend = "athena"
	BackendDuckDB Backend = "duckdb"
)

// MaxPageRows is the largest page GetQueryResults will return in one call.
const MaxPageRows = 1000

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	AWS           AWSConfig
	Engine        EngineConfig
	Athena        AthenaConfig
	Bedrock       BedrockConfig
	QuickSight    QuickSightConfig
	ObjectStore   ObjectStoreConfig
	Results       ResultsConfig
	Audit         AuditConfig
	Maintenance   MaintenanceConfig
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
	CORSOrigins  []string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

type EngineConfig struct {
	Backend Backend
}

type AthenaConfig struct {
	Database       string
	OutputLocation string
	Workgroup      string
	MaxRows        int
	PollInterval   time.Duration
	PollTimeout    time.Duration
}

type BedrockConfig struct {
	StructuredKBID    string
	UnstructuredKBID  string
	KBModelARN        string
	RecommendModelARN string
	SummaryModelID    string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
}

type QuickSightConfig struct {
	AccountID              string
	Namespace              string
	SessionLifetimeMinutes int
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

type ResultsConfig struct {
	PresignExpiry time.Duration
}

type AuditConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// Retention is how long execution records are kept. Zero keeps them forever.
	Retention time.Duration
}

type MaintenanceConfig struct {
	RetentionInterval time.Duration
	IntegrityInterval time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// legacyAliases maps GENBI_* keys to the names older deployments export.
var legacyAliases = map[string]string{
	"GENBI_AWS_REGION":                  "AWS_REGION",
	"GENBI_AWS_ACCESS_KEY_ID":           "AWS_ACCESS_KEY_ID",
	"GENBI_AWS_SECRET_ACCESS_KEY":       "AWS_SECRET_ACCESS_KEY",
	"GENBI_AWS_SESSION_TOKEN":           "AWS_SESSION_TOKEN",
	"GENBI_ATHENA_DATABASE":             "ATHENA_DB",
	"GENBI_ATHENA_OUTPUT_LOCATION":      "ATHENA_OUTPUT",
	"GENBI_ATHENA_WORKGROUP":            "ATHENA_WORKGROUP",
	"GENBI_ATHENA_MAX_ROWS":             "MAX_ROWS",
	"GENBI_BEDROCK_STRUCTURED_KB_ID":    "KB_STRUCTURED_ID",
	"GENBI_BEDROCK_UNSTRUCTURED_KB_ID":  "KB_UNSTRUCTURED_ID",
	"GENBI_BEDROCK_KB_MODEL_ARN":        "KB_MODEL_ARN",
	"GENBI_BEDROCK_RECOMMEND_MODEL_ARN": "BEDROCK_MODEL_ARN",
	"GENBI_BEDROCK_SUMMARY_MODEL_ID":    "BEDROCK_SUMMARY_MODEL_ID",
	"GENBI_QUICKSIGHT_ACCOUNT_ID":       "AWS_ACCOUNT_ID",
	"GENBI_QUICKSIGHT_NAMESPACE":        "QUICKSIGHT_NAMESPACE",
	"GENBI_HTTP_CORS_ORIGINS":           "FRONTEND_ORIGIN",
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}
	lookup = withAliases(lookup, legacyAliases)

	profile := ProfileDev
	if raw, ok := lookup("GENBI_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid GENBI_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	steps := []func() error{
		func() error { return applyString(lookup, "GENBI_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "GENBI_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "GENBI_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "GENBI_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "GENBI_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyList(lookup, "GENBI_HTTP_CORS_ORIGINS", &cfg.HTTP.CORSOrigins) },
		func() error { return applyString(lookup, "GENBI_AWS_REGION", &cfg.AWS.Region) },
		func() error { return applyString(lookup, "GENBI_AWS_ACCESS_KEY_ID", &cfg.AWS.AccessKeyID) },
		func() error { return applyString(lookup, "GENBI_AWS_SECRET_ACCESS_KEY", &cfg.AWS.SecretAccessKey) },
		func() error { return applyString(lookup, "GENBI_AWS_SESSION_TOKEN", &cfg.AWS.SessionToken) },
		func() error { return applyBackend(lookup, "GENBI_ENGINE_BACKEND", &cfg.Engine.Backend) },
		func() error { return applyString(lookup, "GENBI_ATHENA_DATABASE", &cfg.Athena.Database) },
		func() error { return applyString(lookup, "GENBI_ATHENA_OUTPUT_LOCATION", &cfg.Athena.OutputLocation) },
		func() error { return applyString(lookup, "GENBI_ATHENA_WORKGROUP", &cfg.Athena.Workgroup) },
		func() error { return applyInt(lookup, "GENBI_ATHENA_MAX_ROWS", &cfg.Athena.MaxRows) },
		func() error { return applyDuration(lookup, "GENBI_ATHENA_POLL_INTERVAL", &cfg.Athena.PollInterval) },
		func() error { return applyDuration(lookup, "GENBI_ATHENA_POLL_TIMEOUT", &cfg.Athena.PollTimeout) },
		func() error {
			return applyString(lookup, "GENBI_BEDROCK_STRUCTURED_KB_ID", &cfg.Bedrock.StructuredKBID)
		},
		func() error {
			return applyString(lookup, "GENBI_BEDROCK_UNSTRUCTURED_KB_ID", &cfg.Bedrock.UnstructuredKBID)
		},
		func() error { return applyString(lookup, "GENBI_BEDROCK_KB_MODEL_ARN", &cfg.Bedrock.KBModelARN) },
		func() error {
			return applyString(lookup, "GENBI_BEDROCK_RECOMMEND_MODEL_ARN", &cfg.Bedrock.RecommendModelARN)
		},
		func() error {
			return applyString(lookup, "GENBI_BEDROCK_SUMMARY_MODEL_ID", &cfg.Bedrock.SummaryModelID)
		},
		func() error { return applyInt(lookup, "GENBI_BEDROCK_MAX_TOKENS", &cfg.Bedrock.MaxTokens) },
		func() error { return applyFloat(lookup, "GENBI_BEDROCK_TEMPERATURE", &cfg.Bedrock.Temperature) },
		func() error { return applyDuration(lookup, "GENBI_BEDROCK_TIMEOUT", &cfg.Bedrock.Timeout) },
		func() error { return applyString(lookup, "GENBI_QUICKSIGHT_ACCOUNT_ID", &cfg.QuickSight.AccountID) },
		func() error { return applyString(lookup, "GENBI_QUICKSIGHT_NAMESPACE", &cfg.QuickSight.Namespace) },
		func() error {
			return applyInt(lookup, "GENBI_QUICKSIGHT_SESSION_LIFETIME_MINUTES", &cfg.QuickSight.SessionLifetimeMinutes)
		},
		func() error { return applyString(lookup, "GENBI_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "GENBI_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "GENBI_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "GENBI_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "GENBI_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "GENBI_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "GENBI_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "GENBI_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyDuration(lookup, "GENBI_RESULTS_PRESIGN_EXPIRY", &cfg.Results.PresignExpiry) },
		func() error { return applyString(lookup, "GENBI_AUDIT_DSN", &cfg.Audit.DSN) },
		func() error { return applyInt(lookup, "GENBI_AUDIT_MAX_OPEN_CONNS", &cfg.Audit.MaxOpenConns) },
		func() error { return applyInt(lookup, "GENBI_AUDIT_MAX_IDLE_CONNS", &cfg.Audit.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "GENBI_AUDIT_CONN_MAX_IDLE_TIME", &cfg.Audit.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "GENBI_AUDIT_CONN_MAX_LIFETIME", &cfg.Audit.ConnMaxLifetime)
		},
		func() error { return applyDuration(lookup, "GENBI_AUDIT_RETENTION", &cfg.Audit.Retention) },
		func() error {
			return applyDuration(lookup, "GENBI_MAINTENANCE_RETENTION_INTERVAL", &cfg.Maintenance.RetentionInterval)
		},
		func() error {
			return applyDuration(lookup, "GENBI_MAINTENANCE_INTEGRITY_INTERVAL", &cfg.Maintenance.IntegrityInterval)
		},
		func() error { return applyBool(lookup, "GENBI_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "GENBI_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "GENBI_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "GENBI_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that would make the service unusable. Problems
// surface at startup rather than on the first query.
func (c Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	if c.Engine.Backend == BackendAthena {
		if c.AWS.Region == "" {
			return fmt.Errorf("GENBI_AWS_REGION is required for the athena backend")
		}
		if c.Athena.Database == "" {
			return fmt.Errorf("GENBI_ATHENA_DATABASE is required for the athena backend")
		}
		if c.Athena.OutputLocation == "" {
			return fmt.Errorf("GENBI_ATHENA_OUTPUT_LOCATION is required for the athena backend")
		}
	}
	if c.Engine.Backend == BackendDuckDB && c.ObjectStore.Bucket == "" {
		return fmt.Errorf("GENBI_OBJECTSTORE_BUCKET is required for the duckdb backend")
	}
	if c.Athena.MaxRows < 1 || c.Athena.MaxRows > MaxPageRows {
		return fmt.Errorf("GENBI_ATHENA_MAX_ROWS must be between 1 and %d, got %d", MaxPageRows, c.Athena.MaxRows)
	}
	if c.Athena.PollInterval <= 0 {
		return fmt.Errorf("GENBI_ATHENA_POLL_INTERVAL must be greater than zero")
	}
	if c.Athena.PollTimeout < 0 {
		return fmt.Errorf("GENBI_ATHENA_POLL_TIMEOUT must not be negative")
	}
	if c.QuickSight.SessionLifetimeMinutes < 15 || c.QuickSight.SessionLifetimeMinutes > 600 {
		return fmt.Errorf("GENBI_QUICKSIGHT_SESSION_LIFETIME_MINUTES must be between 15 and 600")
	}
	if c.Audit.Retention < 0 {
		return fmt.Errorf("GENBI_AUDIT_RETENTION must not be negative")
	}
	if c.Maintenance.RetentionInterval <= 0 || c.Maintenance.IntegrityInterval <= 0 {
		return fmt.Errorf("maintenance intervals must be greater than zero")
	}
	if c.Bedrock.MaxTokens <= 0 {
		return fmt.Errorf("GENBI_BEDROCK_MAX_TOKENS must be greater than zero")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "genbi-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000"},
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Engine: EngineConfig{Backend: BackendAthena},
		Athena: AthenaConfig{
			Workgroup:    "primary",
			MaxRows:      1000,
			PollInterval: time.Second,
			PollTimeout:  0,
		},
		Bedrock: BedrockConfig{
			StructuredKBID:    "LKT3EYJBN2",
			UnstructuredKBID:  "ICDV1MKUJG",
			KBModelARN:        "arn:aws:bedrock:us-east-1::foundation-model/amazon.nova-pro-v1:0",
			RecommendModelARN: "arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-3-haiku-20240307-v1:0",
			SummaryModelID:    "anthropic.claude-3-5-haiku-20241022-v1:0",
			MaxTokens:         512,
			Temperature:       0.7,
			Timeout:           60 * time.Second,
		},
		QuickSight: QuickSightConfig{
			Namespace:              "default",
			SessionLifetimeMinutes: 600,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "genbi",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "tables",
			AutoCreateBucket: true,
		},
		Results: ResultsConfig{
			PresignExpiry: 15 * time.Minute,
		},
		Audit: AuditConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			Retention:       30 * 24 * time.Hour,
		},
		Maintenance: MaintenanceConfig{
			RetentionInterval: time.Hour,
			IntegrityInterval: 15 * time.Minute,
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
		cfg.Engine.Backend = BackendDuckDB
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.HTTP.CORSOrigins = nil
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

// withAliases consults the alias of a key when the key itself is unset.
func withAliases(lookup LookupFunc, aliases map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if raw, ok := lookup(key); ok {
			return raw, true
		}
		alias, ok := aliases[key]
		if !ok {
			return "", false
		}
		return lookup(alias)
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyBackend(lookup LookupFunc, key string, dst *Backend) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	backend := Backend(strings.ToLower(strings.TrimSpace(raw)))
	switch backend {
	case BackendAthena, BackendDuckDB:
		*dst = backend
		return nil
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
