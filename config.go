package assessmentcache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ASSESSMENT_SECRET_KEY.
const EnvPrefix = "ASSESSMENT"

type fileConfig struct {
	Version          string        `mapstructure:"version"`
	SecretKey        string        `mapstructure:"secret_key"`
	ProjectID        string        `mapstructure:"project_id"`
	BackendURL       string        `mapstructure:"backend_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxInFlight      int64         `mapstructure:"max_in_flight"`
	Output           string        `mapstructure:"output"`
	DefaultOnMissing any           `mapstructure:"default_on_missing"`
	DefaultOnError   any           `mapstructure:"default_on_error"`
	LoggingEnabled   bool          `mapstructure:"logging_enabled"`
	LogLevel         string        `mapstructure:"log_level"`
	DebugMode        bool          `mapstructure:"debug_mode"`
	EnableMetrics    bool          `mapstructure:"enable_metrics"`
	LocalStore       string        `mapstructure:"local_store"`
	LocalMaxSize     int           `mapstructure:"local_max_size"`
	AttachToEvent    bool          `mapstructure:"attach_to_event_data"`
	OutputToStore    bool          `mapstructure:"output_to_store"`
	Serialization    string        `mapstructure:"serialization_format"`
	PodID            string        `mapstructure:"pod_id"`
	EventChannel     string        `mapstructure:"event_channel"`
	Table            struct {
		ProjectID string `mapstructure:"project_id"`
		DatasetID string `mapstructure:"dataset_id"`
		TableID   string `mapstructure:"table_id"`
		MaxLen    int64  `mapstructure:"max_len"`
	} `mapstructure:"table"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
}

// LoadConfig reads configuration from path, falling back to an optional
// assessment.yaml in the working directory when path is empty. Environment
// variables prefixed with EnvPrefix override file values.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("assessment")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("version", def.Version)
	v.SetDefault("secret_key", "")
	v.SetDefault("project_id", "")
	v.SetDefault("backend_url", "")
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("max_in_flight", 0)
	v.SetDefault("output", def.Output)
	v.SetDefault("default_on_missing", nil)
	v.SetDefault("default_on_error", nil)
	v.SetDefault("logging_enabled", false)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("debug_mode", false)
	v.SetDefault("enable_metrics", def.EnableMetrics)
	v.SetDefault("local_store", def.LocalStore)
	v.SetDefault("local_max_size", def.LocalCacheConfig.MaxSize)
	v.SetDefault("attach_to_event_data", false)
	v.SetDefault("output_to_store", false)
	v.SetDefault("serialization_format", def.SerializationFormat)
	v.SetDefault("pod_id", "")
	v.SetDefault("event_channel", def.EventChannel)
	v.SetDefault("table.project_id", "")
	v.SetDefault("table.dataset_id", "")
	v.SetDefault("table.table_id", "")
	v.SetDefault("table.max_len", 0)
	v.SetDefault("redis.addr", def.RedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := def
	cfg.Version = fc.Version
	cfg.SecretKey = fc.SecretKey
	cfg.ProjectID = fc.ProjectID
	cfg.BackendURL = fc.BackendURL
	cfg.Timeout = fc.Timeout
	cfg.MaxInFlight = fc.MaxInFlight
	cfg.Output = fc.Output
	cfg.DefaultOnMissing = fc.DefaultOnMissing
	cfg.DefaultOnError = fc.DefaultOnError
	cfg.LoggingEnabled = fc.LoggingEnabled
	cfg.LogLevel = fc.LogLevel
	cfg.DebugMode = fc.DebugMode
	cfg.EnableMetrics = fc.EnableMetrics
	cfg.LocalStore = fc.LocalStore
	cfg.LocalCacheConfig.MaxSize = fc.LocalMaxSize
	cfg.AttachToEventData = fc.AttachToEvent
	cfg.OutputToStore = fc.OutputToStore
	cfg.SerializationFormat = fc.Serialization
	cfg.PodID = fc.PodID
	cfg.EventChannel = fc.EventChannel
	cfg.Table = TableRef{
		ProjectID: fc.Table.ProjectID,
		DatasetID: fc.Table.DatasetID,
		TableID:   fc.Table.TableID,
	}
	cfg.RowStreamMaxLen = fc.Table.MaxLen
	cfg.RedisAddr = fc.Redis.Addr
	cfg.RedisPassword = fc.Redis.Password
	cfg.RedisDB = fc.Redis.DB

	return cfg, nil
}
