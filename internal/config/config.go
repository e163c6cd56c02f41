package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const pathSeparator = "/"

const (
	BackendS3    = "s3"
	BackendMinIO = "minio"
	BackendLocal = "local"

	ACLScopeBucket = "bucket"
	ACLScopeObject = "object"
)

type Config struct {
	Backend string  `mapstructure:"backend"` // "s3"|"minio"|"local"
	Log     Log     `mapstructure:"log"`
	Storage Storage `mapstructure:"storage"`
	Local   Local   `mapstructure:"local"`
	Metrics Metrics `mapstructure:"metrics"`
}

type Log struct {
	Level string `mapstructure:"level"` // "debug"|"info"|"warn"|"error"
	JSON  bool   `mapstructure:"json"`
}

// Storage holds everything needed to reach the bucket chunks live in.
type Storage struct {
	OverrideEndpoint bool   `mapstructure:"override_endpoint"`
	Endpoint         string `mapstructure:"endpoint"`
	ConfigURI        string `mapstructure:"config_uri"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	// All chunk objects of this store live under Prefix. Always ends with "/".
	Prefix       string `mapstructure:"prefix"`
	UseNoneMatch bool   `mapstructure:"use_none_match"`
	AssumeRole   bool   `mapstructure:"assume_role"`
	Role         string `mapstructure:"role"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	ACLScope     string `mapstructure:"acl_scope"` // "bucket"|"object"
}

type Local struct {
	DataDir    string        `mapstructure:"data_dir"`
	DBPath     string        `mapstructure:"db_path"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
	GCBatch    int           `mapstructure:"gc_batch"`
}

type Metrics struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendS3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("storage.override_endpoint", false)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.config_uri", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", pathSeparator)
	v.SetDefault("storage.use_none_match", false)
	v.SetDefault("storage.assume_role", false)
	v.SetDefault("storage.role", "")
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.acl_scope", ACLScopeBucket)

	v.SetDefault("local.data_dir", "./data")
	v.SetDefault("local.db_path", "meta.db")
	v.SetDefault("local.gc_interval", 15*time.Minute)
	v.SetDefault("local.gc_batch", 256)

	v.SetDefault("metrics.namespace", "chunkstore")
}

// Load reads defaults, then the optional file at path, then CHUNKSTORE_*
// environment variables (CHUNKSTORE_STORAGE_BUCKET for storage.bucket).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("chunkstore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize returns a copy with derived fields filled in.
func (c Config) Normalize() Config {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.Storage.Prefix = NormalizePrefix(c.Storage.Prefix)
	c.Storage.ACLScope = strings.ToLower(strings.TrimSpace(c.Storage.ACLScope))
	if c.Storage.ACLScope == "" {
		c.Storage.ACLScope = ACLScopeBucket
	}
	return c
}

func NormalizePrefix(prefix string) string {
	if strings.HasSuffix(prefix, pathSeparator) {
		return prefix
	}
	return prefix + pathSeparator
}

var (
	ErrNoBucket       = errors.New("storage.bucket is required")
	ErrNoRole         = errors.New("storage.role is required when storage.assume_role is set")
	ErrNoEndpoint     = errors.New("storage.endpoint is required when storage.override_endpoint is set")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrBadACLScope    = errors.New("storage.acl_scope must be bucket or object")
)

func (c Config) Validate() error {
	switch c.Backend {
	case BackendS3, BackendMinIO, BackendLocal:
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend)
	}
	if c.Storage.Bucket == "" {
		return ErrNoBucket
	}
	if c.Storage.AssumeRole && c.Storage.Role == "" {
		return ErrNoRole
	}
	if c.Storage.OverrideEndpoint && c.Storage.Endpoint == "" {
		return ErrNoEndpoint
	}
	switch c.Storage.ACLScope {
	case ACLScopeBucket, ACLScopeObject:
	default:
		return ErrBadACLScope
	}
	return nil
}
