package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. INSIGHTS_LOG_LEVEL.
const EnvPrefix = "INSIGHTS_"

// envBackendURL is the deployment-time origin variable of the web client.
const envBackendURL = "INSIGHTS_BACKEND_BASE_URL"

//go:embed schema.json
var schemaJSON []byte

// Config is the merged client configuration.
type Config struct {
	BaseURL           string   `yaml:"base_url"`
	TokenFile         string   `yaml:"token_file"`
	TokenHashKey      string   `yaml:"token_hash_key"`
	TokenBlockKey     string   `yaml:"token_block_key"`
	DatasetInterval   Duration `yaml:"dataset_interval"`
	InsightInterval   Duration `yaml:"insight_interval"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	LogLevel          string   `yaml:"log_level"`
	LogMode           string   `yaml:"log_mode"`
	PreviewAddr       string   `yaml:"preview_addr"`
	EChartsAssetsHost string   `yaml:"echarts_assets_host"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:         "http://localhost:8000",
		DatasetInterval: Duration(6 * time.Second),
		InsightInterval: Duration(5 * time.Second),
		LogLevel:        "warn",
		LogMode:         "dev",
		PreviewAddr:     "127.0.0.1:8787",
	}
}

// Sealed reports whether the token file should be sealed with securecookie.
func (c Config) Sealed() bool {
	return c.TokenHashKey != ""
}

// LoadOptions selects the sources merged by Load.
type LoadOptions struct {
	// File is a YAML file. When empty, DefaultFile is used if it exists.
	File string
	// EnvFile is a dotenv file; missing files are ignored. Defaults to ".env".
	EnvFile string
	// Environ replaces os.Environ, mostly for tests.
	Environ []string
	// Overrides come from CLI flags, keyed like the YAML document.
	Overrides map[string]string
}

// Load merges defaults, the YAML file, the dotenv file, INSIGHTS_* variables
// and flag overrides, in that order, then validates the result.
func Load(opts LoadOptions) (Config, error) {
	cfg := Defaults()

	file, explicit := opts.File, opts.File != ""
	if !explicit {
		file = DefaultFile()
	}
	if file != "" {
		if err := mergeFile(&cfg, file, explicit); err != nil {
			return Config{}, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
	}
	if err := applyEnv(&cfg, dotenv); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", envFile, err)
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	if err := applyEnv(&cfg, environMap(environ)); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	for key, value := range opts.Overrides {
		if value == "" {
			continue
		}
		if err := cfg.set(key, value); err != nil {
			return Config{}, fmt.Errorf("config: flag %s: %w", key, err)
		}
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultFile is <user config dir>/insights/config.yaml, or empty when the
// config dir is unknown.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "insights", "config.yaml")
}

func mergeFile(cfg *Config, path string, explicit bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, env map[string]string) error {
	if v := env[envBackendURL]; v != "" {
		cfg.BaseURL = v
	}
	for _, key := range keys {
		v, ok := env[EnvPrefix+strings.ToUpper(key)]
		if !ok || v == "" {
			continue
		}
		if err := cfg.set(key, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
	}
	return nil
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			out[k] = v
		}
	}
	return out
}

var keys = []string{
	"base_url",
	"token_file",
	"token_hash_key",
	"token_block_key",
	"dataset_interval",
	"insight_interval",
	"request_timeout",
	"log_level",
	"log_mode",
	"preview_addr",
	"echarts_assets_host",
}

// ErrUnknownKey is returned for override keys that are not configuration keys.
var ErrUnknownKey = errors.New("config: unknown key")

func (c *Config) set(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = value
	case "token_file":
		c.TokenFile = value
	case "token_hash_key":
		c.TokenHashKey = value
	case "token_block_key":
		c.TokenBlockKey = value
	case "dataset_interval":
		return c.DatasetInterval.parse(value)
	case "insight_interval":
		return c.InsightInterval.parse(value)
	case "request_timeout":
		return c.RequestTimeout.parse(value)
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "log_mode":
		c.LogMode = strings.ToLower(value)
	case "preview_addr":
		c.PreviewAddr = value
	case "echarts_assets_host":
		c.EChartsAssetsHost = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return nil
}

// document is the JSON shape validated against the schema.
func (c Config) document() map[string]any {
	return map[string]any{
		"base_url":            c.BaseURL,
		"token_file":          c.TokenFile,
		"token_hash_key":      c.TokenHashKey,
		"token_block_key":     c.TokenBlockKey,
		"dataset_interval":    c.DatasetInterval.String(),
		"insight_interval":    c.InsightInterval.String(),
		"request_timeout":     c.RequestTimeout.String(),
		"log_level":           c.LogLevel,
		"log_mode":            c.LogMode,
		"preview_addr":        c.PreviewAddr,
		"echarts_assets_host": c.EChartsAssetsHost,
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("config: load schema: %w", err)
	}
	schema, err := compiler.Compile("config.json")
	if err != nil {
		return nil, fmt.Errorf("config: compile schema: %w", err)
	}
	return schema, nil
})

// Validate checks cfg against the embedded JSON schema and the rules the
// schema cannot express.
func Validate(cfg Config) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(cfg.document()); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	if cfg.TokenBlockKey != "" && cfg.TokenHashKey == "" {
		return errors.New("config: token_block_key requires token_hash_key")
	}
	if cfg.RequestTimeout < 0 {
		return errors.New("config: request_timeout must not be negative")
	}
	return nil
}

// Duration is a time.Duration written as "6s" in YAML and the environment.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) parse(value string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
