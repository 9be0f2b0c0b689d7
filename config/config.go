package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "config/config.yml"

var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

// placeholderUserAgent ships in the sample configuration. EDGAR expects a
// real contact address, so production-like environments refuse it.
const placeholderUserAgent = "holdingsflow admin@example.com"

type Config struct {
	App     AppConfig     `yaml:"app"`
	Edgar   EdgarConfig   `yaml:"edgar"`
	Reader  ReaderConfig  `yaml:"reader"`
	Storage StorageConfig `yaml:"storage"`
	Archive ArchiveConfig `yaml:"archive"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type EdgarConfig struct {
	BaseURL        string `yaml:"base_url"`
	UserAgent      string `yaml:"user_agent"`
	FormType       string `yaml:"form_type"`
	IndexDir       string `yaml:"index_dir"`
	IndexExt       string `yaml:"index_ext"`
	SinceYear      int    `yaml:"since_year"`
	MalformedLines string `yaml:"malformed_lines"`
}

type ReaderConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	DBDir    string `yaml:"db_dir"`
	DBPrefix string `yaml:"db_prefix"`
	TopLimit int    `yaml:"top_limit"`
}

type ArchiveConfig struct {
	Dir         string   `yaml:"dir"`
	Compression string   `yaml:"compression"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Region     string `yaml:"region"`
	Namespace  string `yaml:"namespace"`
	Dashboard  string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	ErrorOutput string `yaml:"error_output"`
	MaxAge      int    `yaml:"max_age"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		App: AppConfig{Name: "holdingsflow", Version: "1.0"},
		Edgar: EdgarConfig{
			BaseURL:        "https://www.sec.gov/Archives/",
			UserAgent:      placeholderUserAgent,
			FormType:       "13F-HR",
			IndexDir:       "edgar-files",
			IndexExt:       ".tsv",
			SinceYear:      2023,
			MalformedLines: "skip",
		},
		Reader: ReaderConfig{
			BatchSize:  5,
			BatchDelay: time.Second,
			Timeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			DBDir:    "databases",
			DBPrefix: "company_holdings_",
			TopLimit: 100,
		},
		Archive: ArchiveConfig{
			Dir:         "archive",
			Compression: "snappy",
		},
		Metrics: MetricsConfig{Namespace: "HoldingsFlow", Dashboard: "HoldingsFlow"},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "stdout",
			ErrorOutput: "error_log.txt",
		},
	}
}

// ResolvePath picks the environment specific file for APP_ENV when path is
// the default and that file exists.
func ResolvePath(path string) string {
	resolved := resolveEnvSpecificPath(path, DefaultPath, envConfigPaths)
	if resolved != path {
		if _, err := os.Stat(resolved); err != nil {
			return path
		}
	}
	return resolved
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config, getAppEnvironment()); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("EDGAR_USER_AGENT"); v != "" {
		config.Edgar.UserAgent = strings.TrimSpace(v)
	}
	if v := os.Getenv("HOLDINGS_INDEX_DIR"); v != "" {
		config.Edgar.IndexDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("HOLDINGS_DB_DIR"); v != "" {
		config.Storage.DBDir = strings.TrimSpace(v)
	}

	if config.Archive.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Archive.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Archive.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Archive.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Archive.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Archive.S3.Bucket = strings.TrimSpace(config.Archive.S3.Bucket)
}

func validateConfig(cfg *Config, env string) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if cfg.Edgar.BaseURL == "" {
		return fmt.Errorf("edgar.base_url is required")
	}
	if !strings.HasSuffix(cfg.Edgar.BaseURL, "/") {
		return fmt.Errorf("edgar.base_url must end with '/'")
	}
	if strings.TrimSpace(cfg.Edgar.UserAgent) == "" {
		return fmt.Errorf("edgar.user_agent is required")
	}
	if IsProductionLike(env) && cfg.Edgar.UserAgent == placeholderUserAgent {
		return fmt.Errorf("edgar.user_agent must be set to a real contact in %s", env)
	}
	if cfg.Edgar.FormType == "" {
		return fmt.Errorf("edgar.form_type is required")
	}
	switch cfg.Edgar.MalformedLines {
	case "skip", "abort":
	default:
		return fmt.Errorf("edgar.malformed_lines must be 'skip' or 'abort', got '%s'", cfg.Edgar.MalformedLines)
	}

	if cfg.Reader.BatchSize <= 0 {
		return fmt.Errorf("reader.batch_size must be greater than 0")
	}
	if cfg.Reader.BatchDelay < 0 {
		return fmt.Errorf("reader.batch_delay must not be negative")
	}
	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}

	if cfg.Storage.DBDir == "" {
		return fmt.Errorf("storage.db_dir is required")
	}
	if cfg.Storage.TopLimit <= 0 {
		return fmt.Errorf("storage.top_limit must be greater than 0")
	}

	switch cfg.Archive.Compression {
	case "snappy", "gzip", "none", "":
	default:
		return fmt.Errorf("archive.compression '%s' is not supported", cfg.Archive.Compression)
	}

	if cfg.Archive.S3.Enabled {
		if cfg.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required when S3 is enabled")
		}
		if cfg.Archive.S3.Region == "" {
			return fmt.Errorf("archive.s3.region is required when S3 is enabled")
		}
		if cfg.Archive.S3.AccessKeyID == "" || cfg.Archive.S3.SecretAccessKey == "" {
			return fmt.Errorf("archive.s3.access_key_id and archive.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Archive.S3.Bucket) {
			return fmt.Errorf("archive.s3.bucket '%s' is invalid", cfg.Archive.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
