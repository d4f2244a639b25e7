package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-envparse"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the certsyncd server.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	CertDir         string        `yaml:"cert_dir"`
	SecretNames     string        `yaml:"secret_names"`
	TagKey          string        `yaml:"tag_key"`
	TagValue        string        `yaml:"tag_value"`
	AWSRegion       string        `yaml:"aws_region"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	ReloadURL       string        `yaml:"reload_url"`
	ReloadSocket    string        `yaml:"reload_socket"`
	ReloadContainer string        `yaml:"reload_container"`
	ReloadSignal    string        `yaml:"reload_signal"`
	ReloadTimeout   time.Duration `yaml:"reload_timeout"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
}

// LoadConfig builds the server configuration from CLI flags, optionally merged
// with a configuration file. Explicitly set flags win over file values.
func LoadConfig(cCtx *cli.Context) (Config, error) {
	cfg := Config{
		ListenAddr:      cCtx.String("listen-addr"),
		CertDir:         cCtx.String("cert-dir"),
		SecretNames:     cCtx.String("secret-names"),
		TagKey:          cCtx.String("tag-key"),
		TagValue:        cCtx.String("tag-value"),
		AWSRegion:       cCtx.String("aws-region"),
		SyncInterval:    cCtx.Duration("sync-interval"),
		FetchTimeout:    cCtx.Duration("fetch-timeout"),
		ReloadURL:       cCtx.String("reload-url"),
		ReloadSocket:    cCtx.String("reload-socket"),
		ReloadContainer: cCtx.String("reload-container"),
		ReloadSignal:    cCtx.String("reload-signal"),
		ReloadTimeout:   cCtx.Duration("reload-timeout"),
		MetricsEnabled:  cCtx.Bool("metrics-enabled"),
	}

	path := cCtx.String("config")
	if path == "" {
		return cfg, nil
	}

	fileCfg, err := loadConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	mergeFileConfig(&cfg, fileCfg, cCtx)

	return cfg, nil
}

// loadConfigFile parses a configuration file. YAML is detected by extension;
// anything else is treated as an env-format file (KEY=value lines).
func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return cfg, nil
	default:
		return parseEnvConfig(path, data)
	}
}

// parseEnvConfig reads CERTSYNCD_* keys from an env-format file without
// touching the process environment.
func parseEnvConfig(path string, data []byte) (Config, error) {
	env, err := envparse.Parse(strings.NewReader(string(data)))
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse env config %s: %w", path, err)
	}

	var cfg Config
	cfg.ListenAddr = env["CERTSYNCD_LISTEN_ADDR"]
	cfg.CertDir = env["CERTSYNCD_CERT_DIR"]
	cfg.SecretNames = env["CERTSYNCD_SECRET_NAMES"]
	cfg.TagKey = env["CERTSYNCD_TAG_KEY"]
	cfg.TagValue = env["CERTSYNCD_TAG_VALUE"]
	cfg.AWSRegion = env["CERTSYNCD_AWS_REGION"]
	cfg.ReloadURL = env["CERTSYNCD_RELOAD_URL"]
	cfg.ReloadSocket = env["CERTSYNCD_RELOAD_SOCKET"]
	cfg.ReloadContainer = env["CERTSYNCD_RELOAD_CONTAINER"]
	cfg.ReloadSignal = env["CERTSYNCD_RELOAD_SIGNAL"]

	for key, dst := range map[string]*time.Duration{
		"CERTSYNCD_SYNC_INTERVAL":  &cfg.SyncInterval,
		"CERTSYNCD_FETCH_TIMEOUT":  &cfg.FetchTimeout,
		"CERTSYNCD_RELOAD_TIMEOUT": &cfg.ReloadTimeout,
	} {
		if v, ok := env[key]; ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
			}
			*dst = d
		}
	}

	return cfg, nil
}

// mergeFileConfig fills cfg fields from the file for every flag the caller did
// not set explicitly.
func mergeFileConfig(cfg *Config, file Config, cCtx *cli.Context) {
	merge := func(flag string, dst *string, src string) {
		if !cCtx.IsSet(flag) && src != "" {
			*dst = src
		}
	}
	mergeDur := func(flag string, dst *time.Duration, src time.Duration) {
		if !cCtx.IsSet(flag) && src != 0 {
			*dst = src
		}
	}

	merge("listen-addr", &cfg.ListenAddr, file.ListenAddr)
	merge("cert-dir", &cfg.CertDir, file.CertDir)
	merge("secret-names", &cfg.SecretNames, file.SecretNames)
	merge("tag-key", &cfg.TagKey, file.TagKey)
	merge("tag-value", &cfg.TagValue, file.TagValue)
	merge("aws-region", &cfg.AWSRegion, file.AWSRegion)
	merge("reload-url", &cfg.ReloadURL, file.ReloadURL)
	merge("reload-socket", &cfg.ReloadSocket, file.ReloadSocket)
	merge("reload-container", &cfg.ReloadContainer, file.ReloadContainer)
	merge("reload-signal", &cfg.ReloadSignal, file.ReloadSignal)
	mergeDur("sync-interval", &cfg.SyncInterval, file.SyncInterval)
	mergeDur("fetch-timeout", &cfg.FetchTimeout, file.FetchTimeout)
	mergeDur("reload-timeout", &cfg.ReloadTimeout, file.ReloadTimeout)
}

// Validate checks structural constraints and prepares the certificate
// directory.
func (c *Config) Validate() error {
	if c.CertDir == "" {
		return errors.New("cert-dir is required")
	}
	if err := os.MkdirAll(c.CertDir, 0o755); err != nil {
		return fmt.Errorf("cannot create certificate directory %s: %w", c.CertDir, err)
	}
	if c.SyncInterval <= 0 {
		return errors.New("sync-interval must be positive")
	}
	if (c.TagKey == "") != (c.TagValue == "") {
		return errors.New("tag-key and tag-value must be set together")
	}
	if c.SecretNames == "" && c.TagKey == "" {
		return errors.New("either secret-names or a tag-key/tag-value pair is required")
	}
	return nil
}

// SecretNamesList returns the configured secret names as a slice.
func (c *Config) SecretNamesList() []string {
	if c.SecretNames == "" {
		return nil
	}
	parts := strings.Split(c.SecretNames, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// TagDiscovery reports whether tag-based discovery is configured. When true,
// the scheduled sync path uses the tag filter even if explicit names are also
// configured.
func (c *Config) TagDiscovery() bool {
	return c.TagKey != "" && c.TagValue != ""
}
