package common_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/proxyops/certsyncd/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func loadWithArgs(t *testing.T, args ...string) (common.Config, error) {
	t.Helper()

	var cfg common.Config
	var loadErr error
	app, _ := testutils.CreateTestAppWithNoopLoggerAndAccess("certsyncd", common.ServerFlags, func(cCtx *cli.Context) error {
		cfg, loadErr = common.LoadConfig(cCtx)
		return nil
	})

	require.NoError(t, app.Run(append([]string{"certsyncd"}, args...)))
	return cfg, loadErr
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadWithArgs(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, time.Hour, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "SIGUSR2", cfg.ReloadSignal)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadConfigFromFlags(t *testing.T) {
	cfg, err := loadWithArgs(t,
		"--cert-dir", "/tmp/certs",
		"--secret-names", "cert-a, cert-b,",
		"--sync-interval", "15m",
	)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/certs", cfg.CertDir)
	assert.Equal(t, []string{"cert-a", "cert-b"}, cfg.SecretNamesList())
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"cert_dir: /etc/haproxy/certs\nsync_interval: 30m\ntag_key: certsync\ntag_value: \"true\"\n",
	), 0o644))

	cfg, err := loadWithArgs(t, "--config", path, "--sync-interval", "5m")
	require.NoError(t, err)

	assert.Equal(t, "/etc/haproxy/certs", cfg.CertDir)
	assert.Equal(t, "certsync", cfg.TagKey)
	// Explicit flags beat file values.
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
}

func TestLoadConfigEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"CERTSYNCD_CERT_DIR=/etc/haproxy/certs\nCERTSYNCD_RELOAD_SOCKET=/var/run/haproxy.sock\nCERTSYNCD_FETCH_TIMEOUT=10s\n",
	), 0o644))

	cfg, err := loadWithArgs(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/haproxy/certs", cfg.CertDir)
	assert.Equal(t, "/var/run/haproxy.sock", cfg.ReloadSocket)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadWithArgs(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func(t *testing.T) common.Config {
		return common.Config{
			CertDir:      t.TempDir(),
			SecretNames:  "cert-a",
			SyncInterval: time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*common.Config)
		wantErr bool
	}{
		{"valid with names", func(*common.Config) {}, false},
		{"valid with tags", func(c *common.Config) {
			c.SecretNames = ""
			c.TagKey = "certsync"
			c.TagValue = "true"
		}, false},
		{"missing cert dir", func(c *common.Config) { c.CertDir = "" }, true},
		{"zero interval", func(c *common.Config) { c.SyncInterval = 0 }, true},
		{"tag key without value", func(c *common.Config) { c.TagKey = "certsync" }, true},
		{"no discovery configured", func(c *common.Config) { c.SecretNames = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateCreatesCertDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "certs")
	cfg := common.Config{CertDir: dir, SecretNames: "cert-a", SyncInterval: time.Hour}

	require.NoError(t, cfg.Validate())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
