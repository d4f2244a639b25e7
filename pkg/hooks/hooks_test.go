package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runWithEnvFile(t *testing.T, args ...string) error {
	t.Helper()

	var hookErr error
	app := &cli.App{
		Name:  "certsyncd",
		Flags: common.GlobalFlags,
		Action: func(cCtx *cli.Context) error {
			hookErr = LoadEnvFile(cCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"certsyncd"}, args...)))
	return hookErr
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CERTSYNCD_TEST_VALUE=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CERTSYNCD_TEST_VALUE") })

	require.NoError(t, runWithEnvFile(t, "--env-file", path))
	assert.Equal(t, "loaded", os.Getenv("CERTSYNCD_TEST_VALUE"))
}

func TestLoadEnvFileExplicitMissing(t *testing.T) {
	err := runWithEnvFile(t, "--env-file", filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadEnvFileDefaultMissing(t *testing.T) {
	// The default .env is optional; its absence is not an error.
	assert.NoError(t, runWithEnvFile(t))
}
