package hooks

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// LoadEnvFile loads the environment file referenced by the --env-file flag
// into the process environment so flag EnvVars bindings can pick the values
// up. A missing file is only an error when the flag was set explicitly.
func LoadEnvFile(cCtx *cli.Context) error {
	path := cCtx.String("env-file")
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if cCtx.IsSet("env-file") {
			return fmt.Errorf("env file %s does not exist", path)
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
