package common

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Common flag definitions
var (
	ListenAddrFlag = &cli.StringFlag{
		Name:    "listen-addr",
		Usage:   "Address for the HTTP control surface",
		Value:   "0.0.0.0:8000",
		EnvVars: []string{"CERTSYNCD_LISTEN_ADDR"},
	}

	CertDirFlag = &cli.StringFlag{
		Name:    "cert-dir",
		Usage:   "Directory where certificate files are written",
		EnvVars: []string{"CERTSYNCD_CERT_DIR"},
	}

	SecretNamesFlag = &cli.StringFlag{
		Name:    "secret-names",
		Usage:   "Comma-separated list of secret names to monitor",
		EnvVars: []string{"CERTSYNCD_SECRET_NAMES"},
	}

	TagKeyFlag = &cli.StringFlag{
		Name:    "tag-key",
		Usage:   "Tag key for tag-based secret discovery",
		EnvVars: []string{"CERTSYNCD_TAG_KEY"},
	}

	TagValueFlag = &cli.StringFlag{
		Name:    "tag-value",
		Usage:   "Tag value for tag-based secret discovery",
		EnvVars: []string{"CERTSYNCD_TAG_VALUE"},
	}

	AWSRegionFlag = &cli.StringFlag{
		Name:    "aws-region",
		Usage:   "AWS region for Secrets Manager",
		Value:   "us-east-1",
		EnvVars: []string{"CERTSYNCD_AWS_REGION", "AWS_REGION"},
	}

	SyncIntervalFlag = &cli.DurationFlag{
		Name:    "sync-interval",
		Usage:   "Interval between scheduled sync cycles",
		Value:   time.Hour,
		EnvVars: []string{"CERTSYNCD_SYNC_INTERVAL"},
	}

	FetchTimeoutFlag = &cli.DurationFlag{
		Name:    "fetch-timeout",
		Usage:   "Timeout for each secret store call",
		Value:   30 * time.Second,
		EnvVars: []string{"CERTSYNCD_FETCH_TIMEOUT"},
	}

	ReloadURLFlag = &cli.StringFlag{
		Name:    "reload-url",
		Usage:   "HAProxy reload endpoint URL",
		EnvVars: []string{"CERTSYNCD_RELOAD_URL"},
	}

	ReloadSocketFlag = &cli.StringFlag{
		Name:    "reload-socket",
		Usage:   "HAProxy stats socket path",
		EnvVars: []string{"CERTSYNCD_RELOAD_SOCKET"},
	}

	ReloadContainerFlag = &cli.StringFlag{
		Name:    "reload-container",
		Usage:   "Name of the proxy container to signal on reload",
		EnvVars: []string{"CERTSYNCD_RELOAD_CONTAINER"},
	}

	ReloadSignalFlag = &cli.StringFlag{
		Name:    "reload-signal",
		Usage:   "Signal delivered to the proxy container",
		Value:   "SIGUSR2",
		EnvVars: []string{"CERTSYNCD_RELOAD_SIGNAL"},
	}

	ReloadTimeoutFlag = &cli.DurationFlag{
		Name:    "reload-timeout",
		Usage:   "Timeout for reload notifications",
		Value:   30 * time.Second,
		EnvVars: []string{"CERTSYNCD_RELOAD_TIMEOUT"},
	}

	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics-enabled",
		Usage:   "Serve Prometheus metrics on /metrics",
		Value:   true,
		EnvVars: []string{"CERTSYNCD_METRICS_ENABLED"},
	}

	ConfigFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Configuration file (.yaml or env format)",
		EnvVars: []string{"CERTSYNCD_CONFIG"},
	}
)

// GlobalFlags defines flags that apply to the entire application (global flags).
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging",
	},
	&cli.StringFlag{
		Name:  "env-file",
		Usage: "Environment file to load before parsing flags",
		Value: ".env",
	},
}

// ServerFlags lists every flag accepted by the server command.
var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	CertDirFlag,
	SecretNamesFlag,
	TagKeyFlag,
	TagValueFlag,
	AWSRegionFlag,
	SyncIntervalFlag,
	FetchTimeoutFlag,
	ReloadURLFlag,
	ReloadSocketFlag,
	ReloadContainerFlag,
	ReloadSignalFlag,
	ReloadTimeoutFlag,
	MetricsEnabledFlag,
	ConfigFileFlag,
}
