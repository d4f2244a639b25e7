package versioncheck

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/proxyops/certsyncd/internal/version"
	"github.com/proxyops/certsyncd/pkg/common/iface"
	"golang.org/x/mod/semver"
)

// ReleaseURL points at the latest-release API endpoint. A variable so tests
// can redirect it.
var ReleaseURL = "https://api.github.com/repos/proxyops/certsyncd/releases/latest"

const requestTimeout = 10 * time.Second

// UpdateInfo contains information about an available update
type UpdateInfo struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
}

type releaseResponse struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdate queries the release endpoint and compares against the
// embedded version. Errors are returned so the caller can decide to ignore
// them; an update check must never affect daemon operation.
func CheckForUpdate(logger iface.Logger) (*UpdateInfo, error) {
	currentVersion := version.GetVersion()

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Get(ReleaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release endpoint returned %s", resp.Status)
	}

	var release releaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release response: %w", err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("release response has no tag name")
	}

	logger.Debug("latest release is %s, running %s", release.TagName, currentVersion)
	return &UpdateInfo{
		Available:      CompareVersions(currentVersion, release.TagName) < 0,
		CurrentVersion: currentVersion,
		LatestVersion:  release.TagName,
	}, nil
}

// PrintUpdateNotification prints a short upgrade hint to the terminal.
func PrintUpdateNotification(info *UpdateInfo) {
	if info == nil || !info.Available {
		return
	}
	color.Yellow("A new certsyncd release is available: %s (running %s)",
		info.LatestVersion, info.CurrentVersion)
}

// CompareVersions compares two semantic version strings.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2.
func CompareVersions(v1, v2 string) int {
	return semver.Compare(normalizeVersion(v1), normalizeVersion(v2))
}

// normalizeVersion maps a version string into a form semver.Compare accepts.
// Unknown or development versions sort below every release.
func normalizeVersion(v string) string {
	if v == "" || v == "unknown" || v == "development" {
		return "v0.0.0"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "v0.0.0"
	}
	return v
}
