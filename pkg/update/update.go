// Package update checks the published release manifest for a newer version.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const manifestSizeLimit = 1 << 20

var (
	errCheckFailed     = errors.New("update check failed")
	errManifestInvalid = errors.New("invalid release manifest")
	errVersionInvalid  = errors.New("invalid version")
)

// ErrCheckFailed reports a manifest that could not be fetched. Callers treat
// it as a soft failure.
func ErrCheckFailed() error {
	return errCheckFailed
}

// ErrManifestInvalid reports a manifest that fetched but did not parse.
func ErrManifestInvalid() error {
	return errManifestInvalid
}

// ErrVersionInvalid reports a current version that is not semantic, such as
// a development build.
func ErrVersionInvalid() error {
	return errVersionInvalid
}

// Release is the published manifest payload.
type Release struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Outcome is the result of comparing the running version to the manifest.
type Outcome struct {
	Current *semver.Version
	Latest  *semver.Version
	Release Release
	Newer   bool
}

// Checker fetches and compares release manifests.
type Checker struct {
	url    string
	client *http.Client
}

// NewChecker returns a checker reading the manifest at url.
func NewChecker(url string) *Checker {
	return &Checker{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check fetches the manifest and compares it against the current version.
func (c *Checker) Check(ctx context.Context, current string) (*Outcome, error) {
	cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a semantic version", errVersionInvalid, current)
	}

	release, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := semver.NewVersion(strings.TrimPrefix(release.Version, "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: version %q", errManifestInvalid, release.Version)
	}

	return &Outcome{
		Current: cur,
		Latest:  latest,
		Release: release,
		Newer:   latest.GreaterThan(cur),
	}, nil
}

func (c *Checker) fetch(ctx context.Context) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("%w: %w", errCheckFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("%w: %w", errCheckFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("%w: unexpected status %d", errCheckFailed, resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, manifestSizeLimit)).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("%w: %v", errManifestInvalid, err)
	}
	if strings.TrimSpace(release.Version) == "" {
		return Release{}, fmt.Errorf("%w: missing version", errManifestInvalid)
	}
	return release, nil
}
