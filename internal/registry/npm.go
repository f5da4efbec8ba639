// Package registry looks up published package versions on the npm registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/git-pkgs/proddeps/fetch"
	"github.com/git-pkgs/proddeps/internal/core"
)

const (
	DefaultURL = "https://registry.npmjs.org"
	ecosystem  = "npm"
)

// JSONFetcher fetches and decodes a JSON document.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

// NPM is a client for the npm registry API.
type NPM struct {
	baseURL string
	fetcher JSONFetcher
}

// NewNPM creates a client for the registry at baseURL. If fetcher is nil, a
// circuit-breaking fetcher requesting abbreviated metadata is used.
func NewNPM(baseURL string, fetcher JSONFetcher) *NPM {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if fetcher == nil {
		fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithAccept(fetch.AcceptNPM)))
	}
	return &NPM{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: fetcher,
	}
}

type packageResponse struct {
	Name     string                 `json:"name"`
	Versions map[string]versionInfo `json:"versions"`
	DistTags map[string]string      `json:"dist-tags"`
}

type versionInfo struct {
	Version    string `json:"version"`
	Deprecated string `json:"deprecated"`
}

// PackageURL returns the metadata URL for name. The slash of a scoped
// name is escaped ("@babel%2Fcore"), as the registry expects.
func (r *NPM) PackageURL(name string) string {
	return fmt.Sprintf("%s/%s", r.baseURL, url.PathEscape(name))
}

func (r *NPM) fetchPackage(ctx context.Context, name string) (*packageResponse, error) {
	var resp packageResponse
	if err := r.fetcher.FetchJSON(ctx, r.PackageURL(name), &resp); err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &core.CancellationError{Err: ctxErr}
		}
		return nil, err
	}
	return &resp, nil
}

// LatestVersion returns the version the registry tags as latest. Without a
// latest tag, the highest non-deprecated stable version is used.
func (r *NPM) LatestVersion(ctx context.Context, name string) (string, error) {
	resp, err := r.fetchPackage(ctx, name)
	if err != nil {
		return "", err
	}

	if latest := resp.DistTags["latest"]; latest != "" {
		return latest, nil
	}

	if latest := highestStable(resp.Versions); latest != "" {
		return latest, nil
	}
	return "", &core.NotFoundError{Ecosystem: ecosystem, Name: name}
}

func highestStable(versions map[string]versionInfo) string {
	var valid []*semver.Version
	for number, v := range versions {
		if v.Deprecated != "" {
			continue
		}
		sv, err := semver.NewVersion(number)
		if err != nil || sv.Prerelease() != "" {
			continue
		}
		valid = append(valid, sv)
	}
	if len(valid) == 0 {
		return ""
	}
	sort.Sort(semver.Collection(valid))
	return valid[len(valid)-1].Original()
}
