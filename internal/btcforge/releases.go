package btcforge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	bitcoinReleasesAPI = "https://api.github.com/repos/bitcoin/bitcoin/releases"
	electrsReleasesAPI = "https://api.github.com/repos/romanz/electrs/releases"

	// maxVersions caps how many stable tags are offered per project.
	maxVersions = 10

	releaseFetchTimeout = 10 * time.Second
)

type githubRelease struct {
	TagName string `json:"tag_name"`
}

// FetchVersions returns up to maxVersions stable release tags for a project,
// newest first. Release candidates are filtered out.
func FetchVersions(ctx context.Context, project Project) ([]string, error) {
	url := bitcoinReleasesAPI
	if project == ProjectElectrs {
		url = electrsReleasesAPI
	}
	return fetchVersions(ctx, url)
}

func fetchVersions(ctx context.Context, url string) ([]string, error) {
	client := &http.Client{Timeout: releaseFetchTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	// The GitHub API rejects requests without a User-Agent.
	req.Header.Set("User-Agent", "btcforge/"+version)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var releases []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("decoding release JSON: %w", err)}
	}

	tags := make([]string, 0, len(releases))
	for _, r := range releases {
		tags = append(tags, r.TagName)
	}
	return filterStableTags(tags, maxVersions), nil
}

// filterStableTags drops release-candidate tags and caps the result,
// preserving order (the API returns newest first).
func filterStableTags(tags []string, max int) []string {
	out := make([]string, 0, max)
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), "rc") {
			continue
		}
		out = append(out, tag)
		if len(out) == max {
			break
		}
	}
	return out
}
