// Package version reports the running build version and whether a newer
// release is published.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Current is the build version, overridden at link time with
// -ldflags "-X github.com/veery/veery/version.Current=v1.2.3".
var Current = "v0.0.0"

// latestReleaseURL is a var so tests can point it at a local server.
var latestReleaseURL = "https://api.github.com/repos/veery/veery/releases/latest"

// Info is the version payload returned to API clients.
type Info struct {
	Current    string `json:"current"`
	Latest     string `json:"latest,omitempty"`
	IsLatest   *bool  `json:"isLatest,omitempty"`
	ReleaseURL string `json:"releaseUrl,omitempty"`
}

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Check returns the current version plus, when the release lookup
// succeeds, the latest published version. Lookup failures degrade to a
// current-only response rather than erroring.
func Check(ctx context.Context, client *http.Client) Info {
	info := Info{Current: normalize(Current)}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, latestReleaseURL, nil)
	if err != nil {
		return info
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return info
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil || rel.TagName == "" {
		return info
	}

	info.Latest = normalize(rel.TagName)
	info.ReleaseURL = rel.HTMLURL
	isLatest := info.Current == info.Latest
	info.IsLatest = &isLatest
	return info
}

// normalize forces a single leading "v" so "1.2.3" and "v1.2.3" compare
// equal.
func normalize(v string) string {
	return fmt.Sprintf("v%s", strings.TrimPrefix(strings.TrimSpace(v), "v"))
}
