package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Release is the subset of GitHub's release API response the updater
// needs.
type Release struct {
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	Body        string  `json:"body"`
	Prerelease  bool    `json:"prerelease"`
	Draft       bool    `json:"draft"`
	PublishedAt string  `json:"published_at"`
	HTMLURL     string  `json:"html_url"`
	Assets      []Asset `json:"assets"`
}

// Asset is one file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
	ContentType        string `json:"content_type"`
}

// ComponentInfo is one component's entry in manifest.json.
type ComponentInfo struct {
	Version    string            `json:"version"`
	Asset      string            `json:"asset,omitempty"`
	SHA256     string            `json:"sha256,omitempty"`
	InstallDir string            `json:"install_dir,omitempty"`
	Requires   map[string]string `json:"requires,omitempty"`
}

// ReleaseManifest is manifest.json: every component's version in one
// release, not all of which necessarily ship a binary in that release.
type ReleaseManifest struct {
	ReleaseVersion string                   `json:"release_version"`
	Components     map[string]ComponentInfo `json:"components"`
}

// ResolvedComponent is the download source decided for one component
// after walking back across releases to find the release that actually
// shipped its asset.
type ResolvedComponent struct {
	LatestVersion     string
	SourceReleaseTag  string
	DownloadURL       string
	AssetName         string
	InstallDir        string
	SHA256            string
	Requires          map[string]string
}

// GitHubClient fetches releases and assets for owner/repo.
type GitHubClient struct {
	owner, repo string
	http        *http.Client
	baseURL     string
}

// NewGitHubClient builds a client against the real GitHub API.
func NewGitHubClient(owner, repo string) *GitHubClient {
	return NewGitHubClientWithBaseURL(owner, repo, "")
}

// NewGitHubClientWithBaseURL overrides the API base URL, for pointing at
// a local mock server in tests.
func NewGitHubClientWithBaseURL(owner, repo, baseURL string) *GitHubClient {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubClient{
		owner:   owner,
		repo:    repo,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GitHubClient) get(url string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("updater: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("updater: GitHub API %s returned %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchReleases returns up to perPage releases, newest first.
func (c *GitHubClient) FetchReleases(perPage int) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, c.owner, c.repo, perPage)
	var releases []Release
	if err := c.get(url, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// FetchManifest downloads and parses a release's manifest.json asset.
func (c *GitHubClient) FetchManifest(release Release) (ReleaseManifest, error) {
	var asset *Asset
	for i := range release.Assets {
		if release.Assets[i].Name == "manifest.json" {
			asset = &release.Assets[i]
			break
		}
	}
	if asset == nil {
		return ReleaseManifest{}, fmt.Errorf("updater: release %q has no manifest.json asset", release.TagName)
	}

	resp, err := c.http.Get(asset.BrowserDownloadURL)
	if err != nil {
		return ReleaseManifest{}, fmt.Errorf("updater: download manifest.json: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ReleaseManifest{}, fmt.Errorf("updater: download manifest.json: status %d", resp.StatusCode)
	}

	var m ReleaseManifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return ReleaseManifest{}, fmt.Errorf("updater: parse manifest.json: %w", err)
	}
	return m, nil
}

// DownloadAsset fetches an asset's bytes into memory.
func (c *GitHubClient) DownloadAsset(asset Asset) ([]byte, error) {
	log.Printf("[updater] downloading %s (%d bytes)", asset.Name, asset.Size)
	resp, err := c.http.Get(asset.BrowserDownloadURL)
	if err != nil {
		return nil, fmt.Errorf("updater: download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("updater: download %s: status %d", asset.Name, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ResolveComponentsAcrossReleases walks releases newest-first, building
// the latest target version for every component from the newest
// release's manifest, then resolves a download source for each: the
// newest release that actually shipped a matching asset for it. Some
// releases only bundle a subset of components, so a component absent
// from the latest release's assets is looked up in older releases until
// one carries its exact target version with an asset attached.
func ResolveComponentsAcrossReleases(releases []Release, includePrerelease bool) (ReleaseManifest, map[string]ResolvedComponent, error) {
	var valid []Release
	for _, r := range releases {
		if r.Draft {
			continue
		}
		if r.Prerelease && !includePrerelease {
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return ReleaseManifest{}, nil, fmt.Errorf("updater: no suitable releases found")
	}

	client := &GitHubClient{http: &http.Client{Timeout: 30 * time.Second}}

	latest := valid[0]
	latestManifest, err := client.FetchManifest(latest)
	if err != nil {
		return ReleaseManifest{}, nil, err
	}

	targetVersions := make(map[string]string, len(latestManifest.Components))
	for key, info := range latestManifest.Components {
		targetVersions[key] = info.Version
	}

	resolved := make(map[string]ResolvedComponent)
	for key, info := range latestManifest.Components {
		if info.Asset == "" {
			continue
		}
		if asset := findAsset(latest.Assets, info.Asset); asset != nil {
			resolved[key] = ResolvedComponent{
				LatestVersion:    info.Version,
				SourceReleaseTag: latest.TagName,
				DownloadURL:      asset.BrowserDownloadURL,
				AssetName:        info.Asset,
				InstallDir:       info.InstallDir,
				SHA256:           info.SHA256,
				Requires:         info.Requires,
			}
		}
	}

	var unresolved []string
	for key := range targetVersions {
		if _, ok := resolved[key]; !ok {
			unresolved = append(unresolved, key)
		}
	}

	for _, older := range valid[1:] {
		if len(unresolved) == 0 {
			break
		}
		hasManifest := false
		for _, a := range older.Assets {
			if a.Name == "manifest.json" {
				hasManifest = true
				break
			}
		}
		if !hasManifest {
			continue
		}

		olderManifest, err := client.FetchManifest(older)
		if err != nil {
			log.Printf("[updater] skip release %s: %v", older.TagName, err)
			continue
		}

		remaining := unresolved[:0]
		for _, key := range unresolved {
			info, ok := olderManifest.Components[key]
			if !ok || info.Version != targetVersions[key] || info.Asset == "" {
				remaining = append(remaining, key)
				continue
			}
			asset := findAsset(older.Assets, info.Asset)
			if asset == nil {
				remaining = append(remaining, key)
				continue
			}
			resolved[key] = ResolvedComponent{
				LatestVersion:    info.Version,
				SourceReleaseTag: older.TagName,
				DownloadURL:      asset.BrowserDownloadURL,
				AssetName:        info.Asset,
				InstallDir:       info.InstallDir,
				SHA256:           info.SHA256,
				Requires:         info.Requires,
			}
		}
		unresolved = remaining
	}

	for _, key := range unresolved {
		log.Printf("[updater] no release asset found for %s v%s", key, targetVersions[key])
	}

	return latestManifest, resolved, nil
}

func findAsset(assets []Asset, name string) *Asset {
	for i := range assets {
		if assets[i].Name == name {
			return &assets[i]
		}
	}
	return nil
}
