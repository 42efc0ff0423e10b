// Package github provides the GitHub-backed archive source for plugin and
// patch installs.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/felixgeelhaar/kostore/internal/domain/install"
	"github.com/felixgeelhaar/kostore/internal/ports"
	"github.com/felixgeelhaar/kostore/internal/validation"
)

// Default endpoints and limits.
const (
	DefaultAPIURL    = "https://api.github.com"
	DefaultWebURL    = "https://github.com"
	DefaultUserAgent = "kostore"

	apiTimeout      = 30 * time.Second
	maxJSONSize     = 2 << 20
	maxArchiveBytes = 100 << 20
)

// Sentinel errors for GitHub responses.
var (
	ErrNotFound     = errors.New("repository not found")
	ErrUnauthorized = errors.New("unauthorized: check your GitHub token")
	ErrRateLimited  = errors.New("rate limited by GitHub API")
	ErrServerError  = errors.New("GitHub server error")
	ErrFetchFailed  = errors.New("fetch failed")
	ErrTooLarge     = errors.New("response too large")
)

// Client talks to the GitHub REST API and archive download endpoints.
type Client struct {
	api            *http.Client
	downloads      *http.Client
	apiURL         string
	webURL         string
	token          string
	userAgent      string
	patchDir       string
	preferReleases bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and web endpoints.
func WithBaseURLs(apiURL, webURL string) Option {
	return func(c *Client) {
		c.apiURL = strings.TrimSuffix(apiURL, "/")
		c.webURL = strings.TrimSuffix(webURL, "/")
	}
}

// WithToken authenticates API requests.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithPatchDir sets the repository sub-path listed for patch files.
func WithPatchDir(dir string) Option {
	return func(c *Client) {
		c.patchDir = strings.Trim(dir, "/")
	}
}

// WithPreferReleases makes FetchArchive download the newest release asset
// when one exists.
func WithPreferReleases(prefer bool) Option {
	return func(c *Client) {
		c.preferReleases = prefer
	}
}

// WithHTTPClient uses client for both API calls and archive downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.api = client
		c.downloads = client
	}
}

// NewClient creates a GitHub client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		api:       &http.Client{Timeout: apiTimeout},
		downloads: &http.Client{},
		apiURL:    DefaultAPIURL,
		webURL:    DefaultWebURL,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type releaseResponse struct {
	TagName    string         `json:"tag_name"`
	Draft      bool           `json:"draft"`
	Prerelease bool           `json:"prerelease"`
	Assets     []releaseAsset `json:"assets"`
}

type contentEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// FetchArchive downloads a ZIP of owner/repo. With releases preferred, the
// first .zip asset of the highest semver release is used; otherwise, and
// as a fallback, the default branch archive.
func (c *Client) FetchArchive(ctx context.Context, owner, repo string) ([]byte, error) {
	if err := c.validate(owner, repo); err != nil {
		return nil, err
	}

	if c.preferReleases {
		assetURL, err := c.latestReleaseAsset(ctx, owner, repo)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if assetURL != "" {
			return c.download(ctx, assetURL)
		}
	}

	var info repoResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", c.apiURL, owner, repo), &info); err != nil {
		return nil, err
	}
	branch := info.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	archiveURL := fmt.Sprintf("%s/%s/%s/archive/refs/heads/%s.zip",
		c.webURL, owner, repo, url.PathEscape(branch))
	return c.download(ctx, archiveURL)
}

// latestReleaseAsset returns the download URL of the .zip asset attached to
// the highest stable semver release, or "" when there is none.
func (c *Client) latestReleaseAsset(ctx context.Context, owner, repo string) (string, error) {
	var releases []releaseResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/releases", c.apiURL, owner, repo), &releases); err != nil {
		return "", err
	}

	best, bestURL := "", ""
	for _, rel := range releases {
		if rel.Draft || rel.Prerelease {
			continue
		}
		version := canonicalTag(rel.TagName)
		if version == "" {
			continue
		}
		assetURL := zipAsset(rel.Assets)
		if assetURL == "" {
			continue
		}
		if best == "" || semver.Compare(version, best) > 0 {
			best, bestURL = version, assetURL
		}
	}
	return bestURL, nil
}

func canonicalTag(tag string) string {
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	if !semver.IsValid(tag) {
		return ""
	}
	return tag
}

func zipAsset(assets []releaseAsset) string {
	for _, a := range assets {
		if strings.HasSuffix(strings.ToLower(a.Name), ".zip") && a.BrowserDownloadURL != "" {
			return a.BrowserDownloadURL
		}
	}
	return ""
}

// ListPatchFiles lists the .lua files in the configured patch directory of
// owner/repo, sorted by name.
func (c *Client) ListPatchFiles(ctx context.Context, owner, repo string) ([]install.PatchFile, error) {
	if err := c.validate(owner, repo); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents", c.apiURL, owner, repo)
	if c.patchDir != "" {
		endpoint += "/" + c.patchDir
	}

	var entries []contentEntry
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	var files []install.PatchFile
	for _, e := range entries {
		if e.Type != "file" || !strings.HasSuffix(e.Name, ".lua") || e.DownloadURL == "" {
			continue
		}
		files = append(files, install.PatchFile{Name: e.Name, DownloadURL: e.DownloadURL})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (c *Client) validate(owner, repo string) error {
	if err := validateBaseURL(c.apiURL); err != nil {
		return err
	}
	if err := validation.ValidateOwner(owner); err != nil {
		return err
	}
	return validation.ValidateRepoName(repo)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	data, err := c.fetch(ctx, c.api, endpoint, "application/vnd.github+json", maxJSONSize)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, archiveURL string) ([]byte, error) {
	if err := validation.ValidateURL(archiveURL); err != nil {
		return nil, err
	}
	return c.fetch(ctx, c.downloads, archiveURL, "application/octet-stream", maxArchiveBytes)
}

// fetch performs a GET request and maps error statuses to sentinels.
func (c *Client) fetch(ctx context.Context, client *http.Client, endpoint, accept string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" && strings.HasPrefix(endpoint, c.apiURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.StatusCode == http.StatusTooManyRequests || resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, ErrRateLimited
		}
		return nil, ErrUnauthorized
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// validateBaseURL allows HTTPS, or HTTP for localhost only.
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("HTTP is only allowed for localhost; use HTTPS for: %s", baseURL)
	default:
		return fmt.Errorf("unsupported URL scheme %q; use HTTPS", u.Scheme)
	}
}

// TokenFromGH asks the gh CLI for the current auth token. It returns ""
// without error when gh is not logged in.
func TokenFromGH(ctx context.Context, runner ports.CommandRunner) (string, error) {
	result, err := runner.Run(ctx, "gh", "auth", "token")
	if err != nil {
		return "", fmt.Errorf("failed to run gh: %w", err)
	}
	if !result.Success() {
		return "", nil
	}
	return strings.TrimSpace(result.Stdout), nil
}

var _ install.ArchiveSource = (*Client)(nil)
