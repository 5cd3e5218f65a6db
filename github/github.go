// Package github publishes release archives as GitHub release assets.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/etnz/release-kit/report"
)

const (
	apiHost    = "api.github.com"
	uploadHost = "uploads.github.com"
)

// Target is a release of a GitHub repository.
type Target struct {
	Owner string
	Repo  string
	Tag   string
}

func (t Target) String() string {
	return fmt.Sprintf("github.com/%s/%s/tags/%s", t.Owner, t.Repo, t.Tag)
}

// ParseTarget parses a release slug of the form github.com/owner/repo/tags/tag.
func ParseTarget(slug string) (Target, error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 5 || parts[0] != "github.com" || parts[3] != "tags" ||
		parts[1] == "" || parts[2] == "" || parts[4] == "" {
		return Target{}, fmt.Errorf("invalid slug format %q, expected github.com/owner/repo/tags/tag", slug)
	}
	return Target{Owner: parts[1], Repo: parts[2], Tag: parts[4]}, nil
}

type release struct {
	ID      int64   `json:"id"`
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Client talks to the GitHub REST API. Requests failing with a connection
// error or a 5xx status are retried with back off.
type Client struct {
	http  *retryablehttp.Client
	token string
}

// NewClient returns a Client authenticating with token.
func NewClient(token string, retries int) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryWaitMin = time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.RetryMax = retries
	httpClient.Logger = nil
	return &Client{http: httpClient, token: token}
}

func (c *Client) newRequest(ctx context.Context, method, u string, body interface{}) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	return req, nil
}

func (c *Client) releaseByTag(ctx context.Context, t Target) (*release, error) {
	u := fmt.Sprintf("https://%s/repos/%s/%s/releases/tags/%s", apiHost, t.Owner, t.Repo, url.PathEscape(t.Tag))
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release not found: %s (%s)", t, resp.Status)
	}
	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding release %s: %w", t, err)
	}
	return &rel, nil
}

func (c *Client) deleteAsset(ctx context.Context, t Target, id int64) error {
	u := fmt.Sprintf("https://%s/repos/%s/%s/releases/assets/%d", apiHost, t.Owner, t.Repo, id)
	req, err := c.newRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("deleting asset %d: %s", id, resp.Status)
	}
	return nil
}

// UploadAsset attaches the file at path to the release t, replacing an asset
// of the same name.
func (c *Client) UploadAsset(ctx context.Context, t Target, path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)

	rel, err := c.releaseByTag(ctx, t)
	if err != nil {
		return nil, err
	}
	for _, a := range rel.Assets {
		if a.Name == name {
			if err := c.deleteAsset(ctx, t, a.ID); err != nil {
				return nil, err
			}
			break
		}
	}

	u := fmt.Sprintf("https://%s/repos/%s/%s/releases/%d/assets?name=%s", uploadHost, t.Owner, t.Repo, rel.ID, url.QueryEscape(name))
	// The file is rewound before every attempt.
	req, err := c.newRequest(ctx, http.MethodPost, u, f)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = stat.Size()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload failed: %s %s", resp.Status, string(body))
	}
	var a Asset
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding uploaded asset: %w", err)
	}
	return &a, nil
}

// Publish uploads files to the release t in order and stops at the first
// failure.
func (c *Client) Publish(ctx context.Context, t Target, files []string, r report.Reporter) error {
	if r == nil {
		r = report.Discard
	}
	for _, f := range files {
		r.Infof("Uploading %s to %s...", filepath.Base(f), t)
		a, err := c.UploadAsset(ctx, t, f)
		if err != nil {
			err = fmt.Errorf("error uploading %s: %w", f, err)
			r.Error("Publish", err)
			return err
		}
		r.Infof("Uploaded %s (%d bytes).", a.Name, a.Size)
	}
	return nil
}
