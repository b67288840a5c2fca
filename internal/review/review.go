// Copyright 2018 The gg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package review opens and merges GitHub pull requests for a single
// repository.
package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gg-scm.io/mergematrix/internal/scenario"
	"github.com/google/go-github/v82/github"
)

// ErrMergeConflict is wrapped by errors from MergePullRequest when GitHub
// refuses to merge the pull request.
var ErrMergeConflict = errors.New("pull request cannot be merged")

// Options configures a Client.
type Options struct {
	// Token is the GitHub personal access token.
	Token string
	// BaseURL is the REST API root, like "https://github.example.com/api/v3/".
	// Empty means api.github.com.
	BaseURL string
	// HTTPClient is used for requests. nil means http.DefaultClient.
	HTTPClient *http.Client
	// UserAgent overrides the User-Agent header.
	UserAgent string
}

// Client is a GitHub client bound to one repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// New returns a client for owner/repo.
func New(owner, repo string, opts *Options) (*Client, error) {
	if owner == "" || repo == "" {
		return nil, errors.New("new review client: missing repository owner or name")
	}
	if opts == nil {
		opts = new(Options)
	}
	gh := github.NewClient(opts.HTTPClient)
	if opts.Token != "" {
		gh = gh.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("new review client: base URL: %w", err)
		}
		gh.BaseURL = u
	}
	if opts.UserAgent != "" {
		gh.UserAgent = opts.UserAgent
	}
	return &Client{gh: gh, owner: owner, repo: repo}, nil
}

// Repository returns the "owner/repo" name the client operates on.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// Title returns the pull request title used for merging head into base.
func Title(head, base string, method scenario.Method) string {
	return fmt.Sprintf("%s -> %s (%s)", head, base, method)
}

// CreatePullRequest opens a pull request merging the head branch into
// base and returns its number.
func (c *Client) CreatePullRequest(ctx context.Context, head, base string, method scenario.Method) (int, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(Title(head, base, method)),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return 0, fmt.Errorf("create pull request %s -> %s on %s: %w", head, base, c.Repository(), err)
	}
	return pr.GetNumber(), nil
}

// MergePullRequest lands the pull request with the given method. If
// GitHub reports that the pull request is not mergeable, the returned
// error wraps ErrMergeConflict.
func (c *Client) MergePullRequest(ctx context.Context, number int, method scenario.Method) error {
	result, _, err := c.gh.PullRequests.Merge(ctx, c.owner, c.repo, number, "", &github.PullRequestOptions{
		MergeMethod: string(method),
	})
	if err != nil {
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && isConflictStatus(errResp.Response.StatusCode) {
			return fmt.Errorf("merge pull request #%d on %s: %w: %s", number, c.Repository(), ErrMergeConflict, errResp.Message)
		}
		return fmt.Errorf("merge pull request #%d on %s: %w", number, c.Repository(), err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("merge pull request #%d on %s: %w: %s", number, c.Repository(), ErrMergeConflict, result.GetMessage())
	}
	return nil
}

func isConflictStatus(code int) bool {
	return code == http.StatusMethodNotAllowed || code == http.StatusConflict
}

// ParseRemoteURL extracts the GitHub owner and repository name from a
// Git remote URL. It returns empty strings if u does not name a
// repository on github.com.
func ParseRemoteURL(u string) (owner, repo string) {
	var path string
	switch {
	case strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "ssh://"):
		uu, err := url.Parse(u)
		if err != nil {
			return "", ""
		}
		if uu.Hostname() != "github.com" || uu.RawQuery != "" || uu.Fragment != "" {
			return "", ""
		}
		path = strings.TrimPrefix(uu.Path, "/")
	case strings.HasPrefix(u, "github.com:"):
		path = u[len("github.com:"):]
	case strings.HasPrefix(u, "git@github.com:"):
		path = u[len("git@github.com:"):]
	default:
		return "", ""
	}
	return SplitRepository(strings.TrimSuffix(path, ".git"))
}

// SplitRepository splits "owner/repo". It returns empty strings if
// either part is missing or there are extra path components.
func SplitRepository(s string) (owner, repo string) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", ""
	}
	return owner, repo
}
