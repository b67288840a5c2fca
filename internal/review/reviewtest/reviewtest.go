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

// Package reviewtest provides an in-memory fake of the GitHub pull
// request endpoints used by package review.
package reviewtest

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
)

// PullRequest is a pull request recorded by the fake.
type PullRequest struct {
	Number int
	Owner  string
	Repo   string
	Title  string
	Head   string
	Base   string

	// MergeMethod is empty until the pull request is merged.
	MergeMethod string
}

// Errorer is the subset of testing.TB the fake reports failures to.
type Errorer interface {
	Errorf(format string, args ...interface{})
}

// API is an http.Handler that serves the pull request create and merge
// endpoints.
type API struct {
	// Errorer receives unexpected requests. It must not be nil.
	Errorer Errorer
	// Token is the required personal access token.
	Token string
	// Conflict returns the HTTP status code the merge endpoint answers
	// for pr. 0 merges the pull request. http.StatusOK responds with
	// "merged": false, and any other code is sent as an error.
	// nil means every merge succeeds.
	Conflict func(pr PullRequest) int

	mu  sync.Mutex
	prs []PullRequest
}

// PullRequests returns a copy of the pull requests created so far.
func (api *API) PullRequests() []PullRequest {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]PullRequest(nil), api.prs...)
}

// ServeHTTP implements http.Handler.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if got, want := r.Header.Get("Authorization"), "Bearer "+api.Token; got != want {
		api.Errorer.Errorf("Authorization header = %q; want %q", got, want)
		writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}
	parts := strings.Split(strings.TrimPrefix(path.Clean(r.URL.Path), "/"), "/")
	switch {
	case r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "repos" && parts[3] == "pulls":
		api.create(w, r, parts[1], parts[2])
	case r.Method == http.MethodPut && len(parts) == 6 && parts[0] == "repos" && parts[3] == "pulls" && parts[5] == "merge":
		n, err := strconv.Atoi(parts[4])
		if err != nil {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		api.merge(w, r, parts[1], parts[2], n)
	default:
		api.Errorer.Errorf("unhandled API request %s %s", r.Method, r.URL.Path)
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (api *API) create(w http.ResponseWriter, r *http.Request, owner, repo string) {
	if got, want := parseContentType(r.Header.Get("Content-Type")), "application/json"; got != want {
		api.Errorer.Errorf("Content-Type header = %q; want %q", got, want)
	}
	var body struct {
		Title string
		Head  string
		Base  string
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Errorer.Errorf("decode body: %v", err)
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	if body.Title == "" || body.Head == "" || body.Base == "" {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}
	api.mu.Lock()
	pr := PullRequest{
		Number: len(api.prs) + 1,
		Owner:  owner,
		Repo:   repo,
		Title:  body.Title,
		Head:   body.Head,
		Base:   body.Base,
	}
	api.prs = append(api.prs, pr)
	api.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"number":   pr.Number,
		"title":    pr.Title,
		"state":    "open",
		"html_url": fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, repo, pr.Number),
		"head":     map[string]interface{}{"ref": pr.Head},
		"base":     map[string]interface{}{"ref": pr.Base},
	})
}

func (api *API) merge(w http.ResponseWriter, r *http.Request, owner, repo string, n int) {
	var body struct {
		MergeMethod string `json:"merge_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Errorer.Errorf("decode body: %v", err)
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	api.mu.Lock()
	if n < 1 || n > len(api.prs) || api.prs[n-1].Owner != owner || api.prs[n-1].Repo != repo {
		api.mu.Unlock()
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	pr := api.prs[n-1]
	if pr.MergeMethod != "" {
		api.mu.Unlock()
		writeError(w, http.StatusMethodNotAllowed, "Pull Request is not mergeable")
		return
	}
	if api.Conflict != nil {
		switch code := api.Conflict(pr); code {
		case 0:
		case http.StatusOK:
			api.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{
				"merged":  false,
				"message": "Pull Request is not mergeable",
			})
			return
		default:
			api.mu.Unlock()
			writeError(w, code, http.StatusText(code))
			return
		}
	}
	api.prs[n-1].MergeMethod = body.MergeMethod
	api.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sha":     fmt.Sprintf("%040x", n),
		"merged":  true,
		"message": "Pull Request successfully merged",
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func parseContentType(s string) string {
	t, _, err := mime.ParseMediaType(s)
	if err != nil {
		return ""
	}
	return t
}
