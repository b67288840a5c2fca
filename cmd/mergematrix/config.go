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

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"gg-scm.io/mergematrix/internal/resultdb"
	"gg-scm.io/mergematrix/internal/review"
	"gg-scm.io/mergematrix/internal/runner"
)

// Git configuration keys read by mergematrix.
const (
	repositoryConfigKey = "mergematrix.repository"
	remoteConfigKey     = "mergematrix.remote"
	baseConfigKey       = "mergematrix.base"
	apiURLConfigKey     = "mergematrix.apiurl"
	progressColorKey    = "color.mergematrix.progress"
)

const (
	gitHubTokenEnv      = "GITHUB_TOKEN"
	gitHubTokenFilename = "github_token"
)

// settings is the repository-level configuration of a run.
type settings struct {
	remote  string
	baseRef string

	// owner and repo name the GitHub repository. Empty if it could not be
	// determined.
	owner string
	repo  string
	// apiURL is the GitHub REST API root, empty for api.github.com.
	apiURL string
}

func readSettings(ctx context.Context, cc *cmdContext) (*settings, error) {
	cfg, err := cc.git.ReadConfig(ctx)
	if err != nil {
		return nil, err
	}
	s := &settings{
		remote:  cfg.Value(remoteConfigKey),
		baseRef: cfg.Value(baseConfigKey),
		apiURL:  cfg.Value(apiURLConfigKey),
	}
	if s.remote == "" {
		s.remote = runner.DefaultRemote
	}
	if s.baseRef == "" {
		s.baseRef = runner.DefaultBaseRef
	}
	if name := cfg.Value(repositoryConfigKey); name != "" {
		s.owner, s.repo = review.SplitRepository(name)
		if s.owner == "" {
			return nil, fmt.Errorf("%s = %q is not of the form OWNER/NAME", repositoryConfigKey, name)
		}
		return s, nil
	}
	s.owner, s.repo = review.ParseRemoteURL(cfg.Value("remote." + s.remote + ".url"))
	return s, nil
}

// repository returns the GitHub repository or an error that tells the
// user how to configure it.
func (s *settings) repository() (owner, repo string, err error) {
	if s.owner == "" {
		return "", "", fmt.Errorf("remote %s is not a GitHub repository; set %s to OWNER/NAME", s.remote, repositoryConfigKey)
	}
	return s.owner, s.repo, nil
}

// gitHubToken returns the token from $GITHUB_TOKEN or the token file
// saved by login.
func gitHubToken(cc *cmdContext) (string, error) {
	if token := getenv(cc.env, gitHubTokenEnv); token != "" {
		return token, nil
	}
	data, err := cc.xdgDirs.readConfig(gitHubTokenFilename)
	if errors.Is(err, fs.ErrNotExist) {
		var hint string
		if paths := cc.xdgDirs.configPaths(); len(paths) > 0 {
			hint = " or save one to " + filepath.Join(paths[0], appDirName, gitHubTokenFilename)
		}
		return "", fmt.Errorf("no GitHub token: run mergematrix login, set $%s%s", gitHubTokenEnv, hint)
	}
	if err != nil {
		return "", fmt.Errorf("read GitHub token: %w", err)
	}
	token := string(bytes.TrimSpace(data))
	if token == "" {
		return "", errors.New("GitHub token file is empty")
	}
	return token, nil
}

// resultDBPath returns path if set or the default database location in
// the repository's Git directory.
func resultDBPath(ctx context.Context, cc *cmdContext, path string) (string, error) {
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cc.dir, path)
		}
		return path, nil
	}
	gitDir, err := cc.git.GitDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, resultdb.FileName), nil
}
