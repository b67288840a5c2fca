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
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gg-scm.io/mergematrix/internal/resultdb"
	"gg-scm.io/mergematrix/internal/review/reviewtest"
	"gg-scm.io/mergematrix/internal/runner"
	"github.com/google/go-cmp/cmp"
)

const testToken = "xyzzy12345"

func TestList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)

	t.Run("Default", func(t *testing.T) {
		out, err := env.mergematrix(ctx, env.root, "list")
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
		if len(lines) != 11 {
			t.Fatalf("mergematrix list printed %d lines; want 11:\n%s", len(lines), out)
		}
		if want := " 1  pass dev-merge master-rebase dev-merge master-rebase"; lines[0] != want {
			t.Errorf("line 1 = %q; want %q", lines[0], want)
		}
		if want := "11  pass dev-merge dev-rebase dev-merge master-merge"; lines[10] != want {
			t.Errorf("line 11 = %q; want %q", lines[10], want)
		}
	})

	t.Run("File", func(t *testing.T) {
		const table = "# comment\npass dev-squash\n\nfail   master-merge  \n"
		if err := os.WriteFile(env.rel("table.txt"), []byte(table), 0o666); err != nil {
			t.Fatal(err)
		}
		out, err := env.mergematrix(ctx, env.root, "list", "-f", "table.txt")
		if err != nil {
			t.Fatal(err)
		}
		want := " 1  pass dev-squash\n 2  fail master-merge\n"
		if diff := cmp.Diff(want, string(out)); diff != "" {
			t.Errorf("output (-want +got):\n%s", diff)
		}
	})

	t.Run("MultipleFiles", func(t *testing.T) {
		if err := os.WriteFile(env.rel("a.txt"), []byte("pass dev-merge\nfail master-squash\n"), 0o666); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(env.rel("b.txt"), []byte("pass dev-rebase master-merge\n"), 0o666); err != nil {
			t.Fatal(err)
		}
		out, err := env.mergematrix(ctx, env.root, "list", "-f", "a.txt", "--file=b.txt")
		if err != nil {
			t.Fatal(err)
		}
		want := " 1  pass dev-merge\n 2  fail master-squash\n 3  pass dev-rebase master-merge\n"
		if diff := cmp.Diff(want, string(out)); diff != "" {
			t.Errorf("output (-want +got):\n%s", diff)
		}
	})

	t.Run("BadFile", func(t *testing.T) {
		if err := os.WriteFile(env.rel("bad.txt"), []byte("maybe dev-merge\n"), 0o666); err != nil {
			t.Fatal(err)
		}
		if _, err := env.mergematrix(ctx, env.root, "list", "-f", "bad.txt"); err == nil {
			t.Error("mergematrix list -f bad.txt did not return an error")
		}
	})
}

func TestRunDryRun(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)
	if err := env.initScenarioRepo(ctx); err != nil {
		t.Fatal(err)
	}
	work := env.rel("work")
	before, err := env.git.Output(ctx, "-C", "work", "rev-parse", "dev", "master")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.mergematrix(ctx, work, "run", "-n", "2"); err != nil {
		t.Fatal(err)
	}
	progress := env.stderr.String()
	for _, want := range []string{
		"> Running Test 2 expecting pass steps: dev-merge, master-merge\n",
		">>  Running Step dev-merge\n",
		">>>   Create feature feature-2-1\n",
		">>>   Merge dev into master with merge\n",
		"      git checkout --quiet -B dev begining\n",
	} {
		if !strings.Contains(progress, want) {
			t.Errorf("progress does not contain %q:\n%s", want, progress)
		}
	}
	after, err := env.git.Output(ctx, "-C", "work", "rev-parse", "dev", "master")
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Errorf("dry run moved branches: before\n%s\nafter\n%s", before, after)
	}
	gitDir := filepath.Join(work, ".git")
	if _, err := os.Stat(filepath.Join(gitDir, resultdb.FileName)); !os.IsNotExist(err) {
		t.Errorf("dry run created result database (stat error = %v)", err)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)
	if err := env.initScenarioRepo(ctx); err != nil {
		t.Fatal(err)
	}
	api := &reviewtest.API{
		Errorer: t,
		Token:   testToken,
		Conflict: func(pr reviewtest.PullRequest) int {
			if pr.Head == "feature-2-1" {
				return http.StatusMethodNotAllowed
			}
			return 0
		},
	}
	srv := httptest.NewServer(api)
	defer srv.Close()
	env.httpClient = srv.Client()
	env.extraEnv = []string{"GITHUB_TOKEN=" + testToken}
	config := "[mergematrix]\nrepository = example/foo\napiurl = " + srv.URL + "\n"
	if err := env.writeConfig([]byte(config)); err != nil {
		t.Fatal(err)
	}
	const table = "pass dev-merge master-rebase\npass dev-squash\nfail dev-rebase\n"
	if err := os.WriteFile(env.rel("table.txt"), []byte(table), 0o666); err != nil {
		t.Fatal(err)
	}
	work := env.rel("work")
	tablePath := env.rel("table.txt")

	_, err := env.mergematrix(ctx, work, "run", "-f", tablePath, "-k")
	if err == nil {
		t.Fatal("run returned success despite mismatched scenarios")
	}
	if isUsage(err) {
		t.Fatal(err)
	}
	if !strings.Contains(err.Error(), "2 of 3 scenarios") {
		t.Errorf("error = %v; want it to count 2 of 3 mismatches", err)
	}

	want := []reviewtest.PullRequest{
		{Number: 1, Owner: "example", Repo: "foo", Title: "feature-1-1 -> dev (merge)", Head: "feature-1-1", Base: "dev", MergeMethod: "merge"},
		{Number: 2, Owner: "example", Repo: "foo", Title: "dev -> master (rebase)", Head: "dev", Base: "master", MergeMethod: "rebase"},
		{Number: 3, Owner: "example", Repo: "foo", Title: "feature-2-1 -> dev (squash)", Head: "feature-2-1", Base: "dev"},
		{Number: 4, Owner: "example", Repo: "foo", Title: "feature-3-1 -> dev (rebase)", Head: "feature-3-1", Base: "dev", MergeMethod: "rebase"},
	}
	if diff := cmp.Diff(want, api.PullRequests()); diff != "" {
		t.Errorf("pull requests (-want +got):\n%s", diff)
	}
	for _, b := range []string{"dev", "master"} {
		got, err := env.git.Output(ctx, "-C", "work", "rev-parse", b)
		if err != nil {
			t.Fatal(err)
		}
		base, err := env.git.Output(ctx, "-C", "work", "rev-parse", runner.DefaultBaseRef)
		if err != nil {
			t.Fatal(err)
		}
		if got != base {
			t.Errorf("%s = %s; want %s", b, strings.TrimSpace(got), strings.TrimSpace(base))
		}
	}

	out, err := env.mergematrix(ctx, work, "history")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("history printed %d lines; want 4:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "!") || !strings.Contains(lines[0], "scenario 3: expected fail got pass") {
		t.Errorf("history line 1 = %q; want scenario 3 mismatch", lines[0])
	}
	if !strings.HasPrefix(lines[1], "!") || !strings.Contains(lines[1], "scenario 2: expected pass got fail") {
		t.Errorf("history line 2 = %q; want scenario 2 mismatch", lines[1])
	}
	if !strings.HasPrefix(lines[2], "    step 1: ") {
		t.Errorf("history line 3 = %q; want failed step detail", lines[2])
	}
	if !strings.HasPrefix(lines[3], " ") || !strings.Contains(lines[3], "scenario 1: expected pass got pass") {
		t.Errorf("history line 4 = %q; want scenario 1 success", lines[3])
	}
}

func TestRunStopsAtFirstMismatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)
	if err := env.initScenarioRepo(ctx); err != nil {
		t.Fatal(err)
	}
	api := &reviewtest.API{Errorer: t, Token: testToken}
	srv := httptest.NewServer(api)
	defer srv.Close()
	env.httpClient = srv.Client()
	config := "[mergematrix]\nrepository = example/foo\napiurl = " + srv.URL + "\n"
	if err := env.writeConfig([]byte(config)); err != nil {
		t.Fatal(err)
	}
	tokenDir := filepath.Join(env.topDir, "config", "mergematrix")
	if err := os.MkdirAll(tokenDir, 0o777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tokenDir, gitHubTokenFilename), []byte(testToken+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.rel("table.txt"), []byte("fail master-merge\npass master-merge\n"), 0o666); err != nil {
		t.Fatal(err)
	}

	_, err := env.mergematrix(ctx, env.rel("work"), "run", "-f", env.rel("table.txt"))
	if err == nil || !strings.Contains(err.Error(), "scenario 1: expected fail got pass") {
		t.Errorf("run error = %v; want scenario 1 mismatch", err)
	}
	if got := len(api.PullRequests()); got != 1 {
		t.Errorf("%d pull requests opened; want 1", got)
	}
}

func TestRunMissingToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)
	if err := env.initScenarioRepo(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.writeConfig([]byte("[mergematrix]\nrepository = example/foo\n")); err != nil {
		t.Fatal(err)
	}
	_, err := env.mergematrix(ctx, env.rel("work"), "run", "1")
	if err == nil || !strings.Contains(err.Error(), "no GitHub token") {
		t.Errorf("run error = %v; want missing token", err)
	}
}

func TestRunUnknownScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)
	if err := env.initScenarioRepo(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := env.mergematrix(ctx, env.rel("work"), "run", "-n", "12")
	if !isUsage(err) {
		t.Errorf("run -n 12 = %v; want usage error", err)
	}
}

func TestReadSettings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t)
	if err := env.initScenarioRepo(ctx); err != nil {
		t.Fatal(err)
	}
	work := env.rel("work")
	cc := &cmdContext{dir: work, git: env.git.WithDir(work)}

	t.Run("Defaults", func(t *testing.T) {
		if err := env.git.Run(ctx, "-C", "work", "remote", "set-url", "origin", "git@github.com:octo/widgets.git"); err != nil {
			t.Fatal(err)
		}
		s, err := readSettings(ctx, cc)
		if err != nil {
			t.Fatal(err)
		}
		want := &settings{remote: "origin", baseRef: "begining", owner: "octo", repo: "widgets"}
		if diff := cmp.Diff(want, s, cmp.AllowUnexported(settings{})); diff != "" {
			t.Errorf("settings (-want +got):\n%s", diff)
		}
	})

	t.Run("NotGitHub", func(t *testing.T) {
		if err := env.git.Run(ctx, "-C", "work", "remote", "set-url", "origin", "https://example.com/octo/widgets.git"); err != nil {
			t.Fatal(err)
		}
		s, err := readSettings(ctx, cc)
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.repository(); err == nil {
			t.Error("repository() did not return an error for a non-GitHub remote")
		}
	})

	t.Run("Configured", func(t *testing.T) {
		config := "[mergematrix]\nrepository = acme/anvil\nremote = upstream\nbase = start\napiurl = https://github.example.com/api/v3/\n"
		if err := env.writeConfig([]byte(config)); err != nil {
			t.Fatal(err)
		}
		s, err := readSettings(ctx, cc)
		if err != nil {
			t.Fatal(err)
		}
		want := &settings{
			remote:  "upstream",
			baseRef: "start",
			owner:   "acme",
			repo:    "anvil",
			apiURL:  "https://github.example.com/api/v3/",
		}
		if diff := cmp.Diff(want, s, cmp.AllowUnexported(settings{})); diff != "" {
			t.Errorf("settings (-want +got):\n%s", diff)
		}
	})

	t.Run("BadRepository", func(t *testing.T) {
		if err := env.writeConfig([]byte("[mergematrix]\nrepository = acme\n")); err != nil {
			t.Fatal(err)
		}
		if _, err := readSettings(ctx, cc); err == nil {
			t.Error("readSettings did not return an error")
		}
	})
}

func TestProgressPrinter(t *testing.T) {
	buf := new(strings.Builder)
	p := &progressPrinter{w: buf}
	p.print(0, "Running Test 1")
	p.print(1, "Running Step dev-merge")
	p.print(2, "Create feature feature-1-1")
	p.print(3, "git checkout --quiet dev")
	want := "> Running Test 1\n" +
		">>  Running Step dev-merge\n" +
		">>>   Create feature feature-1-1\n" +
		"      git checkout --quiet dev\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("plain output (-want +got):\n%s", diff)
	}

	buf.Reset()
	p.color = "\x1b[1;33m"
	p.print(0, "reset")
	p.print(3, "git push")
	want = "\x1b[1;33m> reset\x1b[0m\n" +
		"      git push\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("colored output (-want +got):\n%s", diff)
	}
}
