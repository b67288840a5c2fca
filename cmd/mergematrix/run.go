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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gg-scm.io/mergematrix/internal/flag"
	"gg-scm.io/mergematrix/internal/resultdb"
	"gg-scm.io/mergematrix/internal/review"
	"gg-scm.io/mergematrix/internal/runner"
	"gg-scm.io/mergematrix/internal/scenario"
	"gg-scm.io/mergematrix/internal/terminal"
)

const runSynopsis = "run merge scenarios against the GitHub repository"

func runScenarios(ctx context.Context, cc *cmdContext, args []string) error {
	f := flag.NewFlagSet(true, "mergematrix run [-n] [-k] [-f FILE [...]] [-db PATH] [N [...]]", runSynopsis+`

	Run the numbered scenarios (or all of them) in the current clone.
	Each scenario seeds README.md on dev, resets master to dev, and then
	for every step either merges a new feature branch into dev or merges
	dev into master through a GitHub pull request. A step whose pull
	request GitHub refuses to merge makes the scenario observe "fail".
	After every scenario, dev and master are reset to the base revision
	(mergematrix.base, default "begining") locally and on the remote.

	The GitHub repository is taken from mergematrix.repository or
	inferred from the remote's URL. The token comes from $GITHUB_TOKEN
	or the file saved by mergematrix login.

	Every scenario's outcome is recorded in the result database, which
	mergematrix history shows.`)
	dryRun := f.Bool("n", false, "print the commands and pull requests instead of running them")
	f.Alias("n", "dry-run")
	keepGoing := f.Bool("k", false, "keep running after a scenario that does not match its expectation")
	f.Alias("k", "keep-going")
	files := f.MultiString("f", "read scenarios from `file` instead of the built-in table (repeatable)")
	f.Alias("f", "file")
	dbPath := f.String("db", "", "`path` to the result database (defaults to the Git directory)")
	if err := f.Parse(args); flag.IsHelp(err) {
		f.Help(cc.stdout)
		return nil
	} else if err != nil {
		return usagef("%v", err)
	}
	all, err := loadScenarios(cc, *files)
	if err != nil {
		return err
	}
	selected, err := scenario.Select(all, f.Args())
	if err != nil {
		return usagef("%v", err)
	}
	s, err := readSettings(ctx, cc)
	if err != nil {
		return err
	}
	workTree, err := cc.git.WorkTree(ctx)
	if err != nil {
		return err
	}

	var reviewer runner.Reviewer
	var db *resultdb.DB
	if !*dryRun {
		owner, repo, err := s.repository()
		if err != nil {
			return err
		}
		token, err := gitHubToken(cc)
		if err != nil {
			return err
		}
		client, err := review.New(owner, repo, &review.Options{
			Token:      token,
			BaseURL:    s.apiURL,
			HTTPClient: cc.httpClient,
			UserAgent:  "mergematrix",
		})
		if err != nil {
			return err
		}
		reviewer = client
		path, err := resultDBPath(ctx, cc, *dbPath)
		if err != nil {
			return err
		}
		db, err = resultdb.Open(ctx, path)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	progress := newProgressPrinter(ctx, cc)
	r := runner.New(cc.git, workTree, reviewer, &runner.Options{
		Remote:   s.remote,
		BaseRef:  s.baseRef,
		DryRun:   *dryRun,
		Progress: progress.print,
	})
	mismatches := 0
	for _, sc := range selected {
		start := time.Now()
		res, err := r.Run(ctx, sc)
		if err != nil {
			return err
		}
		if db != nil {
			_, err := db.Record(ctx, &resultdb.Run{
				Scenario:   sc.N,
				Definition: sc.Definition(),
				Expected:   sc.Expect,
				Observed:   res.Observed,
				FailedStep: res.FailedStep,
				Detail:     res.Detail,
				Start:      start,
				End:        time.Now(),
			})
			if err != nil {
				return err
			}
		}
		if err := res.Err(); err != nil {
			if !*keepGoing {
				return err
			}
			mismatches++
			fmt.Fprintf(cc.stderr, "mergematrix: %v\n", err)
		}
	}
	if mismatches > 0 {
		return fmt.Errorf("%d of %d scenarios did not match expectations", mismatches, len(selected))
	}
	return nil
}

// loadScenarios parses the scenario tables in paths or returns the
// built-in table if paths is empty. Scenarios are numbered across the
// files in order, so the second file continues where the first ends.
func loadScenarios(cc *cmdContext, paths []string) ([]*scenario.Scenario, error) {
	if len(paths) == 0 {
		return scenario.Default(), nil
	}
	var all []*scenario.Scenario
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cc.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		table, err := scenario.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, sc := range table {
			sc.N += len(all)
		}
		all = append(all, table...)
	}
	return all, nil
}

// progressPrinter writes runner progress to stderr, highlighting
// scenario and step messages on terminals.
type progressPrinter struct {
	w     io.Writer
	color string
}

func newProgressPrinter(ctx context.Context, cc *cmdContext) *progressPrinter {
	p := &progressPrinter{w: cc.stderr}
	if !terminal.IsTerminal(cc.stderr) {
		return p
	}
	// A bad color setting should not stop a run.
	if seq, err := cc.git.Output(ctx, "config", "--get-color", progressColorKey, "yellow bold"); err == nil {
		p.color = seq
	}
	return p
}

// print formats msg with depth+1 leading '>' characters, or as an
// indented command for dry run plans.
func (p *progressPrinter) print(depth int, msg string) {
	if depth >= 3 {
		fmt.Fprintf(p.w, "      %s\n", msg)
		return
	}
	line := strings.Repeat(">", depth+1) + strings.Repeat(" ", depth+1) + msg
	if p.color == "" {
		fmt.Fprintln(p.w, line)
		return
	}
	io.WriteString(p.w, p.color+line)
	terminal.ResetTextStyle(p.w)
	io.WriteString(p.w, "\n")
}
