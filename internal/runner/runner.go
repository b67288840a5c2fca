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

// Package runner replays merge scenarios against a Git work tree and a
// code review service.
package runner

import (
	"context"
	"errors"
	"fmt"

	"gg-scm.io/mergematrix/internal/escape"
	"gg-scm.io/mergematrix/internal/fixture"
	"gg-scm.io/mergematrix/internal/review"
	"gg-scm.io/mergematrix/internal/scenario"
	"gg-scm.io/pkg/git"
)

// Defaults for Options fields.
const (
	DefaultRemote  = "origin"
	DefaultBaseRef = "begining"
)

// Reviewer opens and merges pull requests. *review.Client implements
// Reviewer.
type Reviewer interface {
	CreatePullRequest(ctx context.Context, head, base string, method scenario.Method) (int, error)
	// MergePullRequest returns an error wrapping review.ErrMergeConflict
	// if the pull request cannot be merged.
	MergePullRequest(ctx context.Context, number int, method scenario.Method) error
}

// Options configures a Runner.
type Options struct {
	// Remote is the name of the Git remote that backs the review
	// service's repository. Empty means DefaultRemote.
	Remote string
	// BaseRef is the revision dev and master are reset to after each
	// scenario. Empty means DefaultBaseRef.
	BaseRef string

	// DryRun reports the commands and pull requests that would be made
	// through Progress without running them.
	DryRun bool

	// Progress is called with status messages. depth is 0 for scenario
	// messages, 1 for steps, 2 for actions within a step, and 3 for dry
	// run commands. May be nil.
	Progress func(depth int, msg string)
}

// Runner executes scenarios. It operates on the work tree of a single
// clone and is not safe to use from multiple goroutines.
type Runner struct {
	git    *git.Git
	dir    fixture.Dir
	review Reviewer

	remote   string
	baseRef  string
	dryRun   bool
	progress func(int, string)
}

// New returns a runner that uses the work tree at dir. g must operate
// on the same work tree.
func New(g *git.Git, dir string, r Reviewer, opts *Options) *Runner {
	if opts == nil {
		opts = new(Options)
	}
	runner := &Runner{
		git:      g,
		dir:      fixture.Dir(dir),
		review:   r,
		remote:   opts.Remote,
		baseRef:  opts.BaseRef,
		dryRun:   opts.DryRun,
		progress: opts.Progress,
	}
	if runner.remote == "" {
		runner.remote = DefaultRemote
	}
	if runner.baseRef == "" {
		runner.baseRef = DefaultBaseRef
	}
	if runner.progress == nil {
		runner.progress = func(int, string) {}
	}
	return runner
}

// Result is the outcome of running a scenario.
type Result struct {
	Scenario *scenario.Scenario
	Observed scenario.Expectation
	// FailedStep is the 1-based index of the step whose pull request
	// could not be merged, or 0 if every step merged.
	FailedStep int
	// Detail is the merge failure reported by the review service.
	Detail string
}

// Err returns a *MismatchError if the observed outcome differs from
// the scenario's expectation.
func (res *Result) Err() error {
	if res.Observed == res.Scenario.Expect {
		return nil
	}
	return &MismatchError{Scenario: res.Scenario, Observed: res.Observed}
}

// MismatchError reports a scenario whose outcome was not the expected one.
type MismatchError struct {
	Scenario *scenario.Scenario
	Observed scenario.Expectation
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("scenario %d: expected %s got %s", e.Scenario.N, e.Scenario.Expect, e.Observed)
}

// Run replays sc. Branches are reset to the base revision afterward,
// regardless of the outcome. The returned error is non-nil only if the
// scenario could not be carried out; a scenario that observes an
// unexpected outcome is reported through Result.Err.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario) (_ *Result, err error) {
	r.progress(0, "Running Test "+sc.String())
	if err := r.SetupReadme(ctx, sc); err != nil {
		return nil, fmt.Errorf("scenario %d: %w", sc.N, err)
	}
	defer func() {
		// Reset even if ctx was canceled mid-scenario so the next run
		// starts from the base revision.
		if resetErr := r.Reset(context.WithoutCancel(ctx)); resetErr != nil && err == nil {
			err = fmt.Errorf("scenario %d: %w", sc.N, resetErr)
		}
	}()

	res := &Result{Scenario: sc, Observed: scenario.Pass}
	feature := 0
	for i, step := range sc.Steps {
		r.progress(1, "Running Step "+step.String())
		head := scenario.Dev
		if step.Branch == scenario.Dev {
			feature++
			head = sc.BranchName(feature)
			if err := r.CreateFeature(ctx, head); err != nil {
				return nil, fmt.Errorf("scenario %d: step %d: %w", sc.N, i+1, err)
			}
		}
		err := r.Merge(ctx, step, head)
		if errors.Is(err, review.ErrMergeConflict) {
			res.Observed = scenario.Fail
			res.FailedStep = i + 1
			res.Detail = err.Error()
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scenario %d: step %d: %w", sc.N, i+1, err)
		}
	}
	if res.Err() == nil {
		r.progress(0, "SUCCESS!!")
	}
	return res, nil
}

// SetupReadme seeds README.md on dev with one line per feature branch
// of sc, publishes dev, and recreates master from it.
func (r *Runner) SetupReadme(ctx context.Context, sc *scenario.Scenario) error {
	if err := r.checkout(ctx, scenario.Dev); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	if r.dryRun {
		r.progress(3, "seed "+fixture.ReadmeName)
	} else if err := r.dir.SeedReadme(sc); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	if err := r.commit(ctx, "setup readme", git.LiteralPath(fixture.ReadmeName)); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	if err := r.push(ctx, true); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	if err := r.recreate(ctx, scenario.Master, scenario.Dev); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	if err := r.push(ctx, true); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	if err := r.checkout(ctx, scenario.Dev); err != nil {
		return fmt.Errorf("set up readme: %w", err)
	}
	return nil
}

// CreateFeature creates the named feature branch from dev, commits the
// feature's fixture change, and publishes it.
func (r *Runner) CreateFeature(ctx context.Context, name string) error {
	r.progress(2, "Create feature "+name)
	if err := r.checkout(ctx, scenario.Dev); err != nil {
		return fmt.Errorf("create feature %s: %w", name, err)
	}
	if r.dryRun {
		r.plan("git", "checkout", "-B", name, scenario.Dev)
		r.plan("edit", fixture.ReadmeName, name)
	} else {
		err := r.git.NewBranch(ctx, name, git.BranchOptions{
			StartPoint: scenario.Dev,
			Checkout:   true,
			Overwrite:  true,
		})
		if err != nil {
			return fmt.Errorf("create feature %s: %w", name, err)
		}
		if err := r.dir.ChangeFeature(name); err != nil {
			return err
		}
	}
	if err := r.commit(ctx, name, git.Pathspec(".")); err != nil {
		return fmt.Errorf("create feature %s: %w", name, err)
	}
	// Feature names repeat across runs, so a stale copy may be on the remote.
	if err := r.push(ctx, true); err != nil {
		return fmt.Errorf("create feature %s: %w", name, err)
	}
	return nil
}

// Merge opens a pull request from head into the step's branch and
// merges it with the step's method.
func (r *Runner) Merge(ctx context.Context, step scenario.Step, head string) error {
	r.progress(2, fmt.Sprintf("Merge %s into %s with %s", head, step.Branch, step.Method))
	if r.dryRun {
		r.plan("create-pull-request", review.Title(head, step.Branch, step.Method))
		r.plan("merge-pull-request", string(step.Method))
		return nil
	}
	n, err := r.review.CreatePullRequest(ctx, head, step.Branch, step.Method)
	if err != nil {
		return err
	}
	return r.review.MergePullRequest(ctx, n, step.Method)
}

// Reset points dev and master at the base revision on both the local
// clone and the remote, then checks out dev.
func (r *Runner) Reset(ctx context.Context) error {
	r.progress(0, "reset")
	for _, b := range []string{scenario.Dev, scenario.Master} {
		if err := r.recreate(ctx, b, r.baseRef); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if err := r.push(ctx, true); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if err := r.checkout(ctx, scenario.Dev); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (r *Runner) checkout(ctx context.Context, branch string) error {
	return r.run(ctx, "checkout", "--quiet", branch)
}

// recreate checks out branch, pointing it at startPoint.
func (r *Runner) recreate(ctx context.Context, branch, startPoint string) error {
	return r.run(ctx, "checkout", "--quiet", "-B", branch, startPoint)
}

func (r *Runner) push(ctx context.Context, force bool) error {
	args := []string{"push", "--quiet"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, r.remote, "HEAD")
	return r.run(ctx, args...)
}

// commit stages the given paths and commits them with msg.
func (r *Runner) commit(ctx context.Context, msg string, pathspecs ...git.Pathspec) error {
	if r.dryRun {
		args := []string{"add", "--"}
		for _, p := range pathspecs {
			args = append(args, string(p))
		}
		r.plan("git", args...)
		r.plan("git", "commit", "-m", msg)
		return nil
	}
	if err := r.git.Add(ctx, pathspecs, git.AddOptions{}); err != nil {
		return err
	}
	return r.git.Commit(ctx, msg, git.CommitOptions{})
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	if r.dryRun {
		r.plan("git", args...)
		return nil
	}
	return r.git.Run(ctx, args...)
}

func (r *Runner) plan(name string, args ...string) {
	r.progress(3, escape.Command(name, args))
}
