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

// mergematrix replays merge and rebase scenarios between the dev and
// master branches of a GitHub repository and checks which ones end in a
// merge conflict.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gg-scm.io/mergematrix/internal/escape"
	"gg-scm.io/mergematrix/internal/flag"
	"gg-scm.io/mergematrix/internal/sigterm"
	"gg-scm.io/pkg/git"
)

func main() {
	pctx, err := osProcessContext()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mergematrix:", err)
		os.Exit(1)
	}
	ctx, stop := sigterm.NotifyContext(context.Background())
	err = run(ctx, pctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if isUsage(err) {
			os.Exit(64)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, pctx *processContext, args []string) error {
	const synopsis = "mergematrix [options] COMMAND [ARG [...]]"
	const description = "Merge/rebase scenario tester for GitHub repositories\n\n" +
		"commands:\n" +
		"  run           " + runSynopsis + "\n" +
		"  list          " + listSynopsis + "\n" +
		"  history       " + historySynopsis + "\n" +
		"  login         " + loginSynopsis + "\n" +
		"  version       " + versionSynopsis

	globalFlags := flag.NewFlagSet(false, synopsis, description)
	dirFlag := globalFlags.String("C", "", "run as if mergematrix was started in `dir`")
	showArgs := globalFlags.Bool("show-git", false, "log git invocations")
	versionFlag := globalFlags.Bool("version", false, "display version information")
	if err := globalFlags.Parse(args); flag.IsHelp(err) {
		globalFlags.Help(pctx.stdout)
		return nil
	} else if err != nil {
		return usagef("%v", err)
	}
	if globalFlags.NArg() == 0 && !*versionFlag {
		globalFlags.Help(pctx.stdout)
		return nil
	}
	dir := pctx.dir
	if *dirFlag != "" {
		dir = *dirFlag
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(pctx.dir, dir)
		}
	}
	opts := git.Options{
		Dir: dir,
		Env: pctx.env,
	}
	if *showArgs {
		opts.LogHook = func(_ context.Context, args []string) {
			io.WriteString(pctx.stderr, "mergematrix: exec: "+escape.Command("git", args)+"\n")
		}
	}
	g, err := git.New(opts)
	if err != nil {
		return fmt.Errorf("mergematrix: %v", err)
	}
	httpClient := pctx.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cc := &cmdContext{
		dir:        dir,
		env:        pctx.env,
		git:        g,
		httpClient: httpClient,
		xdgDirs:    newXDGDirs(pctx.env),
		stdout:     pctx.stdout,
		stderr:     pctx.stderr,
	}
	if *versionFlag {
		return showVersion(ctx, cc)
	}
	err = dispatch(ctx, cc, globalFlags, globalFlags.Arg(0), globalFlags.Args()[1:])
	if isUsage(err) {
		return err
	}
	if err != nil {
		return fmt.Errorf("mergematrix: %v", err)
	}
	return nil
}

type cmdContext struct {
	dir string
	env []string

	git        *git.Git
	httpClient *http.Client
	xdgDirs    *xdgDirs

	stdout io.Writer
	stderr io.Writer
}

// getenv returns the value of the named variable in env.
// Later entries win, as with os/exec.
func getenv(env []string, name string) string {
	prefix := name + "="
	for i := len(env) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(env[i], prefix); ok {
			return v
		}
	}
	return ""
}

func dispatch(ctx context.Context, cc *cmdContext, globalFlags *flag.FlagSet, name string, args []string) error {
	switch name {
	case "run":
		return runScenarios(ctx, cc, args)
	case "list", "ls":
		return list(ctx, cc, args)
	case "history", "log":
		return history(ctx, cc, args)
	case "login":
		return login(ctx, cc, args)
	case "version":
		return showVersion(ctx, cc)
	case "help":
		if len(args) == 0 {
			globalFlags.Help(cc.stdout)
			return nil
		}
		if len(args) > 1 || strings.HasPrefix(args[0], "-") {
			return usagef("help [command]")
		}
		return dispatch(ctx, cc, globalFlags, args[0], []string{"--help"})
	default:
		return usagef("unknown command %s", name)
	}
}

const versionSynopsis = "print the version of mergematrix and git"

// Build information filled in at link time (see -X link flag).
var (
	// versionInfo is a human-readable version number like "1.0.0".
	versionInfo = ""

	// buildCommit is the full hex-formatted hash of the commit that the
	// build came from, optionally ending with a plus if the source had
	// local modifications.
	buildCommit = ""
)

func showVersion(ctx context.Context, cc *cmdContext) error {
	commit, localMods := strings.CutSuffix(buildCommit, "+")
	var err error
	switch {
	case versionInfo != "":
		_, err = fmt.Fprintf(cc.stdout, "mergematrix version %s\n", versionInfo)
	case commit != "" && localMods:
		_, err = fmt.Fprintf(cc.stdout, "mergematrix built from source at %s with local modifications\n", commit)
	case commit != "":
		_, err = fmt.Fprintf(cc.stdout, "mergematrix built from source at %s\n", commit)
	default:
		_, err = fmt.Fprintln(cc.stdout, "mergematrix built from source")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cc.stdout, "go: %s %s %s/%s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	gitVersion, err := cc.git.Output(ctx, "--version")
	if err != nil {
		return err
	}
	_, err = io.WriteString(cc.stdout, gitVersion)
	return err
}

type processContext struct {
	dir string
	env []string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	httpClient *http.Client
}

func osProcessContext() (*processContext, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return &processContext{
		dir:        dir,
		env:        os.Environ(),
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		httpClient: http.DefaultClient,
	}, nil
}

type usageError string

func usagef(format string, args ...any) error {
	e := usageError(fmt.Sprintf(format, args...))
	return &e
}

func (ue *usageError) Error() string {
	return "mergematrix: usage: " + string(*ue)
}

func isUsage(e error) bool {
	_, ok := e.(*usageError)
	return ok
}
