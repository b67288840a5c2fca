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
	"time"

	"gg-scm.io/mergematrix/internal/flag"
	"gg-scm.io/mergematrix/internal/resultdb"
)

const historySynopsis = "show recorded scenario outcomes"

func history(ctx context.Context, cc *cmdContext, args []string) error {
	f := flag.NewFlagSet(true, "mergematrix history [-limit N] [-db PATH]", historySynopsis+`

aliases: log

	Print the most recent scenario runs, newest first. Runs whose
	outcome differed from the expectation are marked with "!".`)
	limit := f.Int("limit", 20, "maximum number of runs to show")
	f.Alias("limit", "l")
	dbPath := f.String("db", "", "`path` to the result database (defaults to the Git directory)")
	if err := f.Parse(args); flag.IsHelp(err) {
		f.Help(cc.stdout)
		return nil
	} else if err != nil {
		return usagef("%v", err)
	}
	if f.NArg() != 0 {
		return usagef("history takes no arguments")
	}
	if *limit <= 0 {
		return usagef("-limit must be positive")
	}
	path, err := resultDBPath(ctx, cc, *dbPath)
	if err != nil {
		return err
	}
	db, err := resultdb.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	runs, err := db.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		mark := " "
		if run.Mismatch() {
			mark = "!"
		}
		_, err := fmt.Fprintf(cc.stdout, "%s %s %s scenario %d: expected %s got %s (%v): %s\n",
			mark,
			run.ID,
			run.Start.UTC().Format(time.RFC3339),
			run.Scenario,
			run.Expected,
			run.Observed,
			run.End.Sub(run.Start).Round(time.Second),
			run.Definition)
		if err != nil {
			return err
		}
		if run.FailedStep > 0 {
			if _, err := fmt.Fprintf(cc.stdout, "    step %d: %s\n", run.FailedStep, run.Detail); err != nil {
				return err
			}
		}
	}
	return nil
}
