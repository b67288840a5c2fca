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

	"gg-scm.io/mergematrix/internal/flag"
)

const listSynopsis = "print the scenario table"

func list(ctx context.Context, cc *cmdContext, args []string) error {
	f := flag.NewFlagSet(true, "mergematrix list [-f FILE [...]]", listSynopsis+`

aliases: ls

	Print one numbered line per scenario. The numbers are the ones
	mergematrix run accepts.`)
	files := f.MultiString("f", "read scenarios from `file` instead of the built-in table (repeatable)")
	f.Alias("f", "file")
	if err := f.Parse(args); flag.IsHelp(err) {
		f.Help(cc.stdout)
		return nil
	} else if err != nil {
		return usagef("%v", err)
	}
	if f.NArg() != 0 {
		return usagef("list takes no arguments")
	}
	all, err := loadScenarios(cc, *files)
	if err != nil {
		return err
	}
	for _, sc := range all {
		if _, err := fmt.Fprintf(cc.stdout, "%2d  %s\n", sc.N, sc.Definition()); err != nil {
			return err
		}
	}
	return nil
}
