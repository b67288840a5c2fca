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

package scenario

// DefaultTable is the built-in scenario table.
const DefaultTable = `
pass dev-merge   master-rebase dev-merge    master-rebase
pass dev-merge   master-merge
pass dev-merge   master-rebase
pass dev-rebase  master-merge
pass dev-rebase  master-rebase
pass dev-merge   master-merge  dev-rebase   master-merge
pass dev-rebase  master-merge  dev-merge    master-merge
pass dev-merge   dev-merge     master-merge
pass dev-rebase  dev-merge     master-merge
pass dev-merge   dev-rebase    master-merge
pass dev-merge   dev-rebase    dev-merge    master-merge
`

// Default returns the scenarios of DefaultTable.
func Default() []*Scenario {
	scenarios, err := Parse(DefaultTable)
	if err != nil {
		panic(err)
	}
	return scenarios
}
