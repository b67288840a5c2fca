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

// Package scenario describes merge/rebase scenarios between the dev and
// master branches and parses them from their compact text form.
//
// A scenario table has one scenario per line:
//
//	pass dev-merge   master-rebase
//	fail dev-rebase  dev-merge     master-squash
//
// The first field is the expected outcome. Each following field is a
// step naming the base branch of a pull request and the merge method
// used to land it.
package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Branch names of the two long-lived branches.
const (
	Dev    = "dev"
	Master = "master"
)

// Expectation is the outcome a scenario is expected to have.
type Expectation string

// Outcomes.
const (
	// Pass means every pull request in the scenario merged cleanly.
	Pass Expectation = "pass"
	// Fail means some pull request could not be merged.
	Fail Expectation = "fail"
)

// Method is a pull request merge strategy.
type Method string

// Merge methods accepted by GitHub.
const (
	Merge  Method = "merge"
	Rebase Method = "rebase"
	Squash Method = "squash"
)

var validMethods = map[Method]struct{}{
	Merge:  {},
	Rebase: {},
	Squash: {},
}

// A Step lands a pull request on Branch using Method. A step on Dev
// merges a freshly created feature branch into dev. A step on Master
// merges dev into master.
type Step struct {
	Branch string
	Method Method
}

// String returns the step in its table form, like "dev-merge".
func (s Step) String() string {
	return s.Branch + "-" + string(s.Method)
}

// ParseStep parses a single step like "master-rebase".
func ParseStep(s string) (Step, error) {
	branch, method, ok := strings.Cut(s, "-")
	if !ok {
		return Step{}, fmt.Errorf("step %q: missing '-' between branch and method", s)
	}
	if branch != Dev && branch != Master {
		return Step{}, fmt.Errorf("step %q: unknown branch %q (want %s or %s)", s, branch, Dev, Master)
	}
	if _, ok := validMethods[Method(method)]; !ok {
		return Step{}, fmt.Errorf("step %q: unknown method %q (want one of %s)", s, method, methodList())
	}
	return Step{Branch: branch, Method: Method(method)}, nil
}

func methodList() string {
	methods := maps.Keys(validMethods)
	slices.Sort(methods)
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// A Scenario is a numbered sequence of steps with an expected outcome.
type Scenario struct {
	// N is the scenario's 1-based position in its table.
	N      int
	Expect Expectation
	Steps  []Step
}

// BranchName returns the name of the k'th feature branch created by
// the scenario. k starts at 1.
func (sc *Scenario) BranchName(k int) string {
	return fmt.Sprintf("feature-%d-%d", sc.N, k)
}

// FeatureCount returns the number of feature branches the scenario
// creates, one for every step on dev.
func (sc *Scenario) FeatureCount() int {
	n := 0
	for _, step := range sc.Steps {
		if step.Branch == Dev {
			n++
		}
	}
	return n
}

// Definition returns the scenario in its table form, without a number.
func (sc *Scenario) Definition() string {
	sb := new(strings.Builder)
	sb.WriteString(string(sc.Expect))
	for _, step := range sc.Steps {
		sb.WriteByte(' ')
		sb.WriteString(step.String())
	}
	return sb.String()
}

// String returns a description like "3 expecting pass steps: dev-merge, master-merge".
func (sc *Scenario) String() string {
	steps := make([]string, len(sc.Steps))
	for i, step := range sc.Steps {
		steps[i] = step.String()
	}
	return fmt.Sprintf("%d expecting %s steps: %s", sc.N, sc.Expect, strings.Join(steps, ", "))
}

// Parse parses a scenario table. Blank lines and lines starting with '#'
// are skipped and do not count toward scenario numbers.
func Parse(table string) ([]*Scenario, error) {
	var scenarios []*Scenario
	for lineno, line := range strings.Split(table, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sc, err := parseLine(len(scenarios)+1, line)
		if err != nil {
			return nil, fmt.Errorf("parse scenarios: line %d: %w", lineno+1, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func parseLine(n int, line string) (*Scenario, error) {
	fields := strings.Fields(line)
	expect := Expectation(fields[0])
	if expect != Pass && expect != Fail {
		return nil, fmt.Errorf("unknown expectation %q (want %s or %s)", fields[0], Pass, Fail)
	}
	if len(fields) == 1 {
		return nil, errors.New("scenario has no steps")
	}
	sc := &Scenario{
		N:      n,
		Expect: expect,
		Steps:  make([]Step, 0, len(fields)-1),
	}
	for _, f := range fields[1:] {
		step, err := ParseStep(f)
		if err != nil {
			return nil, err
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

// Select returns the scenarios with the given numbers in table order.
// An empty list of numbers selects every scenario.
func Select(all []*Scenario, numbers []string) ([]*Scenario, error) {
	if len(numbers) == 0 {
		return all, nil
	}
	want := make(map[int]bool, len(numbers))
	for _, s := range numbers {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("select scenarios: %q is not a scenario number", s)
		}
		want[n] = true
	}
	var selected []*Scenario
	for _, sc := range all {
		if want[sc.N] {
			selected = append(selected, sc)
			delete(want, sc.N)
		}
	}
	if len(want) > 0 {
		missing := maps.Keys(want)
		slices.Sort(missing)
		return nil, fmt.Errorf("select scenarios: no scenario %d (table has %d)", missing[0], len(all))
	}
	return selected, nil
}
