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

// Package fixture prepares the work tree content that scenario steps
// commit. Every feature branch flips its own line of README.md from
// "unchanged" to "changed" and adds an empty file named after itself, so
// that two features never touch the same lines.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gg-scm.io/mergematrix/internal/scenario"
)

// ReadmeName is the slash-separated path of the shared fixture file.
const ReadmeName = "README.md"

// minFeatureLines is the number of README lines seeded even for
// scenarios with fewer features.
const minFeatureLines = 9

// Seed returns existing with one "unchanged" line appended for every
// feature branch sc may create.
func Seed(existing string, sc *scenario.Scenario) string {
	n := sc.FeatureCount()
	if n < minFeatureLines {
		n = minFeatureLines
	}
	sb := new(strings.Builder)
	sb.WriteString(existing)
	for k := 1; k <= n; k++ {
		fmt.Fprintf(sb, "%s unchanged\n\n", marker(sc.BranchName(k)))
	}
	return sb.String()
}

// MarkChanged flips the README line belonging to branch.
func MarkChanged(content, branch string) string {
	m := marker(branch)
	lines := strings.SplitAfter(content, "\n")
	for i, line := range lines {
		if strings.Contains(line, m) {
			lines[i] = strings.ReplaceAll(line, "unchanged", "changed")
		}
	}
	return strings.Join(lines, "")
}

func marker(branch string) string {
	return "*" + branch + "*"
}

// A Dir is a filesystem path to a work tree directory.
type Dir string

// ChangeFeature applies the feature branch's edit to the work tree.
func (dir Dir) ChangeFeature(branch string) error {
	readme, err := dir.ReadFile(ReadmeName)
	if err != nil {
		return fmt.Errorf("change feature %s: %w", branch, err)
	}
	err = dir.Apply(
		Write(ReadmeName, MarkChanged(readme, branch)),
		Touch(branch),
	)
	if err != nil {
		return fmt.Errorf("change feature %s: %w", branch, err)
	}
	return nil
}

// SeedReadme appends sc's feature lines to the work tree's README,
// creating it if necessary.
func (dir Dir) SeedReadme(sc *scenario.Scenario) error {
	readme, err := dir.ReadFile(ReadmeName)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("seed readme: %w", err)
	}
	if err := dir.Apply(Write(ReadmeName, Seed(readme, sc))); err != nil {
		return fmt.Errorf("seed readme: %w", err)
	}
	return nil
}

// An Operation describes a single step of a Dir.Apply.
type Operation struct {
	// Op specifies what Apply should do.
	Op Op
	// Name is a slash-separated path relative to the directory.
	Name string
	// Content is the content of the file created for a WriteOp.
	Content string
}

// Write returns an operation that replaces the file at name with content.
func Write(name, content string) Operation {
	return Operation{Op: WriteOp, Name: name, Content: content}
}

// Touch returns an operation that creates an empty file at name if it
// does not exist.
func Touch(name string) Operation {
	return Operation{Op: TouchOp, Name: name}
}

// Remove returns an operation that removes the file at name.
func Remove(name string) Operation {
	return Operation{Op: RemoveOp, Name: name}
}

// String returns a readable description of an operation like "touch foo".
func (o Operation) String() string {
	if o.Op == WriteOp {
		return fmt.Sprintf("write %q to %q", o.Content, o.Name)
	}
	return fmt.Sprintf("%v %q", o.Op, o.Name)
}

// Op is an operation code.
type Op int

// Operation codes.
const (
	WriteOp Op = iota
	TouchOp
	RemoveOp
)

// String returns a lowercase name for op.
func (op Op) String() string {
	switch op {
	case WriteOp:
		return "write"
	case TouchOp:
		return "touch"
	case RemoveOp:
		return "remove"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// Apply applies the sequence of filesystem operations given. It stops
// at the first operation to fail.
func (dir Dir) Apply(ops ...Operation) error {
	for _, o := range ops {
		p := dir.FromSlash(o.Name)
		switch o.Op {
		case WriteOp:
			if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
				return err
			}
			if err := os.WriteFile(p, []byte(o.Content), 0o666); err != nil {
				return err
			}
		case TouchOp:
			if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
				return err
			}
			f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE, 0o666)
			if err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		case RemoveOp:
			if err := os.Remove(p); err != nil {
				return err
			}
		default:
			return fmt.Errorf("apply: unknown operation %v", o.Op)
		}
	}
	return nil
}

// ReadFile returns the content of the file at the slash-separated path.
func (dir Dir) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(dir.FromSlash(path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromSlash resolves the given slash-separated path relative to dir.
// path must not be an absolute path.
func (dir Dir) FromSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		panic("absolute path to fixture.Dir.FromSlash")
	}
	return filepath.Join(string(dir), filepath.FromSlash(path))
}

// String returns the directory path.
func (dir Dir) String() string {
	return string(dir)
}
