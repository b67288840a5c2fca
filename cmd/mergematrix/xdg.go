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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// appDirName is the subdirectory of each XDG configuration directory
// that mergematrix reads from.
const appDirName = "mergematrix"

// xdgDirs locates configuration files as described by the XDG Base
// Directory Specification.
type xdgDirs struct {
	configHome string
	configDirs []string
}

func newXDGDirs(env []string) *xdgDirs {
	x := new(xdgDirs)
	if x.configHome = getenv(env, "XDG_CONFIG_HOME"); x.configHome == "" {
		if home := getenv(env, "HOME"); home != "" {
			x.configHome = filepath.Join(home, ".config")
		}
	}
	if dirs := getenv(env, "XDG_CONFIG_DIRS"); dirs != "" {
		x.configDirs = filepath.SplitList(dirs)
	} else {
		x.configDirs = []string{"/etc/xdg"}
	}
	return x
}

// configPaths returns the configuration directories in order of
// precedence.
func (x *xdgDirs) configPaths() []string {
	var paths []string
	if x.configHome != "" {
		paths = append(paths, x.configHome)
	}
	return append(paths, x.configDirs...)
}

// readConfig reads the first file named name in mergematrix's
// configuration directories. The returned error satisfies
// errors.Is(err, fs.ErrNotExist) if no such file exists.
func (x *xdgDirs) readConfig(name string) ([]byte, error) {
	for _, dir := range x.configPaths() {
		data, err := os.ReadFile(filepath.Join(dir, appDirName, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("read %s config: %w", name, fs.ErrNotExist)
}

// writeSecret writes a file readable only by the current user into the
// user's configuration directory.
func (x *xdgDirs) writeSecret(name string, data []byte) error {
	if x.configHome == "" {
		return errors.New("neither $XDG_CONFIG_HOME nor $HOME is set")
	}
	dir := filepath.Join(x.configHome, appDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o600)
}
