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

// Package sigterm provides graceful termination signal utilities.
package sigterm // import "gg-scm.io/mergematrix/internal/sigterm"

import (
	"context"
	"os"
	"os/signal"
)

// Signals returns the list of signals to listen for graceful termination.
func Signals() []os.Signal {
	return append([]os.Signal(nil), signals...)
}

// NotifyContext returns a copy of ctx that is canceled when one of the
// termination signals arrives or when stop is called.
func NotifyContext(ctx context.Context) (_ context.Context, stop func()) {
	return signal.NotifyContext(ctx, signals...)
}
