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
	"net/http"
	"time"

	"gg-scm.io/mergematrix/internal/flag"
	"gg-scm.io/pkg/ghdevice"
)

const loginSynopsis = "log into GitHub and save the token"

func login(ctx context.Context, cc *cmdContext, args []string) error {
	f := flag.NewFlagSet(true, "mergematrix login -client-id ID", loginSynopsis+`

	Authorize mergematrix to open and merge pull requests using the
	GitHub device flow. ID is the client ID of a GitHub OAuth app with
	device flow enabled. The token is saved to
	$XDG_CONFIG_HOME/mergematrix/github_token.`)
	clientID := f.String("client-id", "", "OAuth app client `ID`")
	if err := f.Parse(args); flag.IsHelp(err) {
		f.Help(cc.stdout)
		return nil
	} else if err != nil {
		return usagef("%v", err)
	}
	if f.NArg() != 0 {
		return usagef("login takes no arguments")
	}
	if *clientID == "" {
		return usagef("login requires -client-id")
	}
	token, err := gitHubDeviceFlow(ctx, cc.httpClient, *clientID, cc.stderr)
	if err != nil {
		return err
	}
	tokenData := append([]byte(token), '\n')
	if err := cc.xdgDirs.writeSecret(gitHubTokenFilename, tokenData); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintln(cc.stderr, "Success! Your account will be remembered in the future.")
	return nil
}

// gitHubDeviceFlow obtains a GitHub token using the device flow as described in
// https://docs.github.com/en/developers/apps/authorizing-oauth-apps#device-flow
func gitHubDeviceFlow(ctx context.Context, client *http.Client, clientID string, output io.Writer) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	iteration := 0
	return ghdevice.Flow(ctx, ghdevice.Options{
		ClientID:   clientID,
		Scopes:     []string{"repo"},
		HTTPClient: client,
		Prompter: func(ctx context.Context, p ghdevice.Prompt) error {
			if iteration > 0 {
				fmt.Fprintln(output, "The code has expired. Let's try again:")
			}
			iteration++
			fmt.Fprintf(output, "Go to %s in your browser,\n", p.VerificationURL)
			fmt.Fprintf(output, "and enter the code: %s\n", p.UserCode)
			fmt.Fprintf(output, "\nWaiting for GitHub (Ctrl-C to cancel)...\n")
			return nil
		},
	})
}
