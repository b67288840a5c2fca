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

package resultdb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gg-scm.io/mergematrix/internal/scenario"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestOpen(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		ctx := context.Background()
		db, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
		if err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Reopen", func(t *testing.T) {
		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), FileName)
		db, err := Open(ctx, dbPath)
		if err != nil {
			t.Fatal(err)
		}
		id, err := db.Record(ctx, &Run{
			Scenario:   1,
			Definition: "pass dev-merge",
			Expected:   scenario.Pass,
			Observed:   scenario.Pass,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}

		db, err = Open(ctx, dbPath)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		runs, err := db.Recent(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].ID != id {
			t.Errorf("after reopen, runs = %v; want one run with ID %v", runs, id)
		}
	})

	t.Run("ForeignDatabase", func(t *testing.T) {
		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), FileName)
		conn, err := sqlite.OpenConn(dbPath, sqlite.OpenCreate|sqlite.OpenReadWrite)
		if err != nil {
			t.Fatal(err)
		}
		err = sqlitex.ExecuteTransient(conn, "CREATE TABLE testjunktable (foo);", nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := conn.Close(); err != nil {
			t.Fatal(err)
		}

		db, err := Open(ctx, dbPath)
		if err == nil {
			db.Close()
			t.Fatal("Open did not return an error")
		}
	})

	t.Run("NewerVersion", func(t *testing.T) {
		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), FileName)
		conn, err := sqlite.OpenConn(dbPath, sqlite.OpenCreate|sqlite.OpenReadWrite)
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		err = sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA application_id = %d;", appID), nil)
		if err != nil {
			t.Fatal(err)
		}
		err = sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version = %d;", currentUserVersion+1), nil)
		if err != nil {
			t.Fatal(err)
		}

		db, err := Open(ctx, dbPath)
		if err == nil {
			db.Close()
			t.Fatal("Open did not return an error")
		}
	})
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	}()

	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	fixedID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	runs := []*Run{
		{
			Scenario:   1,
			Definition: "pass dev-merge master-merge",
			Expected:   scenario.Pass,
			Observed:   scenario.Pass,
			Start:      start,
			End:        start.Add(30 * time.Second),
		},
		{
			ID:         fixedID,
			Scenario:   2,
			Definition: "pass dev-rebase master-merge dev-merge master-merge",
			Expected:   scenario.Pass,
			Observed:   scenario.Fail,
			FailedStep: 4,
			Detail:     "merge pull request #12: pull request cannot be merged",
			Start:      start.Add(time.Minute),
			End:        start.Add(2 * time.Minute),
		},
		{
			Scenario:   3,
			Definition: "fail master-squash",
			Expected:   scenario.Fail,
			Observed:   scenario.Fail,
			FailedStep: 1,
			Start:      start.Add(3 * time.Minute),
			End:        start.Add(4 * time.Minute),
		},
	}
	for _, run := range runs {
		id, err := db.Record(ctx, run)
		if err != nil {
			t.Fatal(err)
		}
		if run.ID == uuid.Nil {
			if id == uuid.Nil {
				t.Errorf("Record(scenario %d) returned nil ID", run.Scenario)
			}
			run.ID = id
		} else if id != run.ID {
			t.Errorf("Record(scenario %d) = %v; want %v", run.Scenario, id, run.ID)
		}
	}

	got, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []*Run{runs[2], runs[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Recent(ctx, 2) (-want +got):\n%s", diff)
	}
	if !got[1].Mismatch() || got[0].Mismatch() {
		t.Errorf("Mismatch() = %t, %t; want false, true", got[0].Mismatch(), got[1].Mismatch())
	}

	if _, err := db.Recent(ctx, 0); err == nil {
		t.Error("Recent(ctx, 0) did not return an error")
	}
}
