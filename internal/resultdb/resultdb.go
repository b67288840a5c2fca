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

// Package resultdb stores the outcomes of scenario runs in a SQLite
// database so that flaky scenarios can be spotted across invocations.
package resultdb

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"gg-scm.io/mergematrix/internal/scenario"
	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the name of the database file inside a Git directory.
const FileName = "mergematrix.sqlite"

//go:embed schema.sql
//go:embed runs/*.sql
var sqlFiles embed.FS

const appID int32 = 0x6d6d7478

const currentUserVersion = 1

// DB is an open connection to a result database. It is not safe to use
// from multiple goroutines.
type DB struct {
	conn *sqlite.Conn
}

// Run is a single recorded execution of a scenario.
type Run struct {
	// ID identifies the run. Record assigns a random ID if it is zero.
	ID uuid.UUID

	Scenario   int
	Definition string
	Expected   scenario.Expectation
	Observed   scenario.Expectation
	// FailedStep is the 1-based index of the step that could not be
	// merged, or 0.
	FailedStep int
	Detail     string

	Start time.Time
	End   time.Time
}

// Mismatch reports whether the observed outcome differs from the
// expected one.
func (r *Run) Mismatch() bool {
	return r.Observed != r.Expected
}

// Open opens a result database on disk, creating it if necessary.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return nil, fmt.Errorf("open result database %s: %w", path, err)
	}
	conn.SetInterrupt(ctx.Done())
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open result database %s: %w", path, err)
	}
	conn.SetInterrupt(nil)
	return &DB{conn}, nil
}

func migrate(conn *sqlite.Conn) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endFn(&err)

	gotVersion, err := ensureAppID(conn)
	if err != nil {
		return err
	}
	if gotVersion != 0 && gotVersion != currentUserVersion {
		return fmt.Errorf("schema version %d is not supported (want %d)", gotVersion, currentUserVersion)
	}
	if err := sqlitex.ExecuteScriptFS(conn, sqlFiles, "schema.sql", nil); err != nil {
		return err
	}
	userVersionStmt := fmt.Sprintf("PRAGMA user_version = %d;", currentUserVersion)
	if err := sqlitex.ExecuteTransient(conn, userVersionStmt, nil); err != nil {
		return err
	}
	return nil
}

// Record stores run and returns its ID.
func (db *DB) Record(ctx context.Context, run *Run) (_ uuid.UUID, err error) {
	id := run.ID
	if id == uuid.Nil {
		id, err = uuid.NewRandom()
		if err != nil {
			return uuid.Nil, fmt.Errorf("record scenario %d: %w", run.Scenario, err)
		}
	}
	db.conn.SetInterrupt(ctx.Done())
	defer db.conn.SetInterrupt(nil)
	err = sqlitex.ExecuteTransientFS(db.conn, sqlFiles, "runs/insert.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":id":          id.String(),
			":scenario":    run.Scenario,
			":definition":  run.Definition,
			":expected":    string(run.Expected),
			":observed":    string(run.Observed),
			":failed_step": run.FailedStep,
			":detail":      run.Detail,
			":start_time":  run.Start.UnixMilli(),
			":end_time":    run.End.UnixMilli(),
		},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("record scenario %d: %w", run.Scenario, err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (db *DB) Recent(ctx context.Context, limit int) (_ []*Run, err error) {
	if limit <= 0 {
		return nil, errors.New("list runs: limit must be positive")
	}
	db.conn.SetInterrupt(ctx.Done())
	defer db.conn.SetInterrupt(nil)
	defer sqlitex.Transaction(db.conn)(&err)

	var runs []*Run
	err = sqlitex.ExecuteTransientFS(db.conn, sqlFiles, "runs/recent.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":limit": limit,
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id, err := uuid.Parse(stmt.GetText("id"))
			if err != nil {
				return fmt.Errorf("run id: %w", err)
			}
			runs = append(runs, &Run{
				ID:         id,
				Scenario:   int(stmt.GetInt64("scenario")),
				Definition: stmt.GetText("definition"),
				Expected:   scenario.Expectation(stmt.GetText("expected")),
				Observed:   scenario.Expectation(stmt.GetText("observed")),
				FailedStep: int(stmt.GetInt64("failed_step")),
				Detail:     stmt.GetText("detail"),
				Start:      time.UnixMilli(stmt.GetInt64("start_time")),
				End:        time.UnixMilli(stmt.GetInt64("end_time")),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close releases all resources associated with the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func userVersion(conn *sqlite.Conn) (int32, error) {
	var version int32
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt32(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("get database user_version: %w", err)
	}
	return version, nil
}

// ensureAppID rejects databases written by other programs and stamps
// new databases with appID. It returns the schema version found.
func ensureAppID(conn *sqlite.Conn) (schemaVersion int32, err error) {
	defer sqlitex.Save(conn)(&err)

	var hasSchema bool
	err = sqlitex.ExecuteTransient(conn, "VALUES ((SELECT COUNT(*) FROM sqlite_master) > 0);", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			hasSchema = stmt.ColumnInt(0) != 0
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	var dbAppID int32
	err = sqlitex.ExecuteTransient(conn, "PRAGMA application_id;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			dbAppID = stmt.ColumnInt32(0)
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	if dbAppID != appID && !(dbAppID == 0 && !hasSchema) {
		return 0, fmt.Errorf("database application_id = %#x (expected %#x)", dbAppID, appID)
	}
	schemaVersion, err = userVersion(conn)
	if err != nil {
		return 0, err
	}
	// PRAGMAs don't permit parameter substitution.
	err = sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA application_id = %d;", appID), nil)
	if err != nil {
		return 0, err
	}
	return schemaVersion, nil
}
