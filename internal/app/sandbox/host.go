package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // embedded relational engine
)

// Stage identifies which query was running when an engine fault occurred.
// Learner faults are the player's problem; reference faults are a content
// defect. The surfaced result does not distinguish them, the logs do.
type Stage string

const (
	StageLearner   Stage = "learner"
	StageReference Stage = "reference"
)

// SetupError means a challenge's schema-and-fixture script failed to apply.
// No query has run when this is returned.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return "schema setup failed: " + e.Err.Error()
}

func (e *SetupError) Unwrap() error { return e.Err }

// QueryError wraps an engine-level fault (syntax error, missing object, type
// error) raised while executing a query against a provisioned handle.
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Host provisions throwaway in-memory engine instances, one per evaluation.
type Host struct {
	queryTimeout time.Duration
}

// NewHost builds a Host whose handles enforce the given wall-clock timeout on
// each query. A zero timeout disables the bound.
func NewHost(queryTimeout time.Duration) *Host {
	return &Host{queryTimeout: queryTimeout}
}

// Handle is a single-use engine instance. It must be closed on every exit
// path and never shared across evaluations.
type Handle struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Provision opens a fresh in-memory instance and applies the schema-and-fixture
// script (DDL followed by seed INSERTs). A script failure returns *SetupError
// and leaves nothing behind.
func (h *Host) Provision(ctx context.Context, schemaScript string) (*Handle, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sandbox: open engine: %w", err)
	}
	// An in-memory sqlite database lives and dies with its connection; pin
	// the pool to one so the fixture state survives across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schemaScript); err != nil {
		db.Close()
		return nil, &SetupError{Err: err}
	}
	return &Handle{db: db, queryTimeout: h.queryTimeout}, nil
}

// Query runs one SQL statement and materializes the full result set, cells in
// column order, rows in engine order. Engine faults come back as *QueryError
// tagged with the stage.
func (hd *Handle) Query(ctx context.Context, stage Stage, query string) ([][]interface{}, error) {
	if hd.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hd.queryTimeout)
		defer cancel()
	}

	rows, err := hd.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Stage: stage, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Stage: stage, Err: err}
	}

	result := [][]interface{}{}
	for rows.Next() {
		cells := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Stage: stage, Err: err}
		}
		for i, v := range cells {
			// Normalize TEXT columns so row comparison sees values, not
			// driver buffer identities.
			if b, ok := v.([]byte); ok {
				cells[i] = string(b)
			}
		}
		result = append(result, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Stage: stage, Err: err}
	}
	return result, nil
}

// Close tears the instance down. Safe to call exactly once per handle; callers
// defer it immediately after Provision succeeds.
func (hd *Handle) Close() error {
	return hd.db.Close()
}
