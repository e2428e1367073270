package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// recordingDriver is a minimal database/sql driver that counts transaction
// outcomes, enough to observe WithTx behavior without a real database.
type recordingDriver struct{ conn *recordingConn }

func (d *recordingDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type recordingConn struct {
	begins    int
	commits   int
	rollbacks int
}

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (c *recordingConn) Close() error { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) {
	c.begins++
	return &recordingTx{conn: c}, nil
}

type recordingTx struct{ conn *recordingConn }

func (t *recordingTx) Commit() error   { t.conn.commits++; return nil }
func (t *recordingTx) Rollback() error { t.conn.rollbacks++; return nil }

func openRecordingDB(t *testing.T) (*sql.DB, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	// Driver names are process-global; key by test name.
	name := fmt.Sprintf("txrecorder-%s", t.Name())
	sql.Register(name, &recordingDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, conn
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, conn := openRecordingDB(t)

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if tx == nil {
			t.Fatalf("expected a live transaction")
		}
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called {
		t.Fatalf("expected fn to run")
	}
	if conn.commits != 1 || conn.rollbacks != 0 {
		t.Fatalf("commits=%d rollbacks=%d, want 1/0", conn.commits, conn.rollbacks)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, conn := openRecordingDB(t)

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}
	if conn.commits != 0 || conn.rollbacks != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 0/1", conn.commits, conn.rollbacks)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db, conn := openRecordingDB(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			panic("boom")
		})
	}()

	if conn.commits != 0 || conn.rollbacks != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 0/1", conn.commits, conn.rollbacks)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "ux_bills_pending"}

	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil error must not match")
	}
	if IsUniqueViolation(errors.New("x"), "") {
		t.Fatalf("plain error must not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign-key violation must not match")
	}
	if !IsUniqueViolation(unique, "") {
		t.Fatalf("empty constraint should match any unique violation")
	}
	if !IsUniqueViolation(unique, "ux_bills_pending") {
		t.Fatalf("expected constraint match")
	}
	if IsUniqueViolation(unique, "other_constraint") {
		t.Fatalf("different constraint must not match")
	}
	wrapped := fmt.Errorf("insert failed: %w", unique)
	if !IsUniqueViolation(wrapped, "ux_bills_pending") {
		t.Fatalf("expected match through wrapping")
	}
}
