package advisory

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newLockWithMock(t *testing.T) (*PostgresLock, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresLock(db), mock, db
}

func TestTryAcquire_Granted(t *testing.T) {
	lock, mock, db := newLockWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(hashtext\(\$1\)\)`).
		WithArgs("job").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	got, err := lock.TryAcquire(context.Background(), "job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatalf("want lock granted")
	}
}

func TestTryAcquire_HeldElsewhere(t *testing.T) {
	lock, mock, db := newLockWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(hashtext\(\$1\)\)`).
		WithArgs("job").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	got, err := lock.TryAcquire(context.Background(), "job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatalf("lock must not be granted when held elsewhere")
	}
}

func TestRelease(t *testing.T) {
	lock, mock, db := newLockWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_advisory_unlock\(hashtext\(\$1\)\)`).
		WithArgs("job").
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

	if err := lock.Release(context.Background(), "job"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRelease_NotHeld(t *testing.T) {
	lock, mock, db := newLockWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_advisory_unlock\(hashtext\(\$1\)\)`).
		WithArgs("job").
		WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(false))

	if err := lock.Release(context.Background(), "job"); err == nil {
		t.Fatalf("expected error releasing a lock that is not held")
	}
}
