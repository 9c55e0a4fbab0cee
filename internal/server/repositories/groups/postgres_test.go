package groups

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT 1 FROM groups`).
		WithArgs("misc.test").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	ok, err := repo.Exists(context.Background(), "misc.test")
	if err != nil {
		t.Fatalf("Exists error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true")
	}

	mock.ExpectQuery(`SELECT 1 FROM groups`).
		WithArgs("no.such.group").
		WillReturnError(sql.ErrNoRows)

	ok, err = repo.Exists(context.Background(), "no.such.group")
	if err != nil {
		t.Fatalf("Exists error: %v", err)
	}
	if ok {
		t.Fatalf("expected false for unknown group")
	}
}

func TestIsModerated_UnknownGroupIsFalse(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT moderated FROM groups`).
		WithArgs("no.such.group").
		WillReturnError(sql.ErrNoRows)

	moderated, err := repo.IsModerated(context.Background(), "no.such.group")
	if err != nil {
		t.Fatalf("IsModerated error: %v", err)
	}
	if moderated {
		t.Fatalf("unknown group must not be moderated")
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"name", "moderated", "created_at"}).
		AddRow("comp.lang.go", false, now).
		AddRow("misc.test", true, now)
	mock.ExpectQuery(`SELECT name, moderated, created_at FROM groups ORDER BY name`).
		WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "comp.lang.go" || !got[1].Moderated {
		t.Fatalf("unexpected groups: %+v", got)
	}
}

func TestCreate_ConflictIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO groups`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Create(context.Background(), "misc.test", false); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}
