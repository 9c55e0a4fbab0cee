package articles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func testArticle(msgID string, groups string) *models.Article {
	return &models.Article{
		Headers: models.Headers{
			{Name: "Message-ID", Value: msgID},
			{Name: "Newsgroups", Value: groups},
			{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
		},
		Body:       []byte("Body"),
		Size:       4,
		ReceivedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestPut_StoresMessageAndIndexRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := testArticle("<a@test>", "misc.test")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM group_articles`).
		WithArgs("misc.test").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(5)))
	mock.ExpectExec(`INSERT INTO group_articles`).
		WithArgs("misc.test", int64(5), "<a@test>", a.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := repo.Put(context.Background(), a)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPut_DuplicateIsIdempotentNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := testArticle("<a@test>", "misc.test")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict: no row inserted
	mock.ExpectCommit()

	created, err := repo.Put(context.Background(), a)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if created {
		t.Fatalf("duplicate must not report created")
	}
	// No group_articles inserts expected: the index rows already exist.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPut_MissingMessageID(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	_, err := repo.Put(context.Background(), &models.Article{})
	if err == nil {
		t.Fatalf("expected error for missing Message-ID")
	}
}

func TestPut_RollsBackOnIndexError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := testArticle("<a@test>", "misc.test")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM group_articles`).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := repo.Put(context.Background(), a)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT headers, body, size, received_at FROM messages`).
		WithArgs("<ghost@test>").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "<ghost@test>")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSince_StreamsAscendingAndStopsOnCallbackError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	hdrs := func(id string) string {
		b, _ := json.Marshal(models.Headers{{Name: "Message-ID", Value: id}})
		return string(b)
	}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"seq", "headers", "body", "size", "received_at"}).
		AddRow(int64(3), hdrs("<a@test>"), []byte("a"), int64(1), now).
		AddRow(int64(4), hdrs("<b@test>"), []byte("b"), int64(1), now)
	mock.ExpectQuery(`SELECT g.seq, m.headers`).
		WithArgs("misc.test", int64(2)).
		WillReturnRows(rows)

	var got []int64
	stop := errors.New("stop")
	err := repo.ListSince(context.Background(), "misc.test", 2, func(seq int64, a *models.Article) error {
		got = append(got, seq)
		if a.MessageID() == "" {
			t.Fatalf("decoded article missing Message-ID")
		}
		if seq == 3 {
			return nil
		}
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected sequence order: %v", got)
	}
}

func TestPurgeGroupBefore_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	before := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM group_articles WHERE group_name`).
		WithArgs("misc.test", before).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PurgeGroupBefore(context.Background(), "misc.test", before)
	if err != nil {
		t.Fatalf("PurgeGroupBefore error: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 purged, got %d", n)
	}
}
