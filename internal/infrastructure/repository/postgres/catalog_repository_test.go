package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewCatalogRepository(db), mock, func() { _ = db.Close() }
}

var documentColumns = []string{"id", "title", "content", "category", "location", "doc_type", "source"}

func TestAllReturnsDocumentsInOrder(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, content, category, location, doc_type, source").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("a", "Avalanche levels", "Five levels.", "avalanche", "Swiss Alps", "safety_guide", "SLF").
			AddRow("b", "Matterhorn", "Start early.", "location", "Zermatt", "mountain_guide", "Guides"))

	docs, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].Location != "Zermatt" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAllOnEmptyTableIsIndexNotReady(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title").WillReturnRows(sqlmock.NewRows(documentColumns))

	_, err := repo.All(context.Background())
	if !domain.IsKind(err, domain.ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
}

func TestAllPropagatesQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title").WillReturnError(errors.New("connection reset"))

	if _, err := repo.All(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101901)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS safety_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertRollsBackOnFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO safety_documents").
		WithArgs("a", "T", "C", "", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO safety_documents").
		WithArgs("b", "T2", "C2", "", "", "", "", sqlmock.AnyArg()).
		WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), []domain.Document{
		{ID: "a", Title: "T", Content: "C"},
		{ID: "b", Title: "T2", Content: "C2"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCount(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(19))

	n, err := repo.Count(context.Background())
	if err != nil || n != 19 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}
