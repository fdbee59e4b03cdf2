package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"pulse-digest/internal/domain/entity"
	pg "pulse-digest/internal/infra/adapter/persistence/postgres"
	"pulse-digest/internal/repository"
	"pulse-digest/tests/fixtures"
)

/* ─────────────────────────── ヘルパ ─────────────────────────── */

func summaryRow(s *entity.Summary) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"article_kind", "article_id", "url", "title",
		"summary", "duplicate_of", "created_at",
	}).AddRow(
		string(s.ArticleKind), s.ArticleID, s.URL, s.Title,
		s.Summary, s.DuplicateOf, s.CreatedAt,
	)
}

func summaryMetaRow(m repository.SummaryWithMeta) *sqlmock.Rows {
	s := m.Summary
	return sqlmock.NewRows([]string{
		"article_kind", "article_id", "url", "title", "summary",
		"duplicate_of", "created_at", "published_at", "source_name", "category",
	}).AddRow(
		string(s.ArticleKind), s.ArticleID, s.URL, s.Title, s.Summary,
		s.DuplicateOf, s.CreatedAt, m.PublishedAt, m.SourceName, string(m.Category),
	)
}

/* ─────────────────────────── 1. Create ─────────────────────────── */

func TestSummaryRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	s := fixtures.NewTestSummary()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO summaries")).
		WithArgs(string(s.ArticleKind), s.ArticleID, s.URL, s.Title, s.Summary, s.DuplicateOf).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewSummaryRepo(db)
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSummaryRepo_Create_Nil(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewSummaryRepo(db)
	if err := repo.Create(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil summary")
	}
}

/* ─────────────────────────── 2. Get ─────────────────────────── */

func TestSummaryRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := fixtures.NewTestSummary()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_kind")).
		WithArgs(string(want.ArticleKind), want.ArticleID).
		WillReturnRows(summaryRow(want))

	repo := pg.NewSummaryRepo(db)
	got, err := repo.Get(context.Background(), want.ArticleKind, want.ArticleID)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT article_kind")).
		WithArgs("web", "missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"article_kind", "article_id", "url", "title",
			"summary", "duplicate_of", "created_at",
		}))

	repo := pg.NewSummaryRepo(db)
	got, err := repo.Get(context.Background(), entity.ArticleKindWeb, "missing")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

/* ─────────────────────────── 3. ExistsBatch ─────────────────────────── */

func TestSummaryRepo_ExistsBatch(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM summaries").
		WithArgs("web", "a1", "a2", "a3").
		WillReturnRows(sqlmock.NewRows([]string{"article_id"}).
			AddRow("a1").AddRow("a3"))

	repo := pg.NewSummaryRepo(db)
	got, err := repo.ExistsBatch(context.Background(), entity.ArticleKindWeb, []string{"a1", "a2", "a3"})
	if err != nil {
		t.Fatalf("ExistsBatch err=%v", err)
	}
	want := map[string]bool{"a1": true, "a3": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryRepo_ExistsBatch_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewSummaryRepo(db)
	got, err := repo.ExistsBatch(context.Background(), entity.ArticleKindWeb, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("ExistsBatch err=%v len=%d", err, len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ─────────────────────────── 4. ListWindow ─────────────────────────── */

func TestSummaryRepo_ListWindow(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	from := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 19, 23, 59, 59, 0, time.UTC)
	want := repository.SummaryWithMeta{
		Summary:     fixtures.NewTestSummary(),
		PublishedAt: time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC),
		SourceName:  "Anthropic News",
		Category:    entity.CategoryOfficial,
	}

	mock.ExpectQuery("FROM summaries").
		WithArgs(from, to).
		WillReturnRows(summaryMetaRow(want))

	repo := pg.NewSummaryRepo(db)
	got, err := repo.ListWindow(context.Background(), from, to)
	if err != nil {
		t.Fatalf("ListWindow err=%v", err)
	}
	if diff := cmp.Diff([]repository.SummaryWithMeta{want}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

/* ─────────────────────────── 5. MarkDuplicate ─────────────────────────── */

func TestSummaryRepo_MarkDuplicate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE summaries")).
		WithArgs("web", "a1", "web:a0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewSummaryRepo(db)
	if err := repo.MarkDuplicate(context.Background(), entity.ArticleKindWeb, "a1", "web:a0"); err != nil {
		t.Fatalf("MarkDuplicate err=%v", err)
	}
}

func TestSummaryRepo_MarkDuplicate_NoRows(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE summaries")).
		WithArgs("web", "missing", "web:a0").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewSummaryRepo(db)
	if err := repo.MarkDuplicate(context.Background(), entity.ArticleKindWeb, "missing", "web:a0"); err == nil {
		t.Fatal("expected error when no rows affected")
	}
}

/* ─────────────────────────── 6. Count ─────────────────────────── */

func TestSummaryRepo_Count(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(duplicate_of) FROM summaries")).
		WillReturnRows(sqlmock.NewRows([]string{"total", "duplicates"}).AddRow(int64(10), int64(2)))

	repo := pg.NewSummaryRepo(db)
	total, duplicates, err := repo.Count(context.Background())
	if err != nil || total != 10 || duplicates != 2 {
		t.Fatalf("Count err=%v total=%d duplicates=%d", err, total, duplicates)
	}
}
