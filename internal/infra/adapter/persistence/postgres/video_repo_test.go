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
	"pulse-digest/tests/fixtures"
)

/* ─────────────────────────── ヘルパ ─────────────────────────── */

func videoRow(v *entity.VideoItem) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"video_id", "channel_id", "title", "url",
		"description", "transcript", "published_at", "created_at",
	}).AddRow(
		v.VideoID, v.ChannelID, v.Title, v.URL,
		v.Description, v.Transcript, v.PublishedAt, v.CreatedAt,
	)
}

/* ─────────────────────────── 1. Get ─────────────────────────── */

func TestVideoRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := fixtures.NewTestVideoItem(fixtures.WithTranscript("full transcript"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT video_id")).
		WithArgs(want.VideoID).
		WillReturnRows(videoRow(want))

	repo := pg.NewVideoRepo(db)
	got, err := repo.Get(context.Background(), want.VideoID)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestVideoRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT video_id")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"video_id", "channel_id", "title", "url",
			"description", "transcript", "published_at", "created_at",
		}))

	repo := pg.NewVideoRepo(db)
	got, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

/* ─────────────────────────── 2. UpsertBatch ─────────────────────────── */

func TestVideoRepo_UpsertBatch(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	a := fixtures.NewTestVideoItem(fixtures.WithVideoID("vid-a"))
	b := fixtures.NewTestVideoItem(fixtures.WithVideoID("vid-b"))

	mock.ExpectBegin()
	// vid-a は新規、vid-b は既存行の更新
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO video_items")).
		WithArgs(a.VideoID, a.ChannelID, a.Title, a.URL, a.Description, a.Transcript, a.PublishedAt).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO video_items")).
		WithArgs(b.VideoID, b.ChannelID, b.Title, b.URL, b.Description, b.Transcript, b.PublishedAt).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectCommit()

	repo := pg.NewVideoRepo(db)
	inserted, err := repo.UpsertBatch(context.Background(), []*entity.VideoItem{a, b})
	if err != nil {
		t.Fatalf("UpsertBatch err=%v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted=%d, want 1", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestVideoRepo_UpsertBatch_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)
	inserted, err := repo.UpsertBatch(context.Background(), nil)
	if err != nil || inserted != 0 {
		t.Fatalf("UpsertBatch err=%v inserted=%d", err, inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ─────────────────────────── 3. ListWindow ─────────────────────────── */

func TestVideoRepo_ListWindow(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	from := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 19, 23, 59, 59, 0, time.UTC)
	want := fixtures.NewTestVideoItem()

	mock.ExpectQuery("FROM video_items").
		WithArgs(from, to).
		WillReturnRows(videoRow(want))

	repo := pg.NewVideoRepo(db)
	got, err := repo.ListWindow(context.Background(), from, to)
	if err != nil {
		t.Fatalf("ListWindow err=%v", err)
	}
	if diff := cmp.Diff([]*entity.VideoItem{want}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

/* ─────────────────────────── 4. SetTranscript ─────────────────────────── */

func TestVideoRepo_SetTranscript(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE video_items")).
		WithArgs("vid-001", "new transcript").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewVideoRepo(db)
	if err := repo.SetTranscript(context.Background(), "vid-001", "new transcript"); err != nil {
		t.Fatalf("SetTranscript err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

// 既に字幕がある行は条件に当たらず 0 行更新になるが、エラーではない
func TestVideoRepo_SetTranscript_NoRows(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE video_items")).
		WithArgs("vid-001", "new transcript").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewVideoRepo(db)
	if err := repo.SetTranscript(context.Background(), "vid-001", "new transcript"); err != nil {
		t.Fatalf("SetTranscript err=%v", err)
	}
}

/* ─────────────────────────── 5. Count ─────────────────────────── */

func TestVideoRepo_Count(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM video_items")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	repo := pg.NewVideoRepo(db)
	count, err := repo.Count(context.Background())
	if err != nil || count != 42 {
		t.Fatalf("Count err=%v count=%d", err, count)
	}
}
