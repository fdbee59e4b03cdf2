package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
)

type VideoRepo struct {
	db *sql.DB
}

func NewVideoRepo(db *sql.DB) repository.VideoRepository {
	return &VideoRepo{db: db}
}

// UpsertBatch writes all items in one transaction. created_at is preserved
// on conflict, and an existing transcript is never overwritten. The return
// value counts rows that did not exist before (xmax = 0 on insert).
func (repo *VideoRepo) UpsertBatch(ctx context.Context, items []*entity.VideoItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	const query = `
INSERT INTO video_items
       (video_id, channel_id, title, url, description, transcript, published_at, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW())
ON CONFLICT (video_id) DO UPDATE SET
       channel_id   = EXCLUDED.channel_id,
       title        = CASE WHEN EXCLUDED.title <> '' AND EXCLUDED.title <> video_items.title
                           THEN EXCLUDED.title ELSE video_items.title END,
       url          = CASE WHEN EXCLUDED.url <> '' AND EXCLUDED.url <> video_items.url
                           THEN EXCLUDED.url ELSE video_items.url END,
       description  = CASE WHEN EXCLUDED.description <> '' AND EXCLUDED.description <> video_items.description
                           THEN EXCLUDED.description ELSE video_items.description END,
       transcript   = COALESCE(NULLIF(video_items.transcript, ''), EXCLUDED.transcript),
       published_at = EXCLUDED.published_at
RETURNING (xmax = 0) AS inserted`

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("UpsertBatch: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, item := range items {
		var isNew bool
		err := tx.QueryRowContext(ctx, query,
			item.VideoID, item.ChannelID, item.Title, item.URL,
			item.Description, item.Transcript, item.PublishedAt,
		).Scan(&isNew)
		if err != nil {
			return 0, fmt.Errorf("UpsertBatch: %s: %w", item.VideoID, err)
		}
		if isNew {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("UpsertBatch: Commit: %w", err)
	}
	return inserted, nil
}

func (repo *VideoRepo) Get(ctx context.Context, videoID string) (*entity.VideoItem, error) {
	const query = `
SELECT video_id, channel_id, title, url, description, COALESCE(transcript, ''), published_at, created_at
FROM video_items
WHERE video_id = $1
LIMIT 1`
	var item entity.VideoItem
	err := repo.db.QueryRowContext(ctx, query, videoID).
		Scan(&item.VideoID, &item.ChannelID, &item.Title, &item.URL,
			&item.Description, &item.Transcript, &item.PublishedAt, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &item, nil
}

func (repo *VideoRepo) ListWindow(ctx context.Context, from, to time.Time) ([]*entity.VideoItem, error) {
	const query = `
SELECT video_id, channel_id, title, url, description, COALESCE(transcript, ''), published_at, created_at
FROM video_items
WHERE published_at >= $1 AND published_at <= $2
ORDER BY published_at DESC`
	rows, err := repo.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListWindow: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanVideoRows(rows, "ListWindow")
}

// ListMissingTranscript returns window items whose transcript has not been
// fetched yet. The Process stage uses this to enrich only what it has to.
func (repo *VideoRepo) ListMissingTranscript(ctx context.Context, from, to time.Time) ([]*entity.VideoItem, error) {
	const query = `
SELECT video_id, channel_id, title, url, description, COALESCE(transcript, ''), published_at, created_at
FROM video_items
WHERE published_at >= $1 AND published_at <= $2
  AND (transcript IS NULL OR transcript = '')
ORDER BY published_at DESC`
	rows, err := repo.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListMissingTranscript: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanVideoRows(rows, "ListMissingTranscript")
}

// SetTranscript stores a fetched transcript. A row whose transcript is
// already non-empty is left untouched; affecting zero rows is not an error.
func (repo *VideoRepo) SetTranscript(ctx context.Context, videoID, transcript string) error {
	const query = `
UPDATE video_items
SET transcript = $2
WHERE video_id = $1
  AND (transcript IS NULL OR transcript = '')`
	if _, err := repo.db.ExecContext(ctx, query, videoID, transcript); err != nil {
		return fmt.Errorf("SetTranscript: %w", err)
	}
	return nil
}

func (repo *VideoRepo) ListRecent(ctx context.Context, limit int) ([]*entity.VideoItem, error) {
	const query = `
SELECT video_id, channel_id, title, url, description, COALESCE(transcript, ''), published_at, created_at
FROM video_items
ORDER BY published_at DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanVideoRows(rows, "ListRecent")
}

func (repo *VideoRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM video_items`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

func scanVideoRows(rows *sql.Rows, op string) ([]*entity.VideoItem, error) {
	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	items := make([]*entity.VideoItem, 0, 50)
	for rows.Next() {
		var item entity.VideoItem
		if err := rows.Scan(&item.VideoID, &item.ChannelID, &item.Title, &item.URL,
			&item.Description, &item.Transcript, &item.PublishedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: Scan: %w", op, err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
