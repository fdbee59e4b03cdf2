package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
)

type WebRepo struct {
	db *sql.DB
}

func NewWebRepo(db *sql.DB) repository.WebRepository {
	return &WebRepo{db: db}
}

// UpsertBatch writes all items in one transaction, preserving created_at and
// updating mutable fields only when the incoming value is non-empty and
// differs. Returns the number of rows that did not exist before.
func (repo *WebRepo) UpsertBatch(ctx context.Context, items []*entity.WebItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	const query = `
INSERT INTO web_items
       (guid, source_name, title, url, description, content, category, published_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (guid) DO UPDATE SET
       source_name  = EXCLUDED.source_name,
       title        = CASE WHEN EXCLUDED.title <> '' AND EXCLUDED.title <> web_items.title
                           THEN EXCLUDED.title ELSE web_items.title END,
       url          = CASE WHEN EXCLUDED.url <> '' AND EXCLUDED.url <> web_items.url
                           THEN EXCLUDED.url ELSE web_items.url END,
       description  = CASE WHEN EXCLUDED.description <> '' AND EXCLUDED.description <> web_items.description
                           THEN EXCLUDED.description ELSE web_items.description END,
       content      = CASE WHEN EXCLUDED.content <> '' AND EXCLUDED.content <> web_items.content
                           THEN EXCLUDED.content ELSE web_items.content END,
       category     = EXCLUDED.category,
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
			item.GUID, item.SourceName, item.Title, item.URL,
			item.Description, item.Content, string(item.Category), item.PublishedAt,
		).Scan(&isNew)
		if err != nil {
			return 0, fmt.Errorf("UpsertBatch: %s: %w", item.GUID, err)
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

func (repo *WebRepo) Get(ctx context.Context, guid string) (*entity.WebItem, error) {
	const query = `
SELECT guid, source_name, title, url, description, content, category, published_at, created_at
FROM web_items
WHERE guid = $1
LIMIT 1`
	var item entity.WebItem
	var category string
	err := repo.db.QueryRowContext(ctx, query, guid).
		Scan(&item.GUID, &item.SourceName, &item.Title, &item.URL,
			&item.Description, &item.Content, &category, &item.PublishedAt, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	item.Category = entity.Category(category)
	return &item, nil
}

func (repo *WebRepo) ListWindow(ctx context.Context, from, to time.Time) ([]*entity.WebItem, error) {
	const query = `
SELECT guid, source_name, title, url, description, content, category, published_at, created_at
FROM web_items
WHERE published_at >= $1 AND published_at <= $2
ORDER BY published_at DESC`
	rows, err := repo.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListWindow: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanWebRows(rows, "ListWindow")
}

func (repo *WebRepo) ListRecent(ctx context.Context, limit int) ([]*entity.WebItem, error) {
	const query = `
SELECT guid, source_name, title, url, description, content, category, published_at, created_at
FROM web_items
ORDER BY published_at DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanWebRows(rows, "ListRecent")
}

func (repo *WebRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM web_items`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

func scanWebRows(rows *sql.Rows, op string) ([]*entity.WebItem, error) {
	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	items := make([]*entity.WebItem, 0, 100)
	for rows.Next() {
		var item entity.WebItem
		var category string
		if err := rows.Scan(&item.GUID, &item.SourceName, &item.Title, &item.URL,
			&item.Description, &item.Content, &category, &item.PublishedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: Scan: %w", op, err)
		}
		item.Category = entity.Category(category)
		items = append(items, &item)
	}
	return items, rows.Err()
}
