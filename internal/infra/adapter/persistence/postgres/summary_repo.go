package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
)

// windowQuery joins summaries to both item tables so window listings carry
// the item's publication time, source and category. Video rows report the
// channel id as source_name and an empty category, matching what the
// adapters emit.
const windowQuery = `
SELECT article_kind, article_id, url, title, summary, duplicate_of, created_at, published_at, source_name, category
FROM (
    SELECT s.article_kind, s.article_id, s.url, s.title, s.summary,
           COALESCE(s.duplicate_of, '') AS duplicate_of, s.created_at,
           v.published_at, v.channel_id AS source_name, '' AS category
    FROM summaries s
    JOIN video_items v ON s.article_kind = 'video' AND s.article_id = v.video_id
    WHERE v.published_at >= $1 AND v.published_at <= $2
    UNION ALL
    SELECT s.article_kind, s.article_id, s.url, s.title, s.summary,
           COALESCE(s.duplicate_of, '') AS duplicate_of, s.created_at,
           w.published_at, w.source_name, w.category
    FROM summaries s
    JOIN web_items w ON s.article_kind = 'web' AND s.article_id = w.guid
    WHERE w.published_at >= $1 AND w.published_at <= $2
) AS combined
ORDER BY published_at DESC, article_id ASC`

type SummaryRepo struct {
	db *sql.DB
}

func NewSummaryRepo(db *sql.DB) repository.SummaryRepository {
	return &SummaryRepo{db: db}
}

// Create persists a summary once. A conflicting natural key is a no-op so a
// summary is never re-derived or overwritten after it has been stored.
func (repo *SummaryRepo) Create(ctx context.Context, s *entity.Summary) error {
	if s == nil {
		return fmt.Errorf("Create: summary is nil")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	const query = `
INSERT INTO summaries
       (article_kind, article_id, url, title, summary, duplicate_of, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
ON CONFLICT (article_kind, article_id) DO NOTHING`
	_, err := repo.db.ExecContext(ctx, query,
		string(s.ArticleKind), s.ArticleID, s.URL, s.Title, s.Summary, s.DuplicateOf,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SummaryRepo) Get(ctx context.Context, kind entity.ArticleKind, articleID string) (*entity.Summary, error) {
	const query = `
SELECT article_kind, article_id, url, title, summary, COALESCE(duplicate_of, ''), created_at
FROM summaries
WHERE article_kind = $1 AND article_id = $2
LIMIT 1`
	var s entity.Summary
	var kindStr string
	err := repo.db.QueryRowContext(ctx, query, string(kind), articleID).
		Scan(&kindStr, &s.ArticleID, &s.URL, &s.Title, &s.Summary, &s.DuplicateOf, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	s.ArticleKind = entity.ArticleKind(kindStr)
	return &s, nil
}

// ExistsBatch はバッチで要約の存在チェックを行い、N+1問題を解消する
func (repo *SummaryRepo) ExistsBatch(ctx context.Context, kind entity.ArticleKind, articleIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(articleIDs))
	if len(articleIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(articleIDs))
	args := make([]any, 0, len(articleIDs)+1)
	args = append(args, string(kind))
	for i, id := range articleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT article_id FROM summaries WHERE article_kind = $1 AND article_id IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ExistsBatch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ExistsBatch: Scan: %w", err)
		}
		result[id] = true
	}
	return result, rows.Err()
}

func (repo *SummaryRepo) ListWindow(ctx context.Context, from, to time.Time) ([]repository.SummaryWithMeta, error) {
	rows, err := repo.db.QueryContext(ctx, windowQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListWindow: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSummaryMetaRows(rows, "ListWindow")
}

func (repo *SummaryRepo) ListWindowPaginated(ctx context.Context, from, to time.Time, offset, limit int) ([]repository.SummaryWithMeta, int64, error) {
	query := windowQuery + `
LIMIT $3 OFFSET $4`
	rows, err := repo.db.QueryContext(ctx, query, from, to, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListWindowPaginated: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items, err := scanSummaryMetaRows(rows, "ListWindowPaginated")
	if err != nil {
		return nil, 0, err
	}

	const countQuery = `
SELECT (SELECT COUNT(*) FROM summaries s
        JOIN video_items v ON s.article_kind = 'video' AND s.article_id = v.video_id
        WHERE v.published_at >= $1 AND v.published_at <= $2)
     + (SELECT COUNT(*) FROM summaries s
        JOIN web_items w ON s.article_kind = 'web' AND s.article_id = w.guid
        WHERE w.published_at >= $1 AND w.published_at <= $2)`
	var total int64
	if err := repo.db.QueryRowContext(ctx, countQuery, from, to).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListWindowPaginated: Count: %w", err)
	}
	return items, total, nil
}

// ListWithoutVector returns non-duplicate summaries with no paired vector
// record, oldest first, joined to their items for the metadata a vector
// record needs. Feeding these through the indexer repairs the summary/vector
// dual write after a crash between the two stores.
func (repo *SummaryRepo) ListWithoutVector(ctx context.Context) ([]repository.SummaryWithMeta, error) {
	const query = `
SELECT article_kind, article_id, url, title, summary, duplicate_of, created_at, published_at, source_name, category
FROM (
    SELECT s.article_kind, s.article_id, s.url, s.title, s.summary,
           COALESCE(s.duplicate_of, '') AS duplicate_of, s.created_at,
           v.published_at, v.channel_id AS source_name, '' AS category
    FROM summaries s
    JOIN video_items v ON s.article_kind = 'video' AND s.article_id = v.video_id
    LEFT JOIN vector_records vr ON vr.record_id = s.article_kind || ':' || s.article_id
    WHERE vr.record_id IS NULL AND s.duplicate_of IS NULL
    UNION ALL
    SELECT s.article_kind, s.article_id, s.url, s.title, s.summary,
           COALESCE(s.duplicate_of, '') AS duplicate_of, s.created_at,
           w.published_at, w.source_name, w.category
    FROM summaries s
    JOIN web_items w ON s.article_kind = 'web' AND s.article_id = w.guid
    LEFT JOIN vector_records vr ON vr.record_id = s.article_kind || ':' || s.article_id
    WHERE vr.record_id IS NULL AND s.duplicate_of IS NULL
) AS pending
ORDER BY created_at ASC, article_id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListWithoutVector: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSummaryMetaRows(rows, "ListWithoutVector")
}

func (repo *SummaryRepo) MarkDuplicate(ctx context.Context, kind entity.ArticleKind, articleID, duplicateOf string) error {
	const query = `
UPDATE summaries
SET duplicate_of = $3
WHERE article_kind = $1 AND article_id = $2`
	res, err := repo.db.ExecContext(ctx, query, string(kind), articleID, duplicateOf)
	if err != nil {
		return fmt.Errorf("MarkDuplicate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("MarkDuplicate: no rows affected")
	}
	return nil
}

func (repo *SummaryRepo) Delete(ctx context.Context, kind entity.ArticleKind, articleID string) error {
	const query = `DELETE FROM summaries WHERE article_kind = $1 AND article_id = $2`
	res, err := repo.db.ExecContext(ctx, query, string(kind), articleID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}

func (repo *SummaryRepo) Count(ctx context.Context) (int64, int64, error) {
	// COUNT(duplicate_of) は非NULL行のみ数えるため重複抑制済みの件数になる
	const query = `SELECT COUNT(*), COUNT(duplicate_of) FROM summaries`
	var total, duplicates int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&total, &duplicates); err != nil {
		return 0, 0, fmt.Errorf("Count: %w", err)
	}
	return total, duplicates, nil
}

func scanSummaryMetaRows(rows *sql.Rows, op string) ([]repository.SummaryWithMeta, error) {
	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	result := make([]repository.SummaryWithMeta, 0, 100)
	for rows.Next() {
		var s entity.Summary
		var kindStr, category string
		var meta repository.SummaryWithMeta
		if err := rows.Scan(&kindStr, &s.ArticleID, &s.URL, &s.Title, &s.Summary,
			&s.DuplicateOf, &s.CreatedAt, &meta.PublishedAt, &meta.SourceName, &category); err != nil {
			return nil, fmt.Errorf("%s: Scan: %w", op, err)
		}
		s.ArticleKind = entity.ArticleKind(kindStr)
		meta.Summary = &s
		meta.Category = entity.Category(category)
		result = append(result, meta)
	}
	return result, rows.Err()
}
