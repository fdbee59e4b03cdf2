package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// DefaultSearchTimeout is the default timeout for similarity search queries.
const DefaultSearchTimeout = 5 * time.Second

// maxQueryK caps a single neighbor query.
const maxQueryK = 100

// VectorRepo implements the VectorRepository interface for PostgreSQL with
// the pgvector extension.
type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) repository.VectorRepository {
	return &VectorRepo{db: db}
}

// Upsert creates or fully replaces the vector record for rec.RecordID.
func (repo *VectorRepo) Upsert(ctx context.Context, rec *entity.VectorRecord) error {
	if rec == nil {
		return fmt.Errorf("Upsert: record is nil")
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	vector := pgvector.NewVector(rec.Embedding)

	const query = `
INSERT INTO vector_records
       (record_id, embedding, article_kind, url, title, category, source_name, published_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (record_id) DO UPDATE SET
       embedding    = EXCLUDED.embedding,
       article_kind = EXCLUDED.article_kind,
       url          = EXCLUDED.url,
       title        = EXCLUDED.title,
       category     = EXCLUDED.category,
       source_name  = EXCLUDED.source_name,
       published_at = EXCLUDED.published_at`
	_, err := repo.db.ExecContext(ctx, query,
		rec.RecordID, vector, string(rec.ArticleKind), rec.URL,
		rec.Title, string(rec.Category), rec.SourceName, rec.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (repo *VectorRepo) Delete(ctx context.Context, recordID string) (bool, error) {
	const query = `DELETE FROM vector_records WHERE record_id = $1`
	res, err := repo.db.ExecContext(ctx, query, recordID)
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Delete: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (repo *VectorRepo) Exists(ctx context.Context, recordID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM vector_records WHERE record_id = $1)`
	var existsFlag bool
	if err := repo.db.QueryRowContext(ctx, query, recordID).Scan(&existsFlag); err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return existsFlag, nil
}

// Query runs a cosine nearest-neighbor search. The summary prose is joined
// in from the record store so a hit is presentable on its own. Ordering is
// ascending distance (descending similarity) with published_at and record_id
// breaking ties so results are stable across calls.
func (repo *VectorRepo) Query(ctx context.Context, q repository.VectorQuery) ([]entity.SearchHit, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	k := q.K
	if k <= 0 {
		k = 10
	}
	if k > maxQueryK {
		k = maxQueryK
	}

	vector := pgvector.NewVector(q.Embedding)
	where, args, next := buildVectorFilter(q.Filter, []any{vector}, 2)
	args = append(args, k)

	query := fmt.Sprintf(`
SELECT vr.record_id, vr.article_kind, vr.url, vr.title, COALESCE(s.summary, ''),
       COALESCE(vr.category, ''), vr.source_name, vr.published_at,
       1 - (vr.embedding <=> $1) AS similarity
FROM vector_records vr
LEFT JOIN summaries s ON vr.record_id = s.article_kind || ':' || s.article_id
%s
ORDER BY vr.embedding <=> $1, vr.published_at DESC, vr.record_id ASC
LIMIT $%d`, where, next)

	rows, err := repo.db.QueryContext(searchCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]entity.SearchHit, 0, k)
	for rows.Next() {
		var hit entity.SearchHit
		var kind, category string
		if err := rows.Scan(&hit.RecordID, &kind, &hit.URL, &hit.Title, &hit.Summary,
			&category, &hit.SourceName, &hit.PublishedAt, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("Query: Scan: %w", err)
		}
		hit.ArticleKind = entity.ArticleKind(kind)
		hit.Category = entity.Category(category)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (repo *VectorRepo) Count(ctx context.Context, filter entity.SearchFilter) (int64, error) {
	where, args, _ := buildVectorFilter(filter, nil, 1)
	query := "SELECT COUNT(*) FROM vector_records vr " + where

	var count int64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

// buildVectorFilter renders the optional kind/category conditions, numbering
// placeholders from next. Columns are qualified with the vr alias because
// the neighbor query joins summaries. Returns the WHERE clause (possibly
// empty), the extended args and the next free placeholder index.
func buildVectorFilter(filter entity.SearchFilter, args []any, next int) (string, []any, int) {
	conds := make([]string, 0, 2)
	if filter.Kind != "" {
		conds = append(conds, fmt.Sprintf("vr.article_kind = $%d", next))
		args = append(args, string(filter.Kind))
		next++
	}
	if filter.Category != "" {
		conds = append(conds, fmt.Sprintf("vr.category = $%d", next))
		args = append(args, string(filter.Category))
		next++
	}
	if len(conds) == 0 {
		return "", args, next
	}
	return "WHERE " + strings.Join(conds, " AND "), args, next
}
