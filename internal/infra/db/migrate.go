package db

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
)

// DefaultEmbeddingDim matches the MiniLM-class models served by the default
// text-embeddings endpoint. Override with EMBEDDING_DIM when pointing the
// indexer at a different model.
const DefaultEmbeddingDim = 384

// MigrateUp creates the record store schema. Statements are idempotent so
// every process can run this at startup; the first one wins, the rest
// no-op.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS video_items (
    video_id     TEXT PRIMARY KEY,
    channel_id   TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    transcript   TEXT,
    published_at TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS web_items (
    guid         TEXT PRIMARY KEY,
    source_name  TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL,
    published_at TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS summaries (
    article_kind TEXT NOT NULL,
    article_id   TEXT NOT NULL,
    url          TEXT NOT NULL,
    title        TEXT NOT NULL,
    summary      TEXT NOT NULL,
    duplicate_of TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (article_kind, article_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    run_id       BIGSERIAL PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ,
    window_hours INT NOT NULL,
    top_n        INT NOT NULL,
    stage        TEXT NOT NULL,
    state        TEXT NOT NULL,
    counters     JSONB NOT NULL DEFAULT '{}'::jsonb,
    error        TEXT
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// 時間窓スキャン用(WHERE published_at >= ... で使用)
		`CREATE INDEX IF NOT EXISTS idx_video_items_published_at ON video_items(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_web_items_published_at ON web_items(published_at DESC)`,
		// カテゴリ別フィルタリング用
		`CREATE INDEX IF NOT EXISTS idx_web_items_category ON web_items(category)`,
		// 要約一覧のページネーション用
		`CREATE INDEX IF NOT EXISTS idx_summaries_created_at ON summaries(created_at DESC)`,
		// 直近実行の取得用
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// カテゴリ制約の追加
	// PostgreSQL特有の構文のため、エラーを無視(既に存在する場合)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_web_items_category'
    ) THEN
        ALTER TABLE web_items ADD CONSTRAINT chk_web_items_category
        CHECK (category IN ('official', 'research', 'news', 'safety'));
    END IF;
END $$;
`)

	// pgvector拡張を有効化
	// エラーを無視(既に存在する場合やスーパーユーザー権限がない場合)
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	// Note: vector(N) is fixed at table creation to the dimension of the
	// configured embedding model. Changing models means dropping and
	// rebuilding the index (MigrateDown, then a reindex run).
	if _, err := db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS vector_records (
    record_id    TEXT PRIMARY KEY,
    embedding    vector(%d) NOT NULL,
    article_kind TEXT NOT NULL,
    url          TEXT NOT NULL,
    title        TEXT NOT NULL,
    category     TEXT,
    source_name  TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`, embeddingDim())); err != nil {
		return err
	}

	// 順位の同点解消で published_at DESC を使用
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_vector_records_published_at ON vector_records(published_at DESC)`); err != nil {
		return err
	}

	// IVFFlat ベクトル類似検索インデックス
	// エラーを無視(pgvector拡張がない場合にエラーとなるため)
	// lists=100 は <1M レコードに適した値
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_vector_records_embedding
    ON vector_records USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	return nil
}

// MigrateDown removes the vector index tables. The record tables survive:
// the index can be rebuilt from them, the reverse is not true.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_vector_records_embedding`,
		`DROP INDEX IF EXISTS idx_vector_records_published_at`,
		`DROP TABLE IF EXISTS vector_records CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// embeddingDim reads EMBEDDING_DIM, falling back to the default when unset
// or unparseable. The indexer validates the same value against the model
// reply at startup, so a mismatch surfaces before any write.
func embeddingDim() int {
	if raw := os.Getenv("EMBEDDING_DIM"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return DefaultEmbeddingDim
}
