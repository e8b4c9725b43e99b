package database

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_records (
		id         TEXT PRIMARY KEY,
		strategy   TEXT NOT NULL,
		stage      TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		summary    TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_records_symbol ON analysis_records(symbol, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_records_strategy ON analysis_records(strategy, stage, created_at)`,
}

// 后加的列，ALTER 失败（已存在）时忽略。
var addedColumns = []string{
	"ALTER TABLE analysis_records ADD COLUMN error_kind TEXT",
	"ALTER TABLE analysis_records ADD COLUMN error TEXT",
}

// migrate 建表与补列，均可重复执行。
func (s *ResultStore) migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate analysis_records: %w", err)
		}
	}
	for _, q := range addedColumns {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				continue
			}
			return fmt.Errorf("migrate analysis_records: %w", err)
		}
	}
	return nil
}
