package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"smartflow/internal/strategy"
)

// ResultStore 把分析结果写入 sqlite 的 analysis_records 表，实现 strategy.Sink。
type ResultStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（必要时创建）数据库并执行迁移。path 为 ":memory:" 时使用内存库。
func Open(ctx context.Context, path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接：内存库按连接隔离，且写入本就串行。
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
	}
	s := &ResultStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Publish 插入一条记录；同 ID 重复写入被忽略。
func (s *ResultStore) Publish(ctx context.Context, rec strategy.Record) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	if rec.ID == "" {
		return fmt.Errorf("record id 不能为空")
	}
	payload := string(rec.Payload)
	if payload == "" {
		payload = "{}"
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := db.ExecContext(ctx, `
        INSERT OR IGNORE INTO analysis_records
            (id, strategy, stage, symbol, summary, payload, created_at, error_kind, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Strategy, rec.Stage, rec.Symbol, rec.Summary, payload, created.UnixMilli(),
		nullIfEmpty(string(rec.ErrorKind)), nullIfEmpty(rec.Error))
	if err != nil {
		return fmt.Errorf("insert analysis record: %w", err)
	}
	return nil
}

// RecordQuery 查询条件，空字段不过滤。
type RecordQuery struct {
	Strategy string
	Symbol   string
	Limit    int
}

// Recent 按时间倒序返回最近的记录，仅供运维接口查看。
func (s *ResultStore) Recent(ctx context.Context, q RecordQuery) ([]strategy.Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("result store 未初始化")
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}
	var where []string
	var args []any
	if v := strings.TrimSpace(q.Strategy); v != "" {
		where = append(where, "strategy = ?")
		args = append(args, strings.ToLower(v))
	}
	if v := strings.TrimSpace(q.Symbol); v != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(v))
	}
	query := `SELECT id, strategy, stage, symbol, summary, payload, created_at, error_kind, error FROM analysis_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []strategy.Record
	for rows.Next() {
		var (
			rec       strategy.Record
			payload   string
			created   int64
			errorKind sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Strategy, &rec.Stage, &rec.Symbol, &rec.Summary, &payload, &created, &errorKind, &errMsg); err != nil {
			return nil, err
		}
		rec.Payload = json.RawMessage(payload)
		rec.CreatedAt = time.UnixMilli(created).UTC()
		rec.ErrorKind = strategy.ErrorKind(errorKind.String)
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
