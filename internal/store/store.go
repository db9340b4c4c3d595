// 包 store: 提供与 PostgreSQL 的数据访问层，承载时区边界的导入与加载
package store

import (
	"context"
	"database/sql"
	"fmt"

	"tzupdated/internal/boundary"
	"tzupdated/internal/logger"

	_ "github.com/lib/pq"
	"github.com/paulmach/orb/geojson"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接；导入工具单事务写入，连接池保持很小
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// BoundarySource 返回按 source_tag 过滤的数据集加载器；tag 为空时加载全部行
func (s *Store) BoundarySource(tag string) boundary.Source {
	return &boundarySource{db: s.db, tag: tag}
}

type boundarySource struct {
	db  *sql.DB
	tag string
}

// 文档注释：从 _tz_boundaries 读取边界
// 背景：多实例部署时由数据库统一分发同一份边界数据；按 id 顺序读取，保证多边形编号与裁决结果在各实例一致。
// 约束：任一行几何无法解析即整体失败，不构造部分索引。
func (b *boundarySource) Features(ctx context.Context) ([]boundary.Feature, error) {
	q := `SELECT tzid, geometry FROM _tz_boundaries ORDER BY id`
	args := []any{}
	if b.tag != "" {
		q = `SELECT tzid, geometry FROM _tz_boundaries WHERE source_tag=$1 ORDER BY id`
		args = append(args, b.tag)
	}
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &boundary.DatasetError{Source: "postgres", Err: fmt.Errorf("%w: %v", boundary.ErrUnreadable, err)}
	}
	defer rows.Close()
	var out []boundary.Feature
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, &boundary.DatasetError{Source: "postgres", Err: fmt.Errorf("%w: %v", boundary.ErrUnreadable, err)}
		}
		mp, err := boundary.GeometryFromGeoJSON([]byte(raw))
		if err != nil {
			return nil, &boundary.DatasetError{Source: "postgres", Region: name, Err: err}
		}
		out = append(out, boundary.Feature{Name: name, Geometry: mp})
	}
	if err := rows.Err(); err != nil {
		return nil, &boundary.DatasetError{Source: "postgres", Err: fmt.Errorf("%w: %v", boundary.ErrUnreadable, err)}
	}
	logger.L().Debug("db_boundaries_read", "tag", b.tag, "rows", len(out))
	return out, nil
}

// 文档注释：导入边界
// 背景：以 source_tag 为单位整体替换，重复导入同一版本数据是幂等的。
// 约束：单事务执行；失败时回滚，旧数据保持不变。
func (s *Store) ImportFeatures(ctx context.Context, features []boundary.Feature, tag string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM _tz_boundaries WHERE source_tag=$1`, tag); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _tz_boundaries(tzid, geometry, source_tag) VALUES($1,$2,$3)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	n := 0
	for _, f := range features {
		raw, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
		if err != nil {
			return n, fmt.Errorf("encode %s: %w", f.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, f.Name, string(raw), tag); err != nil {
			return n, fmt.Errorf("insert %s: %w", f.Name, err)
		}
		n++
		if n%50 == 0 {
			logger.L().Debug("db_boundaries_import_progress", "rows", n)
		}
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	logger.L().Info("db_boundaries_import_ok", "tag", tag, "rows", n)
	return n, nil
}
