// 包 store：设施数据的 PostgreSQL 读写（PLACE_SOURCE=postgres）
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"paman-dede/internal/logger"
	"paman-dede/internal/record"
)

// Store：持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// ListPlaces：按导入顺序返回全部设施；坐标为空的行 HasCoords=false
func (s *Store) ListPlaces(ctx context.Context) ([]record.PlaceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kode, keterangan, deskripsi, image_url, latitude, longitude FROM _places ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()
	var out []record.PlaceRecord
	for rows.Next() {
		var p record.PlaceRecord
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&p.Code, &p.Label, &p.Description, &p.ImageURL, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		p.Lat, p.Lng, p.HasCoords = placeCoords(lat, lng)
		out = append(out, p)
	}
	return out, rows.Err()
}

func placeCoords(lat, lng sql.NullFloat64) (float64, float64, bool) {
	if !lat.Valid || !lng.Valid || !record.ValidLatLng(lat.Float64, lng.Float64) {
		return 0, 0, false
	}
	return lat.Float64, lng.Float64, true
}

func nullCoord(p record.PlaceRecord, v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: p.HasCoords}
}

// ReplacePlaces：在一个事务内整体替换设施表并记录导入
func (s *Store) ReplacePlaces(ctx context.Context, source string, ps []record.PlaceRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM _places`); err != nil {
		return 0, fmt.Errorf("clear places: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO _places(kode, keterangan, deskripsi, image_url, latitude, longitude) VALUES($1,$2,$3,$4,$5,$6)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, p := range ps {
		if _, err := stmt.ExecContext(ctx, p.Code, p.Label, p.Description, p.ImageURL, nullCoord(p, p.Lat), nullCoord(p, p.Lng)); err != nil {
			return 0, fmt.Errorf("insert place %q: %w", p.Label, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _place_imports(source, row_count) VALUES($1,$2)`, source, len(ps)); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Info("places_replaced", "source", source, "rows", len(ps))
	return len(ps), nil
}

// LastImport：最近一次导入；从未导入时返回零值
func (s *Store) LastImport(ctx context.Context) (time.Time, int, error) {
	var at time.Time
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT imported_at, row_count FROM _place_imports ORDER BY id DESC LIMIT 1`).Scan(&at, &n)
	if err == sql.ErrNoRows {
		return time.Time{}, 0, nil
	}
	return at, n, err
}
