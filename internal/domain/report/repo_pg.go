package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type IndexPG struct {
	db queryable
}

func NewIndexPG(pool *pgxpool.Pool) *IndexPG {
	return &IndexPG{db: pool}
}

const reportCols = `id, file_name, location, size_bytes, sha256, session_id, captured_at, created_at`

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.FileName, &r.Location, &r.Size, &r.SHA256, &r.SessionID, &r.CapturedAt, &r.CreatedAt)
	return &r, err
}

func (x *IndexPG) Create(ctx context.Context, r *Report) error {
	_, err := x.db.Exec(ctx, `
		INSERT INTO ehr_report (id, file_name, location, size_bytes, sha256, session_id, captured_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.FileName, r.Location, r.Size, r.SHA256, r.SessionID, r.CapturedAt, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (x *IndexPG) List(ctx context.Context, limit, offset int) ([]*Report, int, error) {
	var total int
	if err := x.db.QueryRow(ctx, "SELECT COUNT(*) FROM ehr_report").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM ehr_report ORDER BY captured_at DESC, created_at DESC LIMIT $1 OFFSET $2", reportCols)
	rows, err := x.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}
