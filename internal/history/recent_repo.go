package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecentFile is one entry of the recently opened recordings list.
type RecentFile struct {
	Path         string
	LastOpenedAt time.Time
	PointCount   int
	DurationSec  float64
}

type RecentFileRepo struct {
	db *sql.DB
}

func NewRecentFileRepo(db *sql.DB) *RecentFileRepo {
	return &RecentFileRepo{db: db}
}

// Touch records an open of the file, inserting or moving it to the top of
// the list.
func (r *RecentFileRepo) Touch(ctx context.Context, entry RecentFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recent_files(path, last_opened_at, point_count, duration_sec)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_opened_at = excluded.last_opened_at,
			point_count = excluded.point_count,
			duration_sec = excluded.duration_sec
	`, entry.Path, toUnixMillis(entry.LastOpenedAt), entry.PointCount, entry.DurationSec)
	if err != nil {
		return fmt.Errorf("touch recent file: %w", err)
	}
	return nil
}

func (r *RecentFileRepo) List(ctx context.Context, limit int) ([]RecentFile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, last_opened_at, point_count, duration_sec
		FROM recent_files
		ORDER BY last_opened_at DESC, path ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	defer rows.Close()

	out := make([]RecentFile, 0)
	for rows.Next() {
		var (
			entry    RecentFile
			openedMs int64
		)
		if err := rows.Scan(&entry.Path, &openedMs, &entry.PointCount, &entry.DurationSec); err != nil {
			return nil, fmt.Errorf("scan recent file: %w", err)
		}
		entry.LastOpenedAt = fromUnixMillis(openedMs)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent files: %w", err)
	}
	return out, nil
}

func (r *RecentFileRepo) Remove(ctx context.Context, path string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recent_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove recent file: %w", err)
	}
	return nil
}

// Prune drops everything beyond the newest keep entries.
func (r *RecentFileRepo) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM recent_files
		WHERE path NOT IN (
			SELECT path FROM recent_files
			ORDER BY last_opened_at DESC, path ASC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune recent files: %w", err)
	}
	return nil
}
