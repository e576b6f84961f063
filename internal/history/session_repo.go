package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one capture session row. EndedAt stays zero while the
// session is still open.
type SessionRecord struct {
	ID           int64
	Source       string
	Target       string
	StartedAt    time.Time
	EndedAt      time.Time
	PointCount   int
	DroppedCount int
}

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Begin(ctx context.Context, source, target string, startedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(source, target, started_at, ended_at, point_count, dropped_count)
		VALUES(?, ?, ?, NULL, 0, 0)
	`, source, target, toUnixMillis(startedAt))
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session insert id: %w", err)
	}
	return id, nil
}

func (r *SessionRepo) Finish(ctx context.Context, id int64, endedAt time.Time, pointCount, droppedCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at = ?, point_count = ?, dropped_count = ?
		WHERE id = ?
	`, toUnixMillis(endedAt), pointCount, droppedCount, id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

func (r *SessionRepo) ListRecent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, target, started_at, ended_at, point_count, dropped_count
		FROM sessions
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]SessionRecord, 0)
	for rows.Next() {
		var (
			rec       SessionRecord
			startedMs int64
			endedMs   sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Target, &startedMs, &endedMs, &rec.PointCount, &rec.DroppedCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = fromUnixMillis(startedMs)
		if endedMs.Valid {
			rec.EndedAt = fromUnixMillis(endedMs.Int64)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
