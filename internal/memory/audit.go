package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunAudit is one row of the execution audit trail. Every request the
// agent handles leaves exactly one audit row, successful or not.
type RunAudit struct {
	ID         string
	RawQuery   string
	Status     string
	ToolCalls  int
	DurationMs int64
	Detail     string
	CreatedAt  time.Time
}

// RecordRun appends an audit row. Audit rows are persistence-only and
// never consulted by the control loop, so failures are reported but
// must not abort a run.
func (s *Store) RecordRun(a RunAudit) error {
	if s.db == nil {
		return nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO run_audits (id, raw_query, status, tool_calls, duration_ms, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RawQuery, a.Status, a.ToolCalls, a.DurationMs, a.Detail, a.CreatedAt)
	if err != nil {
		s.logger.Warn("Failed to record run audit",
			zap.String("status", a.Status), zap.Error(err))
		return fmt.Errorf("failed to record audit: %w", err)
	}
	return nil
}

// RecentRuns returns the newest audit rows, up to limit.
func (s *Store) RecentRuns(limit int) ([]RunAudit, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, raw_query, status, tool_calls, duration_ms, detail, created_at
		FROM run_audits ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	var out []RunAudit
	for rows.Next() {
		var a RunAudit
		if err := rows.Scan(&a.ID, &a.RawQuery, &a.Status, &a.ToolCalls,
			&a.DurationMs, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
