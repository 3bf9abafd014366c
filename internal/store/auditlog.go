package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// AppendSystemLog writes one audit entry. Entries are append-only; nothing in
// the application updates or deletes system_logs rows. The details map is
// serialized as a JSON column so operators can replay the original payload.
func (s *Store) AppendSystemLog(ctx context.Context, source, level, message string, details map[string]any) error {
	var payload datatypes.JSON
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			// Details must never block the audit trail; record what we can.
			raw = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
		}
		payload = datatypes.JSON(raw)
	}

	entry := &SystemLog{
		Source:  source,
		Level:   level,
		Message: message,
		Details: payload,
	}

	done := s.trackDB("insert", "system_logs")
	err := s.db.WithContext(ctx).Create(entry).Error
	done(err)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
		return fmt.Errorf("failed to append system log: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AuditWrites.WithLabelValues(level).Inc()
	}
	return nil
}

// RecentSystemLogs returns the latest audit entries, newest first, capped at
// limit (defaults to 50 when limit is not positive).
func (s *Store) RecentSystemLogs(ctx context.Context, limit int) ([]SystemLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []SystemLog
	done := s.trackDB("select", "system_logs")
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system logs: %w", err)
	}
	return entries, nil
}
