package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"
)

// LoadSettings returns all setup-wizard settings as a key/value map.
func (s *Store) LoadSettings(ctx context.Context) (map[string]string, error) {
	var settings []AppSetting

	done := s.trackDB("select", "app_settings")
	err := s.db.WithContext(ctx).Find(&settings).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}
	return values, nil
}

// PutSetting upserts one settings row.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	done := s.trackDB("upsert", "app_settings")
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&AppSetting{Key: key, Value: value}).Error
	done(err)
	if err != nil {
		return fmt.Errorf("failed to store setting %q: %w", key, err)
	}
	return nil
}
