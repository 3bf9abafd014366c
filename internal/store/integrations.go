package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// defaultSlugPriority is the fixed resolution order for requests that hit the
// root webhook endpoint without naming an integration. Not configurable.
var defaultSlugPriority = []string{"webhook", "chirpstack", "default"}

// CreateIntegration registers a new integration. The slug must be unique;
// uniqueness is enforced by the storage layer and surfaces as ErrDuplicateSlug.
func (s *Store) CreateIntegration(ctx context.Context, name, slug, script string) (*Integration, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if name == "" || slug == "" || strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: name, slug, and decoder script are required", ErrInvalidInput)
	}

	integration := &Integration{
		Name:          name,
		EndpointSlug:  slug,
		DecoderScript: script,
	}

	done := s.trackDB("insert", "integrations")
	err := s.db.WithContext(ctx).Create(integration).Error
	done(err)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSlug, slug)
		}
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	s.logger.Info("integration created", "name", name, "slug", slug)
	return integration, nil
}

// ListIntegrations returns all integrations, newest first. Decoder scripts
// are not serialized on the management surface; fetch them by slug.
func (s *Store) ListIntegrations(ctx context.Context) ([]Integration, error) {
	var integrations []Integration

	done := s.trackDB("select", "integrations")
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&integrations).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return integrations, nil
}

// DeleteIntegration removes an integration by id. Deleting an id that does
// not exist returns ErrNotFound and has no side effects.
func (s *Store) DeleteIntegration(ctx context.Context, id uint) error {
	done := s.trackDB("delete", "integrations")
	result := s.db.WithContext(ctx).Delete(&Integration{}, id)
	done(result.Error)
	if result.Error != nil {
		return fmt.Errorf("failed to delete integration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: integration %d", ErrNotFound, id)
	}

	s.logger.Info("integration deleted", "id", id)
	return nil
}

// FindDecoderScript returns the decoder script registered for slug.
func (s *Store) FindDecoderScript(ctx context.Context, slug string) (string, error) {
	var integration Integration

	done := s.trackDB("select", "integrations")
	err := s.db.WithContext(ctx).
		Where("endpoint_slug = ?", slug).
		Take(&integration).Error
	done(err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: integration %q", ErrNotFound, slug)
		}
		return "", fmt.Errorf("failed to look up integration: %w", err)
	}
	return integration.DecoderScript, nil
}

// ResolveDefaultSlug picks the fallback integration for the root webhook
// endpoint: the first slug, in priority order webhook > chirpstack > default,
// that exists in the registry. Returns ErrNotFound when none exist.
func (s *Store) ResolveDefaultSlug(ctx context.Context) (string, error) {
	var slugs []string

	done := s.trackDB("select", "integrations")
	err := s.db.WithContext(ctx).
		Model(&Integration{}).
		Where("endpoint_slug IN ?", defaultSlugPriority).
		Pluck("endpoint_slug", &slugs).Error
	done(err)
	if err != nil {
		return "", fmt.Errorf("failed to resolve default integration: %w", err)
	}

	registered := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		registered[slug] = true
	}
	for _, candidate := range defaultSlugPriority {
		if registered[candidate] {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no default integration", ErrNotFound)
}
