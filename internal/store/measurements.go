package store

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DataPoint is one located record on the map, drawn from either the live
// measurements or the manually saved survey points.
type DataPoint struct {
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"` // "live" or "saved"
	RSSI      float64   `json:"rssi"`
	SNR       float64   `json:"snr"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ID        uint      `json:"id"`
}

// SignalSample is the slim projection used by the drive-test polling loop.
type SignalSample struct {
	RSSI float64
	SNR  float64
}

// InsertMeasurement persists one normalized measurement.
func (s *Store) InsertMeasurement(ctx context.Context, m *Measurement) error {
	done := s.trackDB("insert", "measurements")
	err := s.db.WithContext(ctx).Create(m).Error
	done(err)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// ListLocatedPoints returns every record that has coordinates, live
// measurements and saved survey points merged, newest first.
func (s *Store) ListLocatedPoints(ctx context.Context) ([]DataPoint, error) {
	var measurements []Measurement
	done := s.trackDB("select", "measurements")
	err := s.db.WithContext(ctx).
		Where("latitude IS NOT NULL").
		Find(&measurements).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch measurements: %w", err)
	}

	var saved []SavedPoint
	done = s.trackDB("select", "saved_points")
	err = s.db.WithContext(ctx).Find(&saved).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saved points: %w", err)
	}

	points := make([]DataPoint, 0, len(measurements)+len(saved))
	for _, m := range measurements {
		if m.Latitude == nil || m.Longitude == nil {
			continue
		}
		points = append(points, DataPoint{
			ID:        m.ID,
			Type:      "live",
			RSSI:      m.RSSI,
			SNR:       m.SNR,
			Latitude:  *m.Latitude,
			Longitude: *m.Longitude,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, p := range saved {
		points = append(points, DataPoint{
			ID:        p.ID,
			Type:      "saved",
			RSSI:      p.AvgRSSI,
			SNR:       p.AvgSNR,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			CreatedAt: p.CreatedAt,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].CreatedAt.After(points[j].CreatedAt)
	})
	return points, nil
}

// SignalSince returns the rssi/snr samples recorded after the given instant,
// oldest first. Used by the drive-test polling session.
func (s *Store) SignalSince(ctx context.Context, since time.Time) ([]SignalSample, error) {
	var measurements []Measurement
	done := s.trackDB("select", "measurements")
	err := s.db.WithContext(ctx).
		Where("created_at > ?", since).
		Order("created_at ASC").
		Find(&measurements).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent signal samples: %w", err)
	}

	samples := make([]SignalSample, 0, len(measurements))
	for _, m := range measurements {
		samples = append(samples, SignalSample{RSSI: m.RSSI, SNR: m.SNR})
	}
	return samples, nil
}

// SaveSurveyPoint stores one averaged drive-test point.
func (s *Store) SaveSurveyPoint(ctx context.Context, p *SavedPoint) error {
	if p.Note == "" {
		p.Note = "Manual"
	}
	done := s.trackDB("insert", "saved_points")
	err := s.db.WithContext(ctx).Create(p).Error
	done(err)
	if err != nil {
		return fmt.Errorf("failed to save survey point: %w", err)
	}
	return nil
}

// SavePlannedGateways stores a planner scenario as a batch of gateway rows.
func (s *Store) SavePlannedGateways(ctx context.Context, gateways []PlannedGateway) error {
	if len(gateways) == 0 {
		return nil
	}
	done := s.trackDB("insert", "planned_gateways")
	err := s.db.WithContext(ctx).Create(&gateways).Error
	done(err)
	if err != nil {
		return fmt.Errorf("failed to save planned gateways: %w", err)
	}
	return nil
}

// ExportRow is one line of the CSV export: live measurements and saved survey
// points in a single flat projection.
type ExportRow struct {
	CreatedAt time.Time
	Type      string
	Gateway   string
	RSSI      float64
	SNR       float64
	Latitude  *float64
	Longitude *float64
}

// ExportRows returns all measurements and saved points for the CSV export.
func (s *Store) ExportRows(ctx context.Context) ([]ExportRow, error) {
	var measurements []Measurement
	done := s.trackDB("select", "measurements")
	err := s.db.WithContext(ctx).Find(&measurements).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch measurements for export: %w", err)
	}

	var saved []SavedPoint
	done = s.trackDB("select", "saved_points")
	err = s.db.WithContext(ctx).Find(&saved).Error
	done(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saved points for export: %w", err)
	}

	rows := make([]ExportRow, 0, len(measurements)+len(saved))
	for _, m := range measurements {
		rows = append(rows, ExportRow{
			Type:      "live",
			Gateway:   m.GatewayID,
			RSSI:      m.RSSI,
			SNR:       m.SNR,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, p := range saved {
		lat, lng := p.Latitude, p.Longitude
		rows = append(rows, ExportRow{
			Type:      "saved",
			Gateway:   "manual",
			RSSI:      p.AvgRSSI,
			SNR:       p.AvgSNR,
			Latitude:  &lat,
			Longitude: &lng,
			CreatedAt: p.CreatedAt,
		})
	}
	return rows, nil
}
