// Package store provides the persistence layer: integration registry,
// measurement store, audit log sink, and application settings.
package store

import (
	"time"

	"gorm.io/datatypes"
)

// Integration is a registered webhook tenant owning one decoder script.
// Rows are immutable once created, except for deletion.
type Integration struct {
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	EndpointSlug  string    `gorm:"size:50;uniqueIndex;not null" json:"endpoint_slug"`
	DecoderScript string    `gorm:"type:text;not null" json:"-"`
	ID            uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for Integration.
func (Integration) TableName() string {
	return "integrations"
}

// Measurement is the canonical normalized signal record produced by the
// webhook pipeline. RSSI, SNR, and Frequency always carry a value (defaulted
// during normalization); SpreadingFactor and the coordinates may be null.
// Null coordinates mean "received but unlocated", which is a valid stored state.
type Measurement struct {
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_measurements_created_at" json:"created_at"`
	GatewayID       string    `gorm:"size:50;not null" json:"gateway_id"`
	RSSI            float64   `gorm:"not null" json:"rssi"`
	SNR             float64   `gorm:"not null" json:"snr"`
	Frequency       float64   `gorm:"not null" json:"frequency"`
	SpreadingFactor *float64  `json:"spreading_factor"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	ID              uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for Measurement.
func (Measurement) TableName() string {
	return "measurements"
}

// SavedPoint is a manually surveyed location with averaged signal quality,
// produced by the drive-test workflow on the map page.
type SavedPoint struct {
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	Note      string    `gorm:"type:text" json:"note"`
	AvgRSSI   float64   `json:"avg_rssi"`
	AvgSNR    float64   `json:"avg_snr"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ID        uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for SavedPoint.
func (SavedPoint) TableName() string {
	return "saved_points"
}

// PlannedGateway is a gateway placement saved from the coverage planner.
type PlannedGateway struct {
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    float64   `json:"radius"`
	Frequency float64   `json:"frequency"`
	ID        uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for PlannedGateway.
func (PlannedGateway) TableName() string {
	return "planned_gateways"
}

// SystemLog is one immutable audit entry describing a pipeline or management
// outcome. Rows are append-only: never mutated or deleted by the application.
type SystemLog struct {
	CreatedAt time.Time      `gorm:"autoCreateTime;index:idx_system_logs_created_at" json:"created_at"`
	Source    string         `gorm:"size:50;not null" json:"source"`
	Level     string         `gorm:"size:20;not null" json:"level"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Details   datatypes.JSON `json:"details"`
	ID        uint           `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for SystemLog.
func (SystemLog) TableName() string {
	return "system_logs"
}

// AppSetting is a single key/value row of the setup-wizard configuration.
type AppSetting struct {
	Key   string `gorm:"size:50;primaryKey" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

// TableName specifies the table name for AppSetting.
func (AppSetting) TableName() string {
	return "app_settings"
}

// Audit log levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Audit log sources.
const (
	SourceWebhook = "webhook"
	SourceSystem  = "system"
)

// Well-known app_settings keys.
const (
	SettingAppName       = "app_name"
	SettingAdminUser     = "admin_user"
	SettingAdminPassHash = "admin_pass_hash"
	SettingConfigured    = "is_configured"
)
