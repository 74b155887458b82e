package models

import "time"

// Spawn statuses. Transitions are monotonic:
// active -> claimed -> caught, or active -> caught.
const (
	SpawnStatusActive  = "active"
	SpawnStatusClaimed = "claimed"
	SpawnStatusCaught  = "caught"
)

// Spawn is a geolocated, time-bounded feature players can claim and catch.
// Lat/lng are stored as plain indexed columns for portability and
// Haversine filtering instead of a vendor geography type.
type Spawn struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	Latitude  float64 `gorm:"not null;index:idx_spawns_lat_lng" json:"lat"`
	Longitude float64 `gorm:"not null;index:idx_spawns_lat_lng" json:"lon"`

	// Optional reference into the card catalog (owned by another service).
	CardID *int64 `gorm:"index" json:"card_id,omitempty"`

	Status    string     `gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','claimed','caught')" json:"status"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
