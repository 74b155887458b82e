package models

import "time"

// Rating defaults for a (user, mode) pair with no persisted record.
const (
	DefaultRating     = 1000
	DefaultDeviation  = 350
	DefaultVolatility = 120
)

// MmrRating is the hidden per-(user, mode) skill record. Records are
// created lazily: reads fall back to the defaults above, only a match
// resolution (or an explicit ensure) materializes a row.
type MmrRating struct {
	UserID string `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Mode   string `gorm:"primaryKey;type:varchar(32)" json:"mode"` // e.g. "pvp1v1"

	Rating    int `gorm:"not null;default:1000" json:"rating"`
	Deviation int `gorm:"not null;default:350" json:"deviation"` // confidence proxy, floored at 100

	// Carried for a future formula upgrade, not read by the current one.
	Volatility int `gorm:"not null;default:120" json:"volatility"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
