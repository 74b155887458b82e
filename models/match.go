package models

import "time"

// Match is the audit record of an externally resolved match, including
// both players' pre-match rating snapshots for fairness analysis.
type Match struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Mode string `gorm:"type:varchar(32);not null;index" json:"mode"`

	Player1ID string `gorm:"type:varchar(64);not null;index" json:"player1_id"`
	Player2ID string `gorm:"type:varchar(64);not null;index" json:"player2_id"`

	Status string `gorm:"type:varchar(16);not null;default:'finished'" json:"status"`
	Winner int    `gorm:"not null" json:"winner"` // 1 or 2

	P1Points int `gorm:"default:0" json:"p1_points"`
	P2Points int `gorm:"default:0" json:"p2_points"`

	P1RatingStart int `gorm:"not null" json:"p1_rating_start"`
	P2RatingStart int `gorm:"not null" json:"p2_rating_start"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Set once the archive worker has exported this row to object storage.
	ArchivedAt *time.Time `gorm:"index" json:"archived_at,omitempty"`
}
