package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"nexus-card-service/models"
	"nexus-card-service/spatial"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultNearbyRadiusM is used when a caller passes a non-positive radius.
const DefaultNearbyRadiusM = 200

// SpawnFeature is the client-facing projection of a nearby spawn.
type SpawnFeature struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	CardID    *int64     `json:"card_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
}

// SpawnService owns spawn records and their lifecycle. Positions are
// immutable, so the in-memory grid index only ever gains entries on
// Create and loses them on Catch or compaction; status truth stays in
// the database.
type SpawnService struct {
	DB    *gorm.DB
	Index *spatial.Index
}

// NewSpawnService warm-loads every active spawn into the grid so Nearby
// works across restarts.
func NewSpawnService(db *gorm.DB, index *spatial.Index) (*SpawnService, error) {
	s := &SpawnService{DB: db, Index: index}

	var rows []models.Spawn
	if err := db.Where("status = ?", models.SpawnStatusActive).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: loading active spawns: %v", ErrPersistence, err)
	}
	for _, row := range rows {
		index.Insert(row.ID, row.Latitude, row.Longitude)
	}
	log.Printf("📍 Spatial index warmed with %d active spawn(s)", len(rows))

	return s, nil
}

// Create validates coordinates, inserts an active spawn and registers it
// in the grid. Returns the new spawn id.
func (s *SpawnService) Create(ctx context.Context, lat, lon float64, cardID *int64, expiresAt *time.Time) (string, error) {
	if !spatial.ValidCoordinates(lat, lon) {
		return "", fmt.Errorf("%w: coordinates out of WGS84 bounds (lat=%f lon=%f)", ErrValidation, lat, lon)
	}

	spawn := models.Spawn{
		ID:        uuid.NewString(),
		Latitude:  lat,
		Longitude: lon,
		CardID:    cardID,
		Status:    models.SpawnStatusActive,
		ExpiresAt: expiresAt,
	}
	if err := s.DB.WithContext(ctx).Create(&spawn).Error; err != nil {
		return "", fmt.Errorf("%w: creating spawn: %v", ErrPersistence, err)
	}

	s.Index.Insert(spawn.ID, lat, lon)
	return spawn.ID, nil
}

// Nearby returns active, unexpired spawns within radiusM meters of the
// query point. Radius defaults to 200m when non-positive. Result order
// is unspecified.
func (s *SpawnService) Nearby(ctx context.Context, lat, lon float64, radiusM float64) ([]SpawnFeature, error) {
	if !spatial.ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: coordinates out of WGS84 bounds (lat=%f lon=%f)", ErrValidation, lat, lon)
	}
	if radiusM <= 0 {
		radiusM = DefaultNearbyRadiusM
	}

	candidates := s.Index.Query(lat, lon, radiusM)
	if len(candidates) == 0 {
		return []SpawnFeature{}, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	// The grid already applied the exact distance filter; the store
	// confirms lifecycle state and lazy expiry.
	var rows []models.Spawn
	err := s.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Where("status = ?", models.SpawnStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: querying nearby spawns: %v", ErrPersistence, err)
	}

	features := make([]SpawnFeature, 0, len(rows))
	for _, row := range rows {
		features = append(features, SpawnFeature{
			ID:        row.ID,
			Status:    row.Status,
			CardID:    row.CardID,
			ExpiresAt: row.ExpiresAt,
			Lat:       row.Latitude,
			Lon:       row.Longitude,
		})
	}
	return features, nil
}

// Claim transitions a spawn active -> claimed. The transition is a single
// conditional UPDATE, so of N concurrent claims exactly one observes
// true; the rest see false with no state change.
func (s *SpawnService) Claim(ctx context.Context, id string) (bool, error) {
	return s.transition(ctx, id, []string{models.SpawnStatusActive}, models.SpawnStatusClaimed)
}

// Catch transitions a spawn (active|claimed) -> caught and evicts it from
// the grid. Same conditional-update guarantee as Claim.
func (s *SpawnService) Catch(ctx context.Context, id string) (bool, error) {
	ok, err := s.transition(ctx, id, []string{models.SpawnStatusActive, models.SpawnStatusClaimed}, models.SpawnStatusCaught)
	if ok {
		s.Index.Remove(id)
	}
	return ok, err
}

func (s *SpawnService) transition(ctx context.Context, id string, from []string, to string) (bool, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Spawn{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("%w: updating spawn %s: %v", ErrPersistence, id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompactIndex evicts grid entries whose rows are terminal or already
// expired. Purely index hygiene: rows are never mutated here and expiry
// stays a read-time filter.
func (s *SpawnService) CompactIndex(ctx context.Context) (int, error) {
	ids := s.Index.IDs()
	evicted := 0

	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		var live []string
		err := s.DB.WithContext(ctx).
			Model(&models.Spawn{}).
			Where("id IN ?", chunk).
			Where("status = ?", models.SpawnStatusActive).
			Where("expires_at IS NULL OR expires_at > ?", time.Now()).
			Pluck("id", &live).Error
		if err != nil {
			return evicted, fmt.Errorf("%w: compacting index: %v", ErrPersistence, err)
		}

		keep := make(map[string]struct{}, len(live))
		for _, id := range live {
			keep[id] = struct{}{}
		}
		for _, id := range chunk {
			if _, ok := keep[id]; !ok {
				s.Index.Remove(id)
				evicted++
			}
		}
	}
	return evicted, nil
}
