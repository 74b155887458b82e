package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"nexus-card-service/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMode is the rating mode assumed when a caller passes none.
const DefaultMode = "pvp1v1"

// K-factor selection: high deviation means low confidence, so the rating
// is allowed to swing harder until enough matches accumulate.
const (
	kFactorHighDeviation = 40
	kFactorSettled       = 24
	deviationKThreshold  = 250
	deviationStep        = 10
	deviationFloor       = 100
)

// MmrService owns hidden per-(user, mode) ratings and applies the Elo
// update after an externally resolved match.
//
// Updates that share a player must serialize to avoid lost updates, so
// each (user, mode) key gets a mutex from a process-wide registry and a
// match locks both keys in sorted order before opening the transaction.
// Inside the transaction both rows are loaded FOR UPDATE in the same
// sorted order, giving the row-lock path the same deadlock discipline.
type MmrService struct {
	DB *gorm.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMmrService(db *gorm.DB) *MmrService {
	return &MmrService{DB: db, locks: make(map[string]*sync.Mutex)}
}

// NormalizeMode slugs a client-supplied mode so cosmetic variants
// ("PvP 1v1", "pvp-1v1") share a single rating row. Empty input falls
// back to DefaultMode.
func NormalizeMode(mode string) string {
	if strings.TrimSpace(mode) == "" {
		return DefaultMode
	}
	return slug.Make(mode)
}

// GetRating returns the stored rating for (userID, mode), or the default
// 1000 when no record exists. Never materializes a row.
func (s *MmrService) GetRating(ctx context.Context, userID, mode string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: empty user id", ErrValidation)
	}
	mode = NormalizeMode(mode)

	var r models.MmrRating
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND mode = ?", userID, mode).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultRating, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: loading rating for %s/%s: %v", ErrPersistence, userID, mode, err)
	}
	return r.Rating, nil
}

// EnsureRecord idempotently materializes a default 1000/350/120 record.
func (s *MmrService) EnsureRecord(ctx context.Context, userID, mode string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrValidation)
	}
	mode = NormalizeMode(mode)

	r := models.MmrRating{
		UserID:     userID,
		Mode:       mode,
		Rating:     models.DefaultRating,
		Deviation:  models.DefaultDeviation,
		Volatility: models.DefaultVolatility,
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&r).Error
	if err != nil {
		return fmt.Errorf("%w: ensuring rating for %s/%s: %v", ErrPersistence, userID, mode, err)
	}
	return nil
}

// UpdateAfterMatch applies the Elo-style update to both players' ratings
// under mode, winner being 1 or 2 (no draws). Expected score
// E = 1/(1+10^((Rb-Ra)/400)); new rating = round(R + K*(S-E)) with
// math.Round (half away from zero); deviation drops by 10 to a floor of
// 100 for both players regardless of outcome. Both rows commit as one
// transaction — a partner update is never observed alone.
func (s *MmrService) UpdateAfterMatch(ctx context.Context, p1, p2, mode string, winner int) error {
	if winner != 1 && winner != 2 {
		return fmt.Errorf("%w: winner must be 1 or 2, got %d", ErrValidation, winner)
	}
	if strings.TrimSpace(p1) == "" || strings.TrimSpace(p2) == "" {
		return fmt.Errorf("%w: empty player id", ErrValidation)
	}
	if p1 == p2 {
		return fmt.Errorf("%w: a player cannot be matched against themselves", ErrValidation)
	}
	mode = NormalizeMode(mode)

	unlock := s.lockPair(ratingKey(p1, mode), ratingKey(p2, mode))
	defer unlock()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row locks are taken in sorted player order, matching lockPair.
		var r1, r2 *models.MmrRating
		var err error
		if p1 < p2 {
			if r1, err = loadOrDefaultForUpdate(tx, p1, mode); err != nil {
				return err
			}
			if r2, err = loadOrDefaultForUpdate(tx, p2, mode); err != nil {
				return err
			}
		} else {
			if r2, err = loadOrDefaultForUpdate(tx, p2, mode); err != nil {
				return err
			}
			if r1, err = loadOrDefaultForUpdate(tx, p1, mode); err != nil {
				return err
			}
		}

		e1 := 1.0 / (1.0 + math.Pow(10, float64(r2.Rating-r1.Rating)/400.0))
		e2 := 1.0 - e1

		k1 := kFactorSettled
		if r1.Deviation > deviationKThreshold {
			k1 = kFactorHighDeviation
		}
		k2 := kFactorSettled
		if r2.Deviation > deviationKThreshold {
			k2 = kFactorHighDeviation
		}

		s1, s2 := 0.0, 1.0
		if winner == 1 {
			s1, s2 = 1.0, 0.0
		}

		now := time.Now()
		r1.Rating = int(math.Round(float64(r1.Rating) + float64(k1)*(s1-e1)))
		r2.Rating = int(math.Round(float64(r2.Rating) + float64(k2)*(s2-e2)))
		r1.Deviation = maxInt(deviationFloor, r1.Deviation-deviationStep)
		r2.Deviation = maxInt(deviationFloor, r2.Deviation-deviationStep)
		r1.UpdatedAt = now
		r2.UpdatedAt = now

		// Upsert both: lazily created records get their first row here.
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(r1).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(r2).Error
	})
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: updating ratings for %s vs %s: %v", ErrPersistence, p1, p2, err)
	}
	return nil
}

// loadOrDefaultForUpdate reads a rating row under FOR UPDATE, falling
// back to an in-memory default for lazily created records. Callers load
// rows in sorted key order.
func loadOrDefaultForUpdate(tx *gorm.DB, userID, mode string) (*models.MmrRating, error) {
	q := tx
	// SQLite has no FOR UPDATE; there the keyed mutexes alone serialize.
	// Row locks matter for multi-instance postgres deployments.
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var r models.MmrRating
	err := q.
		Where("user_id = ? AND mode = ?", userID, mode).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.MmrRating{
			UserID:     userID,
			Mode:       mode,
			Rating:     models.DefaultRating,
			Deviation:  models.DefaultDeviation,
			Volatility: models.DefaultVolatility,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func ratingKey(userID, mode string) string {
	return userID + "|" + mode
}

// lockPair acquires both per-key mutexes in sorted order and returns the
// combined unlock.
func (s *MmrService) lockPair(a, b string) func() {
	keys := []string{a, b}
	sort.Strings(keys)

	first, second := s.keyLock(keys[0]), s.keyLock(keys[1])
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}

func (s *MmrService) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
