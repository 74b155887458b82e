package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexus-card-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchRecorder persists the audit trail of externally resolved matches
// and hands the outcome to the MMR engine. The audit row carries both
// players' pre-match rating snapshots so fairness analysis can replay
// rating history without reversing the Elo formula.
type MatchRecorder struct {
	DB  *gorm.DB
	Mmr *MmrService
}

func NewMatchRecorder(db *gorm.DB, mmr *MmrService) *MatchRecorder {
	return &MatchRecorder{DB: db, Mmr: mmr}
}

// Resolve records the match and updates both ratings. Returns the audit
// match id. Validation failures surface before anything is written; the
// audit row is written before the rating update, mirroring the resolve
// order of the game clients' contract.
func (m *MatchRecorder) Resolve(ctx context.Context, p1, p2, mode string, winner, p1Points, p2Points int) (string, error) {
	if winner != 1 && winner != 2 {
		return "", fmt.Errorf("%w: winner must be 1 or 2, got %d", ErrValidation, winner)
	}
	if strings.TrimSpace(p1) == "" || strings.TrimSpace(p2) == "" {
		return "", fmt.Errorf("%w: empty player id", ErrValidation)
	}
	if p1 == p2 {
		return "", fmt.Errorf("%w: a player cannot be matched against themselves", ErrValidation)
	}
	mode = NormalizeMode(mode)

	r1, err := m.Mmr.GetRating(ctx, p1, mode)
	if err != nil {
		return "", err
	}
	r2, err := m.Mmr.GetRating(ctx, p2, mode)
	if err != nil {
		return "", err
	}

	now := time.Now()
	match := models.Match{
		ID:            uuid.NewString(),
		Mode:          mode,
		Player1ID:     p1,
		Player2ID:     p2,
		Status:        "finished",
		Winner:        winner,
		P1Points:      p1Points,
		P2Points:      p2Points,
		P1RatingStart: r1,
		P2RatingStart: r2,
		StartedAt:     now.Add(-5 * time.Minute),
		EndedAt:       now,
	}
	if err := m.DB.WithContext(ctx).Create(&match).Error; err != nil {
		return "", fmt.Errorf("%w: recording match: %v", ErrPersistence, err)
	}

	if err := m.Mmr.UpdateAfterMatch(ctx, p1, p2, mode, winner); err != nil {
		return "", err
	}
	return match.ID, nil
}
