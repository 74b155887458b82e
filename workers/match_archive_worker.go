package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"nexus-card-service/models"
	"nexus-card-service/utils"

	"gorm.io/gorm"
)

// MatchArchiveWorker periodically exports finished, unarchived match
// audit rows as JSON batches to object storage and stamps ArchivedAt.
// Rows stay in the database; the archive is the long-term copy fairness
// analysis reads.
type MatchArchiveWorker struct {
	DB        *gorm.DB
	BatchSize int
}

func NewMatchArchiveWorker(db *gorm.DB) *MatchArchiveWorker {
	return &MatchArchiveWorker{DB: db, BatchSize: 500}
}

// Run blocks until ctx is done, archiving every interval.
func (w *MatchArchiveWorker) Run(ctx context.Context, interval time.Duration) {
	log.Println("Starting match archive worker...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Match archive worker stopped.")
			return
		case <-ticker.C:
			count, err := w.archiveOnce(ctx)
			if err != nil {
				log.Printf("❌ Match archive pass failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("📦 Archived %d match(es)", count)
			}
		}
	}
}

func (w *MatchArchiveWorker) archiveOnce(ctx context.Context) (int, error) {
	var matches []models.Match
	err := w.DB.WithContext(ctx).
		Where("archived_at IS NULL").
		Order("created_at ASC").
		Limit(w.BatchSize).
		Find(&matches).Error
	if err != nil {
		return 0, fmt.Errorf("loading unarchived matches: %w", err)
	}
	if len(matches) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(matches)
	if err != nil {
		return 0, fmt.Errorf("encoding archive batch: %w", err)
	}

	key := fmt.Sprintf("matches/%s.json", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	if err := utils.PutJSONObject(ctx, key, body); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	now := time.Now()
	err = w.DB.WithContext(ctx).
		Model(&models.Match{}).
		Where("id IN ?", ids).
		Update("archived_at", now).Error
	if err != nil {
		return 0, fmt.Errorf("marking matches archived: %w", err)
	}

	return len(matches), nil
}
