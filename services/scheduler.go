package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartIndexCompaction runs a background job that drops caught and
// expired spawns from the in-memory grid. Rows are never touched:
// expiry stays a read-time filter, this only keeps the grid from
// accumulating dead entries.
func (s *SpawnService) StartIndexCompaction(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			evicted, err := s.CompactIndex(context.Background())
			if err != nil {
				log.Printf("[Compaction] %v", err)
				return
			}
			if evicted > 0 {
				log.Printf("🧹 Evicted %d dead spawn(s) from the spatial index", evicted)
			}
		}),
	)
}
