package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nexus-card-service/models"
	"nexus-card-service/spatial"

	"github.com/google/uuid"
)

func newSpawnService(t *testing.T) *SpawnService {
	t.Helper()
	s, err := NewSpawnService(newTestDB(t), spatial.NewIndex(DefaultNearbyRadiusM))
	if err != nil {
		t.Fatalf("building spawn service: %v", err)
	}
	return s
}

func TestCreateValidatesCoordinates(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	cases := []struct{ lat, lon float64 }{
		{91, 0},
		{-90.5, 0},
		{0, 181},
		{0, -180.01},
	}
	for k, v := range cases {
		_, err := s.Create(ctx, v.lat, v.lon, nil, nil)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("case #%d: expected validation error for (%f,%f), got %v", k, v.lat, v.lon, err)
		}
	}

	var count int64
	s.DB.Model(&models.Spawn{}).Count(&count)
	if count != 0 {
		t.Errorf("validation failures must not touch the store, found %d rows", count)
	}
	if s.Index.Len() != 0 {
		t.Errorf("validation failures must not touch the index, found %d entries", s.Index.Len())
	}

	// Boundary values are valid.
	if _, err := s.Create(ctx, 90, -180, nil, nil); err != nil {
		t.Errorf("boundary coordinates rejected: %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, 48.8566, 2.3522, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// active -> claimed succeeds once.
	if ok, err := s.Claim(ctx, id); err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Claim(ctx, id); ok {
		t.Error("second claim on a claimed spawn must fail")
	}

	// claimed -> caught succeeds, and is terminal.
	if ok, err := s.Catch(ctx, id); err != nil || !ok {
		t.Fatalf("catch after claim: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Catch(ctx, id); ok {
		t.Error("catch on a caught spawn must fail")
	}
	if ok, _ := s.Claim(ctx, id); ok {
		t.Error("claim on a caught spawn must fail")
	}

	// active -> caught directly, skipping claim.
	id2, _ := s.Create(ctx, 48.8566, 2.3522, nil, nil)
	if ok, err := s.Catch(ctx, id2); err != nil || !ok {
		t.Fatalf("direct catch: ok=%v err=%v", ok, err)
	}

	// Unknown ids are a business miss, not an error.
	if ok, err := s.Claim(ctx, uuid.NewString()); err != nil || ok {
		t.Errorf("claim on unknown id: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Catch(ctx, uuid.NewString()); err != nil || ok {
		t.Errorf("catch on unknown id: ok=%v err=%v", ok, err)
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, 10, 10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	const claimers = 50
	var wg sync.WaitGroup
	results := make(chan bool, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Claim(ctx, id)
			if err != nil {
				t.Errorf("claim errored: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winning claim, got %d", wins)
	}
}

func TestNearbyDistanceBoundary(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	// ~1112m north of the origin.
	if _, err := s.Create(ctx, 0.01, 0, nil, nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.Nearby(ctx, 0, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("radius 1000m should exclude the spawn, got %d", len(got))
	}

	got, err = s.Nearby(ctx, 0, 0, 1200)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("radius 1200m should include the spawn, got %d", len(got))
	}
}

func TestNearbyDefaultRadius(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	// ~150m and ~250m from the query point.
	near, _ := s.Create(ctx, 0.00135, 0, nil, nil)
	s.Create(ctx, 0.00225, 0, nil, nil)

	got, err := s.Nearby(ctx, 0, 0, 0) // non-positive -> 200m default
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != near {
		t.Errorf("default radius should return only the ~150m spawn, got %v", got)
	}
}

func TestNearbyFiltersLifecycleAndExpiry(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	cardID := int64(42)
	active, _ := s.Create(ctx, 0, 0, &cardID, nil)

	claimed, _ := s.Create(ctx, 0.0001, 0, nil, nil)
	s.Claim(ctx, claimed)

	caught, _ := s.Create(ctx, 0.0002, 0, nil, nil)
	s.Catch(ctx, caught)

	past := time.Now().Add(-time.Minute)
	s.Create(ctx, 0.0003, 0, nil, &past)

	future := time.Now().Add(time.Hour)
	unexpired, _ := s.Create(ctx, 0.0004, 0, nil, &future)

	got, err := s.Nearby(ctx, 0, 0, 200)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, f := range got {
		seen[f.ID] = true
		if f.Status != models.SpawnStatusActive {
			t.Errorf("nearby returned non-active spawn %s (%s)", f.ID, f.Status)
		}
	}
	if len(got) != 2 || !seen[active] || !seen[unexpired] {
		t.Errorf("expected {active, unexpired}, got %v", got)
	}

	for _, f := range got {
		if f.ID == active {
			if f.CardID == nil || *f.CardID != 42 {
				t.Errorf("card reference lost in projection: %+v", f)
			}
		}
	}
}

// Expiry is a read-time filter only: an expired-but-active spawn can
// still be claimed, preserving the reference behavior.
func TestClaimIgnoresExpiry(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	id, _ := s.Create(ctx, 0, 0, nil, &past)

	if ok, err := s.Claim(ctx, id); err != nil || !ok {
		t.Errorf("expired-but-active spawn should still claim: ok=%v err=%v", ok, err)
	}
}

func TestWarmLoadRebuildsIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rows := []models.Spawn{
		{ID: uuid.NewString(), Latitude: 0, Longitude: 0, Status: models.SpawnStatusActive},
		{ID: uuid.NewString(), Latitude: 0.0001, Longitude: 0, Status: models.SpawnStatusCaught},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	// Fresh service over existing rows, as after a restart.
	s, err := NewSpawnService(db, spatial.NewIndex(DefaultNearbyRadiusM))
	if err != nil {
		t.Fatal(err)
	}
	if s.Index.Len() != 1 {
		t.Errorf("warm load should index only active rows, got %d", s.Index.Len())
	}

	got, err := s.Nearby(ctx, 0, 0, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != rows[0].ID {
		t.Errorf("expected the active row after warm load, got %v", got)
	}
}

func TestCompactIndexEvictsDeadEntries(t *testing.T) {
	s := newSpawnService(t)
	ctx := context.Background()

	keep, _ := s.Create(ctx, 0, 0, nil, nil)

	claimed, _ := s.Create(ctx, 0.0001, 0, nil, nil)
	s.Claim(ctx, claimed)

	past := time.Now().Add(-time.Minute)
	s.Create(ctx, 0.0002, 0, nil, &past)

	evicted, err := s.CompactIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}
	if s.Index.Len() != 1 {
		t.Errorf("expected 1 surviving index entry, got %d", s.Index.Len())
	}

	// The claimed row itself is untouched: still claimable history, just
	// no longer indexed.
	var row models.Spawn
	if err := s.DB.First(&row, "id = ?", claimed).Error; err != nil {
		t.Fatal(err)
	}
	if row.Status != models.SpawnStatusClaimed {
		t.Errorf("compaction must not mutate rows, status=%s", row.Status)
	}

	got, err := s.Nearby(ctx, 0, 0, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != keep {
		t.Errorf("the live spawn should survive compaction, got %v", got)
	}
}
