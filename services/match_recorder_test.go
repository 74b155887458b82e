package services

import (
	"context"
	"errors"
	"testing"

	"nexus-card-service/models"
)

func TestResolveRecordsAuditAndUpdatesRatings(t *testing.T) {
	db := newTestDB(t)
	mmr := NewMmrService(db)
	rec := NewMatchRecorder(db, mmr)
	ctx := context.Background()

	matchID, err := rec.Resolve(ctx, "alice", "bob", DefaultMode, 1, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if matchID == "" {
		t.Fatal("expected a match id")
	}

	var m models.Match
	if err := db.First(&m, "id = ?", matchID).Error; err != nil {
		t.Fatal(err)
	}
	if m.P1RatingStart != 1000 || m.P2RatingStart != 1000 {
		t.Errorf("first match should snapshot defaults, got %d/%d", m.P1RatingStart, m.P2RatingStart)
	}
	if m.Winner != 1 || m.P1Points != 3 || m.P2Points != 1 {
		t.Errorf("outcome not recorded: %+v", m)
	}
	if m.Status != "finished" {
		t.Errorf("expected finished status, got %s", m.Status)
	}
	if !m.EndedAt.After(m.StartedAt) {
		t.Errorf("expected EndedAt after StartedAt: %v / %v", m.StartedAt, m.EndedAt)
	}

	// Snapshots are pre-match: the second resolve sees the post-match
	// values of the first.
	matchID2, err := rec.Resolve(ctx, "alice", "bob", DefaultMode, 2, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	var m2 models.Match
	if err := db.First(&m2, "id = ?", matchID2).Error; err != nil {
		t.Fatal(err)
	}
	if m2.P1RatingStart != 1020 || m2.P2RatingStart != 980 {
		t.Errorf("expected snapshots 1020/980, got %d/%d", m2.P1RatingStart, m2.P2RatingStart)
	}
}

func TestResolveRejectsInvalidWinnerBeforeWriting(t *testing.T) {
	db := newTestDB(t)
	rec := NewMatchRecorder(db, NewMmrService(db))

	_, err := rec.Resolve(context.Background(), "alice", "bob", DefaultMode, 7, 0, 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var count int64
	db.Model(&models.Match{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected resolve must not write an audit row, found %d", count)
	}
}
