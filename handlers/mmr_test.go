package handlers

import (
	"testing"

	"nexus-card-service/models"

	"github.com/gofiber/fiber/v2"
)

func TestMmrGetDefaultsForUnknownUser(t *testing.T) {
	app, db := newTestApp(t)

	resp, body := doJSON(t, app, "GET", "/mmr/unknown-user", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}
	if rating, _ := body["rating"].(float64); rating != 1000 {
		t.Errorf("expected default rating 1000, got %v", body["rating"])
	}

	var count int64
	db.Model(&models.MmrRating{}).Count(&count)
	if count != 0 {
		t.Errorf("GET must not materialize records, found %d", count)
	}
}

func TestMmrEnsureEndpoint(t *testing.T) {
	app, db := newTestApp(t)

	for i := 0; i < 2; i++ {
		resp, body := doJSON(t, app, "POST", "/mmr/alice/ensure", nil)
		if resp.StatusCode != fiber.StatusOK || body["ok"] != true {
			t.Fatalf("ensure #%d: status %d body %v", i, resp.StatusCode, body)
		}
	}

	var count int64
	db.Model(&models.MmrRating{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 record after idempotent ensure, got %d", count)
	}
}

func TestMmrResolveMatchEndpoint(t *testing.T) {
	app, db := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/mmr/match/resolve", map[string]any{
		"p1": "alice", "p2": "bob", "mode": "pvp1v1", "winner": 1,
		"p1_points": 3, "p2_points": 1,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("resolve: status %d body %v", resp.StatusCode, body)
	}
	if body["ok"] != true {
		t.Errorf("expected ok:true, got %v", body)
	}
	matchID, _ := body["match_id"].(string)
	if matchID == "" {
		t.Fatalf("expected match_id, got %v", body)
	}

	var m models.Match
	if err := db.First(&m, "id = ?", matchID).Error; err != nil {
		t.Fatal(err)
	}
	if m.P1RatingStart != 1000 || m.P2RatingStart != 1000 {
		t.Errorf("expected pre-match snapshots 1000/1000, got %d/%d", m.P1RatingStart, m.P2RatingStart)
	}

	resp, body = doJSON(t, app, "GET", "/mmr/alice", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatal(resp.StatusCode)
	}
	if rating, _ := body["rating"].(float64); rating != 1020 {
		t.Errorf("expected updated rating 1020, got %v", body["rating"])
	}
}

func TestMmrResolveRejectsInvalidWinner(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/mmr/match/resolve", map[string]any{
		"p1": "alice", "p2": "bob", "mode": "pvp1v1", "winner": 5,
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for winner=5, got %d", resp.StatusCode)
	}
}
