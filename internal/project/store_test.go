package project

import (
	"testing"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/models"
)

func TestCreateDefaultsAndCurrent(t *testing.T) {
	s := New()
	p := s.Create(CreateInput{Title: "Demo", Platform: "tiktok", AspectRatio: "9:16"})

	if p.Status != models.ProjectStatusDraft {
		t.Errorf("expected draft status, got %s", p.Status)
	}

	current, err := s.Current()
	if err != nil {
		t.Fatalf("Current(): %v", err)
	}
	if current.ID != p.ID {
		t.Errorf("expected first created project to become current")
	}
}

func TestAddSceneAssignsDenseOrders(t *testing.T) {
	s := New()
	p := s.Create(CreateInput{Title: "T", Platform: "tiktok", AspectRatio: "9:16"})

	sc0, err := s.AddScene(p.ID, &models.Scene{Description: "intro", DurationS: 5}, nil)
	if err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	if sc0.Order != 0 {
		t.Errorf("expected order 0, got %d", sc0.Order)
	}

	sc1, err := s.AddScene(p.ID, &models.Scene{Description: "middle", DurationS: 5}, nil)
	if err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	if sc1.Order != 1 {
		t.Errorf("expected order 1, got %d", sc1.Order)
	}

	zero := 0
	inserted, err := s.AddScene(p.ID, &models.Scene{Description: "inserted-first", DurationS: 3}, &zero)
	if err != nil {
		t.Fatalf("AddScene with position: %v", err)
	}
	if inserted.Order != 0 {
		t.Errorf("expected inserted scene order 0, got %d", inserted.Order)
	}

	got, _ := s.Get(p.ID)
	for i, sc := range got.Scenes {
		if sc.Order != i {
			t.Errorf("scene %d has order %d, want dense order %d", i, sc.Order, i)
		}
	}
}

func TestAddScenePositionOutOfRangeRejected(t *testing.T) {
	s := New()
	p := s.Create(CreateInput{Title: "T", Platform: "tiktok", AspectRatio: "9:16"})

	bad := 5
	_, err := s.AddScene(p.ID, &models.Scene{Description: "x"}, &bad)
	if err == nil {
		t.Errorf("expected validation error for out-of-range position")
	}
}

func TestAttachAssetRecomputesTotalsCost(t *testing.T) {
	s := New()
	p := s.Create(CreateInput{Title: "T", Platform: "tiktok", AspectRatio: "9:16"})
	sc, _ := s.AddScene(p.ID, &models.Scene{Description: "a", DurationS: 5}, nil)

	err := s.AttachAsset(p.ID, &sc.ID, &models.Asset{ID: uuid.New(), Kind: models.AssetKindVideo, Cost: 0.25})
	if err != nil {
		t.Fatalf("AttachAsset: %v", err)
	}

	err = s.AttachAsset(p.ID, nil, &models.Asset{ID: uuid.New(), Kind: models.AssetKindMusic, Cost: 0.1})
	if err != nil {
		t.Fatalf("AttachAsset global: %v", err)
	}

	got, _ := s.Get(p.ID)
	if got.TotalCost != 0.35 {
		t.Errorf("TotalCost = %v, want 0.35", got.TotalCost)
	}
	if got.ActualDurationS != 5 {
		t.Errorf("ActualDurationS = %v, want 5", got.ActualDurationS)
	}
}

func TestAttachAssetMissingSceneReturnsNotFound(t *testing.T) {
	s := New()
	p := s.Create(CreateInput{Title: "T", Platform: "tiktok", AspectRatio: "9:16"})

	missing := uuid.New()
	err := s.AttachAsset(p.ID, &missing, &models.Asset{ID: uuid.New(), Kind: models.AssetKindVideo})
	if err == nil {
		t.Errorf("expected not_found error for missing scene")
	}
}

func TestGetUnknownProject(t *testing.T) {
	s := New()
	if _, err := s.Get(uuid.New()); err == nil {
		t.Errorf("expected not_found error")
	}
}
