package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/assetstore"
	"github.com/h2adev/reelforge/internal/models"
	"github.com/h2adev/reelforge/internal/project"
)

func fakeCDN(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-artifact-bytes"))
	}))
}

func testHooks(t *testing.T) (*Hooks, *project.Store) {
	t.Helper()
	projects := project.New()
	return &Hooks{
		Projects: projects,
		Assets:   assetstore.New(t.TempDir()),
	}, projects
}

func TestVideoHookAttachesAssetAndRecomputesProject(t *testing.T) {
	cdn := fakeCDN(t)
	defer cdn.Close()

	h, projects := testHooks(t)

	p := projects.Create(project.CreateInput{Title: "Demo", Platform: "tiktok", AspectRatio: "9:16"})
	scene, err := projects.AddScene(p.ID, &models.Scene{Description: "intro", DurationS: 5}, nil)
	if err != nil {
		t.Fatalf("AddScene: %v", err)
	}

	projectID, sceneID := p.ID, scene.ID
	job := &models.Job{
		ID:        uuid.New(),
		TaskKind:  models.TaskKindVideo,
		ModelID:   "video-A",
		Arguments: models.Metadata{"duration_s": 5.0},
		ProjectID: &projectID,
		SceneID:   &sceneID,
		Metadata:  models.Metadata{"cost": 0.25, "duration_s": 5.0},
	}

	hook := h.onComplete(models.AssetKindVideo)
	if err := hook(context.Background(), job, cdn.URL+"/video.mp4"); err != nil {
		t.Fatalf("hook: %v", err)
	}

	got, err := projects.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Scenes[0].Assets) != 1 {
		t.Fatalf("scene assets = %d, want 1", len(got.Scenes[0].Assets))
	}
	asset := got.Scenes[0].Assets[0]
	if asset.Kind != models.AssetKindVideo {
		t.Errorf("asset kind = %s, want video", asset.Kind)
	}
	if asset.LocalPath == "" {
		t.Error("asset was not downloaded to a local path")
	}
	if got.TotalCost != 0.25 {
		t.Errorf("total_cost = %v, want 0.25", got.TotalCost)
	}
	if got.ActualDurationS != 5 {
		t.Errorf("actual_duration = %v, want 5", got.ActualDurationS)
	}
}

func TestVideoHookWithMissingSceneLeavesNoAsset(t *testing.T) {
	cdn := fakeCDN(t)
	defer cdn.Close()

	h, projects := testHooks(t)

	p := projects.Create(project.CreateInput{Title: "Demo", Platform: "tiktok", AspectRatio: "9:16"})
	projectID := p.ID
	missingScene := uuid.New()
	job := &models.Job{
		ID:        uuid.New(),
		TaskKind:  models.TaskKindVideo,
		ModelID:   "video-A",
		ProjectID: &projectID,
		SceneID:   &missingScene,
		Metadata:  models.Metadata{"cost": 0.25},
	}

	hook := h.onComplete(models.AssetKindVideo)
	if err := hook(context.Background(), job, cdn.URL+"/video.mp4"); err == nil {
		t.Fatal("expected an error for a deleted scene")
	}

	got, _ := projects.Get(p.ID)
	if got.TotalCost != 0 {
		t.Errorf("total_cost = %v, want 0 (no asset attached)", got.TotalCost)
	}
}

func TestMusicHookWithoutSceneAttachesGlobally(t *testing.T) {
	cdn := fakeCDN(t)
	defer cdn.Close()

	h, projects := testHooks(t)

	p := projects.Create(project.CreateInput{Title: "Demo", Platform: "tiktok", AspectRatio: "9:16"})
	projectID := p.ID
	job := &models.Job{
		ID:        uuid.New(),
		TaskKind:  models.TaskKindMusic,
		ModelID:   "music-gen",
		Arguments: models.Metadata{"duration_s": 95.0},
		ProjectID: &projectID,
		Metadata:  models.Metadata{"cost": 0.4},
	}

	hook := h.onComplete(models.AssetKindMusic)
	if err := hook(context.Background(), job, cdn.URL+"/track.mp3"); err != nil {
		t.Fatalf("hook: %v", err)
	}

	got, _ := projects.Get(p.ID)
	if len(got.GlobalAudioTracks) != 1 {
		t.Fatalf("global audio tracks = %d, want 1", len(got.GlobalAudioTracks))
	}
	if got.TotalCost != 0.4 {
		t.Errorf("total_cost = %v, want 0.4", got.TotalCost)
	}
}

func TestHookWithoutResultURLFails(t *testing.T) {
	h, _ := testHooks(t)
	job := &models.Job{ID: uuid.New(), TaskKind: models.TaskKindVideo, ModelID: "video-A"}
	if err := h.onComplete(models.AssetKindVideo)(context.Background(), job, ""); err == nil {
		t.Fatal("expected an error for an empty result URL")
	}
}

func TestJobCostFallsBackToModelFormula(t *testing.T) {
	job := &models.Job{
		ModelID:   "video-A",
		Arguments: models.Metadata{"duration_s": 5.0},
		Metadata:  models.Metadata{},
	}
	if got := jobCost(job); got != 0.25 {
		t.Errorf("jobCost = %v, want 0.25", got)
	}
}
