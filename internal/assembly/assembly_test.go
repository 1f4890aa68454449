package assembly

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/models"
)

func TestSanitizeTitleReplacesSpaces(t *testing.T) {
	if got := sanitizeTitle("My Cool Video"); got != "My_Cool_Video" {
		t.Errorf("sanitizeTitle = %q", got)
	}
}

func TestTrackVolumeDefaultsByKind(t *testing.T) {
	cases := []struct {
		kind models.AssetKind
		want float64
	}{
		{models.AssetKindSpeech, 1.0},
		{models.AssetKindMusic, 0.3},
		{models.AssetKindAudio, 0.7},
	}
	for _, c := range cases {
		got := trackVolume(&models.Asset{Kind: c.kind})
		if got != c.want {
			t.Errorf("trackVolume(%s) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestTrackVolumeHonorsOverrideWithinRange(t *testing.T) {
	asset := &models.Asset{Kind: models.AssetKindMusic, Metadata: models.Metadata{"volume": 0.9}}
	if got := trackVolume(asset); got != 0.9 {
		t.Errorf("trackVolume override = %v, want 0.9", got)
	}
}

func TestTrackVolumeIgnoresOutOfRangeOverride(t *testing.T) {
	asset := &models.Asset{Kind: models.AssetKindMusic, Metadata: models.Metadata{"volume": 5.0}}
	if got := trackVolume(asset); got != 0.3 {
		t.Errorf("trackVolume out-of-range override = %v, want default 0.3", got)
	}
}

func TestSelectScenesRejectsSceneMissingVideoAsset(t *testing.T) {
	a := &Assembler{}
	project := &models.Project{
		Scenes: []*models.Scene{
			{ID: uuid.New(), Order: 0, Description: "no video", Assets: []*models.Asset{}},
		},
	}
	_, err := a.selectScenes(project, nil)
	if err == nil {
		t.Fatal("expected error for scene missing a video asset")
	}
}

func TestSelectScenesOrdersByOrderField(t *testing.T) {
	a := &Assembler{}
	sc0 := &models.Scene{ID: uuid.New(), Order: 1, Assets: []*models.Asset{{Kind: models.AssetKindVideo, LocalPath: "/tmp/b.mp4"}}}
	sc1 := &models.Scene{ID: uuid.New(), Order: 0, Assets: []*models.Asset{{Kind: models.AssetKindVideo, LocalPath: "/tmp/a.mp4"}}}
	project := &models.Project{Scenes: []*models.Scene{sc0, sc1}}

	got, err := a.selectScenes(project, nil)
	if err != nil {
		t.Fatalf("selectScenes: %v", err)
	}
	if got[0] != sc1 || got[1] != sc0 {
		t.Errorf("expected scenes ordered by Order field, got %v then %v", got[0].Order, got[1].Order)
	}
}

func TestAtomicReplaceInstallsTempOverExisting(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.mp4")
	temp := filepath.Join(dir, "temp.mp4")

	if err := os.WriteFile(final, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(temp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := atomicReplace(temp, final); err != nil {
		t.Fatalf("atomicReplace: %v", err)
	}

	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("reading final: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("final contents = %q, want %q", data, "new")
	}
	if _, err := os.Stat(final + ".backup"); !os.IsNotExist(err) {
		t.Errorf("expected backup file to be removed")
	}
}

func TestAtomicReplaceWithNoExistingFinal(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.mp4")
	temp := filepath.Join(dir, "temp.mp4")

	if err := os.WriteFile(temp, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := atomicReplace(temp, final); err != nil {
		t.Fatalf("atomicReplace: %v", err)
	}
	if _, err := os.Stat(final); err != nil {
		t.Errorf("expected final file to exist: %v", err)
	}
}
