package catalog

import "testing"

func TestModelDurationValidation(t *testing.T) {
	videoA, err := Lookup("video-A")
	if err != nil {
		t.Fatalf("Lookup(video-A): %v", err)
	}
	if err := videoA.ValidateDuration(6); err == nil {
		t.Errorf("expected video-A to reject duration 6")
	}
	if err := videoA.ValidateDuration(5); err != nil {
		t.Errorf("expected video-A to accept duration 5: %v", err)
	}

	videoB, err := Lookup("video-B")
	if err != nil {
		t.Fatalf("Lookup(video-B): %v", err)
	}
	if err := videoB.ValidateDuration(6); err != nil {
		t.Errorf("expected video-B to accept duration 6: %v", err)
	}
}

func TestLookupUnknownModel(t *testing.T) {
	if _, err := Lookup("does-not-exist"); err == nil {
		t.Errorf("expected error for unknown model")
	}
}

func TestMusicCostRoundsUpTo30sBlocks(t *testing.T) {
	if got := MusicCost(1); got != 0.1 {
		t.Errorf("MusicCost(1) = %v, want 0.1", got)
	}
	if got := MusicCost(31); got != 0.2 {
		t.Errorf("MusicCost(31) = %v, want 0.2", got)
	}
	if got := MusicCost(95); got != 0.4 {
		t.Errorf("MusicCost(95) = %v, want 0.4 (4 chunks)", got)
	}
}

func TestSpeechCostRoundsUpTo1000Chars(t *testing.T) {
	short := "hello"
	if got := SpeechCost(short); got != 0.1 {
		t.Errorf("SpeechCost(short) = %v, want 0.1", got)
	}
	long := make([]byte, 1001)
	if got := SpeechCost(string(long)); got != 0.2 {
		t.Errorf("SpeechCost(1001 chars) = %v, want 0.2", got)
	}
}

func TestPlatformFallsBackToCustom(t *testing.T) {
	p := Platform("does-not-exist")
	if p.Name != "Custom" {
		t.Errorf("Platform(unknown) = %v, want Custom fallback", p.Name)
	}
	if KnownPlatform("does-not-exist") {
		t.Errorf("KnownPlatform(unknown) should be false")
	}
	if !KnownPlatform("tiktok") {
		t.Errorf("KnownPlatform(tiktok) should be true")
	}
}

func TestAspectRatioDimensions(t *testing.T) {
	cases := []struct {
		ratio        string
		wantW, wantH int
	}{
		{"16:9", 1920, 1080},
		{"9:16", 1080, 1920},
		{"1:1", 1080, 1080},
		{"4:5", 864, 1080},
	}
	for _, c := range cases {
		w, h, err := AspectRatioDimensions(c.ratio)
		if err != nil {
			t.Errorf("AspectRatioDimensions(%s): %v", c.ratio, err)
		}
		if w != c.wantW || h != c.wantH {
			t.Errorf("AspectRatioDimensions(%s) = %d,%d want %d,%d", c.ratio, w, h, c.wantW, c.wantH)
		}
	}
}

func TestAspectRatioDimensionsArbitrary(t *testing.T) {
	w, h, err := AspectRatioDimensions("2:1")
	if err != nil {
		t.Fatalf("AspectRatioDimensions(2:1): %v", err)
	}
	if h != 1080 || w != 2160 {
		t.Errorf("AspectRatioDimensions(2:1) = %d,%d want 2160,1080", w, h)
	}
}
