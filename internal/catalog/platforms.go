package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Recommendations is the platform's suggested encode parameters — advisory,
// consumed by callers deciding export settings.
type Recommendations struct {
	Resolution   string `json:"resolution"`
	FrameRate    int    `json:"frame_rate"`
	Bitrate      string `json:"bitrate"`
	AudioBitrate string `json:"audio_bitrate"`
}

// PlatformSpec is one entry of the fixed platform registry.
type PlatformSpec struct {
	Name                string          `json:"name"`
	AspectRatios        []string        `json:"supported_aspect_ratios"`
	DefaultAspectRatio  string          `json:"default_aspect_ratio"`
	MaxDurationS        int             `json:"max_duration_s"`
	RecommendedDuration int             `json:"recommended_duration_s"`
	Formats             []string        `json:"formats"`
	MaxFileSizeBytes    int64           `json:"max_file_size_bytes"`
	Recommendations     Recommendations `json:"recommendations"`
}

var platforms = map[string]PlatformSpec{
	"youtube": {
		Name: "YouTube", AspectRatios: []string{"16:9", "9:16", "4:3", "1:1"}, DefaultAspectRatio: "16:9",
		MaxDurationS: 43200, RecommendedDuration: 600, Formats: []string{"mp4", "mov", "avi", "webm"},
		MaxFileSizeBytes: 137438953472,
		Recommendations:  Recommendations{"1920x1080", 30, "8-12 Mbps", "384 kbps"},
	},
	"youtube_shorts": {
		Name: "YouTube Shorts", AspectRatios: []string{"9:16"}, DefaultAspectRatio: "9:16",
		MaxDurationS: 60, RecommendedDuration: 30, Formats: []string{"mp4"},
		MaxFileSizeBytes: 1073741824,
		Recommendations:  Recommendations{"1080x1920", 30, "8-10 Mbps", "256 kbps"},
	},
	"tiktok": {
		Name: "TikTok", AspectRatios: []string{"9:16"}, DefaultAspectRatio: "9:16",
		MaxDurationS: 600, RecommendedDuration: 30, Formats: []string{"mp4"},
		MaxFileSizeBytes: 4294967296,
		Recommendations:  Recommendations{"1080x1920", 30, "8-10 Mbps", "256 kbps"},
	},
	"instagram_reel": {
		Name: "Instagram Reel", AspectRatios: []string{"9:16"}, DefaultAspectRatio: "9:16",
		MaxDurationS: 90, RecommendedDuration: 30, Formats: []string{"mp4"},
		MaxFileSizeBytes: 1073741824,
		Recommendations:  Recommendations{"1080x1920", 30, "5-8 Mbps", "192 kbps"},
	},
	"instagram_post": {
		Name: "Instagram Post", AspectRatios: []string{"1:1", "4:5"}, DefaultAspectRatio: "1:1",
		MaxDurationS: 60, RecommendedDuration: 30, Formats: []string{"mp4"},
		MaxFileSizeBytes: 1073741824,
		Recommendations:  Recommendations{"1080x1080", 30, "5-8 Mbps", "192 kbps"},
	},
	"twitter": {
		Name: "Twitter/X", AspectRatios: []string{"16:9", "1:1"}, DefaultAspectRatio: "16:9",
		MaxDurationS: 140, RecommendedDuration: 60, Formats: []string{"mp4"},
		MaxFileSizeBytes: 536870912,
		Recommendations:  Recommendations{"1280x720", 30, "5-6 Mbps", "192 kbps"},
	},
	"linkedin": {
		Name: "LinkedIn", AspectRatios: []string{"16:9", "1:1", "4:5"}, DefaultAspectRatio: "16:9",
		MaxDurationS: 600, RecommendedDuration: 120, Formats: []string{"mp4"},
		MaxFileSizeBytes: 5368709120,
		Recommendations:  Recommendations{"1920x1080", 30, "8-10 Mbps", "256 kbps"},
	},
	"facebook": {
		Name: "Facebook", AspectRatios: []string{"16:9", "9:16", "1:1", "4:5"}, DefaultAspectRatio: "16:9",
		MaxDurationS: 14400, RecommendedDuration: 180, Formats: []string{"mp4", "mov"},
		MaxFileSizeBytes: 10737418240,
		Recommendations:  Recommendations{"1920x1080", 30, "8-12 Mbps", "256 kbps"},
	},
	"custom": {
		Name: "Custom", AspectRatios: []string{"16:9", "9:16", "1:1", "4:5", "4:3", "21:9"}, DefaultAspectRatio: "16:9",
		MaxDurationS: 3600, RecommendedDuration: 300, Formats: []string{"mp4", "mov", "avi", "webm", "mkv"},
		MaxFileSizeBytes: 53687091200,
		Recommendations:  Recommendations{"1920x1080", 30, "10-15 Mbps", "320 kbps"},
	},
}

// Platform returns the registry entry for a tag, falling back to "custom"
// for an unrecognized one.
func Platform(tag string) PlatformSpec {
	if p, ok := platforms[tag]; ok {
		return p
	}
	return platforms["custom"]
}

// KnownPlatform reports whether tag is a registered platform, without the
// custom fallback — used by validation that must reject unknown tags.
func KnownPlatform(tag string) bool {
	_, ok := platforms[tag]
	return ok
}

// AllPlatforms returns every registered platform tag.
func AllPlatforms() []string {
	tags := make([]string, 0, len(platforms))
	for tag := range platforms {
		tags = append(tags, tag)
	}
	return tags
}

var aspectDimensions = map[string][2]int{
	"16:9": {1920, 1080},
	"9:16": {1080, 1920},
	"1:1":  {1080, 1080},
	"4:5":  {864, 1080},
	"4:3":  {1440, 1080},
	"21:9": {2560, 1080},
}

// AspectRatioDimensions derives pixel width/height for an aspect ratio at
// height=1080 for the fixed set, computing arbitrary w:h ratios otherwise.
func AspectRatioDimensions(aspectRatio string) (width, height int, err error) {
	if wh, ok := aspectDimensions[aspectRatio]; ok {
		return wh[0], wh[1], nil
	}
	parts := strings.SplitN(aspectRatio, ":", 2)
	if len(parts) != 2 {
		return 1920, 1080, fmt.Errorf("unrecognized aspect ratio %q, falling back to 16:9", aspectRatio)
	}
	w, errW := strconv.ParseFloat(parts[0], 64)
	h, errH := strconv.ParseFloat(parts[1], 64)
	if errW != nil || errH != nil || h == 0 {
		return 1920, 1080, fmt.Errorf("unrecognized aspect ratio %q, falling back to 16:9", aspectRatio)
	}
	height = 1080
	width = int(float64(height) * (w / h))
	return width, height, nil
}
