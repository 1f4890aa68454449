package catalog

import "math"

// perModelRate holds the per-unit price of each distinctly-priced model,
// grounded on the original pricing table: image models bill per artifact,
// video models bill per second, music bills per 30-second block, speech
// bills per 1000-character block.
var perModelRate = map[string]float64{
	"image-gen":  0.04,
	"image-edit": 0.04,
	"video-A":    0.05,
	"video-B":    0.045,
}

const (
	musicPer30s      = 0.10
	speechPer1000Chr = 0.10
)

// PerImage returns the flat per-artifact price for an image model.
func PerImage(modelID string) float64 {
	return round3(perModelRate[modelID])
}

// PerSecond returns the per-second price for a video model.
func PerSecond(modelID string) float64 {
	return perModelRate[modelID]
}

// MusicCost prices a music generation, rounding the duration up to the next
// 30-second block.
func MusicCost(durationS float64) float64 {
	chunks := math.Ceil(durationS / 30)
	if chunks < 1 {
		chunks = 1
	}
	return round3(musicPer30s * chunks)
}

// SpeechCost prices a speech generation, rounding the input text length up
// to the next 1000-character block.
func SpeechCost(text string) float64 {
	chunks := math.Ceil(float64(len(text)) / 1000)
	if chunks < 1 {
		chunks = 1
	}
	return round3(speechPer1000Chr * chunks)
}

// round3 rounds to 3 decimal places, the project-wide cost convention.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
