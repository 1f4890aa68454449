// Package catalog holds the fixed, in-process reference data the rest of
// the system validates and prices against: the provider model registry, the
// cost tables, and the platform spec table.
package catalog

import "fmt"

// ModelSpec describes one provider model: what task kind it serves, which
// durations (for video) it accepts, which extra arguments it fixes or
// constrains, and how to price a job against it.
type ModelSpec struct {
	ModelID         string
	TaskKind        string // matches models.TaskKind values; kept as string to avoid an import cycle
	EndpointPath    string
	ValidDurationsS []int             // video models only; empty = unconstrained
	FixedArgs       map[string]any    // arguments the model always sends regardless of caller input
	SafetyTolerance []string          // coarse enum accepted by image-edit models
	CostFormula     func(args map[string]any) float64
}

// registry is the fixed set of pre-registered models. Two video models with
// disjoint legal durations, and one image-edit model with a fixed numeric
// parameter and a safety-tolerance enum, are always present.
var registry = map[string]*ModelSpec{
	"video-A": {
		ModelID:         "video-A",
		TaskKind:        "video",
		EndpointPath:    "/video/video-a/image-to-video",
		ValidDurationsS: []int{5, 10},
		CostFormula: func(args map[string]any) float64 {
			return round3(PerSecond("video-A") * toFloat(args["duration_s"]))
		},
	},
	"video-B": {
		ModelID:         "video-B",
		TaskKind:        "video",
		EndpointPath:    "/video/video-b/image-to-video",
		ValidDurationsS: []int{6, 10},
		CostFormula: func(args map[string]any) float64 {
			return round3(PerSecond("video-B") * toFloat(args["duration_s"]))
		},
	},
	"image-gen": {
		ModelID:      "image-gen",
		TaskKind:     "image",
		EndpointPath: "/image/image-gen/text-to-image",
		CostFormula: func(args map[string]any) float64 {
			return PerImage("image-gen")
		},
	},
	"image-edit": {
		ModelID:         "image-edit",
		TaskKind:        "image",
		EndpointPath:    "/image/image-edit/image-to-image",
		FixedArgs:       map[string]any{"guidance_scale": 3.5},
		SafetyTolerance: []string{"strict", "moderate", "permissive"},
		CostFormula: func(args map[string]any) float64 {
			return PerImage("image-edit")
		},
	},
	"music-gen": {
		ModelID:      "music-gen",
		TaskKind:     "music",
		EndpointPath: "/audio/music-gen/text-to-music",
		CostFormula: func(args map[string]any) float64 {
			return MusicCost(toFloat(args["duration_s"]))
		},
	},
	"speech-gen": {
		ModelID:      "speech-gen",
		TaskKind:     "speech",
		EndpointPath: "/audio/speech-gen/text-to-speech",
		CostFormula: func(args map[string]any) float64 {
			text, _ := args["text"].(string)
			return SpeechCost(text)
		},
	},
}

// Lookup returns the registered spec for a model id, or an error naming the
// unknown id; callers take the valid set from AllModelIDs.
func Lookup(modelID string) (*ModelSpec, error) {
	spec, ok := registry[modelID]
	if !ok {
		return nil, fmt.Errorf("unknown model_id %q", modelID)
	}
	return spec, nil
}

// ValidateDuration checks a requested video duration against the model's
// accepted set. A model with no constraint accepts any positive duration.
func (m *ModelSpec) ValidateDuration(durationS int) error {
	if len(m.ValidDurationsS) == 0 {
		if durationS <= 0 {
			return fmt.Errorf("duration_s must be positive")
		}
		return nil
	}
	for _, d := range m.ValidDurationsS {
		if d == durationS {
			return nil
		}
	}
	return fmt.Errorf("duration_s %d not valid for %s (valid: %v)", durationS, m.ModelID, m.ValidDurationsS)
}

// AllModelIDs returns every registered model id, for validation error
// valid_options lists.
func AllModelIDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
