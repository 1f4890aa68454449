package provider

// ExtractURL pulls the artifact URL out of an opaque result payload for the
// given task kind. The field order is part of the contract: each kind tries
// a fixed list of paths and returns the first non-empty string found.
func ExtractURL(taskKind string, result map[string]any) (string, bool) {
	var paths [][]string
	switch taskKind {
	case "video":
		paths = [][]string{{"video", "url"}, {"url"}, {"output_url"}}
	case "image":
		paths = [][]string{{"images", "0", "url"}, {"url"}}
	case "audio", "music":
		paths = [][]string{{"audio", "url"}, {"url"}}
	case "speech":
		paths = [][]string{{"audio", "url"}, {"url"}}
	default:
		paths = [][]string{{"url"}}
	}

	for _, path := range paths {
		if url, ok := dig(result, path); ok && url != "" {
			return url, true
		}
	}
	return "", false
}

// ExtractDurationMs pulls a result's reported duration_ms (carried by speech
// results), used by the completion hooks to set the asset's duration_s; a
// reported duration takes precedence over any duration queued with the job.
func ExtractDurationMs(result map[string]any) (float64, bool) {
	if v, ok := result["duration_ms"]; ok {
		if f, ok := toNumber(v); ok {
			return f, true
		}
	}
	return 0, false
}

// dig walks a path of map keys / array indices through a generic decoded
// JSON value, returning the leaf as a string if found.
func dig(v any, path []string) (string, bool) {
	cur := v
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return "", false
			}
			cur = next
		case []any:
			idx, ok := toIndex(key)
			if !ok || idx < 0 || idx >= len(node) {
				return "", false
			}
			cur = node[idx]
		default:
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

func toIndex(key string) (int, bool) {
	n := 0
	if key == "" {
		return 0, false
	}
	for _, c := range key {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
