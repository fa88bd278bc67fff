package filter

import "path/filepath"

// Match reports whether pattern matches path under rsync's wildcard
// algebra: "**" matches zero or more whole path segments (crossing
// slashes), while "*", "?", and "[...]" within a segment match the way
// path/filepath.Match defines them (never crossing a slash). Both
// pattern and path are expected to already be slash-separated relative
// paths with no leading or trailing slash.
func Match(pattern, path string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(path))
}

func splitSegments(s string) []string {
	if s == "" {
		return nil
	}
	var segments []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			segments = append(segments, s[start:i])
			start = i + 1
		}
	}
	segments = append(segments, s[start:])
	return segments
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}
