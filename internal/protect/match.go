package protect

import (
	"path"
	"strings"
)

// Match reports whether a slash-separated path matches pattern. Segments
// follow path.Match; a "**" segment matches zero or more whole segments.
func Match(name, pattern string) bool {
	return matchSegments(strings.Split(name, "/"), strings.Split(pattern, "/"))
}

func matchSegments(name, pattern []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(name[i:], rest) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, err := path.Match(pattern[0], name[0]); err != nil || !ok {
			return false
		}
		name, pattern = name[1:], pattern[1:]
	}
	return len(name) == 0
}
