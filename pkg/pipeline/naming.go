package pipeline

import "strings"

// CommonPrefix returns the character-wise longest common prefix of
// urls, truncated back through the last '/' so it never splits a path
// segment. The result is either empty or ends in '/'.
func CommonPrefix(urls []string) string {
	if len(urls) == 0 {
		return ""
	}

	prefix := urls[0]
	for _, u := range urls[1:] {
		if len(u) < len(prefix) {
			prefix = prefix[:len(u)]
		}
		for i := 0; i < len(prefix); i++ {
			if u[i] != prefix[i] {
				prefix = prefix[:i]
				break
			}
		}
	}

	if !strings.HasSuffix(prefix, "/") {
		idx := strings.LastIndex(prefix, "/")
		if idx < 0 {
			return ""
		}
		prefix = prefix[:idx+1]
	}

	return prefix
}

// DestName maps url to its file name under the download directory: the
// batch's shared prefix is stripped and the remaining path separators
// become underscores, so one flat directory holds the whole batch
// without collisions. A URL equal to the prefix falls back to its last
// path segment.
func DestName(url, commonPrefix string) string {
	name := strings.TrimPrefix(url, commonPrefix)
	if name == "" {
		if idx := strings.LastIndex(url, "/"); idx >= 0 {
			name = url[idx+1:]
		} else {
			name = url
		}
	}
	return strings.ReplaceAll(name, "/", "_")
}
