package services

import "strings"

// deriveTags builds search keywords from a file name and mime type: the
// whitespace-separated words of the name plus the two halves of the mime
// type, lowercased and deduplicated in first-seen order.
func deriveTags(name, mimeType string) []string {
	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.ToLower(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, word := range strings.Fields(name) {
		add(word)
	}
	for _, part := range strings.Split(mimeType, "/") {
		add(part)
	}
	return tags
}
