package collector

import (
	"regexp"
	"strings"
)

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.]+)`)
)

// ExtractHashtags returns the hashtags in a caption, marker stripped,
// lowercased, de-duplicated, in order of first appearance
func ExtractHashtags(caption string) []string {
	return extractTokens(hashtagPattern, caption, true)
}

// ExtractMentions returns the mentioned usernames in a caption, marker
// stripped, de-duplicated, in order of first appearance
func ExtractMentions(caption string) []string {
	return extractTokens(mentionPattern, caption, false)
}

func extractTokens(pattern *regexp.Regexp, text string, lowercase bool) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, match := range matches {
		token := strings.TrimRight(match[1], ".")
		if token == "" {
			continue
		}
		if lowercase {
			token = strings.ToLower(token)
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}
