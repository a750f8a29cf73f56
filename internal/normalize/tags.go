package normalize

import (
	"strings"
	"unicode"
)

// ExtractTags returns the #tag tokens in content, deduplicated in order of
// first appearance. Tags inside fenced code blocks and inline code spans are
// ignored, as are markdown headings.
func ExtractTags(content string) []string {
	var tags []string
	seen := map[string]bool{}

	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		for _, tag := range scanLine(line) {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// scanLine finds tags on a single line outside inline code spans.
func scanLine(line string) []string {
	var tags []string
	runes := []rune(line)
	inCode := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '`' {
			inCode = !inCode
			continue
		}
		if inCode || r != '#' {
			continue
		}
		if i > 0 && !unicode.IsSpace(runes[i-1]) {
			continue
		}

		j := i + 1
		for j < len(runes) && isTagRune(runes[j]) {
			j++
		}
		tag := strings.TrimRight(string(runes[i+1:j]), "/")
		if tag != "" {
			tags = append(tags, tag)
		}
		i = j - 1
	}
	return tags
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '/'
}
