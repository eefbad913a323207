package lookup

import (
	"strings"
	"unicode"
)

const maxVariants = 10

// skillAliases maps shorthand a recruiter types to the names the skills
// table uses.
var skillAliases = map[string][]string{
	"js":               {"javascript"},
	"ts":               {"typescript"},
	"golang":           {"go"},
	"k8s":              {"kubernetes"},
	"ml":               {"machine learning"},
	"ai":               {"artificial intelligence"},
	"nodejs":           {"node"},
	"reactjs":          {"react"},
	"postgres":         {"postgresql"},
	"machine learning": {"ml"},
}

// normalizeQuery lowercases input, drops punctuation and collapses spaces.
// '+' and '#' survive so that "c++" and "c#" stay distinct from "c".
func normalizeQuery(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	b := strings.Builder{}
	b.Grow(len(input))
	lastWasSpace := false
	for _, r := range input {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '+' || r == '#':
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if b.Len() == 0 || lastWasSpace {
				continue
			}
			b.WriteByte(' ')
			lastWasSpace = true
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// expandQuery returns the normalized query followed by its alias variants.
func expandQuery(normalized string) []string {
	if normalized == "" {
		return nil
	}

	out := make([]string, 0, maxVariants)
	seen := make(map[string]struct{}, maxVariants)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(normalized)
	for _, a := range skillAliases[normalized] {
		add(a)
	}

	// "machinelearning" -> "machine learning"
	if !strings.Contains(normalized, " ") {
		for k, aliases := range skillAliases {
			if !strings.Contains(k, " ") || strings.ReplaceAll(k, " ", "") != normalized {
				continue
			}
			add(k)
			for _, a := range aliases {
				add(a)
			}
			break
		}
	}

	if len(out) > maxVariants {
		out = out[:maxVariants]
	}
	return out
}
