package scoring

import (
	"strings"

	"cvtailor/internal/types"
)

const (
	leadingPunct  = "\"'`*•·-–,;:!?"
	trailingPunct = "\"'`*•·,;:!?."
)

var closingBracket = map[byte]byte{
	'(': ')',
	'[': ']',
	'{': '}',
}

// NormalizeSkill lower-cases a skill, collapses whitespace and strips surrounding
// punctuation and wrapping brackets. A leading "." is kept so ".net" survives, as
// do inner symbols such as "c++" or "node.js".
func NormalizeSkill(skill string) string {
	s := strings.ToLower(skill)
	for {
		next := trimOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func trimOnce(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimLeft(s, leadingPunct)
	s = strings.TrimRight(s, trailingPunct)
	if isWrapped(s) {
		s = s[1 : len(s)-1]
	}
	return s
}

// isWrapped reports whether s is fully enclosed by one matching bracket pair,
// e.g. "(aws)" but not "(a) and (b)".
func isWrapped(s string) bool {
	if len(s) < 2 {
		return false
	}
	open := s[0]
	closer, ok := closingBracket[open]
	if !ok || s[len(s)-1] != closer {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 && i < len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// NormalizeList normalizes every entry, drops empties and removes duplicates while
// keeping first-seen order. The result is never nil.
func NormalizeList(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, raw := range skills {
		s := NormalizeSkill(raw)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NormalizeSkillSet returns a new SkillSet with every category normalized.
// It is a matching-time step: raw extraction counts must be taken from the
// input before calling it.
func NormalizeSkillSet(set types.SkillSet) types.SkillSet {
	return types.SkillSet{
		TechnicalSkills: NormalizeList(set.TechnicalSkills),
		SoftSkills:      NormalizeList(set.SoftSkills),
		DomainKeywords:  NormalizeList(set.DomainKeywords),
	}
}

// NormalizeJobSkillSet is NormalizeSkillSet for the job description side,
// including required and preferred keywords.
func NormalizeJobSkillSet(set types.JobSkillSet) types.JobSkillSet {
	return types.JobSkillSet{
		SkillSet:          NormalizeSkillSet(set.SkillSet),
		RequiredKeywords:  NormalizeList(set.RequiredKeywords),
		PreferredKeywords: NormalizeList(set.PreferredKeywords),
	}
}
