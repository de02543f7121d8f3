package matching

import (
	"math"
	"strings"

	"cvtailor/internal/scoring"
	"cvtailor/internal/types"
)

// skillSynonyms maps normalized spellings onto one canonical form
var skillSynonyms = map[string]string{
	"golang":                  "go",
	"postgresql":              "postgres",
	"javascript":              "js",
	"typescript":              "ts",
	"kubernetes":              "k8s",
	"amazon web services":     "aws",
	"google cloud platform":   "gcp",
	"google cloud":            "gcp",
	"microsoft azure":         "azure",
	"nodejs":                  "node.js",
	"node":                    "node.js",
	"reactjs":                 "react",
	"react.js":                "react",
	"machine learning":        "ml",
	"artificial intelligence": "ai",
	"continuous integration":  "ci/cd",
}

// CategoryMatch is the outcome of matching one job description category
type CategoryMatch struct {
	Matched   []string `json:"matched"`
	Missing   []string `json:"missing"`
	MatchRate float64  `json:"match_rate"`
}

// Result carries everything the scoring engine needs from keyword matching.
// RawCounts are taken before normalization and never replaced by
// DeduplicatedCounts.
type Result struct {
	TechnicalSkills    CategoryMatch            `json:"technical_skills"`
	SoftSkills         CategoryMatch            `json:"soft_skills"`
	DomainKeywords     CategoryMatch            `json:"domain_keywords"`
	RequiredKeywords   CategoryMatch            `json:"required_keywords"`
	PreferredKeywords  CategoryMatch            `json:"preferred_keywords"`
	MatchRates         types.MatchRates         `json:"match_rates"`
	MissingSkillCounts types.MissingSkillCounts `json:"missing_skill_counts"`
	MatchCounts        types.MatchCounts        `json:"match_counts"`
	RawCounts          types.ExtractionCounts   `json:"raw_extraction_counts"`
	DeduplicatedCounts types.ExtractionCounts   `json:"deduplicated_counts"`
}

// Matcher compares CV skills against job description skills
type Matcher struct {
	synonyms map[string]string
}

// NewMatcher returns a matcher with the built-in synonym table plus any extra
// entries. Extra keys and values are normalized first.
func NewMatcher(extra map[string]string) *Matcher {
	synonyms := make(map[string]string, len(skillSynonyms)+len(extra))
	for k, v := range skillSynonyms {
		synonyms[k] = v
	}
	for k, v := range extra {
		synonyms[scoring.NormalizeSkill(k)] = scoring.NormalizeSkill(v)
	}
	return &Matcher{synonyms: synonyms}
}

func (m *Matcher) canonical(skill string) string {
	if c, ok := m.synonyms[skill]; ok {
		return c
	}
	return skill
}

// Match normalizes both sides and matches every job description category
// against the whole CV, so a domain keyword listed under CV technical skills
// still counts. An empty job category is a 100% match.
func (m *Matcher) Match(cv types.SkillSet, jd types.JobSkillSet) Result {
	raw := types.ExtractionCounts{CV: cv.Counts(), JobDescription: jobCounts(jd)}

	normCV := scoring.NormalizeSkillSet(cv)
	normJD := scoring.NormalizeJobSkillSet(jd)

	pool := m.pool(normCV)

	res := Result{
		TechnicalSkills:   m.matchCategory(normJD.TechnicalSkills, pool),
		SoftSkills:        m.matchCategory(normJD.SoftSkills, pool),
		DomainKeywords:    m.matchCategory(normJD.DomainKeywords, pool),
		RequiredKeywords:  m.matchCategory(normJD.RequiredKeywords, pool),
		PreferredKeywords: m.matchCategory(normJD.PreferredKeywords, pool),
		RawCounts:         raw,
		DeduplicatedCounts: types.ExtractionCounts{
			CV:             normCV.Counts(),
			JobDescription: jobCounts(normJD),
		},
	}

	res.MatchRates = types.MatchRates{
		Technical: res.TechnicalSkills.MatchRate,
		Soft:      res.SoftSkills.MatchRate,
		Domain:    res.DomainKeywords.MatchRate,
	}
	res.MissingSkillCounts = types.MissingSkillCounts{
		TechnicalSkills: len(res.TechnicalSkills.Missing),
		SoftSkills:      len(res.SoftSkills.Missing),
		DomainKeywords:  len(res.DomainKeywords.Missing),
	}
	res.MatchCounts = types.MatchCounts{
		TotalRequiredKeywords:  len(normJD.RequiredKeywords),
		TotalPreferredKeywords: len(normJD.PreferredKeywords),
		MatchedRequiredCount:   len(res.RequiredKeywords.Matched),
		MatchedPreferredCount:  len(res.PreferredKeywords.Matched),
	}
	return res
}

// jobCounts counts the three skill categories only, so CV and job description
// totals are comparable.
func jobCounts(jd types.JobSkillSet) types.SkillCounts {
	return jd.SkillSet.Counts()
}

type skillPool struct {
	canonical map[string]struct{}
	phrases   []string
}

func (m *Matcher) pool(cv types.SkillSet) skillPool {
	p := skillPool{canonical: make(map[string]struct{})}
	for _, list := range [][]string{cv.TechnicalSkills, cv.SoftSkills, cv.DomainKeywords} {
		for _, s := range list {
			p.canonical[m.canonical(s)] = struct{}{}
			p.phrases = append(p.phrases, " "+s+" ")
		}
	}
	return p
}

func (m *Matcher) matchCategory(wanted []string, pool skillPool) CategoryMatch {
	result := CategoryMatch{Matched: []string{}, Missing: []string{}}
	for _, skill := range wanted {
		if m.contains(pool, skill) {
			result.Matched = append(result.Matched, skill)
		} else {
			result.Missing = append(result.Missing, skill)
		}
	}
	if len(wanted) == 0 {
		result.MatchRate = 100
		return result
	}
	result.MatchRate = math.Round(float64(len(result.Matched))/float64(len(wanted))*10000) / 100
	return result
}

// contains matches on the canonical form first, then on the skill appearing as
// whole words inside a longer CV phrase ("kubernetes" in "kubernetes operators").
func (m *Matcher) contains(pool skillPool, skill string) bool {
	if _, ok := pool.canonical[m.canonical(skill)]; ok {
		return true
	}
	needle := " " + skill + " "
	for _, phrase := range pool.phrases {
		if strings.Contains(phrase, needle) {
			return true
		}
	}
	return false
}
