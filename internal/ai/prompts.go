package ai

import (
	"fmt"
	"strings"

	"cvtailor/internal/config"
)

// Prompt names. Custom templates in the configuration use the same keys.
const (
	PromptCVSkills   = "cv_skills"
	PromptJDSkills   = "jd_skills"
	PromptSkills     = "skills"
	PromptExperience = "experience"
	PromptIndustry   = "industry"
	PromptSeniority  = "seniority"
	PromptTechnical  = "technical"
)

// AnalyzerPrompts lists the component analyzers in scoring order
var AnalyzerPrompts = []string{PromptSkills, PromptExperience, PromptIndustry, PromptSeniority, PromptTechnical}

const defaultExtractSystemPrompt = `You extract skills from recruiting documents. Only list what the text actually states; never infer or invent skills.
Return a single JSON object and nothing else.`

const defaultAnalyzeSystemPrompt = `You are an experienced technical recruiter comparing a candidate CV with a job description.
Scores are integers from 0 to 100. Base every judgement on evidence in the two documents.
Return a single JSON object and nothing else.`

// defaultTemplates hold one %s per document; analyzer templates take the CV first
var defaultTemplates = map[string]string{
	PromptCVSkills: `Extract the skills from this CV.

Return JSON: {"technical_skills": [string], "soft_skills": [string], "domain_keywords": [string]}
- technical_skills: languages, frameworks, tools, platforms
- soft_skills: interpersonal and working-style skills
- domain_keywords: industries, business domains, regulations

CV:
%s`,

	PromptJDSkills: `Extract the skills from this job description.

Return JSON: {"technical_skills": [string], "soft_skills": [string], "domain_keywords": [string], "required_keywords": [string], "preferred_keywords": [string]}
- required_keywords: skills the posting marks as required or must-have
- preferred_keywords: skills marked as preferred, nice to have or a plus

Job description:
%s`,

	PromptSkills: `Rate how relevant the candidate's skills are to the job.

Return JSON: {"skills_analysis": {"overall_skills_score": int, "strong_matches": [string], "gaps": [string], "summary": string}}

CV:
%s

Job description:
%s`,

	PromptExperience: `Rate how well the candidate's experience aligns with the job.

Return JSON: {"experience_analysis": {"alignment_score": int, "cv_experience_years": number, "required_experience_years": number, "cv_role_level": "Junior|Mid|Senior|Lead|Principal|Staff", "summary": string}}

CV:
%s

Job description:
%s`,

	PromptIndustry: `Rate how well the candidate's industry background fits the job.

Return JSON: {"industry_analysis": {"industry_alignment_score": int, "cv_industries": [string], "target_industry": string, "summary": string}}

CV:
%s

Job description:
%s`,

	PromptSeniority: `Rate how well the candidate's seniority matches the role.

Return JSON: {"seniority_analysis": {"seniority_score": int, "cv_experience_years": number, "cv_responsibility_scope": "Junior|Mid|Senior|Lead|Principal|Staff", "target_level": string, "summary": string}}

CV:
%s

Job description:
%s`,

	PromptTechnical: `Rate the depth of the candidate's technical expertise for this job.

Return JSON: {"technical_analysis": {"technical_depth_score": int, "depth_areas": [string], "shallow_areas": [string], "summary": string}}

CV:
%s

Job description:
%s`,
}

// PromptSet resolves prompts for one operation: configured values win over
// built-in defaults.
type PromptSet struct {
	system    string
	templates map[string]string
}

// NewPromptSet builds the prompt set for an operation from its resolved configuration
func NewPromptSet(operation string, prompts config.PromptConfig) PromptSet {
	system := prompts.System
	if system == "" {
		system = defaultExtractSystemPrompt
		if operation == config.OperationAnalyze {
			system = defaultAnalyzeSystemPrompt
		}
	}

	templates := make(map[string]string, len(defaultTemplates))
	for name, tmpl := range defaultTemplates {
		templates[name] = tmpl
	}
	for name, tmpl := range prompts.Templates {
		if strings.TrimSpace(tmpl) != "" {
			templates[name] = tmpl
		}
	}
	return PromptSet{system: system, templates: templates}
}

// System returns the system prompt
func (p PromptSet) System() string {
	return p.system
}

// Render fills the named template with documents in order
func (p PromptSet) Render(name string, documents ...string) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	args := make([]any, len(documents))
	for i, d := range documents {
		args[i] = d
	}
	return fmt.Sprintf(tmpl, args...), nil
}
