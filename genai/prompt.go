package genai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/stitchhq/stitch/resume"
)

// maxJobDescriptionLen bounds the job description sent upstream to
// control cost and latency.
const maxJobDescriptionLen = 3000

const systemPrompt = `You are a resume-tailoring assistant. You rewrite resume content to emphasize relevance to a specific job description. You never invent skills, technologies, or experience that are not present in the source resume. Skills required by the job but absent from the resume go only in missing_keywords. Respond with a single JSON object and nothing else.`

const outputContract = `Respond with JSON of this exact shape:
{
  "summary": "rewritten professional summary",
  "experience": [
    {"company": "", "role": "", "location": "", "dates": "", "bullets": ["rewritten bullet"]}
  ],
  "skills": ["skill present in the source resume"],
  "matched_keywords": ["job keyword present in the resume"],
  "missing_keywords": ["job keyword absent from the resume"],
  "match_score": 0
}
match_score is an integer from 0 to 100.`

// buildPrompt serializes the resume as structured JSON and assembles
// the user prompt. The job description is truncated to a bounded length.
func buildPrompt(src *resume.Resume, jobTitle, company, jobDescription string) (string, error) {
	resumeJSON, err := json.MarshalIndent(struct {
		FullName   string              `json:"full_name"`
		Headline   string              `json:"headline,omitempty"`
		Skills     []string            `json:"skills"`
		Experience []resume.Experience `json:"experience"`
		Text       string              `json:"text"`
	}{
		FullName:   src.FullName,
		Headline:   src.Headline,
		Skills:     src.Skills,
		Experience: src.Experience,
		Text:       src.Text,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("genai: marshal resume: %w", err)
	}

	desc := jobDescription
	if len(desc) > maxJobDescriptionLen {
		cut := maxJobDescriptionLen
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
		desc = desc[:cut]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tailor the following resume for this job.\n\n")
	fmt.Fprintf(&b, "Job title: %s\nCompany: %s\n\nJob description:\n%s\n\n", jobTitle, company, desc)
	fmt.Fprintf(&b, "Source resume:\n%s\n\n%s", resumeJSON, outputContract)
	return b.String(), nil
}
