// Package resume defines source resumes, AI-tailored resumes, and their
// persistence contracts.
package resume

import (
	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
)

// Experience is one position on a source resume.
type Experience struct {
	Company  string   `json:"company"`
	Role     string   `json:"role"`
	Location string   `json:"location,omitempty"`
	Dates    string   `json:"dates,omitempty"`
	Bullets  []string `json:"bullets"`
}

// Resume is the structured tailoring input. Text is the extracted plain
// text of the uploaded document; tailoring cannot run without it.
type Resume struct {
	stitch.Entity

	ID         id.ResumeID  `json:"id"`
	UserID     id.UserID    `json:"user_id"`
	FullName   string       `json:"full_name"`
	Headline   string       `json:"headline,omitempty"`
	Skills     []string     `json:"skills"`
	Experience []Experience `json:"experience"`
	Text       string       `json:"text"`
}

// TailoredExperience is one rewritten position in a tailored resume.
// Bullets is never empty; entries without bullets are dropped during
// output normalization.
type TailoredExperience struct {
	Company  string   `json:"company"`
	Role     string   `json:"role"`
	Location string   `json:"location,omitempty"`
	Dates    string   `json:"dates,omitempty"`
	Bullets  []string `json:"bullets"`
}

// TailoredContent is the structured output of one generation run.
type TailoredContent struct {
	Summary         string               `json:"summary"`
	Experience      []TailoredExperience `json:"experience"`
	Skills          []string             `json:"skills"`
	MatchedKeywords []string             `json:"matched_keywords"`
	MissingKeywords []string             `json:"missing_keywords"`

	// MatchScore estimates fit in [0,100].
	MatchScore int `json:"match_score"`
}

// TailoredResume is one AI-generated result for a (resume, job) pair.
// Rows are appended, never deleted by the pipeline; "most recent" is a
// read-time policy.
type TailoredResume struct {
	stitch.Entity

	ID     id.TailoredID    `json:"id"`
	JobID  id.ApplicationID `json:"job_id"`
	UserID id.UserID        `json:"user_id"`

	TailoredContent
}
