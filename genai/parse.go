package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stitchhq/stitch/resume"
)

// rawContent mirrors the expected model output. Every field is optional
// at parse time; normalization fills the gaps.
type rawContent struct {
	Summary    string `json:"summary"`
	Experience []struct {
		Company  string   `json:"company"`
		Role     string   `json:"role"`
		Location string   `json:"location"`
		Dates    string   `json:"dates"`
		Bullets  []string `json:"bullets"`
	} `json:"experience"`
	Skills          []string `json:"skills"`
	MatchedKeywords []string `json:"matched_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	MatchScore      *int     `json:"match_score"`
}

// stripFences removes a surrounding markdown code fence, which chat
// models add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseContent parses raw model output into normalized tailored content.
// The overall structure must parse as JSON; individual missing fields
// are normalized to empty values rather than rejected. Experience
// entries without bullets are dropped and the match score is clamped
// to [0,100].
func parseContent(raw string) (*resume.TailoredContent, error) {
	var rc rawContent
	if err := json.Unmarshal([]byte(stripFences(raw)), &rc); err != nil {
		return nil, &GenerationError{Reason: ReasonMalformedOutput, Err: fmt.Errorf("parse output: %w", err)}
	}

	content := &resume.TailoredContent{
		Summary:         rc.Summary,
		Skills:          emptyIfNil(rc.Skills),
		MatchedKeywords: emptyIfNil(rc.MatchedKeywords),
		MissingKeywords: emptyIfNil(rc.MissingKeywords),
	}

	for _, e := range rc.Experience {
		if len(e.Bullets) == 0 {
			continue
		}
		content.Experience = append(content.Experience, resume.TailoredExperience{
			Company:  e.Company,
			Role:     e.Role,
			Location: e.Location,
			Dates:    e.Dates,
			Bullets:  e.Bullets,
		})
	}
	if content.Experience == nil {
		content.Experience = []resume.TailoredExperience{}
	}

	if rc.MatchScore != nil {
		score := *rc.MatchScore
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		content.MatchScore = score
	}

	return content, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// auditFabrication logs skills in the tailored content that do not
// appear anywhere in the source resume. The prompt contract forbids
// fabrication; a violation here is a quality defect to log, not a hard
// failure.
func auditFabrication(logger *slog.Logger, src *resume.Resume, content *resume.TailoredContent) {
	known := make(map[string]struct{}, len(src.Skills))
	for _, s := range src.Skills {
		known[strings.ToLower(s)] = struct{}{}
	}
	haystack := strings.ToLower(src.Text)

	var fabricated []string
	for _, s := range content.Skills {
		if _, ok := known[strings.ToLower(s)]; ok {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(s)) {
			continue
		}
		fabricated = append(fabricated, s)
	}

	if len(fabricated) > 0 {
		logger.Warn("tailored content contains skills absent from source resume",
			slog.String("resume_id", src.ID.String()),
			slog.Any("skills", fabricated),
		)
	}
}
