package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// marshalJSON encodes v as the jsonb column payload. A nil slice still
// produces valid JSON.
func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: marshal jsonb: %w", err)
	}
	return data, nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("stitch/bun: unmarshal jsonb: %w", err)
	}
	return nil
}

func parseOptional(s string, parse func(string) (id.ID, error)) id.ID {
	if s == "" {
		return id.Nil
	}
	parsed, err := parse(s)
	if err != nil {
		return id.Nil
	}
	return parsed
}

// ── Application model ─────────────────────────────────────────────

type applicationModel struct {
	bun.BaseModel `bun:"table:stitch_applications"`

	ID               string     `bun:"id,pk"`
	UserID           string     `bun:"user_id,notnull"`
	Title            string     `bun:"title,notnull"`
	Company          string     `bun:"company,notnull"`
	Description      string     `bun:"description"`
	SourceURL        string     `bun:"source_url"`
	Location         string     `bun:"location"`
	ResumeID         string     `bun:"resume_id"`
	Status           string     `bun:"status,notnull,default:'saved'"`
	TailoredResumeID string     `bun:"tailored_resume_id"`
	CoverLetter      string     `bun:"cover_letter"`
	SubmissionProof  string     `bun:"submission_proof"`
	FailureReason    string     `bun:"failure_reason"`
	AppliedAt        *time.Time `bun:"applied_at"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toApplicationModel(app *application.Application) *applicationModel {
	return &applicationModel{
		ID:               app.ID.String(),
		UserID:           app.UserID.String(),
		Title:            app.Title,
		Company:          app.Company,
		Description:      app.Description,
		SourceURL:        app.SourceURL,
		Location:         app.Location,
		ResumeID:         app.ResumeID.String(),
		Status:           string(app.Status),
		TailoredResumeID: app.TailoredResumeID.String(),
		CoverLetter:      app.CoverLetter,
		SubmissionProof:  app.SubmissionProof,
		FailureReason:    app.FailureReason,
		AppliedAt:        app.AppliedAt,
		CreatedAt:        app.CreatedAt,
		UpdatedAt:        app.UpdatedAt,
	}
}

func fromApplicationModel(m *applicationModel) (*application.Application, error) {
	parsedID, err := id.ParseApplicationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse application id %q: %w", m.ID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse user id %q: %w", m.UserID, err)
	}

	return &application.Application{
		Entity: stitch.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               parsedID,
		UserID:           userID,
		Title:            m.Title,
		Company:          m.Company,
		Description:      m.Description,
		SourceURL:        m.SourceURL,
		Location:         m.Location,
		ResumeID:         parseOptional(m.ResumeID, id.ParseResumeID),
		Status:           application.Status(m.Status),
		TailoredResumeID: parseOptional(m.TailoredResumeID, id.ParseTailoredID),
		CoverLetter:      m.CoverLetter,
		SubmissionProof:  m.SubmissionProof,
		FailureReason:    m.FailureReason,
		AppliedAt:        m.AppliedAt,
	}, nil
}

// ── Resume models ─────────────────────────────────────────────────

type resumeModel struct {
	bun.BaseModel `bun:"table:stitch_resumes"`

	ID         string    `bun:"id,pk"`
	UserID     string    `bun:"user_id,notnull"`
	FullName   string    `bun:"full_name"`
	Headline   string    `bun:"headline"`
	Skills     []byte    `bun:"skills,type:jsonb"`
	Experience []byte    `bun:"experience,type:jsonb"`
	Text       string    `bun:"text"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toResumeModel(r *resume.Resume) (*resumeModel, error) {
	skills, err := marshalJSON(r.Skills)
	if err != nil {
		return nil, err
	}
	experience, err := marshalJSON(r.Experience)
	if err != nil {
		return nil, err
	}
	return &resumeModel{
		ID:         r.ID.String(),
		UserID:     r.UserID.String(),
		FullName:   r.FullName,
		Headline:   r.Headline,
		Skills:     skills,
		Experience: experience,
		Text:       r.Text,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func fromResumeModel(m *resumeModel) (*resume.Resume, error) {
	parsedID, err := id.ParseResumeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse resume id %q: %w", m.ID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse user id %q: %w", m.UserID, err)
	}

	r := &resume.Resume{
		Entity: stitch.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       parsedID,
		UserID:   userID,
		FullName: m.FullName,
		Headline: m.Headline,
		Text:     m.Text,
	}
	if err := unmarshalJSON(m.Skills, &r.Skills); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(m.Experience, &r.Experience); err != nil {
		return nil, err
	}
	return r, nil
}

type tailoredResumeModel struct {
	bun.BaseModel `bun:"table:stitch_tailored_resumes"`

	ID              string    `bun:"id,pk"`
	JobID           string    `bun:"job_id,notnull"`
	UserID          string    `bun:"user_id,notnull"`
	Summary         string    `bun:"summary"`
	Experience      []byte    `bun:"experience,type:jsonb"`
	Skills          []byte    `bun:"skills,type:jsonb"`
	MatchedKeywords []byte    `bun:"matched_keywords,type:jsonb"`
	MissingKeywords []byte    `bun:"missing_keywords,type:jsonb"`
	MatchScore      int       `bun:"match_score,notnull,default:0"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toTailoredResumeModel(tr *resume.TailoredResume) (*tailoredResumeModel, error) {
	experience, err := marshalJSON(tr.Experience)
	if err != nil {
		return nil, err
	}
	skills, err := marshalJSON(tr.Skills)
	if err != nil {
		return nil, err
	}
	matched, err := marshalJSON(tr.MatchedKeywords)
	if err != nil {
		return nil, err
	}
	missing, err := marshalJSON(tr.MissingKeywords)
	if err != nil {
		return nil, err
	}
	return &tailoredResumeModel{
		ID:              tr.ID.String(),
		JobID:           tr.JobID.String(),
		UserID:          tr.UserID.String(),
		Summary:         tr.Summary,
		Experience:      experience,
		Skills:          skills,
		MatchedKeywords: matched,
		MissingKeywords: missing,
		MatchScore:      tr.MatchScore,
		CreatedAt:       tr.CreatedAt,
		UpdatedAt:       tr.UpdatedAt,
	}, nil
}

func fromTailoredResumeModel(m *tailoredResumeModel) (*resume.TailoredResume, error) {
	parsedID, err := id.ParseTailoredID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse tailored id %q: %w", m.ID, err)
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse job id %q: %w", m.JobID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse user id %q: %w", m.UserID, err)
	}

	tr := &resume.TailoredResume{
		Entity: stitch.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:     parsedID,
		JobID:  jobID,
		UserID: userID,
		TailoredContent: resume.TailoredContent{
			Summary:    m.Summary,
			MatchScore: m.MatchScore,
		},
	}
	if err := unmarshalJSON(m.Experience, &tr.Experience); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(m.Skills, &tr.Skills); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(m.MatchedKeywords, &tr.MatchedKeywords); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(m.MissingKeywords, &tr.MissingKeywords); err != nil {
		return nil, err
	}
	return tr, nil
}

// ── Queue item model ──────────────────────────────────────────────

type queueItemModel struct {
	bun.BaseModel `bun:"table:stitch_queue_items"`

	ID               string     `bun:"id,pk"`
	Kind             string     `bun:"kind,notnull"`
	JobID            string     `bun:"job_id,notnull"`
	UserID           string     `bun:"user_id,notnull"`
	ResumeID         string     `bun:"resume_id"`
	TailoredResumeID string     `bun:"tailored_resume_id"`
	Attempt          int        `bun:"attempt,notnull,default:0"`
	MaxAttempts      int        `bun:"max_attempts,notnull,default:3"`
	LastError        string     `bun:"last_error"`
	Terminal         bool       `bun:"terminal,notnull,default:false"`
	ScheduledAt      time.Time  `bun:"scheduled_at,notnull,default:current_timestamp"`
	LeaseExpiresAt   *time.Time `bun:"lease_expires_at"`
	WorkerID         string     `bun:"worker_id"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toQueueItemModel(item *queue.Item) *queueItemModel {
	return &queueItemModel{
		ID:               item.ID.String(),
		Kind:             string(item.Kind),
		JobID:            item.JobID.String(),
		UserID:           item.UserID.String(),
		ResumeID:         item.ResumeID.String(),
		TailoredResumeID: item.TailoredResumeID.String(),
		Attempt:          item.Attempt,
		MaxAttempts:      item.MaxAttempts,
		LastError:        item.LastError,
		Terminal:         item.Terminal,
		ScheduledAt:      item.ScheduledAt,
		LeaseExpiresAt:   item.LeaseExpiresAt,
		WorkerID:         item.WorkerID.String(),
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
}

func fromQueueItemModel(m *queueItemModel) (*queue.Item, error) {
	parsedID, err := id.ParseQueueItemID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse item id %q: %w", m.ID, err)
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse job id %q: %w", m.JobID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse user id %q: %w", m.UserID, err)
	}

	return &queue.Item{
		Entity: stitch.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               parsedID,
		Kind:             queue.Kind(m.Kind),
		JobID:            jobID,
		UserID:           userID,
		ResumeID:         parseOptional(m.ResumeID, id.ParseResumeID),
		TailoredResumeID: parseOptional(m.TailoredResumeID, id.ParseTailoredID),
		Attempt:          m.Attempt,
		MaxAttempts:      m.MaxAttempts,
		LastError:        m.LastError,
		Terminal:         m.Terminal,
		ScheduledAt:      m.ScheduledAt,
		LeaseExpiresAt:   m.LeaseExpiresAt,
		WorkerID:         parseOptional(m.WorkerID, id.ParseWorkerID),
	}, nil
}

// ── DLQ entry model ───────────────────────────────────────────────

type dlqEntryModel struct {
	bun.BaseModel `bun:"table:stitch_dlq"`

	ID               string     `bun:"id,pk"`
	ItemID           string     `bun:"item_id,notnull"`
	Kind             string     `bun:"kind,notnull"`
	JobID            string     `bun:"job_id,notnull"`
	UserID           string     `bun:"user_id,notnull"`
	ResumeID         string     `bun:"resume_id"`
	TailoredResumeID string     `bun:"tailored_resume_id"`
	Error            string     `bun:"error,notnull"`
	Attempts         int        `bun:"attempts,notnull,default:0"`
	MaxAttempts      int        `bun:"max_attempts,notnull,default:3"`
	FailedAt         time.Time  `bun:"failed_at,notnull"`
	ReplayedAt       *time.Time `bun:"replayed_at"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func toDLQModel(entry *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:               entry.ID.String(),
		ItemID:           entry.ItemID.String(),
		Kind:             string(entry.Kind),
		JobID:            entry.JobID.String(),
		UserID:           entry.UserID.String(),
		ResumeID:         entry.ResumeID.String(),
		TailoredResumeID: entry.TailoredResumeID.String(),
		Error:            entry.Error,
		Attempts:         entry.Attempts,
		MaxAttempts:      entry.MaxAttempts,
		FailedAt:         entry.FailedAt,
		ReplayedAt:       entry.ReplayedAt,
		CreatedAt:        entry.CreatedAt,
	}
}

func fromDLQModel(m *dlqEntryModel) (*dlq.Entry, error) {
	parsedID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse dlq id %q: %w", m.ID, err)
	}
	itemID, err := id.ParseQueueItemID(m.ItemID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse item id %q: %w", m.ItemID, err)
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse job id %q: %w", m.JobID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse user id %q: %w", m.UserID, err)
	}

	return &dlq.Entry{
		ID:               parsedID,
		ItemID:           itemID,
		Kind:             queue.Kind(m.Kind),
		JobID:            jobID,
		UserID:           userID,
		ResumeID:         parseOptional(m.ResumeID, id.ParseResumeID),
		TailoredResumeID: parseOptional(m.TailoredResumeID, id.ParseTailoredID),
		Error:            m.Error,
		Attempts:         m.Attempts,
		MaxAttempts:      m.MaxAttempts,
		FailedAt:         m.FailedAt,
		ReplayedAt:       m.ReplayedAt,
		CreatedAt:        m.CreatedAt,
	}, nil
}

// ── Event model ───────────────────────────────────────────────────

type eventModel struct {
	bun.BaseModel `bun:"table:stitch_events"`

	ID     string    `bun:"id,pk"`
	JobID  string    `bun:"job_id,notnull"`
	Type   string    `bun:"type,notnull"`
	Detail string    `bun:"detail"`
	At     time.Time `bun:"at,notnull,default:current_timestamp"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:     evt.ID.String(),
		JobID:  evt.JobID.String(),
		Type:   string(evt.Type),
		Detail: evt.Detail,
		At:     evt.At,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	parsedID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse event id %q: %w", m.ID, err)
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: parse job id %q: %w", m.JobID, err)
	}

	return &event.Event{
		ID:     parsedID,
		JobID:  jobID,
		Type:   event.Type(m.Type),
		Detail: m.Detail,
		At:     m.At,
	}, nil
}
