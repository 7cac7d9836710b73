package sqlitestore

import (
	"time"

	"gorm.io/datatypes"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

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

type applicationModel struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"index:idx_applications_user"`
	Title            string
	Company          string
	Description      string
	SourceURL        string
	Location         string
	ResumeID         string
	Status           string `gorm:"index"`
	TailoredResumeID string
	CoverLetter      string
	SubmissionProof  string
	FailureReason    string
	AppliedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (applicationModel) TableName() string { return "applications" }

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
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	return &application.Application{
		Entity:           stitch.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
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

type resumeModel struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index"`
	FullName   string
	Headline   string
	Skills     datatypes.JSONSlice[string]
	Experience datatypes.JSONSlice[resume.Experience]
	Text       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (resumeModel) TableName() string { return "resumes" }

func toResumeModel(r *resume.Resume) *resumeModel {
	return &resumeModel{
		ID:         r.ID.String(),
		UserID:     r.UserID.String(),
		FullName:   r.FullName,
		Headline:   r.Headline,
		Skills:     datatypes.NewJSONSlice(r.Skills),
		Experience: datatypes.NewJSONSlice(r.Experience),
		Text:       r.Text,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func fromResumeModel(m *resumeModel) (*resume.Resume, error) {
	parsedID, err := id.ParseResumeID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	return &resume.Resume{
		Entity:     stitch.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         parsedID,
		UserID:     userID,
		FullName:   m.FullName,
		Headline:   m.Headline,
		Skills:     m.Skills,
		Experience: m.Experience,
		Text:       m.Text,
	}, nil
}

type tailoredResumeModel struct {
	ID              string `gorm:"primaryKey"`
	JobID           string `gorm:"index:idx_tailored_job"`
	UserID          string
	Summary         string
	Experience      datatypes.JSONSlice[resume.TailoredExperience]
	Skills          datatypes.JSONSlice[string]
	MatchedKeywords datatypes.JSONSlice[string]
	MissingKeywords datatypes.JSONSlice[string]
	MatchScore      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (tailoredResumeModel) TableName() string { return "tailored_resumes" }

func toTailoredResumeModel(tr *resume.TailoredResume) *tailoredResumeModel {
	return &tailoredResumeModel{
		ID:              tr.ID.String(),
		JobID:           tr.JobID.String(),
		UserID:          tr.UserID.String(),
		Summary:         tr.Summary,
		Experience:      datatypes.NewJSONSlice(tr.Experience),
		Skills:          datatypes.NewJSONSlice(tr.Skills),
		MatchedKeywords: datatypes.NewJSONSlice(tr.MatchedKeywords),
		MissingKeywords: datatypes.NewJSONSlice(tr.MissingKeywords),
		MatchScore:      tr.MatchScore,
		CreatedAt:       tr.CreatedAt,
		UpdatedAt:       tr.UpdatedAt,
	}
}

func fromTailoredResumeModel(m *tailoredResumeModel) (*resume.TailoredResume, error) {
	parsedID, err := id.ParseTailoredID(m.ID)
	if err != nil {
		return nil, err
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	return &resume.TailoredResume{
		Entity: stitch.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     parsedID,
		JobID:  jobID,
		UserID: userID,
		TailoredContent: resume.TailoredContent{
			Summary:         m.Summary,
			Experience:      m.Experience,
			Skills:          m.Skills,
			MatchedKeywords: m.MatchedKeywords,
			MissingKeywords: m.MissingKeywords,
			MatchScore:      m.MatchScore,
		},
	}, nil
}

type queueItemModel struct {
	ID               string `gorm:"primaryKey"`
	Kind             string `gorm:"index"`
	JobID            string `gorm:"index:idx_items_job"`
	UserID           string
	ResumeID         string
	TailoredResumeID string
	Attempt          int
	MaxAttempts      int
	LastError        string
	Terminal         bool `gorm:"index"`
	ScheduledAt      time.Time
	LeaseExpiresAt   *time.Time
	WorkerID         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (queueItemModel) TableName() string { return "queue_items" }

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
		return nil, err
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	return &queue.Item{
		Entity:           stitch.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
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

type dlqEntryModel struct {
	ID               string `gorm:"primaryKey"`
	ItemID           string
	Kind             string
	JobID            string `gorm:"index:idx_dlq_job"`
	UserID           string
	ResumeID         string
	TailoredResumeID string
	Error            string
	Attempts         int
	MaxAttempts      int
	FailedAt         time.Time `gorm:"index"`
	ReplayedAt       *time.Time
	CreatedAt        time.Time
}

func (dlqEntryModel) TableName() string { return "dlq_entries" }

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
		return nil, err
	}
	itemID, err := id.ParseQueueItemID(m.ItemID)
	if err != nil {
		return nil, err
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
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

type eventModel struct {
	ID     string `gorm:"primaryKey"`
	JobID  string `gorm:"index:idx_events_job"`
	Type   string
	Detail string
	At     time.Time
}

func (eventModel) TableName() string { return "events" }

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
		return nil, err
	}
	jobID, err := id.ParseApplicationID(m.JobID)
	if err != nil {
		return nil, err
	}
	return &event.Event{
		ID:     parsedID,
		JobID:  jobID,
		Type:   event.Type(m.Type),
		Detail: m.Detail,
		At:     m.At,
	}, nil
}
