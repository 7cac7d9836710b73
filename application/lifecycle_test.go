package application

import (
	"errors"
	"testing"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
)

func newApp(status Status, withResume bool) *Application {
	app := New(id.NewUserID(), "Backend Engineer", "Acme", "Build services.")
	app.Status = status
	if withResume {
		app.ResumeID = id.NewResumeID()
	}
	return app
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusSaved, StatusTailoring, true},
		{StatusTailoring, StatusTailored, true},
		{StatusTailoring, StatusSaved, true},
		{StatusTailored, StatusApplied, true},
		{StatusSaved, StatusApplied, true},
		{StatusApplied, StatusInterviewing, true},
		{StatusInterviewing, StatusOffer, true},
		{StatusOffer, StatusClosed, true},

		// No regression outside the explicit retry-exhaustion path.
		{StatusTailored, StatusTailoring, false},
		{StatusApplied, StatusTailoring, false},
		{StatusApplied, StatusSaved, false},
		{StatusInterviewing, StatusApplied, false},
		{StatusClosed, StatusOffer, false},

		// Operator side channel from any non-terminal state.
		{StatusSaved, StatusWithdrawn, true},
		{StatusTailoring, StatusRejected, true},
		{StatusOffer, StatusWithdrawn, true},
		{StatusClosed, StatusWithdrawn, false},
		{StatusWithdrawn, StatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"→"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransitionTailoringRequiresResume(t *testing.T) {
	t.Parallel()

	app := newApp(StatusSaved, false)
	err := Transition(app, StatusTailoring, TransitionInput{})
	if !errors.Is(err, stitch.ErrMissingResume) {
		t.Fatalf("expected ErrMissingResume, got %v", err)
	}
	if app.Status != StatusSaved {
		t.Errorf("status mutated on rejected transition: %s", app.Status)
	}

	app.ResumeID = id.NewResumeID()
	if err := Transition(app, StatusTailoring, TransitionInput{}); err != nil {
		t.Fatalf("transition with resume: %v", err)
	}
	if app.Status != StatusTailoring {
		t.Errorf("status = %s, want tailoring", app.Status)
	}
}

func TestTransitionAppliedStampsProof(t *testing.T) {
	t.Parallel()

	app := newApp(StatusTailored, true)

	err := Transition(app, StatusApplied, TransitionInput{})
	if !errors.Is(err, stitch.ErrMissingProof) {
		t.Fatalf("expected ErrMissingProof, got %v", err)
	}

	if err := Transition(app, StatusApplied, TransitionInput{Proof: "p1"}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if app.AppliedAt == nil {
		t.Error("AppliedAt not stamped")
	}
	if app.SubmissionProof != "p1" {
		t.Errorf("SubmissionProof = %q, want p1", app.SubmissionProof)
	}

	// Regression back into the pipeline is rejected.
	err = Transition(app, StatusTailoring, TransitionInput{})
	if !errors.Is(err, stitch.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionOperatorSideChannel(t *testing.T) {
	t.Parallel()

	app := newApp(StatusTailoring, true)

	err := Transition(app, StatusWithdrawn, TransitionInput{})
	if !errors.Is(err, stitch.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without operator flag, got %v", err)
	}

	if err := Transition(app, StatusWithdrawn, TransitionInput{Operator: true}); err != nil {
		t.Fatalf("operator withdraw: %v", err)
	}
	if app.Status != StatusWithdrawn {
		t.Errorf("status = %s, want withdrawn", app.Status)
	}
}

func TestTransitionRetryExhaustionRecordsFailure(t *testing.T) {
	t.Parallel()

	app := newApp(StatusTailoring, true)
	if err := Transition(app, StatusSaved, TransitionInput{FailureReason: "generation failed after 3 attempts"}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if app.Status != StatusSaved {
		t.Errorf("status = %s, want saved", app.Status)
	}
	if app.FailureReason == "" {
		t.Error("FailureReason not recorded")
	}

	// A later success clears the annotation.
	if err := Transition(app, StatusTailoring, TransitionInput{}); err != nil {
		t.Fatalf("re-enter tailoring: %v", err)
	}
	if err := Transition(app, StatusTailored, TransitionInput{}); err != nil {
		t.Fatalf("tailored: %v", err)
	}
	if app.FailureReason != "" {
		t.Errorf("FailureReason not cleared: %q", app.FailureReason)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	valid := []string{
		"saved", "tailoring", "tailored", "applied",
		"interviewing", "offer", "closed", "withdrawn", "rejected",
	}
	for _, s := range valid {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q) = %v, want nil", s, err)
		}
	}

	for _, s := range []string{"", "pending", "SAVED", "trash"} {
		if _, err := ParseStatus(s); !errors.Is(err, stitch.ErrInvalidStatus) {
			t.Errorf("ParseStatus(%q) should fail closed", s)
		}
	}
}

func TestStaffProjection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		want   StaffStatus
	}{
		{StatusSaved, StaffApplying},
		{StatusTailoring, StaffApplying},
		{StatusTailored, StaffApplying},
		{StatusApplied, StaffApplied},
		{StatusInterviewing, StaffApplied},
		{StatusOffer, StaffApplied},
		{StatusClosed, StaffApplied},
		{StatusWithdrawn, StaffTrashed},
		{StatusRejected, StaffTrashed},
	}
	for _, tt := range tests {
		if got := StaffView(tt.status); got != tt.want {
			t.Errorf("StaffView(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}

	// Canonical round trip for each staff value.
	canon := map[StaffStatus]Status{
		StaffApplying: StatusSaved,
		StaffApplied:  StatusApplied,
		StaffTrashed:  StatusWithdrawn,
	}
	for staff, want := range canon {
		got, err := CanonicalStatus(staff)
		if err != nil {
			t.Fatalf("CanonicalStatus(%s): %v", staff, err)
		}
		if got != want {
			t.Errorf("CanonicalStatus(%s) = %s, want %s", staff, got, want)
		}
		if StaffView(got) != staff {
			t.Errorf("StaffView(CanonicalStatus(%s)) = %s, not lossless", staff, StaffView(got))
		}
	}

	if _, err := CanonicalStatus("Archived"); err == nil {
		t.Error("expected error for unknown staff status")
	}
}
