package application

import (
	"fmt"
	"time"

	"github.com/stitchhq/stitch"
)

// transitions is the forward edge set of the lifecycle machine. The
// operator side channel (withdrawn/rejected) is handled separately
// because it is reachable from any non-terminal state.
var transitions = map[Status][]Status{
	StatusSaved:        {StatusTailoring, StatusApplied},
	StatusTailoring:    {StatusTailored, StatusSaved},
	StatusTailored:     {StatusApplied},
	StatusApplied:      {StatusInterviewing},
	StatusInterviewing: {StatusOffer},
	StatusOffer:        {StatusClosed},
}

// CanTransition reports whether from → to is an allowed edge. The only
// regression in the machine is tailoring → saved, the retry-exhaustion
// path.
func CanTransition(from, to Status) bool {
	if to == StatusWithdrawn || to == StatusRejected {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionInput carries the data guards for a transition.
type TransitionInput struct {
	// Proof is the opaque submission-proof reference, required for the
	// → applied transition.
	Proof string

	// FailureReason annotates the tailoring → saved retry-exhaustion
	// path.
	FailureReason string

	// Operator marks the transition as operator-initiated and allows
	// the withdrawn/rejected side channel. Role checks happen at the
	// engine boundary; this flag only gates the edge.
	Operator bool
}

// Transition validates and applies a status change in memory. Callers
// commit the mutated application with a compare-and-set against the
// prior status so concurrent writers cannot introduce lost updates.
func Transition(app *Application, to Status, in TransitionInput) error {
	from := app.Status

	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", stitch.ErrInvalidTransition, from, to)
	}

	switch to {
	case StatusTailoring, StatusTailored:
		if app.ResumeID.IsNil() {
			return stitch.ErrMissingResume
		}
	case StatusApplied:
		if in.Proof == "" {
			return stitch.ErrMissingProof
		}
		now := time.Now().UTC()
		app.AppliedAt = &now
		app.SubmissionProof = in.Proof
	case StatusWithdrawn, StatusRejected:
		if !in.Operator {
			return fmt.Errorf("%w: %s is operator-only", stitch.ErrForbidden, to)
		}
	}

	if to == StatusSaved && from == StatusTailoring {
		app.FailureReason = in.FailureReason
	}
	if to == StatusTailored {
		app.FailureReason = ""
	}

	app.Status = to
	app.Touch()
	return nil
}
