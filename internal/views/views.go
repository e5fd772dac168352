// Package views computes presentation facts from cached data. Nothing here
// holds state; callers recompute on every render.
package views

import "github.com/spec-kit/talent-client/internal/domain"

// HasAppliedToJob reports whether the job's embedded applications include
// one from studentID. A job without applications or an empty student id
// yields false.
func HasAppliedToJob(job *domain.Job, studentID string) bool {
	if job == nil || studentID == "" {
		return false
	}
	for _, app := range job.ApplicationsOrEmpty() {
		if app.Student.ID == studentID {
			return true
		}
	}
	return false
}

// HasUnreadMessages reports whether any loaded message in the given
// conversations was sent by someone other than currentUserID.
//
// There is no read cursor: a message the user has already seen still counts.
func HasUnreadMessages(conversations []domain.Conversation, messagesByConversation map[string][]domain.Message, currentUserID string) bool {
	if currentUserID == "" {
		return false
	}
	for _, conv := range conversations {
		for _, msg := range messagesByConversation[conv.ID] {
			if msg.SenderID != currentUserID {
				return true
			}
		}
	}
	return false
}

// Apply button labels.
const (
	LabelApply    = "Apply"
	LabelApplying = "Applying…"
	LabelApplied  = "Applied"
)

// ApplyButtonState describes the apply control on a job page.
type ApplyButtonState struct {
	Label    string
	Disabled bool
	Visible  bool
	Error    string
}

// ApplyButton derives the apply control from the job snapshot, the current
// student and the latest intent for the job. The button is hidden when there
// is no student profile.
func ApplyButton(job *domain.Job, studentID string, intent domain.MutationIntent) ApplyButtonState {
	if job == nil || studentID == "" {
		return ApplyButtonState{Label: LabelApply, Disabled: true}
	}
	switch {
	case HasAppliedToJob(job, studentID):
		return ApplyButtonState{Label: LabelApplied, Disabled: true, Visible: true}
	case intent.InFlight():
		return ApplyButtonState{Label: LabelApplying, Disabled: true, Visible: true}
	case intent.Status == domain.IntentFailed:
		return ApplyButtonState{Label: LabelApply, Visible: true, Error: intent.Error}
	default:
		return ApplyButtonState{Label: LabelApply, Visible: true}
	}
}
