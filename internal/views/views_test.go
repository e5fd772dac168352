package views

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/talent-client/internal/domain"
)

func jobWithApplicants(ids ...string) *domain.Job {
	job := &domain.Job{ID: "job-1"}
	for _, id := range ids {
		job.Applications = append(job.Applications, domain.Application{Student: domain.ApplicationStudent{ID: id}})
	}
	return job
}

func TestHasAppliedToJob(t *testing.T) {
	tests := []struct {
		name      string
		job       *domain.Job
		studentID string
		want      bool
	}{
		{name: "applied", job: jobWithApplicants("s1"), studentID: "s1", want: true},
		{name: "other student", job: jobWithApplicants("s1"), studentID: "s2", want: false},
		{name: "among several", job: jobWithApplicants("s3", "s1", "s2"), studentID: "s2", want: true},
		{name: "empty student id", job: jobWithApplicants("s1", ""), studentID: "", want: false},
		{name: "empty applications", job: &domain.Job{ID: "job-1", Applications: []domain.Application{}}, studentID: "s1", want: false},
		{name: "missing applications", job: &domain.Job{ID: "job-1"}, studentID: "s1", want: false},
		{name: "nil job", job: nil, studentID: "s1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAppliedToJob(tt.job, tt.studentID))
		})
	}
}

func TestHasUnreadMessages(t *testing.T) {
	conversations := []domain.Conversation{{ID: "c1"}, {ID: "c2"}}
	mine := domain.Message{ID: "m1", ConversationID: "c1", SenderID: "u1"}
	theirs := domain.Message{ID: "m2", ConversationID: "c2", SenderID: "u2"}

	tests := []struct {
		name          string
		conversations []domain.Conversation
		messages      map[string][]domain.Message
		userID        string
		want          bool
	}{
		{name: "no conversations", conversations: nil, messages: map[string][]domain.Message{"c2": {theirs}}, userID: "u1", want: false},
		{name: "no user", conversations: conversations, messages: map[string][]domain.Message{"c2": {theirs}}, userID: "", want: false},
		{name: "only my messages", conversations: conversations, messages: map[string][]domain.Message{"c1": {mine}}, userID: "u1", want: false},
		{name: "message from someone else", conversations: conversations, messages: map[string][]domain.Message{"c1": {mine}, "c2": {theirs}}, userID: "u1", want: true},
		{name: "messages not loaded", conversations: conversations, messages: nil, userID: "u1", want: false},
		{name: "messages for unknown conversation ignored", conversations: conversations[:1], messages: map[string][]domain.Message{"c2": {theirs}}, userID: "u1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasUnreadMessages(tt.conversations, tt.messages, tt.userID))
		})
	}
}

func TestApplyButton(t *testing.T) {
	idle := domain.MutationIntent{Key: "job-1", Status: domain.IntentIdle}

	state := ApplyButton(jobWithApplicants(), "s1", idle)
	assert.Equal(t, ApplyButtonState{Label: LabelApply, Visible: true}, state)

	state = ApplyButton(jobWithApplicants(), "s1", domain.MutationIntent{Status: domain.IntentInFlight})
	assert.Equal(t, LabelApplying, state.Label)
	assert.True(t, state.Disabled)

	state = ApplyButton(jobWithApplicants("s1"), "s1", idle)
	assert.Equal(t, LabelApplied, state.Label)
	assert.True(t, state.Disabled)

	state = ApplyButton(jobWithApplicants(), "s1", domain.MutationIntent{Status: domain.IntentFailed, Error: "backend unreachable"})
	assert.Equal(t, LabelApply, state.Label)
	assert.False(t, state.Disabled)
	assert.Equal(t, "backend unreachable", state.Error)

	state = ApplyButton(jobWithApplicants(), "", idle)
	assert.False(t, state.Visible)
}
