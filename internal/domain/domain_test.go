package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJob_Clone_IsIndependent(t *testing.T) {
	job := Job{
		ID:           "j1",
		Business:     &Business{ID: "b1", Name: "Cafe"},
		Applications: []Application{{ID: "a1"}},
		Skills:       []string{"coffee"},
	}

	clone := job.Clone()
	clone.Applications[0].ID = "changed"
	clone.Applications = append(clone.Applications, Application{ID: "a2"})
	clone.Skills[0] = "tea"
	clone.Business.Name = "Bar"

	assert.Equal(t, "a1", job.Applications[0].ID)
	assert.Len(t, job.Applications, 1)
	assert.Equal(t, "coffee", job.Skills[0])
	assert.Equal(t, "Cafe", job.Business.Name)
}

func TestJob_Clone_KeepsNilSlices(t *testing.T) {
	clone := Job{ID: "j1"}.Clone()
	assert.Nil(t, clone.Applications)
	assert.Nil(t, clone.Skills)
	assert.Nil(t, clone.Business)
}

func TestOrEmptyAccessors(t *testing.T) {
	var nilJob *Job
	assert.NotNil(t, nilJob.ApplicationsOrEmpty())
	assert.Empty(t, nilJob.ApplicationsOrEmpty())
	assert.Empty(t, (&Job{}).SkillsOrEmpty())
	assert.Equal(t, []Application{{ID: "a"}}, (&Job{Applications: []Application{{ID: "a"}}}).ApplicationsOrEmpty())

	var nilStudent *Student
	assert.NotNil(t, nilStudent.SkillsOrEmpty())
	assert.Equal(t, []string{"go"}, (&Student{Skills: []string{"go"}}).SkillsOrEmpty())
}

func TestConversation_HasParticipant(t *testing.T) {
	conv := &Conversation{ID: "c1", ParticipantIDs: []string{"u1", "u2"}}
	assert.True(t, conv.HasParticipant("u2"))
	assert.False(t, conv.HasParticipant("u3"))

	var nilConv *Conversation
	assert.False(t, nilConv.HasParticipant("u1"))
}

func TestUserIdentity_Accessors(t *testing.T) {
	sid := "s1"
	tests := []struct {
		name      string
		user      *UserIdentity
		studentID string
		fullName  string
	}{
		{name: "nil user", user: nil, studentID: "", fullName: ""},
		{name: "student", user: &UserIdentity{StudentID: &sid, FirstName: "Ada", LastName: "Lovelace"}, studentID: "s1", fullName: "Ada Lovelace"},
		{name: "first name only", user: &UserIdentity{FirstName: "Ada"}, fullName: "Ada"},
		{name: "last name only", user: &UserIdentity{LastName: "Lovelace"}, fullName: "Lovelace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.studentID, tt.user.StudentIDOrEmpty())
			assert.Equal(t, tt.fullName, tt.user.FullName())
		})
	}
}

func TestMutationIntent_InFlight(t *testing.T) {
	assert.True(t, MutationIntent{Status: IntentInFlight}.InFlight())
	assert.False(t, MutationIntent{Status: IntentFailed}.InFlight())
	assert.False(t, MutationIntent{}.InFlight())
}
