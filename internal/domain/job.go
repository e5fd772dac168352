package domain

import "time"

// ApplicationStatus tracks how far an application got on the business side.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusAccepted ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// Business is the company publishing jobs.
type Business struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

// ApplicationStudent is the applicant embedded in a job's applications list.
type ApplicationStudent struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Application links a student to a job. Tentative marks a locally written
// entry that the backend has not confirmed yet.
type Application struct {
	ID        string             `json:"id"`
	JobID     string             `json:"jobId,omitempty"`
	Student   ApplicationStudent `json:"student"`
	Status    ApplicationStatus  `json:"status,omitempty"`
	CreatedAt time.Time          `json:"createdAt,omitempty"`
	Tentative bool               `json:"-"`
}

// Job is a posting with its nested business and applications.
// Applications and Skills may be absent from the payload.
type Job struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Location     string        `json:"location,omitempty"`
	Business     *Business     `json:"business,omitempty"`
	Applications []Application `json:"applications,omitempty"`
	Skills       []string      `json:"skills,omitempty"`
	CreatedAt    time.Time     `json:"createdAt,omitempty"`
}

// ApplicationsOrEmpty returns the applications list, never nil.
func (j *Job) ApplicationsOrEmpty() []Application {
	if j == nil || j.Applications == nil {
		return []Application{}
	}
	return j.Applications
}

// SkillsOrEmpty returns the required skills, never nil.
func (j *Job) SkillsOrEmpty() []string {
	if j == nil || j.Skills == nil {
		return []string{}
	}
	return j.Skills
}

// Clone returns a copy whose slices can be modified independently.
func (j Job) Clone() Job {
	if j.Applications != nil {
		j.Applications = append([]Application(nil), j.Applications...)
	}
	if j.Skills != nil {
		j.Skills = append([]string(nil), j.Skills...)
	}
	if j.Business != nil {
		b := *j.Business
		j.Business = &b
	}
	return j
}
