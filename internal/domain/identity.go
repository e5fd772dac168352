package domain

// Role differentiates the kinds of marketplace accounts.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleBusiness Role = "BUSINESS"
	RoleAdmin    Role = "ADMIN"
)

// UserIdentity is the current-user snapshot returned on login.
type UserIdentity struct {
	ID        string  `json:"id"`
	Role      Role    `json:"role"`
	StudentID *string `json:"studentId,omitempty"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
}

// StudentIDOrEmpty returns the linked student profile id, or "" for non-students.
func (u *UserIdentity) StudentIDOrEmpty() string {
	if u == nil || u.StudentID == nil {
		return ""
	}
	return *u.StudentID
}

// FullName joins first and last name.
func (u *UserIdentity) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
