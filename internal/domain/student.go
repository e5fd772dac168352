package domain

// Student is a public student profile.
type Student struct {
	ID         string   `json:"id"`
	UserID     string   `json:"userId,omitempty"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Email      string   `json:"email,omitempty"`
	University string   `json:"university,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Skills     []string `json:"skills,omitempty"`
}

// SkillsOrEmpty returns the skills list, never nil.
func (s *Student) SkillsOrEmpty() []string {
	if s == nil || s.Skills == nil {
		return []string{}
	}
	return s.Skills
}

// Service is a freelance offer published by a student.
type Service struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Student     *Student `json:"student,omitempty"`
}
