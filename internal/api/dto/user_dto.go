package dto

import "github.com/spec-kit/talent-client/internal/domain"

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse is the backend's answer to a successful login.
type LoginResponse struct {
	Token string              `json:"token"`
	User  domain.UserIdentity `json:"user"`
}

// ApplicationRequest payload for POST /jobs/:id/applications.
type ApplicationRequest struct {
	StudentID string `json:"studentId"`
}

// SendMessageRequest payload for posting into a conversation.
type SendMessageRequest struct {
	Body string `json:"body"`
}

// ErrorResponse is the passthrough's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
