package repository

import (
	"context"
	"net/http"

	"github.com/spec-kit/talent-client/internal/api/dto"
	"github.com/spec-kit/talent-client/internal/backend"
)

// AuthRepository exchanges credentials for a session.
type AuthRepository interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
}

type authRepository struct {
	client *backend.Client
}

// NewAuthRepository builds repository.
func NewAuthRepository(client *backend.Client) AuthRepository {
	return &authRepository{client: client}
}

func (r *authRepository) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	var resp dto.LoginResponse
	if err := r.client.Do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
