package repository

import (
	"context"
	"net/http"
	"net/url"

	"github.com/spec-kit/talent-client/internal/backend"
	"github.com/spec-kit/talent-client/internal/domain"
)

// StudentRepository reads student profiles.
type StudentRepository interface {
	List(ctx context.Context) ([]domain.Student, error)
	GetByID(ctx context.Context, id string) (domain.Student, error)
}

type studentRepository struct {
	client *backend.Client
}

// NewStudentRepository builds repository.
func NewStudentRepository(client *backend.Client) StudentRepository {
	return &studentRepository{client: client}
}

func (r *studentRepository) List(ctx context.Context) ([]domain.Student, error) {
	var students []domain.Student
	if err := r.client.Do(ctx, http.MethodGet, "/students", nil, &students); err != nil {
		return nil, err
	}
	if students == nil {
		students = []domain.Student{}
	}
	return students, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (domain.Student, error) {
	var student domain.Student
	if err := r.client.Do(ctx, http.MethodGet, "/students/"+url.PathEscape(id), nil, &student); err != nil {
		return domain.Student{}, err
	}
	if student.ID == "" {
		return domain.Student{}, emptyResourceError("student")
	}
	return student, nil
}

// ServiceRepository reads student services. The backend only exposes
// single-service reads.
type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (domain.Service, error)
}

type serviceRepository struct {
	client *backend.Client
}

// NewServiceRepository builds repository.
func NewServiceRepository(client *backend.Client) ServiceRepository {
	return &serviceRepository{client: client}
}

func (r *serviceRepository) GetByID(ctx context.Context, id string) (domain.Service, error) {
	var service domain.Service
	if err := r.client.Do(ctx, http.MethodGet, "/services/"+url.PathEscape(id), nil, &service); err != nil {
		return domain.Service{}, err
	}
	if service.ID == "" {
		return domain.Service{}, emptyResourceError("service")
	}
	return service, nil
}
