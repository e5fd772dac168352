package repository

import (
	"context"
	"net/http"
	"net/url"

	"github.com/spec-kit/talent-client/internal/api/dto"
	"github.com/spec-kit/talent-client/internal/backend"
	"github.com/spec-kit/talent-client/internal/domain"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

// JobRepository reads jobs and submits applications.
type JobRepository interface {
	List(ctx context.Context) ([]domain.Job, error)
	GetByID(ctx context.Context, id string) (domain.Job, error)
	Apply(ctx context.Context, jobID, studentID string) (*domain.Application, error)
}

type jobRepository struct {
	client *backend.Client
}

// NewJobRepository builds repository.
func NewJobRepository(client *backend.Client) JobRepository {
	return &jobRepository{client: client}
}

func (r *jobRepository) List(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.client.Do(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return jobs, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (domain.Job, error) {
	var job domain.Job
	if err := r.client.Do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return domain.Job{}, err
	}
	if job.ID == "" {
		return domain.Job{}, emptyResourceError("job")
	}
	return job, nil
}

func (r *jobRepository) Apply(ctx context.Context, jobID, studentID string) (*domain.Application, error) {
	var app domain.Application
	path := "/jobs/" + url.PathEscape(jobID) + "/applications"
	if err := r.client.Do(ctx, http.MethodPost, path, dto.ApplicationRequest{StudentID: studentID}, &app); err != nil {
		return nil, err
	}
	if app.JobID == "" {
		app.JobID = jobID
	}
	if app.Student.ID == "" {
		app.Student.ID = studentID
	}
	return &app, nil
}

// emptyResourceError reports a successful read whose body carried no resource.
func emptyResourceError(resource string) error {
	return apperrors.NewDomainError(apperrors.CodeUpstream, "backend returned no "+resource, http.StatusBadGateway, nil)
}
