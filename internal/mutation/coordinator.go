// Package mutation runs state-changing operations against the backend with
// a per-target in-flight guard and merges confirmed results into the caches.
package mutation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/auth"
	"github.com/spec-kit/talent-client/internal/cache"
	"github.com/spec-kit/talent-client/internal/domain"
	"github.com/spec-kit/talent-client/internal/events"
	"github.com/spec-kit/talent-client/internal/observability"
	"github.com/spec-kit/talent-client/internal/repository"
	"github.com/spec-kit/talent-client/internal/views"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

const tentativePrefix = "pending-"

var (
	errInFlight    = errors.New("mutation in flight")
	errAlreadyDone = errors.New("mutation already succeeded")
)

// Operation names used for intent keys and metrics.
const (
	OpApply       = "apply"
	OpSendMessage = "send_message"
)

// ApplyKey is the intent key of an application to jobID.
func ApplyKey(jobID string) string { return OpApply + ":" + jobID }

// MessageKey is the intent key of a message sent to conversationID.
func MessageKey(conversationID string) string { return OpSendMessage + ":" + conversationID }

// Outcome is the resolved result of a mutation. Skipped is set when the
// mutation was refused without contacting the backend.
type Outcome struct {
	Key         string
	OK          bool
	Skipped     bool
	Application *domain.Application
	Message     *domain.Message
	Error       string
	ErrorCode   string
	Retryable   bool
}

// Session exposes the identity mutations run as.
type Session interface {
	Identity() *domain.UserIdentity
	Epoch() uint64
}

// JobCache is the part of the job cache the coordinator writes to.
type JobCache interface {
	Lookup(id string) (domain.Job, bool)
	UpdateItem(id string, fn func(domain.Job) domain.Job) bool
	FetchByID(ctx context.Context, id string) cache.State[domain.Job]
}

// MessageSink receives confirmed messages.
type MessageSink interface {
	AppendMessage(msg domain.Message) bool
}

// Options toggles optional behavior.
type Options struct {
	// Optimistic writes a tentative application into the job cache before
	// the backend confirms it and removes it again on failure.
	Optimistic bool
	// RefetchAfterApply reloads the job after a confirmed application.
	RefetchAfterApply bool
}

// Dependencies bundles collaborators of the Coordinator.
type Dependencies struct {
	Jobs          repository.JobRepository
	Messages      repository.MessageRepository
	JobCache      JobCache
	Conversations MessageSink
	Session       Session
	Dispatcher    events.Dispatcher
	Clock         clockwork.Clock
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Options       Options
}

// Coordinator serializes mutations per key.
type Coordinator struct {
	deps   Dependencies
	logger *zap.Logger

	mu         sync.Mutex
	intents    map[string]domain.MutationIntent
	generation uint64
}

// NewCoordinator builds a Coordinator.
func NewCoordinator(deps Dependencies) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		deps:    deps,
		logger:  observability.OrNop(deps.Logger).Named("mutation"),
		intents: make(map[string]domain.MutationIntent),
	}
}

// Intent returns the latest intent for key, IntentIdle when none exists.
func (c *Coordinator) Intent(key string) domain.MutationIntent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if intent, ok := c.intents[key]; ok {
		return intent
	}
	return domain.MutationIntent{Key: key, Status: domain.IntentIdle}
}

// Reset forgets every intent. Mutations still in flight resolve without
// updating intents or caches.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = make(map[string]domain.MutationIntent)
	c.generation++
}

// ApplyForJob submits an application of studentID to jobID. It is refused
// without a network call when the cached job already lists the student or
// an application to the same job is still outstanding.
func (c *Coordinator) ApplyForJob(ctx context.Context, jobID, studentID string) Outcome {
	key := ApplyKey(jobID)

	identity := c.identity()
	if err := auth.RequireStudent(identity); err != nil {
		return c.refuse(OpApply, key, err)
	}
	if jobID == "" || studentID == "" {
		return c.refuse(OpApply, key, apperrors.NewValidationError("job id and student id are required", nil))
	}
	if studentID != identity.StudentIDOrEmpty() {
		return c.refuse(OpApply, key, apperrors.NewForbidden("cannot apply on behalf of another student"))
	}

	if c.deps.JobCache != nil {
		if job, ok := c.deps.JobCache.Lookup(jobID); ok && views.HasAppliedToJob(&job, studentID) {
			return c.refuse(OpApply, key, apperrors.NewConflict("already applied to this job", nil))
		}
	}

	gen, epoch, err := c.begin(key, true)
	switch {
	case errors.Is(err, errAlreadyDone):
		return c.refuse(OpApply, key, apperrors.NewConflict("already applied to this job", nil))
	case err != nil:
		return c.refuse(OpApply, key, apperrors.NewConflict("application already in progress", nil))
	}

	tentativeID := ""
	if c.deps.Options.Optimistic && c.deps.JobCache != nil {
		tentativeID = tentativePrefix + uuid.NewString()
		c.deps.JobCache.UpdateItem(jobID, func(job domain.Job) domain.Job {
			return withApplication(job, domain.Application{
				ID:        tentativeID,
				JobID:     jobID,
				Student:   domain.ApplicationStudent{ID: studentID, FirstName: identity.FirstName, LastName: identity.LastName},
				Status:    domain.ApplicationStatusPending,
				CreatedAt: c.deps.Clock.Now(),
				Tentative: true,
			})
		})
	}

	app, err := c.deps.Jobs.Apply(ctx, jobID, studentID)
	current := c.sameSession(gen, epoch)
	payload := events.ApplicationPayload{JobID: jobID, StudentID: studentID}

	if err != nil {
		if current && tentativeID != "" {
			c.deps.JobCache.UpdateItem(jobID, func(job domain.Job) domain.Job {
				return withoutApplication(job, tentativeID)
			})
		}
		out := c.fail(OpApply, key, gen, err)
		payload.Error, payload.Retryable = out.Error, out.Retryable
		c.publish(ctx, events.EventApplicationFailed, key, epoch, payload)
		return out
	}

	if current && c.deps.JobCache != nil {
		c.deps.JobCache.UpdateItem(jobID, func(job domain.Job) domain.Job {
			if tentativeID != "" {
				job = withoutApplication(job, tentativeID)
			}
			return withApplication(job, *app)
		})
		if c.deps.Options.RefetchAfterApply {
			c.deps.JobCache.FetchByID(ctx, jobID)
		}
	}

	c.finish(key, gen, domain.IntentSucceeded, "")
	c.deps.Metrics.RecordMutation(OpApply, "succeeded")
	payload.ApplicationID = app.ID
	c.publish(ctx, events.EventApplicationSubmitted, key, epoch, payload)
	c.logger.Info("application submitted", zap.String("job_id", jobID), zap.String("application_id", app.ID))

	return Outcome{Key: key, OK: true, Application: app}
}

// SendMessage posts body to a conversation and appends the confirmed message
// to the conversation store. One send per conversation is outstanding at a
// time.
func (c *Coordinator) SendMessage(ctx context.Context, conversationID, body string) Outcome {
	key := MessageKey(conversationID)

	if err := auth.RequireRole(c.identity()); err != nil {
		return c.refuse(OpSendMessage, key, err)
	}
	body = strings.TrimSpace(body)
	if conversationID == "" || body == "" {
		return c.refuse(OpSendMessage, key, apperrors.NewValidationError("conversation id and message body are required", nil))
	}

	gen, epoch, err := c.begin(key, false)
	if err != nil {
		return c.refuse(OpSendMessage, key, apperrors.NewConflict("message already being sent", nil))
	}

	msg, err := c.deps.Messages.Send(ctx, conversationID, body)
	payload := events.MessagePayload{ConversationID: conversationID}
	if err != nil {
		out := c.fail(OpSendMessage, key, gen, err)
		payload.Error, payload.Retryable = out.Error, out.Retryable
		c.publish(ctx, events.EventMessageFailed, key, epoch, payload)
		return out
	}

	if c.sameSession(gen, epoch) && c.deps.Conversations != nil {
		c.deps.Conversations.AppendMessage(*msg)
	}
	c.finish(key, gen, domain.IntentSucceeded, "")
	c.deps.Metrics.RecordMutation(OpSendMessage, "succeeded")
	payload.MessageID = msg.ID
	c.publish(ctx, events.EventMessageSent, key, epoch, payload)

	return Outcome{Key: key, OK: true, Message: msg}
}

func (c *Coordinator) identity() *domain.UserIdentity {
	if c.deps.Session == nil {
		return nil
	}
	return c.deps.Session.Identity()
}

func (c *Coordinator) epoch() uint64 {
	if c.deps.Session == nil {
		return 0
	}
	return c.deps.Session.Epoch()
}

// begin marks key in flight unless it already is. With once set, a key that
// already succeeded for the current identity is refused as well.
func (c *Coordinator) begin(key string, once bool) (uint64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	epoch := c.epoch()
	intent := c.intents[key]
	if intent.InFlight() {
		return 0, 0, errInFlight
	}
	if once && intent.Status == domain.IntentSucceeded && intent.Epoch == epoch {
		return 0, 0, errAlreadyDone
	}
	c.intents[key] = domain.MutationIntent{Key: key, Status: domain.IntentInFlight, Epoch: epoch, UpdatedAt: c.deps.Clock.Now()}
	return c.generation, epoch, nil
}

func (c *Coordinator) finish(key string, gen uint64, status domain.IntentStatus, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	epoch := c.intents[key].Epoch
	c.intents[key] = domain.MutationIntent{Key: key, Status: status, Error: errMsg, Epoch: epoch, UpdatedAt: c.deps.Clock.Now()}
}

// sameSession reports whether neither a reset nor an identity change
// happened since the mutation began.
func (c *Coordinator) sameSession(gen, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen && c.epoch() == epoch
}

func (c *Coordinator) fail(op, key string, gen uint64, err error) Outcome {
	out := outcomeFromError(key, err)
	c.finish(key, gen, domain.IntentFailed, out.Error)
	c.deps.Metrics.RecordMutation(op, "failed")
	c.logger.Info("mutation failed", zap.String("key", key), zap.String("code", out.ErrorCode), zap.Error(err))
	return out
}

func (c *Coordinator) refuse(op, key string, err error) Outcome {
	out := outcomeFromError(key, err)
	out.Skipped = true
	out.Retryable = false
	c.deps.Metrics.RecordMutation(op, "refused")
	c.logger.Debug("mutation refused", zap.String("key", key), zap.String("code", out.ErrorCode))
	return out
}

func (c *Coordinator) publish(ctx context.Context, eventType events.EventType, key string, epoch uint64, payload interface{}) {
	events.Publish(context.WithoutCancel(ctx), c.deps.Dispatcher, events.Event{
		Type:      eventType,
		Key:       key,
		Epoch:     epoch,
		Timestamp: c.deps.Clock.Now().UTC(),
		Payload:   payload,
	})
}

func outcomeFromError(key string, err error) Outcome {
	return Outcome{
		Key:       key,
		Error:     apperrors.UserMessage(err),
		ErrorCode: apperrors.CodeOf(err),
		Retryable: apperrors.IsRetryable(err),
	}
}

// withApplication returns job with app added, replacing any entry from the
// same student.
func withApplication(job domain.Job, app domain.Application) domain.Job {
	job = job.Clone()
	apps := make([]domain.Application, 0, len(job.Applications)+1)
	for _, existing := range job.Applications {
		if existing.Student.ID == app.Student.ID {
			continue
		}
		apps = append(apps, existing)
	}
	job.Applications = append(apps, app)
	return job
}

func withoutApplication(job domain.Job, applicationID string) domain.Job {
	job = job.Clone()
	apps := job.Applications[:0]
	for _, existing := range job.Applications {
		if existing.ID != applicationID {
			apps = append(apps, existing)
		}
	}
	job.Applications = apps
	return job
}
