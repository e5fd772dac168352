package service

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/auth"
	"github.com/spec-kit/talent-client/internal/backend"
	"github.com/spec-kit/talent-client/internal/cache"
	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/conversation"
	"github.com/spec-kit/talent-client/internal/domain"
	"github.com/spec-kit/talent-client/internal/events"
	"github.com/spec-kit/talent-client/internal/mutation"
	"github.com/spec-kit/talent-client/internal/observability"
	"github.com/spec-kit/talent-client/internal/repository"
	"github.com/spec-kit/talent-client/internal/session"
	"github.com/spec-kit/talent-client/internal/views"
)

// Marketplace wires the session, resource caches, mutation coordinator and
// conversation store around one backend client.
type Marketplace struct {
	Session       *session.Manager
	Jobs          *cache.Resource[domain.Job]
	Students      *cache.Resource[domain.Student]
	Services      *cache.Resource[domain.Service]
	Conversations *conversation.Store
	Mutations     *mutation.Coordinator
	Notifications *NotificationService

	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// MarketplaceDependencies bundles collaborators for NewMarketplace.
type MarketplaceDependencies struct {
	Client       *backend.Client
	SessionStore session.Store
	Dispatcher   events.Dispatcher
	Clock        clockwork.Clock
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// NewMarketplace builds the client core. The session manager becomes the
// client's authorizer so every request carries the current token and a 401
// clears the session.
func NewMarketplace(cfg *config.Config, deps MarketplaceDependencies) *Marketplace {
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.NewInMemoryDispatcher()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	logger := observability.OrNop(deps.Logger)

	authRepo := repository.NewAuthRepository(deps.Client)
	jobRepo := repository.NewJobRepository(deps.Client)
	studentRepo := repository.NewStudentRepository(deps.Client)
	serviceRepo := repository.NewServiceRepository(deps.Client)
	messageRepo := repository.NewMessageRepository(deps.Client)

	manager := session.NewManager(session.Dependencies{
		Auth:       authRepo,
		Store:      deps.SessionStore,
		DeviceKey:  cfg.Session.DeviceKey,
		Inspector:  auth.NewTokenInspector(deps.Clock, 0),
		Dispatcher: deps.Dispatcher,
		Clock:      deps.Clock,
		Logger:     logger,
	})
	deps.Client.SetAuthorizer(manager)

	m := &Marketplace{
		Session: manager,
		Jobs: cache.New(cache.Config[domain.Job]{
			Name: "jobs", List: jobRepo.List, Get: jobRepo.GetByID,
			Key:   func(j domain.Job) string { return j.ID },
			Epoch: manager, Clock: deps.Clock, Logger: logger, Metrics: deps.Metrics,
		}),
		Students: cache.New(cache.Config[domain.Student]{
			Name: "students", List: studentRepo.List, Get: studentRepo.GetByID,
			Key:   func(s domain.Student) string { return s.ID },
			Epoch: manager, Clock: deps.Clock, Logger: logger, Metrics: deps.Metrics,
		}),
		Services: cache.New(cache.Config[domain.Service]{
			Name: "services", Get: serviceRepo.GetByID,
			Key:   func(s domain.Service) string { return s.ID },
			Epoch: manager, Clock: deps.Clock, Logger: logger, Metrics: deps.Metrics,
		}),
		Conversations: conversation.NewStore(messageRepo, conversation.Options{
			Epoch: manager, Clock: deps.Clock, Logger: logger, Metrics: deps.Metrics,
		}),
		Notifications: NewNotificationService(deps.Dispatcher, logger, deps.Clock, cfg.Notify),
		dispatcher:    deps.Dispatcher,
		logger:        logger.Named("marketplace"),
	}
	m.Mutations = mutation.NewCoordinator(mutation.Dependencies{
		Jobs:          jobRepo,
		Messages:      messageRepo,
		JobCache:      m.Jobs,
		Conversations: m.Conversations,
		Session:       manager,
		Dispatcher:    deps.Dispatcher,
		Clock:         deps.Clock,
		Logger:        logger,
		Metrics:       deps.Metrics,
		Options: mutation.Options{
			Optimistic:        cfg.Mutation.Optimistic,
			RefetchAfterApply: cfg.Mutation.RefetchAfterApply,
		},
	})

	deps.Dispatcher.Subscribe(events.EventSessionCleared, m.discardUserState)
	deps.Dispatcher.Subscribe(events.EventSessionExpired, m.discardUserState)
	return m
}

// Dispatcher returns the event dispatcher the core publishes to.
func (m *Marketplace) Dispatcher() events.Dispatcher {
	return m.dispatcher
}

// discardUserState drops everything cached on behalf of the previous identity.
func (m *Marketplace) discardUserState(_ context.Context, event events.Event) error {
	m.Jobs.Reset()
	m.Students.Reset()
	m.Services.Reset()
	m.Conversations.Reset()
	m.Mutations.Reset()
	m.logger.Info("discarded per-user state", zap.String("event", string(event.Type)), zap.Uint64("epoch", event.Epoch))
	return nil
}

// JobView is what a job page renders.
type JobView struct {
	Job        *domain.Job
	State      cache.State[domain.Job]
	StudentID  string
	HasApplied bool
	Button     views.ApplyButtonState
}

// JobView derives the job page for jobID from the cached job and session.
func (m *Marketplace) JobView(jobID string) JobView {
	state := m.Jobs.State()
	studentID := m.Session.Identity().StudentIDOrEmpty()

	view := JobView{State: state, StudentID: studentID}
	if state.Current != nil && state.CurrentID == jobID {
		view.Job = state.Current
	} else if job, ok := m.Jobs.Lookup(jobID); ok {
		view.Job = &job
	}
	view.HasApplied = views.HasAppliedToJob(view.Job, studentID)
	view.Button = views.ApplyButton(view.Job, studentID, m.Mutations.Intent(mutation.ApplyKey(jobID)))
	return view
}

// InboxView is what the messages page renders.
type InboxView struct {
	State                  conversation.ConversationsState
	MessagesByConversation map[string][]domain.Message
	HasUnread              bool
}

// Inbox derives the inbox from the conversation store and session.
func (m *Marketplace) Inbox() InboxView {
	state := m.Conversations.Conversations()
	byConversation := m.Conversations.MessagesByConversation()
	userID := ""
	if identity := m.Session.Identity(); identity != nil {
		userID = identity.ID
	}
	return InboxView{
		State:                  state,
		MessagesByConversation: byConversation,
		HasUnread:              views.HasUnreadMessages(state.Conversations, byConversation, userID),
	}
}

// LoadInbox fetches the current user's conversations and every thread.
func (m *Marketplace) LoadInbox(ctx context.Context) InboxView {
	identity := m.Session.Identity()
	if identity == nil {
		return m.Inbox()
	}
	state := m.Conversations.FetchConversations(ctx, identity.ID)
	for _, conv := range state.Conversations {
		if m.Conversations.Thread(conv.ID).Status == cache.StatusSucceeded {
			continue
		}
		m.Conversations.FetchMessages(ctx, conv.ID)
	}
	return m.Inbox()
}
