package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/events"
	"github.com/spec-kit/talent-client/internal/session"
)

// NotificationKind styles a notification.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a dismissible message for the user.
type Notification struct {
	ID        string
	Kind      NotificationKind
	Message   string
	Key       string
	Retryable bool
	CreatedAt time.Time
}

// NotificationService turns domain events into queued notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      clockwork.Clock
	limit      int

	mu    sync.Mutex
	queue []Notification
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, clock clockwork.Clock, cfg config.NotificationConfig) *NotificationService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	limit := cfg.QueueSize
	if limit <= 0 {
		limit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		clock:      clock,
		limit:      limit,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventApplicationSubmitted, n.handleApplicationSubmitted)
	n.dispatcher.Subscribe(events.EventApplicationFailed, n.handleApplicationFailed)
	n.dispatcher.Subscribe(events.EventMessageFailed, n.handleMessageFailed)
	n.dispatcher.Subscribe(events.EventSessionExpired, n.handleSessionExpired)
}

// Drain returns queued notifications oldest first and empties the queue.
func (n *NotificationService) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.queue
	n.queue = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Pending returns the number of queued notifications.
func (n *NotificationService) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

func (n *NotificationService) handleApplicationSubmitted(_ context.Context, event events.Event) error {
	n.push(Notification{Kind: NotificationSuccess, Message: "Application submitted", Key: event.Key})
	return nil
}

func (n *NotificationService) handleApplicationFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ApplicationPayload)
	n.push(Notification{Kind: NotificationError, Message: "Could not submit application: " + payload.Error, Key: event.Key, Retryable: payload.Retryable})
	return nil
}

func (n *NotificationService) handleMessageFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.MessagePayload)
	n.push(Notification{Kind: NotificationError, Message: "Message not sent: " + payload.Error, Key: event.Key, Retryable: payload.Retryable})
	return nil
}

func (n *NotificationService) handleSessionExpired(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.SessionPayload)
	msg := "Your session has ended, please sign in again"
	if payload.Reason == session.ReasonExpired {
		msg = "Your session expired, please sign in again"
	}
	n.push(Notification{Kind: NotificationInfo, Message: msg})
	return nil
}

// push appends a notification, dropping the oldest beyond the limit.
func (n *NotificationService) push(note Notification) {
	note.ID = uuid.NewString()
	note.CreatedAt = n.clock.Now().UTC()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, note)
	if over := len(n.queue) - n.limit; over > 0 {
		n.queue = append([]Notification(nil), n.queue[over:]...)
	}
	n.logger.Debug("notification queued", zap.String("kind", string(note.Kind)), zap.String("key", note.Key))
}
