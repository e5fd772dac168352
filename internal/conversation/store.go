// Package conversation caches the current user's conversations and the
// message thread of each conversation.
package conversation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/talent-client/internal/cache"
	"github.com/spec-kit/talent-client/internal/domain"
	"github.com/spec-kit/talent-client/internal/observability"
	"github.com/spec-kit/talent-client/internal/repository"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

const resourceName = "conversations"

// ConversationsState is a copy of the conversation list.
type ConversationsState struct {
	UserID        string
	Conversations []domain.Conversation
	Status        cache.Status
	Error         string
	ErrorCode     string
	FetchedAt     time.Time
}

// ThreadState is a copy of one conversation's messages.
type ThreadState struct {
	ConversationID string
	Messages       []domain.Message
	Status         cache.Status
	Error          string
	ErrorCode      string
	FetchedAt      time.Time
}

type thread struct {
	messages  []domain.Message
	status    cache.Status
	err       string
	code      string
	fetchedAt time.Time
}

// Store holds conversations keyed by id. Message threads load lazily and
// independently of each other.
type Store struct {
	repo    repository.MessageRepository
	epoch   cache.EpochSource
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	flight  singleflight.Group

	mu            sync.Mutex
	userID        string
	conversations []domain.Conversation
	listStatus    cache.Status
	listErr       string
	listCode      string
	listFetchedAt time.Time
	threads       map[string]*thread
	generation    uint64
	dataEpoch     uint64
}

// Options configures a Store.
type Options struct {
	Epoch   cache.EpochSource
	Clock   clockwork.Clock
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewStore builds a Store backed by repo.
func NewStore(repo repository.MessageRepository, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	s := &Store{
		repo:       repo,
		epoch:      opts.Epoch,
		clock:      opts.Clock,
		logger:     observability.OrNop(opts.Logger).Named("conversation"),
		metrics:    opts.Metrics,
		listStatus: cache.StatusIdle,
		threads:    make(map[string]*thread),
	}
	if s.epoch != nil {
		s.dataEpoch = s.epoch.Epoch()
	}
	return s
}

// FetchConversations loads every conversation visible to userID in server
// order. Messages embedded in the payload seed threads that have not been
// loaded yet. On failure the previous list stays available.
func (s *Store) FetchConversations(ctx context.Context, userID string) ConversationsState {
	s.mu.Lock()
	s.syncEpochLocked()
	if userID == "" {
		s.failListLocked(apperrors.NewValidationError("user id is required", nil))
		state := s.conversationsLocked()
		s.mu.Unlock()
		return state
	}
	if s.userID != "" && s.userID != userID {
		s.resetLocked()
	}
	s.userID = userID
	s.listStatus = cache.StatusLoading
	gen := s.generation
	s.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(flightKey("list", userID, gen), func() (interface{}, error) {
		conversations, err := s.repo.ListConversations(flightCtx, userID)
		s.applyConversations(gen, conversations, err)
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
	return s.Conversations()
}

// FetchMessages loads the thread of one conversation. Concurrent calls for
// the same conversation share one request.
func (s *Store) FetchMessages(ctx context.Context, conversationID string) ThreadState {
	s.mu.Lock()
	s.syncEpochLocked()
	if conversationID == "" {
		s.mu.Unlock()
		err := apperrors.NewValidationError("conversation id is required", nil)
		return ThreadState{Status: cache.StatusFailed, Error: apperrors.UserMessage(err), ErrorCode: apperrors.CodeOf(err)}
	}
	t := s.threadLocked(conversationID)
	t.status = cache.StatusLoading
	t.err, t.code = "", ""
	gen := s.generation
	s.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(flightKey("thread", conversationID, gen), func() (interface{}, error) {
		messages, err := s.repo.ListMessages(flightCtx, conversationID)
		s.applyMessages(gen, conversationID, messages, err)
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
	return s.Thread(conversationID)
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() ConversationsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEpochLocked()
	return s.conversationsLocked()
}

// Thread returns a copy of one conversation's thread.
func (s *Store) Thread(conversationID string) ThreadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEpochLocked()

	t, ok := s.threads[conversationID]
	if !ok {
		return ThreadState{ConversationID: conversationID, Messages: []domain.Message{}, Status: cache.StatusIdle}
	}
	state := ThreadState{
		ConversationID: conversationID,
		Messages:       append([]domain.Message{}, t.messages...),
		Status:         t.status,
		FetchedAt:      t.fetchedAt,
	}
	if t.status == cache.StatusFailed {
		state.Error, state.ErrorCode = t.err, t.code
	}
	return state
}

// Messages returns the loaded messages of a conversation, never nil.
func (s *Store) Messages(conversationID string) []domain.Message {
	return s.Thread(conversationID).Messages
}

// MessagesByConversation returns every loaded thread keyed by conversation id.
func (s *Store) MessagesByConversation() map[string][]domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEpochLocked()

	out := make(map[string][]domain.Message, len(s.threads))
	for id, t := range s.threads {
		out[id] = append([]domain.Message{}, t.messages...)
	}
	return out
}

// AppendMessage adds a confirmed message to its thread. It reports false
// when the message carries no conversation id or is already present.
func (s *Store) AppendMessage(msg domain.Message) bool {
	if msg.ConversationID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEpochLocked()

	t := s.threadLocked(msg.ConversationID)
	if msg.ID != "" {
		for _, existing := range t.messages {
			if existing.ID == msg.ID {
				return false
			}
		}
	}
	t.messages = append(t.messages, msg)
	return true
}

// Reset discards every conversation and thread. Responses still in flight
// are dropped when they resolve.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) applyConversations(gen uint64, conversations []domain.Conversation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEpochLocked()

	if s.generation != gen {
		s.metrics.RecordCacheFetch(resourceName, "list", "discarded")
		return
	}
	if err != nil {
		s.failListLocked(err)
		return
	}

	now := s.clock.Now()
	s.conversations = make([]domain.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		if conv.Messages != nil {
			if t, ok := s.threads[conv.ID]; !ok || t.status == cache.StatusIdle {
				t = s.threadLocked(conv.ID)
				t.messages = belongingTo(conv.ID, conv.Messages)
				t.status = cache.StatusSucceeded
				t.fetchedAt = now
			}
		}
		conv.Messages = nil
		s.conversations = append(s.conversations, conv)
	}
	s.listStatus = cache.StatusSucceeded
	s.listErr, s.listCode = "", ""
	s.listFetchedAt = now
	s.metrics.RecordCacheFetch(resourceName, "list", "succeeded")
}

func (s *Store) applyMessages(gen uint64, conversationID string, messages []domain.Message, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEpochLocked()

	if s.generation != gen {
		s.metrics.RecordCacheFetch("messages", "item", "discarded")
		return
	}
	t := s.threadLocked(conversationID)
	if err != nil {
		t.status = cache.StatusFailed
		t.err, t.code = apperrors.UserMessage(err), apperrors.CodeOf(err)
		s.metrics.RecordCacheFetch("messages", "item", "failed")
		s.logger.Info("message fetch failed", zap.String("conversation_id", conversationID), zap.String("code", t.code))
		return
	}

	filtered := belongingTo(conversationID, messages)
	if dropped := len(messages) - len(filtered); dropped > 0 {
		s.logger.Warn("dropping messages addressed to another conversation",
			zap.String("conversation_id", conversationID), zap.Int("dropped", dropped))
	}
	t.messages = filtered
	t.status = cache.StatusSucceeded
	t.err, t.code = "", ""
	t.fetchedAt = s.clock.Now()
	s.metrics.RecordCacheFetch("messages", "item", "succeeded")
}

func (s *Store) failListLocked(err error) {
	s.listStatus = cache.StatusFailed
	s.listErr, s.listCode = apperrors.UserMessage(err), apperrors.CodeOf(err)
	s.metrics.RecordCacheFetch(resourceName, "list", "failed")
	s.logger.Info("conversation fetch failed", zap.String("code", s.listCode), zap.String("error", s.listErr))
}

func (s *Store) threadLocked(conversationID string) *thread {
	t, ok := s.threads[conversationID]
	if !ok {
		t = &thread{status: cache.StatusIdle}
		s.threads[conversationID] = t
	}
	return t
}

func (s *Store) conversationsLocked() ConversationsState {
	state := ConversationsState{
		UserID:        s.userID,
		Conversations: append([]domain.Conversation{}, s.conversations...),
		Status:        s.listStatus,
		FetchedAt:     s.listFetchedAt,
	}
	if s.listStatus == cache.StatusFailed {
		state.Error, state.ErrorCode = s.listErr, s.listCode
	}
	return state
}

func (s *Store) syncEpochLocked() {
	if s.epoch == nil {
		return
	}
	if current := s.epoch.Epoch(); current != s.dataEpoch {
		s.resetLocked()
		s.dataEpoch = current
	}
}

func (s *Store) resetLocked() {
	s.generation++
	s.userID = ""
	s.conversations = nil
	s.listStatus = cache.StatusIdle
	s.listErr, s.listCode = "", ""
	s.listFetchedAt = time.Time{}
	s.threads = make(map[string]*thread)
}

// belongingTo keeps the messages of conversationID. A message without a
// conversation id is assumed to belong to the thread it was loaded for.
func belongingTo(conversationID string, messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.ConversationID {
		case "":
			msg.ConversationID = conversationID
		case conversationID:
		default:
			continue
		}
		out = append(out, msg)
	}
	return out
}

func flightKey(kind, id string, gen uint64) string {
	return kind + ":" + id + "@" + strconv.FormatUint(gen, 10)
}
