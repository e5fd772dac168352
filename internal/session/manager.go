package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/talent-client/internal/auth"
	"github.com/spec-kit/talent-client/internal/domain"
	"github.com/spec-kit/talent-client/internal/events"
	"github.com/spec-kit/talent-client/internal/observability"
	"github.com/spec-kit/talent-client/internal/repository"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle           Status = "IDLE"
	StatusAuthenticating Status = "AUTHENTICATING"
	StatusAuthenticated  Status = "AUTHENTICATED"
	StatusFailed         Status = "FAILED"
)

// Reasons attached to session events.
const (
	ReasonLogout       = "logout"
	ReasonUnauthorized = "unauthorized"
	ReasonExpired      = "expired"
	ReasonRelogin      = "relogin"
	ReasonRestored     = "restored"
	ReasonLogin        = "login"
)

// Snapshot is a consistent copy of the session. User is non-nil exactly
// when Status is StatusAuthenticated.
type Snapshot struct {
	Token  string
	User   *domain.UserIdentity
	Status Status
	Error  string
	Epoch  uint64
}

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Dependencies bundles collaborators of the Manager.
type Dependencies struct {
	Auth       repository.AuthRepository
	Store      Store
	DeviceKey  string
	Inspector  *auth.TokenInspector
	Dispatcher events.Dispatcher
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// Manager is the single owner of the session.
type Manager struct {
	authRepo   repository.AuthRepository
	store      Store
	key        string
	inspector  *auth.TokenInspector
	dispatcher events.Dispatcher
	clock      clockwork.Clock
	logger     *zap.Logger

	mu      sync.RWMutex
	token   string
	user    *domain.UserIdentity
	status  Status
	lastErr string
	epoch   uint64
}

// NewManager builds a manager in the Idle state.
func NewManager(deps Dependencies) *Manager {
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	if deps.DeviceKey == "" {
		deps.DeviceKey = "default"
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Inspector == nil {
		deps.Inspector = auth.NewTokenInspector(deps.Clock, 0)
	}
	return &Manager{
		authRepo:   deps.Auth,
		store:      deps.Store,
		key:        deps.DeviceKey,
		inspector:  deps.Inspector,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     observability.OrNop(deps.Logger).Named("session"),
		status:     StatusIdle,
	}
}

// Login validates the credentials, then exchanges them for a token. It does
// not retry. A second login while one is in progress is refused.
func (m *Manager) Login(ctx context.Context, creds Credentials) (Snapshot, error) {
	if err := ValidateCredentials(creds); err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	if m.status == StatusAuthenticating {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, apperrors.NewConflict("login already in progress", nil)
	}
	replaced := m.user != nil
	if replaced {
		m.epoch++
	}
	m.token = ""
	m.user = nil
	m.lastErr = ""
	m.status = StatusAuthenticating
	attempt := m.epoch
	m.mu.Unlock()

	if replaced {
		_ = m.store.Delete(ctx, m.key)
		m.publish(ctx, events.EventSessionCleared, attempt, events.SessionPayload{Reason: ReasonRelogin})
	}

	resp, err := m.authRepo.Login(ctx, creds)
	if err == nil && resp.Token == "" {
		err = apperrors.NewDomainError(apperrors.CodeUpstream, "login response did not include a token", http.StatusBadGateway, nil)
	}

	m.mu.Lock()
	if m.epoch != attempt || m.status != StatusAuthenticating {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Info("discarding superseded login result")
		return snap, apperrors.NewConflict("login superseded by logout", nil)
	}
	if err != nil {
		m.status = StatusFailed
		m.lastErr = apperrors.UserMessage(err)
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Info("login failed", zap.String("code", apperrors.CodeOf(err)))
		return snap, err
	}

	m.mu.Unlock()

	// Persist before the identity becomes visible. A clear that lands during
	// Save wins.
	user := resp.User
	saveErr := m.store.Save(ctx, m.key, Record{Token: resp.Token, User: user, SavedAt: m.clock.Now().UTC()})

	m.mu.Lock()
	if m.epoch != attempt || m.status != StatusAuthenticating {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		if saveErr == nil {
			m.discardRecord(ctx, resp.Token)
		}
		m.logger.Info("discarding login superseded while persisting")
		return snap, apperrors.NewConflict("login superseded by logout", nil)
	}
	m.token = resp.Token
	m.user = &user
	m.status = StatusAuthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if saveErr != nil {
		m.logger.Warn("failed to persist session", zap.Error(saveErr))
	}
	m.logger.Info("login succeeded", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	m.publish(ctx, events.EventSessionEstablished, snap.Epoch, events.SessionPayload{UserID: user.ID, Role: user.Role, Reason: ReasonLogin})
	return snap, nil
}

// Logout clears the session unconditionally and tells dependants to drop
// per-user state.
func (m *Manager) Logout(ctx context.Context) Snapshot {
	snap := m.clear(ReasonLogout)
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Warn("failed to delete persisted session", zap.Error(err))
	}
	m.publish(ctx, events.EventSessionCleared, snap.Epoch, events.SessionPayload{Reason: ReasonLogout})
	return snap
}

// HandleUnauthorized clears the session after the backend rejected the
// given token. Rejections of a token that is no longer current are ignored.
func (m *Manager) HandleUnauthorized(rejected string) {
	m.mu.RLock()
	current := m.token
	m.mu.RUnlock()
	if current == "" || current != rejected {
		return
	}
	m.expire(ReasonUnauthorized)
}

// ExpireIfNeeded clears an authenticated session whose token expired.
func (m *Manager) ExpireIfNeeded() bool {
	m.mu.RLock()
	token := m.token
	status := m.status
	m.mu.RUnlock()
	if status != StatusAuthenticated || !m.inspector.Expired(token) {
		return false
	}
	m.expire(ReasonExpired)
	return true
}

// Restore resumes a persisted session unless its token has expired.
func (m *Manager) Restore(ctx context.Context) (Snapshot, error) {
	rec, err := m.store.Load(ctx, m.key)
	if err != nil {
		return m.Snapshot(), err
	}
	if rec == nil || rec.Token == "" {
		return m.Snapshot(), nil
	}
	if m.inspector.Expired(rec.Token) {
		m.logger.Info("persisted session expired; discarding")
		if err := m.store.Delete(ctx, m.key); err != nil {
			m.logger.Warn("failed to delete persisted session", zap.Error(err))
		}
		return m.Snapshot(), nil
	}

	m.mu.Lock()
	if m.status == StatusAuthenticating || m.status == StatusAuthenticated {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	user := rec.User
	m.token = rec.Token
	m.user = &user
	m.status = StatusAuthenticated
	m.lastErr = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(ctx, events.EventSessionEstablished, snap.Epoch, events.SessionPayload{UserID: user.ID, Role: user.Role, Reason: ReasonRestored})
	return snap, nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Token returns the bearer credential, or "" when there is none.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Epoch identifies the current identity generation.
func (m *Manager) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Identity returns a copy of the current user, or nil.
func (m *Manager) Identity() *domain.UserIdentity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	user := *m.user
	return &user
}

// TokenExpiresAt reports the current token's expiry when known.
func (m *Manager) TokenExpiresAt() (time.Time, bool) {
	return m.inspector.ExpiresAt(m.Token())
}

// discardRecord deletes the persisted record if it still holds token.
func (m *Manager) discardRecord(ctx context.Context, token string) {
	rec, err := m.store.Load(ctx, m.key)
	if err != nil || rec == nil || rec.Token != token {
		return
	}
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Warn("failed to delete superseded session", zap.Error(err))
	}
}

func (m *Manager) expire(reason string) {
	snap := m.clear(reason)
	ctx := context.Background()
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Warn("failed to delete persisted session", zap.Error(err))
	}
	m.logger.Info("session cleared", zap.String("reason", reason))
	m.publish(ctx, events.EventSessionExpired, snap.Epoch, events.SessionPayload{Reason: reason})
}

func (m *Manager) clear(reason string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	m.status = StatusIdle
	m.lastErr = ""
	m.epoch++
	m.logger.Debug("session state reset", zap.String("reason", reason), zap.Uint64("epoch", m.epoch))
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Token:  m.token,
		Status: m.status,
		Error:  m.lastErr,
		Epoch:  m.epoch,
	}
	if m.user != nil {
		user := *m.user
		snap.User = &user
	}
	return snap
}

func (m *Manager) publish(ctx context.Context, eventType events.EventType, epoch uint64, payload events.SessionPayload) {
	events.Publish(ctx, m.dispatcher, events.Event{
		Type:      eventType,
		Epoch:     epoch,
		Timestamp: m.clock.Now().UTC(),
		Payload:   payload,
	})
}
