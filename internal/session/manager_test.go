package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/talent-client/internal/api/dto"
	"github.com/spec-kit/talent-client/internal/auth"
	"github.com/spec-kit/talent-client/internal/domain"
	"github.com/spec-kit/talent-client/internal/events"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

type fakeAuthRepo struct {
	mu    sync.Mutex
	calls int
	resp  *dto.LoginResponse
	err   error
	gate  chan struct{}
}

func (f *fakeAuthRepo) Login(_ context.Context, _ dto.LoginRequest) (*dto.LoginResponse, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.resp, f.err
}

func (f *fakeAuthRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func studentLogin(token string) *dto.LoginResponse {
	sid := "s1"
	return &dto.LoginResponse{
		Token: token,
		User:  domain.UserIdentity{ID: "u1", Role: domain.RoleStudent, StudentID: &sid, FirstName: "Ada", LastName: "Lovelace", Email: "a@b.com"},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestManager(repo *fakeAuthRepo, store Store, clock clockwork.Clock) (*Manager, *recorder) {
	d := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, et := range []events.EventType{events.EventSessionEstablished, events.EventSessionCleared, events.EventSessionExpired} {
		d.Subscribe(et, rec.handler)
	}
	if clock == nil {
		clock = clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	}
	m := NewManager(Dependencies{
		Auth:       repo,
		Store:      store,
		DeviceKey:  "laptop",
		Inspector:  auth.NewTokenInspector(clock, 0),
		Dispatcher: d,
		Clock:      clock,
	})
	return m, rec
}

var validCreds = Credentials{Email: "a@b.com", Password: "password123"}

func TestLogin_ShortPasswordFailsBeforeNetwork(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("t")}
	m, _ := newTestManager(repo, nil, nil)

	snap, err := m.Login(context.Background(), Credentials{Email: "a@b.com", Password: "short"})
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Equal(t, "Password must be at least 8 characters", de.Message)
	assert.Equal(t, "Password must be at least 8 characters", de.Details["password"])
	assert.Equal(t, 0, repo.callCount())
	assert.Equal(t, StatusIdle, snap.Status)
}

func TestValidateCredentials_Messages(t *testing.T) {
	err := ValidateCredentials(Credentials{})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "Email is required", de.Details["email"])
	assert.Equal(t, "Password is required", de.Details["password"])

	err = ValidateCredentials(Credentials{Email: "not-an-email", Password: "password123"})
	assert.Equal(t, "Email must be a valid address", err.Error())

	assert.NoError(t, ValidateCredentials(validCreds))
}

func TestLogin_Success(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("tok-1")}
	store := NewMemoryStore()
	m, rec := newTestManager(repo, store, nil)

	snap, err := m.Login(context.Background(), validCreds)
	require.NoError(t, err)

	assert.Equal(t, StatusAuthenticated, snap.Status)
	assert.True(t, snap.Authenticated())
	assert.Equal(t, "tok-1", snap.Token)
	assert.Equal(t, "u1", snap.User.ID)
	assert.Equal(t, "tok-1", m.Token())
	assert.Equal(t, "s1", m.Identity().StudentIDOrEmpty())

	persisted, err := store.Load(context.Background(), "laptop")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "tok-1", persisted.Token)
	assert.Equal(t, []events.EventType{events.EventSessionEstablished}, rec.types())
}

func TestLogin_BackendFailure(t *testing.T) {
	repo := &fakeAuthRepo{err: apperrors.NewUnauthorized("invalid credentials")}
	m, _ := newTestManager(repo, nil, nil)

	snap, err := m.Login(context.Background(), validCreds)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "invalid credentials", snap.Error)
	assert.Nil(t, snap.User)
	assert.Empty(t, m.Token())
	assert.Equal(t, 1, repo.callCount())
}

func TestLogin_MissingTokenIsFailure(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("")}
	m, _ := newTestManager(repo, nil, nil)

	snap, err := m.Login(context.Background(), validCreds)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Nil(t, snap.User)
}

func TestLogin_SecondAttemptWhileAuthenticatingRefused(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("tok"), gate: make(chan struct{})}
	m, _ := newTestManager(repo, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), validCreds)
		done <- err
	}()
	require.Eventually(t, func() bool { return m.Snapshot().Status == StatusAuthenticating }, time.Second, time.Millisecond)

	_, err := m.Login(context.Background(), validCreds)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	close(repo.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, repo.callCount())
}

func TestLogout_DuringLoginDiscardsResult(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("tok"), gate: make(chan struct{})}
	m, _ := newTestManager(repo, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), validCreds)
		done <- err
	}()
	require.Eventually(t, func() bool { return m.Snapshot().Status == StatusAuthenticating }, time.Second, time.Millisecond)

	m.Logout(context.Background())
	close(repo.gate)

	assert.Error(t, <-done)
	snap := m.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
}

// logoutOnSaveStore signs the user out while the login record is being written.
type logoutOnSaveStore struct {
	*MemoryStore
	manager *Manager
	once    sync.Once
}

func (s *logoutOnSaveStore) Save(ctx context.Context, key string, rec Record) error {
	s.once.Do(func() { s.manager.Logout(ctx) })
	return s.MemoryStore.Save(ctx, key, rec)
}

func TestLogout_WhileLoginPersistsDoesNotResurrectSession(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	token := signedToken(t, clock.Now().Add(time.Hour))
	store := &logoutOnSaveStore{MemoryStore: NewMemoryStore()}
	m, rec := newTestManager(&fakeAuthRepo{resp: studentLogin(token)}, store, clock)
	store.manager = m

	snap, err := m.Login(context.Background(), validCreds)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.User)
	assert.Empty(t, m.Token())
	assert.NotContains(t, rec.types(), events.EventSessionEstablished)

	persisted, err := store.Load(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Nil(t, persisted)

	restarted, _ := newTestManager(&fakeAuthRepo{}, store.MemoryStore, clock)
	restored, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, restored.Status)
	assert.Empty(t, restored.Token)
}

func TestLogout_ClearsEverything(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("tok-1")}
	store := NewMemoryStore()
	m, rec := newTestManager(repo, store, nil)

	_, err := m.Login(context.Background(), validCreds)
	require.NoError(t, err)
	before := m.Epoch()

	snap := m.Logout(context.Background())
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.Greater(t, snap.Epoch, before)

	persisted, err := store.Load(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Nil(t, persisted)
	assert.Equal(t, []events.EventType{events.EventSessionEstablished, events.EventSessionCleared}, rec.types())
}

func TestRelogin_ClearsPreviousIdentity(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("tok-1")}
	m, rec := newTestManager(repo, nil, nil)

	_, err := m.Login(context.Background(), validCreds)
	require.NoError(t, err)
	first := m.Epoch()

	repo.resp = studentLogin("tok-2")
	_, err = m.Login(context.Background(), validCreds)
	require.NoError(t, err)

	assert.Greater(t, m.Epoch(), first)
	assert.Equal(t, "tok-2", m.Token())
	assert.Contains(t, rec.types(), events.EventSessionCleared)
}

func TestHandleUnauthorized(t *testing.T) {
	repo := &fakeAuthRepo{resp: studentLogin("tok-1")}
	m, rec := newTestManager(repo, nil, nil)
	_, err := m.Login(context.Background(), validCreds)
	require.NoError(t, err)

	m.HandleUnauthorized("older-token")
	assert.Equal(t, StatusAuthenticated, m.Snapshot().Status)

	m.HandleUnauthorized("tok-1")
	assert.Equal(t, StatusIdle, m.Snapshot().Status)
	assert.Nil(t, m.Identity())
	assert.Contains(t, rec.types(), events.EventSessionExpired)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestRestore(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	token := signedToken(t, clock.Now().Add(time.Hour))
	require.NoError(t, store.Save(context.Background(), "laptop", Record{Token: token, User: studentLogin(token).User}))

	m, rec := newTestManager(&fakeAuthRepo{}, store, clock)
	snap, err := m.Restore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusAuthenticated, snap.Status)
	assert.Equal(t, "u1", snap.User.ID)
	assert.Equal(t, []events.EventType{events.EventSessionEstablished}, rec.types())
}

func TestRestore_ExpiredTokenDiscarded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	token := signedToken(t, clock.Now().Add(-time.Minute))
	require.NoError(t, store.Save(context.Background(), "laptop", Record{Token: token, User: studentLogin(token).User}))

	m, _ := newTestManager(&fakeAuthRepo{}, store, clock)
	snap, err := m.Restore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusIdle, snap.Status)
	persisted, _ := store.Load(context.Background(), "laptop")
	assert.Nil(t, persisted)
}

func TestRestore_Empty(t *testing.T) {
	m, _ := newTestManager(&fakeAuthRepo{}, nil, nil)
	snap, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, snap.Status)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Load(context.Context, string) (*Record, error) {
	return nil, errors.New("redis down")
}

func TestRestore_StoreError(t *testing.T) {
	m, _ := newTestManager(&fakeAuthRepo{}, &failingStore{}, nil)
	_, err := m.Restore(context.Background())
	assert.EqualError(t, err, "redis down")
}

func TestExpireIfNeeded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	token := signedToken(t, clock.Now().Add(10*time.Minute))
	m, rec := newTestManager(&fakeAuthRepo{resp: studentLogin(token)}, nil, clock)

	_, err := m.Login(context.Background(), validCreds)
	require.NoError(t, err)

	assert.False(t, m.ExpireIfNeeded())
	clock.Advance(11 * time.Minute)
	assert.True(t, m.ExpireIfNeeded())
	assert.Equal(t, StatusIdle, m.Snapshot().Status)
	assert.Contains(t, rec.types(), events.EventSessionExpired)
	assert.False(t, m.ExpireIfNeeded())
}
