package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/talent-client/internal/domain"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

type epochCounter struct {
	v atomic.Uint64
}

func (e *epochCounter) Epoch() uint64 { return e.v.Load() }
func (e *epochCounter) bump()         { e.v.Add(1) }

// gatedJobs answers GetByID only after the test releases the id.
type gatedJobs struct {
	mu      sync.Mutex
	calls   map[string]int
	gates   map[string]chan struct{}
	started chan string
	errs    map[string]error
	list    []domain.Job
	listErr error
}

func newGatedJobs() *gatedJobs {
	return &gatedJobs{
		calls:   map[string]int{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
		errs:    map[string]error{},
	}
}

func (g *gatedJobs) gate(id string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{})
		g.gates[id] = ch
	}
	return ch
}

func (g *gatedJobs) open(id string) { close(g.gate(id)) }

func (g *gatedJobs) get(_ context.Context, id string) (domain.Job, error) {
	g.mu.Lock()
	g.calls[id]++
	err := g.errs[id]
	g.mu.Unlock()
	g.started <- id
	<-g.gate(id)
	if err != nil {
		return domain.Job{}, err
	}
	return domain.Job{ID: id, Title: "job " + id}, nil
}

func (g *gatedJobs) listJobs(_ context.Context) ([]domain.Job, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["list"]++
	return g.list, g.listErr
}

func (g *gatedJobs) callCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[id]
}

func newJobCache(g *gatedJobs, epoch EpochSource) *Resource[domain.Job] {
	return New(Config[domain.Job]{
		Name:  "jobs",
		List:  g.listJobs,
		Get:   g.get,
		Key:   func(j domain.Job) string { return j.ID },
		Epoch: epoch,
	})
}

func waitStarted(t *testing.T, g *gatedJobs, want string) {
	t.Helper()
	select {
	case id := <-g.started:
		require.Equal(t, want, id)
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch for %s never started", want)
	}
}

func TestFetchList(t *testing.T) {
	g := newGatedJobs()
	g.list = []domain.Job{{ID: "j1"}, {ID: "j2"}}
	c := newJobCache(g, nil)

	assert.Equal(t, StatusIdle, c.State().Status)

	state := c.FetchList(context.Background())
	assert.Equal(t, StatusSucceeded, state.Status)
	assert.Empty(t, state.Error)
	require.Len(t, state.Items, 2)
	assert.Equal(t, "j1", state.Items[0].ID)
	assert.False(t, state.FetchedAt.IsZero())
}

func TestFetchList_FailureKeepsItems(t *testing.T) {
	g := newGatedJobs()
	g.list = []domain.Job{{ID: "j1"}}
	c := newJobCache(g, nil)
	c.FetchList(context.Background())

	g.mu.Lock()
	g.listErr = apperrors.NewNetworkError("backend unreachable", errors.New("dial tcp"))
	g.mu.Unlock()

	state := c.FetchList(context.Background())
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, apperrors.CodeNetwork, state.ErrorCode)
	assert.Equal(t, "backend unreachable", state.Error)
	assert.True(t, state.Retryable())
	require.Len(t, state.Items, 1)
	assert.Equal(t, "j1", state.Items[0].ID)
}

func TestFetchList_Unsupported(t *testing.T) {
	c := New(Config[domain.Service]{Name: "services", Get: func(context.Context, string) (domain.Service, error) {
		return domain.Service{}, nil
	}})

	state := c.FetchList(context.Background())
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, apperrors.CodeUnsupported, state.ErrorCode)
}

func TestFetchList_SequentialLastWins(t *testing.T) {
	g := newGatedJobs()
	g.list = []domain.Job{{ID: "j1"}, {ID: "j2"}}
	c := newJobCache(g, nil)

	c.FetchList(context.Background())

	g.mu.Lock()
	g.list = []domain.Job{{ID: "j3"}}
	g.mu.Unlock()
	state := c.FetchList(context.Background())

	assert.Equal(t, StatusSucceeded, state.Status)
	assert.Equal(t, []domain.Job{{ID: "j3"}}, state.Items)
	assert.Equal(t, []domain.Job{{ID: "j3"}}, c.State().Items)
	assert.Equal(t, 2, g.callCount("list"))
}

func TestFetchList_ConcurrentCallsDeduplicated(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	c := New(Config[domain.Job]{
		Name: "jobs",
		List: func(context.Context) ([]domain.Job, error) {
			calls.Add(1)
			started <- struct{}{}
			<-release
			return []domain.Job{{ID: "j1"}}, nil
		},
		Key: func(j domain.Job) string { return j.ID },
	})

	const callers = 5
	results := make(chan State[domain.Job], callers)
	go func() { results <- c.FetchList(context.Background()) }()
	<-started
	for i := 1; i < callers; i++ {
		go func() { results <- c.FetchList(context.Background()) }()
	}
	assert.Equal(t, StatusLoading, c.State().ListStatus)
	// give the other callers time to join the flight
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		state := <-results
		assert.Equal(t, StatusSucceeded, state.Status)
		assert.Len(t, state.Items, 1)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchByID_NotFoundKeepsCurrent(t *testing.T) {
	g := newGatedJobs()
	g.open("j1")
	g.open("missing")
	g.errs["missing"] = apperrors.NewNotFound("job", nil)
	c := newJobCache(g, nil)

	state := c.FetchByID(context.Background(), "j1")
	require.NotNil(t, state.Current)
	assert.Equal(t, "j1", state.Current.ID)

	state = c.FetchByID(context.Background(), "missing")
	assert.Equal(t, StatusFailed, state.Status)
	assert.True(t, state.NotFound())
	assert.False(t, state.Retryable())
	require.NotNil(t, state.Current)
	assert.Equal(t, "j1", state.Current.ID)
}

func TestFetchByID_EmptyID(t *testing.T) {
	c := newJobCache(newGatedJobs(), nil)
	state := c.FetchByID(context.Background(), "")
	assert.Equal(t, apperrors.CodeValidation, state.ErrorCode)
}

func TestFetchByID_SequentialLastWins(t *testing.T) {
	g := newGatedJobs()
	g.open("j1")
	g.open("j2")
	c := newJobCache(g, nil)

	c.FetchByID(context.Background(), "j1")
	state := c.FetchByID(context.Background(), "j2")

	require.NotNil(t, state.Current)
	assert.Equal(t, "j2", state.Current.ID)
	assert.Equal(t, "j2", state.CurrentID)
}

func TestFetchByID_StaleResponseDiscarded(t *testing.T) {
	g := newGatedJobs()
	c := newJobCache(g, nil)

	first := make(chan State[domain.Job], 1)
	go func() { first <- c.FetchByID(context.Background(), "j1") }()
	waitStarted(t, g, "j1")

	second := make(chan State[domain.Job], 1)
	go func() { second <- c.FetchByID(context.Background(), "j2") }()
	waitStarted(t, g, "j2")

	// j2 resolves first, then the slower j1 response arrives.
	g.open("j2")
	state := <-second
	require.NotNil(t, state.Current)
	assert.Equal(t, "j2", state.Current.ID)

	g.open("j1")
	<-first
	state = c.State()
	require.NotNil(t, state.Current)
	assert.Equal(t, "j2", state.Current.ID)
	assert.Equal(t, StatusSucceeded, state.Status)
}

func TestFetchByID_ConcurrentSameKeyDeduplicated(t *testing.T) {
	g := newGatedJobs()
	c := newJobCache(g, nil)

	var wg sync.WaitGroup
	results := make([]State[domain.Job], 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.FetchByID(context.Background(), "j1")
		}(i)
	}
	waitStarted(t, g, "j1")
	// give the other callers time to join the flight
	time.Sleep(50 * time.Millisecond)
	g.open("j1")
	wg.Wait()

	assert.Equal(t, 1, g.callCount("j1"))
	for _, r := range results {
		require.NotNil(t, r.Current)
		assert.Equal(t, "j1", r.Current.ID)
	}
}

func TestFetchByID_DifferentKeysRunInParallel(t *testing.T) {
	g := newGatedJobs()
	c := newJobCache(g, nil)

	done := make(chan struct{}, 2)
	go func() { c.FetchByID(context.Background(), "a"); done <- struct{}{} }()
	go func() { c.FetchByID(context.Background(), "b"); done <- struct{}{} }()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-g.started:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("fetches did not start concurrently")
		}
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])

	g.open("a")
	g.open("b")
	<-done
	<-done
}

func TestFetchByID_CallerContextEndsWhileLoading(t *testing.T) {
	g := newGatedJobs()
	c := newJobCache(g, nil)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan State[domain.Job], 1)
	go func() { result <- c.FetchByID(ctx, "j1") }()
	waitStarted(t, g, "j1")
	cancel()

	state := <-result
	assert.Equal(t, StatusLoading, state.Status)

	g.open("j1")
	require.Eventually(t, func() bool {
		return c.State().Status == StatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReset_DiscardsInFlightResponse(t *testing.T) {
	g := newGatedJobs()
	c := newJobCache(g, nil)

	result := make(chan State[domain.Job], 1)
	go func() { result <- c.FetchByID(context.Background(), "j1") }()
	waitStarted(t, g, "j1")

	c.Reset()
	g.open("j1")
	<-result

	state := c.State()
	assert.Nil(t, state.Current)
	assert.Equal(t, StatusIdle, state.Status)
}

func TestEpochChange_DiscardsLateResponseAndData(t *testing.T) {
	g := newGatedJobs()
	g.list = []domain.Job{{ID: "j1"}}
	epoch := &epochCounter{}
	c := newJobCache(g, epoch)

	c.FetchList(context.Background())
	require.Len(t, c.State().Items, 1)

	result := make(chan State[domain.Job], 1)
	go func() { result <- c.FetchByID(context.Background(), "j2") }()
	waitStarted(t, g, "j2")

	epoch.bump()
	g.open("j2")
	<-result

	state := c.State()
	assert.Empty(t, state.Items)
	assert.Nil(t, state.Current)
	assert.Equal(t, StatusIdle, state.Status)
}

func TestFetchAfterResetStartsNewFlight(t *testing.T) {
	g := newGatedJobs()
	c := newJobCache(g, nil)

	stale := make(chan State[domain.Job], 1)
	go func() { stale <- c.FetchByID(context.Background(), "j1") }()
	waitStarted(t, g, "j1")
	c.Reset()

	fresh := make(chan State[domain.Job], 1)
	go func() { fresh <- c.FetchByID(context.Background(), "j1") }()
	waitStarted(t, g, "j1")

	g.open("j1")
	<-stale
	state := <-fresh
	assert.Equal(t, 2, g.callCount("j1"))
	require.NotNil(t, state.Current)
	assert.Equal(t, StatusSucceeded, state.Status)
}

func TestUpdateItemAndLookup(t *testing.T) {
	g := newGatedJobs()
	g.list = []domain.Job{{ID: "j1"}, {ID: "j2"}}
	g.open("j1")
	c := newJobCache(g, nil)
	c.FetchList(context.Background())
	c.FetchByID(context.Background(), "j1")

	ok := c.UpdateItem("j1", func(j domain.Job) domain.Job {
		j = j.Clone()
		j.Applications = append(j.Applications, domain.Application{ID: "a1", Student: domain.ApplicationStudent{ID: "s1"}})
		return j
	})
	require.True(t, ok)

	state := c.State()
	require.NotNil(t, state.Current)
	assert.Len(t, state.Current.Applications, 1)
	assert.Len(t, state.Items[0].Applications, 1)
	assert.Empty(t, state.Items[1].Applications)

	job, found := c.Lookup("j2")
	assert.True(t, found)
	assert.Equal(t, "j2", job.ID)

	_, found = c.Lookup("nope")
	assert.False(t, found)
	assert.False(t, c.UpdateItem("nope", func(j domain.Job) domain.Job { return j }))
}

func TestStateIsACopy(t *testing.T) {
	g := newGatedJobs()
	g.list = []domain.Job{{ID: "j1"}}
	c := newJobCache(g, nil)
	c.FetchList(context.Background())

	state := c.State()
	state.Items[0].Title = "changed"
	assert.NotEqual(t, "changed", c.State().Items[0].Title)
}
