package runner

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostpin/internal/hosts"
	"hostpin/internal/probe"
	"hostpin/internal/storage/models"
	"hostpin/internal/storage/sqlite"
	apperrors "hostpin/pkg/errors"
)

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	settings   models.Settings
	assignment models.Assignment
	lastRun    time.Time
	events     []models.Event
	runs       []*models.Run
}

func (s *memStore) LoadSettings(ctx context.Context) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.settings
	return &cp, nil
}

func (s *memStore) LoadAssignment(ctx context.Context) (models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(models.Assignment(nil), s.assignment...), nil
}

func (s *memStore) SaveAssignment(ctx context.Context, a models.Assignment, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignment = append(models.Assignment(nil), a...)
	s.lastRun = at
	return nil
}

func (s *memStore) AppendEvents(ctx context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *memStore) RecordRun(ctx context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = int64(len(s.runs) + 1)
	s.runs = append(s.runs, run)
	return nil
}

// tableStrategy answers with fixed latencies; unknown pairs fail to connect.
type tableStrategy map[string]time.Duration // "address domain" -> latency

func (tableStrategy) Name() string { return "table" }

func (s tableStrategy) Probe(ctx context.Context, address, domain string) (time.Duration, error) {
	if d, ok := s[address+" "+domain]; ok {
		return d, nil
	}
	return 0, &apperrors.ProbeError{Kind: apperrors.KindConnect, Address: address, Domain: domain, Err: errors.New("refused")}
}

type runRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *runRecorder) ObserveRun(state string, seconds float64, a models.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

// failingWrite wraps a hosts file whose writes always fail.
type failingWrite struct{ *hosts.File }

func (f failingWrite) Write(string) error { return errors.New("read-only file system") }

type fixture struct {
	store    *memStore
	hosts    *hosts.File
	clock    *clockwork.FakeClock
	recorder *runRecorder
	cfg      Config
}

func newFixture(t *testing.T, hostsText string, strategy tableStrategy) *fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(path, []byte(hostsText), 0o644))

	f := &fixture{
		store: &memStore{settings: models.Settings{
			Addresses: []string{"A", "B"},
			Domains:   []string{"d"},
			Workers:   4,
			Timeout:   time.Second,
		}},
		hosts:    hosts.NewFile(path, filepath.Join(dir, "hostpin.lock")),
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)),
		recorder: &runRecorder{},
	}
	f.cfg = Config{
		Store:       f.store,
		Hosts:       f.hosts,
		Privilege:   func() error { return nil },
		Clock:       f.clock,
		Recorder:    f.recorder,
		NewStrategy: func(string) (probe.Strategy, error) { return strategy, nil },
	}
	return f
}

// useSQLite swaps the in-memory store for a real database holding the
// same settings and returns it with its path.
func (f *fixture) useSQLite(t *testing.T) (*sqlite.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostpin.db")
	db, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	settings := f.store.settings
	settings.Strategy = "https"
	require.NoError(t, db.SaveSettings(context.Background(), &settings))
	f.cfg.Store = db
	return db, path
}

func (f *fixture) read(t *testing.T) string {
	t.Helper()
	text, err := f.hosts.Read()
	require.NoError(t, err)
	return text
}

func (f *fixture) backups(t *testing.T) []string {
	t.Helper()
	b, err := f.hosts.Backups()
	require.NoError(t, err)
	return b
}

func TestRunPicksFastest(t *testing.T) {
	// Scenario A: A at 10ms, B at 5ms -> B.
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{
		"A d": 10 * time.Millisecond,
		"B d": 5 * time.Millisecond,
	})
	res := New(f.cfg).Run(context.Background(), Request{})

	require.Nil(t, res.Err)
	assert.Equal(t, StateDone, res.State)
	require.Len(t, res.Assignment, 1)
	assert.Equal(t, "B", res.Assignment[0].Address)
	assert.Equal(t, 2, res.Tested)
	assert.Equal(t, 2, res.Succeeded)

	text := f.read(t)
	assert.Contains(t, text, "# hostpin auto update 2026-05-01 10:00:00\nB d\n")
	assert.True(t, strings.HasPrefix(text, "127.0.0.1 localhost\n"))

	assert.Equal(t, f.hosts.Path+".bak_20260501_100000", res.BackupPath)
	backup, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n", string(backup))

	assert.Equal(t, res.Assignment, f.store.assignment)
	require.Len(t, f.store.runs, 1)
	assert.Equal(t, "done", f.store.runs[0].State)
	assert.Equal(t, res.Events, f.store.events)
	assert.Equal(t, []string{"done"}, f.recorder.states)
}

func TestRunFallsBackToPrior(t *testing.T) {
	// Scenario B: every probe fails, prior {d: A} is kept.
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{})
	f.store.assignment = models.Assignment{{Domain: "d", Address: "A", Source: models.SourceProbed}}

	res := New(f.cfg).Run(context.Background(), Request{})

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"d"}, res.Fallbacks)
	assert.Equal(t, models.SourceFallback, res.Assignment[0].Source)
	assert.Contains(t, f.read(t), "\nA d\n")
}

func TestRunAllUnresolved(t *testing.T) {
	// Scenario C: every probe fails and there is no prior.
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{})

	res := New(f.cfg).Run(context.Background(), Request{})

	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.Err)
	assert.Equal(t, string(StateSelecting), res.Err.Stage)
	assert.True(t, res.FailedWith(apperrors.ErrAllUnresolved))
	assert.Equal(t, []string{"d"}, res.Unresolved)

	assert.Equal(t, "127.0.0.1 localhost\n", f.read(t))
	assert.Empty(t, f.backups(t))
	assert.Nil(t, f.store.assignment)
	require.Len(t, f.store.runs, 1)
	assert.Equal(t, "failed", f.store.runs[0].State)
	assert.NotEmpty(t, f.store.runs[0].Reason)
}

func TestRunReplacesConflictingLines(t *testing.T) {
	// Scenario D: an unmanaged mapping for d is dropped whole.
	f := newFixture(t, "127.0.0.1 localhost\n1.2.3.4 d other\n", tableStrategy{"A d": time.Millisecond})

	res := New(f.cfg).Run(context.Background(), Request{})
	require.Equal(t, StateDone, res.State)

	text := f.read(t)
	assert.NotContains(t, text, "1.2.3.4")
	assert.Contains(t, text, "\nA d\n")

	// A second run leaves exactly one managed block behind.
	f.clock.Advance(time.Hour)
	res = New(f.cfg).Run(context.Background(), Request{})
	require.Equal(t, StateDone, res.State)
	text = f.read(t)
	assert.Equal(t, 1, strings.Count(text, hosts.SentinelPrefix))
	assert.Equal(t, 1, strings.Count(text, "A d"))
}

func TestRunRequestOverridesSettings(t *testing.T) {
	f := newFixture(t, "", tableStrategy{"C e": time.Millisecond})

	res := New(f.cfg).Run(context.Background(), Request{
		Addresses: []string{"C", " C "},
		Domains:   []string{"e"},
	})

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Tested)
	assert.Equal(t, "C", res.Assignment[0].Address)
	assert.Equal(t, "e", res.Assignment[0].Domain)
}

func TestRunEmptyInput(t *testing.T) {
	f := newFixture(t, "", tableStrategy{})
	f.store.settings.Addresses = nil

	res := New(f.cfg).Run(context.Background(), Request{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, string(StateProbing), res.Err.Stage)
	assert.True(t, res.FailedWith(apperrors.ErrEmptyInput))
	assert.Zero(t, res.Tested)
}

func TestRunPrivilegeDenied(t *testing.T) {
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{"A d": time.Millisecond})
	f.cfg.Privilege = func() error { return apperrors.ErrPrivilegeDenied }

	res := New(f.cfg).Run(context.Background(), Request{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, string(StatePrivilegeCheck), res.Err.Stage)
	assert.True(t, res.FailedWith(apperrors.ErrPrivilegeDenied))
	assert.Zero(t, res.Tested)
	assert.Equal(t, "127.0.0.1 localhost\n", f.read(t))
	assert.Equal(t, []string{"failed"}, f.recorder.states)
}

func TestRunBackupFailure(t *testing.T) {
	f := newFixture(t, "", tableStrategy{"A d": time.Millisecond})
	require.NoError(t, os.Remove(f.hosts.Path))

	res := New(f.cfg).Run(context.Background(), Request{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, string(StateBackingUp), res.Err.Stage)
	assert.True(t, res.FailedWith(apperrors.ErrBackupFailed))
	assert.Nil(t, f.store.assignment)
}

func TestRunWriteFailure(t *testing.T) {
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{"A d": time.Millisecond})
	f.cfg.Hosts = failingWrite{f.hosts}

	res := New(f.cfg).Run(context.Background(), Request{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, string(StateWriting), res.Err.Stage)
	assert.True(t, res.FailedWith(apperrors.ErrWriteFailed))
	assert.Equal(t, "127.0.0.1 localhost\n", f.read(t))
	assert.Nil(t, f.store.assignment, "assignment is only saved after a successful write")
	assert.Len(t, f.backups(t), 1)
}

func TestRunPrunesBackups(t *testing.T) {
	f := newFixture(t, "", tableStrategy{"A d": time.Millisecond})
	f.store.settings.BackupKeep = 2
	r := New(f.cfg)

	for i := 0; i < 4; i++ {
		res := r.Run(context.Background(), Request{})
		require.Equal(t, StateDone, res.State)
		f.clock.Advance(time.Minute)
	}
	assert.Len(t, f.backups(t), 2)
}

func TestRunIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, "", tableStrategy{"A d": time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(f.cfg).Run(ctx, Request{})
	assert.Equal(t, StateDone, res.State)
}

func TestConcurrentRunsAreSerialized(t *testing.T) {
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{
		"A d": 2 * time.Millisecond,
		"B d": time.Millisecond,
	})
	r := New(f.cfg)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Run(context.Background(), Request{})
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, StateDone, res.State)
	}
	text := f.read(t)
	assert.Equal(t, 1, strings.Count(text, hosts.SentinelPrefix))
	assert.Equal(t, 1, strings.Count(text, "B d"))
	assert.Len(t, f.store.runs, 8)
	assert.Equal(t, StateIdle, r.State())
	assert.False(t, r.Busy())
}

func TestProgressIsReported(t *testing.T) {
	f := newFixture(t, "", tableStrategy{"A d": time.Millisecond})

	var mu sync.Mutex
	var seen []int
	res := New(f.cfg).Run(context.Background(), Request{
		Progress: func(o *models.Outcome, current, total int) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, current)
			assert.Equal(t, 2, total)
		},
	})

	require.Equal(t, StateDone, res.State)
	assert.ElementsMatch(t, []int{1, 2}, seen)
}

func TestRunPersistsAssignmentRunAndEvents(t *testing.T) {
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{"A d": time.Millisecond})
	db, _ := f.useSQLite(t)
	ctx := context.Background()

	res := New(f.cfg).Run(ctx, Request{})
	require.Equal(t, StateDone, res.State)

	got, err := db.LoadAssignment(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Assignment, got)

	last, err := db.GetLastRunTime(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, f.clock.Now().Equal(*last))

	runs, err := db.GetRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "done", runs[0].State)

	events, err := db.GetRecentEvents(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, len(res.Events))
}

func TestRunPersistenceIsAllOrNothing(t *testing.T) {
	f := newFixture(t, "127.0.0.1 localhost\n", tableStrategy{"A d": time.Millisecond})
	db, path := f.useSQLite(t)
	ctx := context.Background()

	// Recording the run fails, so the assignment saved before it must not stick.
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec("DROP TABLE runs")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	res := New(f.cfg).Run(ctx, Request{})
	assert.Equal(t, StateDone, res.State)
	assert.Contains(t, f.read(t), "\nA d\n")

	got, err := db.LoadAssignment(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	events, err := db.GetRecentEvents(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFailedWith(t *testing.T) {
	res := &Result{State: StateDone, Failed: 3}
	assert.False(t, res.FailedWith(apperrors.ErrAllUnresolved))

	res = &Result{
		State: StateFailed,
		Err:   &apperrors.RunError{Stage: string(StateSelecting), Err: apperrors.ErrAllUnresolved},
	}
	assert.True(t, res.FailedWith(apperrors.ErrAllUnresolved))
	assert.False(t, res.FailedWith(apperrors.ErrWriteFailed))
}

// gateStrategy blocks every probe until release is closed.
type gateStrategy struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (*gateStrategy) Name() string { return "gate" }

func (g *gateStrategy) Probe(ctx context.Context, address, domain string) (time.Duration, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return time.Millisecond, nil
}

func TestWaitBlocksUntilRunIsPersisted(t *testing.T) {
	gate := &gateStrategy{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, "", nil)
	f.cfg.NewStrategy = func(string) (probe.Strategy, error) { return gate, nil }
	r := New(f.cfg)

	go r.Run(context.Background(), Request{})
	<-gate.started

	waited := make(chan struct{})
	go func() {
		r.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		t.Fatal("Wait returned while a run was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate.release)
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the run finished")
	}

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Len(t, f.store.runs, 1)
}
