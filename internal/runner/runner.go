// Package runner drives one probe-select-write cycle against the hosts file.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"hostpin/internal/hosts"
	"hostpin/internal/privilege"
	"hostpin/internal/probe"
	"hostpin/internal/selector"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
	apperrors "hostpin/pkg/errors"
)

// State is a step of the run state machine.
type State string

const (
	StateIdle           State = "idle"
	StatePrivilegeCheck State = "privilege_check"
	StateProbing        State = "probing"
	StateSelecting      State = "selecting"
	StateBackingUp      State = "backing_up"
	StateWriting        State = "writing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Store is the slice of storage the runner needs.
type Store interface {
	LoadSettings(ctx context.Context) (*models.Settings, error)
	LoadAssignment(ctx context.Context) (models.Assignment, error)
	SaveAssignment(ctx context.Context, assignment models.Assignment, at time.Time) error
	AppendEvents(ctx context.Context, events []models.Event) error
	RecordRun(ctx context.Context, run *models.Run) error
}

// Transactor is implemented by stores that can persist a finished run as a
// unit. The runner uses it when the Store provides it.
type Transactor interface {
	BeginTx(ctx context.Context) (storage.Transaction, error)
}

// HostsFile is the hosts document the runner rewrites. *hosts.File
// implements it.
type HostsFile interface {
	Read() (string, error)
	Backup(now time.Time) (string, error)
	Write(text string) error
	PruneBackups(keep int) ([]string, error)
	Lock() (func(), error)
}

// Recorder receives finished runs, e.g. for metrics.
type Recorder interface {
	ObserveRun(state string, seconds float64, assignment models.Assignment)
}

// Config wires the runner's collaborators. Store and Hosts are required.
type Config struct {
	Store     Store
	Hosts     HostsFile
	Privilege privilege.Checker
	Clock     clockwork.Clock
	Observer  probe.Observer
	Recorder  Recorder
	Logger    *zap.Logger

	// NewStrategy builds the probe strategy named by the settings.
	NewStrategy func(name string) (probe.Strategy, error)
}

// Request parameterizes one run. Empty fields fall back to the stored
// settings.
type Request struct {
	Addresses []string
	Domains   []string
	Workers   int
	Timeout   time.Duration
	Strategy  string

	// Progress, when set, is called after every probe.
	Progress probe.ProgressFunc
}

// Result is what one run produced.
type Result struct {
	State      State               `json:"state"`
	Assignment models.Assignment   `json:"assignment"`
	Fallbacks  []string            `json:"fallbacks,omitempty"`
	Unresolved []string            `json:"unresolved,omitempty"`
	Table      models.LatencyTable `json:"table,omitempty"`
	Tested     int                 `json:"tested"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
	Events     []models.Event      `json:"events"`
	Err        *apperrors.RunError `json:"-"`
	Reason     string              `json:"reason,omitempty"`
	BackupPath string              `json:"backup_path,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Runner executes runs one at a time.
type Runner struct {
	config Config
	clock  clockwork.Clock
	log    *zap.Logger

	mu    sync.Mutex
	state atomic.Value // State
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Privilege == nil {
		cfg.Privilege = privilege.Check
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.NewStrategy == nil {
		cfg.NewStrategy = func(name string) (probe.Strategy, error) {
			return probe.NewStrategy(name, probe.Options{})
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &Runner{config: cfg, clock: cfg.Clock, log: log.Named("runner")}
	r.state.Store(StateIdle)
	return r
}

// State returns the state of the run in progress, or idle.
func (r *Runner) State() State {
	return r.state.Load().(State)
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	return r.State() != StateIdle
}

// Run executes one full run. Runs are serialized; a second caller waits for
// the first to finish. Cancelling ctx does not abort a run once started.
func (r *Runner) Run(ctx context.Context, req Request) *Result {
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.setState(StateIdle)

	rc := &run{Runner: r, res: &Result{StartedAt: r.clock.Now()}}
	defer rc.release()
	rc.execute(ctx, req)
	rc.finish(ctx)
	return rc.res
}

// Wait blocks until the run in progress, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
}

func (r *Runner) setState(s State) {
	r.state.Store(s)
}

// run carries the mutable state of one Run call.
type run struct {
	*Runner
	res *Result

	unlock    func()    // hosts lock, held from selecting until persisted
	writtenAt time.Time // zero unless the hosts file was written
}

func (rc *run) release() {
	if rc.unlock != nil {
		rc.unlock()
		rc.unlock = nil
	}
}

func (rc *run) event(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	rc.res.Events = append(rc.res.Events, models.Event{
		Time:    rc.clock.Now(),
		Level:   level,
		Message: msg,
	})
	switch level {
	case models.LevelWarn:
		rc.log.Warn(msg)
	case models.LevelError:
		rc.log.Error(msg)
	default:
		rc.log.Info(msg)
	}
}

func (rc *run) enter(s State) {
	rc.res.State = s
	rc.setState(s)
	rc.log.Debug("state", zap.String("state", string(s)))
}

func (rc *run) fail(err error) {
	rc.res.Err = &apperrors.RunError{Stage: string(rc.res.State), Err: err}
	rc.res.Reason = err.Error()
	rc.event(models.LevelError, "Run failed during %s: %v", rc.res.State, err)
	rc.enter(StateFailed)
}

func (rc *run) execute(ctx context.Context, req Request) {
	rc.event(models.LevelInfo, "Run started")

	rc.enter(StatePrivilegeCheck)
	if err := rc.config.Privilege(); err != nil {
		rc.fail(err)
		return
	}

	rc.enter(StateProbing)
	settings, err := rc.config.Store.LoadSettings(ctx)
	if err != nil {
		rc.fail(fmt.Errorf("load settings: %w", err))
		return
	}
	addresses := pick(req.Addresses, settings.Addresses)
	domains := pick(req.Domains, settings.Domains)
	if len(addresses) == 0 || len(domains) == 0 {
		rc.fail(apperrors.ErrEmptyInput)
		return
	}

	strategy, err := rc.config.NewStrategy(firstNonEmpty(req.Strategy, settings.Strategy))
	if err != nil {
		rc.fail(err)
		return
	}
	agg := probe.NewAggregator(probe.AggregatorConfig{
		Workers:  firstPositive(req.Workers, settings.Workers),
		Timeout:  firstPositive(req.Timeout, settings.Timeout),
		Strategy: strategy,
		Observer: rc.config.Observer,
		Logger:   rc.log,
	})
	rc.event(models.LevelInfo, "Probing %d addresses for %d domains with %s",
		len(addresses), len(domains), strategy.Name())
	batch := agg.Aggregate(ctx, addresses, domains, req.Progress)
	rc.res.Table = batch.Table
	rc.res.Tested, rc.res.Succeeded, rc.res.Failed = batch.Tested, batch.Succeeded, batch.Failed
	rc.event(models.LevelInfo, "Probed %d pairs in %s: %d reachable, %d failed",
		batch.Tested, batch.Duration.Round(time.Millisecond), batch.Succeeded, batch.Failed)

	rc.enter(StateSelecting)
	unlock, err := rc.config.Hosts.Lock()
	if err != nil {
		rc.fail(err)
		return
	}
	rc.unlock = unlock

	prior, err := rc.config.Store.LoadAssignment(ctx)
	if err != nil {
		rc.event(models.LevelWarn, "Ignoring last known assignment: %v", err)
		prior = nil
	}
	sel := selector.Select(batch.Table, addresses, domains, prior)
	rc.res.Fallbacks, rc.res.Unresolved = sel.Fallbacks, sel.Unresolved
	for _, e := range sel.Assignment {
		if e.Source == models.SourceFallback {
			rc.event(models.LevelWarn, "No reachable address for %s, keeping %s", e.Domain, e.Address)
			continue
		}
		rc.event(models.LevelInfo, "Fastest address for %s: %s (%.0f ms)", e.Domain, e.Address, *e.LatencyMS)
	}
	for _, d := range sel.Unresolved {
		rc.event(models.LevelWarn, "No reachable address for %s and no previous one, skipping", d)
	}
	if sel.AllUnresolved() {
		rc.fail(apperrors.ErrAllUnresolved)
		return
	}
	rc.res.Assignment = sel.Assignment

	rc.enter(StateBackingUp)
	now := rc.clock.Now()
	text, err := rc.config.Hosts.Read()
	if err != nil {
		rc.fail(fmt.Errorf("%w: %v", apperrors.ErrBackupFailed, err))
		return
	}
	backup, err := rc.config.Hosts.Backup(now)
	if err != nil {
		rc.fail(fmt.Errorf("%w: %v", apperrors.ErrBackupFailed, err))
		return
	}
	rc.res.BackupPath = backup
	rc.event(models.LevelInfo, "Backed up hosts file to %s", backup)

	rc.enter(StateWriting)
	if err := rc.config.Hosts.Write(hosts.Reconcile(text, sel.Assignment, now)); err != nil {
		rc.fail(fmt.Errorf("%w: %v", apperrors.ErrWriteFailed, err))
		return
	}
	rc.writtenAt = now
	rc.event(models.LevelInfo, "Hosts file updated with %d entries", len(sel.Assignment))

	if settings.BackupKeep > 0 {
		removed, err := rc.config.Hosts.PruneBackups(settings.BackupKeep)
		if err != nil {
			rc.event(models.LevelWarn, "Could not prune backups: %v", err)
		} else if len(removed) > 0 {
			rc.log.Debug("pruned backups", zap.Strings("removed", removed))
		}
	}

	rc.enter(StateDone)
}

// finish persists the new assignment, the run record and its events
// together. Storage errors here are logged and do not change the outcome.
func (rc *run) finish(ctx context.Context) {
	r, res := rc.Runner, rc.res
	res.FinishedAt = r.clock.Now()

	record := &models.Run{
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		State:      string(res.State),
		Reason:     res.Reason,
		BackupPath: res.BackupPath,
	}
	if res.State == StateDone {
		record.Assignment = res.Assignment
	}
	err := r.persist(ctx, func(s Store) error {
		if res.State == StateDone {
			if err := s.SaveAssignment(ctx, res.Assignment, rc.writtenAt); err != nil {
				return err
			}
		}
		if err := s.RecordRun(ctx, record); err != nil {
			return err
		}
		return s.AppendEvents(ctx, res.Events)
	})
	if err != nil {
		r.log.Error("failed to persist run", zap.Error(err))
	}
	rc.release()

	if r.config.Recorder != nil {
		r.config.Recorder.ObserveRun(string(res.State), res.FinishedAt.Sub(res.StartedAt).Seconds(), record.Assignment)
	}

	fields := []zap.Field{
		zap.String("state", string(res.State)),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
		zap.Int("assigned", len(res.Assignment)),
	}
	if res.Err != nil {
		r.log.Error("run finished", append(fields, zap.Error(res.Err))...)
		return
	}
	r.log.Info("run finished", fields...)
}

// persist runs fn in a transaction when the store supports one.
func (r *Runner) persist(ctx context.Context, fn func(Store) error) error {
	tr, ok := r.config.Store.(Transactor)
	if !ok {
		return fn(r.config.Store)
	}
	tx, err := tr.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// FailedWith reports whether the result is a failed run caused by target.
func (res *Result) FailedWith(target error) bool {
	return res.State == StateFailed && res.Err != nil && errors.Is(res.Err, target)
}

func pick(override, stored []string) []string {
	if list := models.Dedup(override); len(list) > 0 {
		return list
	}
	return models.Dedup(stored)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstPositive[T int | time.Duration](a, b T) T {
	if a > 0 {
		return a
	}
	return b
}
