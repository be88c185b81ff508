package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hostpin/internal/hosts"
	"hostpin/internal/runner"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
	apperrors "hostpin/pkg/errors"
)

const (
	defaultEventLimit = 200
	maxEventLimit     = 1000
	defaultRunLimit   = 20
)

type errorJSON struct {
	Error string `json:"error"`
}

type statusJSON struct {
	State        runner.State      `json:"state"`
	LastRun      *time.Time        `json:"last_run,omitempty"`
	Assignment   models.Assignment `json:"assignment"`
	Interval     int64             `json:"interval"`
	NextRun      *time.Time        `json:"next_run,omitempty"`
	ManagedStamp string            `json:"managed_stamp,omitempty"`
	Managed      []hosts.Mapping   `json:"managed,omitempty"`
}

// settingsJSON is the wire form of settings: interval in seconds, timeout
// in milliseconds. Pointer fields are optional on PUT.
type settingsJSON struct {
	Addresses  *[]string `json:"addresses,omitempty"`
	Domains    *[]string `json:"domains,omitempty"`
	Interval   *int64    `json:"interval,omitempty"`
	Workers    *int      `json:"workers,omitempty"`
	Timeout    *int64    `json:"timeout,omitempty"`
	Strategy   *string   `json:"strategy,omitempty"`
	BackupKeep *int      `json:"backup_keep,omitempty"`
}

func toSettingsJSON(s *models.Settings) settingsJSON {
	interval := int64(s.Interval / time.Second)
	timeout := s.Timeout.Milliseconds()
	return settingsJSON{
		Addresses:  &s.Addresses,
		Domains:    &s.Domains,
		Interval:   &interval,
		Workers:    &s.Workers,
		Timeout:    &timeout,
		Strategy:   &s.Strategy,
		BackupKeep: &s.BackupKeep,
	}
}

// apply merges the set fields of j into s.
func (j settingsJSON) apply(s *models.Settings) {
	if j.Addresses != nil {
		s.Addresses = models.Dedup(*j.Addresses)
	}
	if j.Domains != nil {
		s.Domains = models.Dedup(*j.Domains)
	}
	if j.Interval != nil {
		s.Interval = time.Duration(*j.Interval) * time.Second
	}
	if j.Workers != nil {
		s.Workers = *j.Workers
	}
	if j.Timeout != nil {
		s.Timeout = time.Duration(*j.Timeout) * time.Millisecond
	}
	if j.Strategy != nil {
		s.Strategy = *j.Strategy
	}
	if j.BackupKeep != nil {
		s.BackupKeep = *j.BackupKeep
	}
}

type runRequestJSON struct {
	Addresses []string `json:"addresses,omitempty"`
	Domains   []string `json:"domains,omitempty"`
}

func (srv *Server) internalError(c echo.Context, err error) error {
	srv.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorJSON{Error: err.Error()})
}

func (srv *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	assignment, err := srv.config.Store.LoadAssignment(ctx)
	if err != nil {
		return srv.internalError(c, err)
	}
	lastRun, err := srv.config.Store.GetLastRunTime(ctx)
	if err != nil {
		return srv.internalError(c, err)
	}

	status := statusJSON{
		State:      srv.config.Runner.State(),
		LastRun:    lastRun,
		Assignment: assignment,
	}
	if status.Assignment == nil {
		status.Assignment = models.Assignment{}
	}

	if sched := srv.config.Scheduler; sched != nil {
		status.Interval = int64(sched.Interval() / time.Second)
		if next, ok := sched.NextRun(); ok {
			status.NextRun = &next
		}
	}

	if srv.config.Hosts != nil {
		text, err := srv.config.Hosts.Read()
		if err != nil {
			srv.log.Warn("failed to read hosts file", zap.Error(err))
		} else if block, ok := hosts.ParseManagedBlock(text); ok {
			status.ManagedStamp = block.Stamp
			status.Managed = block.Entries
		}
	}

	return c.JSON(http.StatusOK, status)
}

func (srv *Server) getSettings(c echo.Context) error {
	s, err := srv.config.Store.LoadSettings(c.Request().Context())
	if err != nil {
		return srv.internalError(c, err)
	}
	return c.JSON(http.StatusOK, toSettingsJSON(s))
}

func (srv *Server) putSettings(c echo.Context) error {
	ctx := c.Request().Context()

	var body settingsJSON
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON{Error: "invalid JSON body"})
	}

	s, err := srv.config.Store.LoadSettings(ctx)
	if err != nil {
		return srv.internalError(c, err)
	}
	body.apply(s)

	if err := storage.ValidateSettings(s); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON{Error: err.Error()})
	}
	if err := srv.config.Store.SaveSettings(ctx, s); err != nil {
		return srv.internalError(c, err)
	}

	if sched := srv.config.Scheduler; sched != nil {
		if err := sched.Reschedule(s.Interval); err != nil {
			srv.log.Error("failed to reschedule", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, toSettingsJSON(s))
}

func (srv *Server) postRun(c echo.Context) error {
	var body runRequestJSON
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, errorJSON{Error: "invalid JSON body"})
		}
	}

	res := srv.config.Runner.Run(c.Request().Context(), runner.Request{
		Addresses: body.Addresses,
		Domains:   body.Domains,
	})
	return c.JSON(runStatusCode(res), res)
}

func runStatusCode(res *runner.Result) int {
	if res.State == runner.StateDone {
		return http.StatusOK
	}
	switch {
	case res.FailedWith(apperrors.ErrPrivilegeDenied):
		return http.StatusForbidden
	case res.FailedWith(apperrors.ErrEmptyInput):
		return http.StatusBadRequest
	case res.FailedWith(apperrors.ErrAllUnresolved):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (srv *Server) getEvents(c echo.Context) error {
	limit, err := limitParam(c, defaultEventLimit, maxEventLimit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON{Error: err.Error()})
	}
	events, err := srv.config.Store.GetRecentEvents(c.Request().Context(), limit)
	if err != nil {
		return srv.internalError(c, err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return c.JSON(http.StatusOK, events)
}

func (srv *Server) getRuns(c echo.Context) error {
	limit, err := limitParam(c, defaultRunLimit, maxEventLimit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON{Error: err.Error()})
	}
	runs, err := srv.config.Store.GetRecentRuns(c.Request().Context(), limit)
	if err != nil {
		return srv.internalError(c, err)
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func limitParam(c echo.Context, def, limitMax int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, limitMax), nil
}
