// Package entry defines the ManagedEntry data model: the declarative spec an
// operator submits and the runtime snapshot the registry hands back out.
package entry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is one of the states a Monitor's state machine can occupy.
type Status string

const (
	StatusStopped  Status = "Stopped"
	StatusStarting Status = "Starting"
	StatusRunning  Status = "Running"
	StatusExited   Status = "Exited"
	StatusFailed   Status = "Failed"
	StatusStopping Status = "Stopping"
)

// Spec is the declarative description of a managed process, as submitted to
// POST /add or loaded from the config store.
type Spec struct {
	ID             string   `json:"id"`
	Command        string   `json:"command"`
	Args           []string `json:"args,omitempty"`
	WorkingDir     string   `json:"working_dir,omitempty"`
	Env            []string `json:"env,omitempty"`
	AutoRestart    bool     `json:"auto_restart,omitempty"`
	SaveForNextRun bool     `json:"save_for_next_run,omitempty"`
	Periodic       bool     `json:"periodic,omitempty"`
	PeriodSeconds  int      `json:"period_seconds,omitempty"`
	Priority       int      `json:"priority,omitempty"`
}

// Validation errors. The control plane maps these to specific HTTP codes;
// ErrConflict is raised by the registry, not here.
var (
	ErrInvalidID           = errors.New("id must be non-empty")
	ErrAutoRestartPeriodic = errors.New("auto_restart and periodic are mutually exclusive")
	ErrBadPeriod           = errors.New("period_seconds must be positive when periodic")
	ErrNoCommand           = errors.New("command must be non-empty")
	ErrConflict            = errors.New("id already exists")
)

// Validate enforces invariants 1-4 from the data model that can be checked
// without consulting the registry (uniqueness, invariant 1, is the registry's
// job since it requires the existing set of ids).
func (s Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(s.Command) == "" {
		return ErrNoCommand
	}
	if s.AutoRestart && s.Periodic {
		return ErrAutoRestartPeriodic
	}
	if s.Periodic && s.PeriodSeconds <= 0 {
		return ErrBadPeriod
	}
	return nil
}

// Snapshot is an immutable point-in-time view of a ManagedEntry, safe to
// serialize while the Monitor continues mutating its own internal state.
type Snapshot struct {
	Spec           Spec
	Status         Status
	PID            int
	RunCount       int
	LastRun        time.Time
	LastExitAt     time.Time
	ManualStopFlag bool
}

// HasPID reports whether a PID should be surfaced for this snapshot,
// enforcing invariant 3 (pid present iff status = Running) at the
// serialization boundary.
func (s Snapshot) HasPID() bool {
	return s.Status == StatusRunning && s.PID != 0
}

// wireSnapshot mirrors Snapshot but shapes fields the way the HTTP surface in
// spec.md §6 names them. Kept private: callers use Snapshot.MarshalJSON.
type wireSnapshot struct {
	ID             string     `json:"id"`
	Command        string     `json:"command"`
	Args           []string   `json:"args,omitempty"`
	WorkingDir     string     `json:"working_dir,omitempty"`
	Env            []string   `json:"env,omitempty"`
	AutoRestart    bool       `json:"auto_restart"`
	SaveForNextRun bool       `json:"save_for_next_run"`
	Periodic       bool       `json:"periodic"`
	PeriodSeconds  int        `json:"period_seconds,omitempty"`
	Priority       int        `json:"priority,omitempty"`
	Status         Status     `json:"status"`
	PID            *int       `json:"pid,omitempty"`
	RunCount       int        `json:"run_count"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	LastExitAt     *time.Time `json:"last_exit_at,omitempty"`
	ManualStopFlag bool       `json:"manual_stop_flag"`
}

// MarshalJSON flattens Spec and runtime fields into one object and applies
// invariant 3 by omitting pid unless the entry is Running.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{
		ID:             s.Spec.ID,
		Command:        s.Spec.Command,
		Args:           s.Spec.Args,
		WorkingDir:     s.Spec.WorkingDir,
		Env:            s.Spec.Env,
		AutoRestart:    s.Spec.AutoRestart,
		SaveForNextRun: s.Spec.SaveForNextRun,
		Periodic:       s.Spec.Periodic,
		PeriodSeconds:  s.Spec.PeriodSeconds,
		Priority:       s.Spec.Priority,
		Status:         s.Status,
		RunCount:       s.RunCount,
		ManualStopFlag: s.ManualStopFlag,
	}
	if s.HasPID() {
		pid := s.PID
		w.PID = &pid
	}
	if !s.LastRun.IsZero() {
		t := s.LastRun
		w.LastRun = &t
	}
	if !s.LastExitAt.IsZero() {
		t := s.LastExitAt
		w.LastExitAt = &t
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON, reassembling Spec and runtime
// fields from the flattened wire shape.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Snapshot{
		Spec: Spec{
			ID:             w.ID,
			Command:        w.Command,
			Args:           w.Args,
			WorkingDir:     w.WorkingDir,
			Env:            w.Env,
			AutoRestart:    w.AutoRestart,
			SaveForNextRun: w.SaveForNextRun,
			Periodic:       w.Periodic,
			PeriodSeconds:  w.PeriodSeconds,
			Priority:       w.Priority,
		},
		Status:         w.Status,
		RunCount:       w.RunCount,
		ManualStopFlag: w.ManualStopFlag,
	}
	if w.PID != nil {
		s.PID = *w.PID
	}
	if w.LastRun != nil {
		s.LastRun = *w.LastRun
	}
	if w.LastExitAt != nil {
		s.LastExitAt = *w.LastExitAt
	}
	return nil
}

// String renders a short human summary, used in SYSTEM log lines.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s [%s] pid=%d runs=%d", s.Spec.ID, s.Status, s.PID, s.RunCount)
}
