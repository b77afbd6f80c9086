// Package monitor implements the per-entry Monitor: the actor that drives
// spec.md §4.3's state machine, owns the entry's command inbox, and is the
// only thing allowed to talk to the entry's Child Runner.
package monitor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/loykin/exeio/internal/entry"
	"github.com/loykin/exeio/internal/logio"
	"github.com/loykin/exeio/internal/metrics"
	"github.com/loykin/exeio/internal/runner"
)

// ErrState is returned when a command is not valid for the entry's current
// state (spec.md §7's "State" error kind).
var ErrState = errors.New("monitor: invalid state for operation")

// GraceWindow is the two-phase termination grace period before force-kill.
const GraceWindow = runner.GraceWindow

// timeNow is overridable in tests.
var timeNow = time.Now

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdRestart
	cmdInput
	cmdShutdown
)

type command struct {
	kind  cmdKind
	input []byte
	reply chan error
}

// Monitor drives one ManagedEntry's state machine on a single actor
// goroutine. All fields below this comment are owned exclusively by that
// goroutine; external callers only ever touch the inbox, doneCh and snap.
type Monitor struct {
	inbox  chan command
	doneCh chan struct{}
	snap   atomic.Value // entry.Snapshot

	spec    entry.Spec
	procLog *logio.Writer

	status         entry.Status
	pid            int
	runCount       int
	lastRun        time.Time
	lastExitAt     time.Time
	manualStop     bool
	pendingRestart bool
	runnerInstance *runner.Runner
}

// New constructs a Monitor in the Stopped state and starts its actor
// goroutine. The caller (the Registry) is expected to issue an initial
// Start to bring the entry to life.
func New(spec entry.Spec, procLog *logio.Writer) *Monitor {
	m := &Monitor{
		inbox:   make(chan command, 8),
		doneCh:  make(chan struct{}),
		spec:    spec,
		procLog: procLog,
		status:  entry.StatusStopped,
	}
	m.publishSnapshot()
	go m.run()
	return m
}

// Snapshot returns the most recent immutable view of this entry, safe to
// call concurrently from any goroutine (Registry listings, HTTP handlers).
func (m *Monitor) Snapshot() entry.Snapshot {
	return m.snap.Load().(entry.Snapshot)
}

// setStatus transitions the entry to next, recording the transition and the
// new current-state gauge for Prometheus before any caller publishes a
// snapshot.
func (m *Monitor) setStatus(next entry.Status) {
	if m.status != next {
		metrics.RecordStateTransition(m.spec.ID, string(m.status), string(next))
		metrics.SetCurrentState(m.spec.ID, string(m.status), false)
	}
	m.status = next
	metrics.SetCurrentState(m.spec.ID, string(next), true)
}

func (m *Monitor) publishSnapshot() {
	m.snap.Store(entry.Snapshot{
		Spec:           m.spec,
		Status:         m.status,
		PID:            m.pid,
		RunCount:       m.runCount,
		LastRun:        m.lastRun,
		LastExitAt:     m.lastExitAt,
		ManualStopFlag: m.manualStop,
	})
}

func (m *Monitor) send(kind cmdKind, input []byte) error {
	reply := make(chan error, 1)
	select {
	case m.inbox <- command{kind: kind, input: input, reply: reply}:
	case <-m.doneCh:
		return fmt.Errorf("%w: %s has shut down", ErrState, m.spec.ID)
	}
	select {
	case err := <-reply:
		return err
	case <-m.doneCh:
		return fmt.Errorf("%w: %s has shut down", ErrState, m.spec.ID)
	}
}

// Start brings a Stopped/Exited/Failed entry to Running.
func (m *Monitor) Start() error { return m.send(cmdStart, nil) }

// Stop requests graceful termination and suppresses auto-restart for the
// exit that follows. If the child is live, blocks until the entry reaches
// Stopped; otherwise it cancels any pending restart or periodic run and
// leaves the status unchanged.
func (m *Monitor) Stop() error { return m.send(cmdStop, nil) }

// Restart stops the entry if live, then starts it, regardless of current
// state. Blocks until the new spawn attempt completes.
func (m *Monitor) Restart() error { return m.send(cmdRestart, nil) }

// Input forwards bytes to the running child's stdin.
func (m *Monitor) Input(data []byte) error { return m.send(cmdInput, data) }

// Shutdown behaves like Stop, but the actor goroutine exits once Stopped is
// reached; no further commands are accepted afterward.
func (m *Monitor) Shutdown() error { return m.send(cmdShutdown, nil) }

// Done closes once the actor goroutine has fully exited (after Shutdown).
func (m *Monitor) Done() <-chan struct{} { return m.doneCh }

func (m *Monitor) isLive() bool {
	return m.runnerInstance != nil && (m.status == entry.StatusRunning || m.status == entry.StatusStarting)
}

func (m *Monitor) run() {
	defer func() {
		if rec := recover(); rec != nil {
			m.setStatus(entry.StatusFailed)
			m.logSystemf("panic recovered: %v", rec)
			m.publishSnapshot()
		}
		close(m.doneCh)
	}()

	var timer *time.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		var exitCh <-chan runner.ExitEvent
		if m.runnerInstance != nil {
			exitCh = m.runnerInstance.ExitChan()
		}

		select {
		case cmd := <-m.inbox:
			if m.handle(cmd, &stopTimer) {
				return
			}
		case ev := <-exitCh:
			t, _ := m.applyExit(ev)
			timer = t
			if timer != nil {
				timerC = timer.C
			} else {
				timerC = nil
			}
		case <-timerC:
			timerC = nil
			timer = nil
			_ = m.doStart()
		}
	}
}

// handle processes one command. It returns true if the actor loop should
// exit (Shutdown reached Stopped).
func (m *Monitor) handle(cmd command, stopTimer *func()) bool {
	(*stopTimer)()
	switch cmd.kind {
	case cmdStart:
		if m.isLive() {
			cmd.reply <- fmt.Errorf("%w: %s is already running", ErrState, m.spec.ID)
			return false
		}
		cmd.reply <- m.doStart()
		return false

	case cmdRestart:
		if m.isLive() {
			m.beginTermination(true)
			ev := <-m.runnerInstance.ExitChan()
			_, err := m.applyExit(ev)
			cmd.reply <- err
		} else {
			cmd.reply <- m.doStart()
		}
		return false

	case cmdStop:
		if m.isLive() {
			m.beginTermination(false)
			ev := <-m.runnerInstance.ExitChan()
			_, _ = m.applyExit(ev)
		}
		cmd.reply <- nil
		return false

	case cmdInput:
		cmd.reply <- m.doInput(cmd.input)
		return false

	case cmdShutdown:
		if m.isLive() {
			m.beginTermination(false)
			ev := <-m.runnerInstance.ExitChan()
			_, _ = m.applyExit(ev)
		}
		cmd.reply <- nil
		return true
	}
	return false
}

func (m *Monitor) doInput(data []byte) error {
	if m.status != entry.StatusRunning || m.runnerInstance == nil {
		return fmt.Errorf("%w: %s is not running", ErrState, m.spec.ID)
	}
	return m.runnerInstance.Input(data)
}

func (m *Monitor) doStart() error {
	m.manualStop = false
	m.setStatus(entry.StatusStarting)
	m.publishSnapshot()

	r, err := runner.Spawn(m.spec, m.procLog)
	if err != nil {
		m.setStatus(entry.StatusFailed)
		m.logSystemf("spawn failed: %v", err)
		m.publishSnapshot()
		return err
	}

	m.runnerInstance = r
	m.pid = r.PID()
	m.setStatus(entry.StatusRunning)
	m.runCount++
	m.lastRun = timeNow()
	m.logSystemf("started pid=%d run_count=%d", m.pid, m.runCount)
	m.publishSnapshot()
	return nil
}

// beginTermination moves the entry into Stopping and blocks until the
// child has been killed (not until the Monitor has observed the exit
// event - callers still need to read that off the Runner's exit channel).
func (m *Monitor) beginTermination(restart bool) {
	m.pendingRestart = restart
	m.manualStop = !restart
	m.setStatus(entry.StatusStopping)
	m.publishSnapshot()
	m.runnerInstance.Terminate(GraceWindow)
}

// applyExit is the single place exit-handling logic (spec.md §4.3 steps
// 1-5) lives, whether the exit was observed asynchronously off the main
// select loop or synchronously right after a Stop/Restart/Shutdown-driven
// termination.
func (m *Monitor) applyExit(ev runner.ExitEvent) (*time.Timer, error) {
	now := timeNow()
	ranFor := now.Sub(m.lastRun)
	m.lastExitAt = now
	m.pid = 0
	m.logSystemf("exited: %s (ran %s)", ev.Status, ranFor.Round(time.Millisecond))

	switch {
	case m.pendingRestart:
		m.pendingRestart = false
		m.manualStop = false
		err := m.doStart()
		return nil, err

	case m.manualStop:
		m.manualStop = false
		m.setStatus(entry.StatusStopped)
		m.publishSnapshot()
		return nil, nil

	case m.spec.Periodic:
		m.setStatus(entry.StatusExited)
		m.publishSnapshot()
		delay := periodicDelay(m.lastRun, m.spec.PeriodSeconds, now)
		return time.NewTimer(delay), nil

	case m.spec.AutoRestart:
		m.setStatus(entry.StatusExited)
		m.publishSnapshot()
		delay := restartDelay(m.runCount, ranFor)
		return time.NewTimer(delay), nil

	default:
		if ev.Status.Exited() {
			m.setStatus(entry.StatusExited)
		} else {
			m.setStatus(entry.StatusFailed)
		}
		m.publishSnapshot()
		return nil, nil
	}
}

func (m *Monitor) logSystemf(format string, args ...any) {
	_ = m.procLog.Append(logio.TagSystem, fmt.Sprintf(format, args...))
}
