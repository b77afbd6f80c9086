package runner

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/loykin/exeio/internal/entry"
	"github.com/loykin/exeio/internal/logio"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a Unix-like shell")
	}
}

func newLog(t *testing.T) *logio.Writer {
	t.Helper()
	w, err := logio.Open(filepath.Join(t.TempDir(), "p.log"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestSpawnForwardsStdoutAndExitsClean(t *testing.T) {
	requireUnix(t)
	lw := newLog(t)
	r, err := Spawn(entry.Spec{Command: "sh", Args: []string{"-c", "echo hello"}}, lw)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	select {
	case ev := <-r.ExitChan():
		if !ev.Status.Exited() {
			t.Fatalf("expected clean exit, got %v", ev.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit")
	}

	pg, err := lw.ReadPage(1, 10)
	if err != nil {
		t.Fatalf("read_page: %v", err)
	}
	found := false
	for _, l := range pg.Lines {
		if contains(l, "hello") && contains(l, "STDOUT:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("stdout line not captured: %+v", pg.Lines)
	}
}

func TestSpawnNonZeroExitIsFailed(t *testing.T) {
	requireUnix(t)
	lw := newLog(t)
	r, err := Spawn(entry.Spec{Command: "sh", Args: []string{"-c", "exit 7"}}, lw)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ev := <-r.ExitChan()
	if ev.Status.Exited() || ev.Status.Code != 7 {
		t.Fatalf("expected exit code 7, got %v", ev.Status)
	}
}

func TestInputDeliveredToStdin(t *testing.T) {
	requireUnix(t)
	lw := newLog(t)
	r, err := Spawn(entry.Spec{Command: "cat"}, lw)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer r.Terminate(time.Second)
	if err := r.Input([]byte("hello")); err != nil {
		t.Fatalf("input: %v", err)
	}

	// Input returns once the bytes are in the pipe, not once cat has echoed
	// them, so poll the log for the echo.
	var pg logio.Page
	found := false
	for deadline := time.Now().Add(time.Second); !found && time.Now().Before(deadline); {
		pg, err = lw.ReadPage(1, 10)
		if err != nil {
			t.Fatalf("read_page: %v", err)
		}
		for _, l := range pg.Lines {
			if contains(l, "hello") {
				found = true
			}
		}
		if !found {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if !found {
		t.Fatalf("stdin input not echoed back: %+v", pg.Lines)
	}
}

func TestInputAfterExitFails(t *testing.T) {
	requireUnix(t)
	lw := newLog(t)
	r, err := Spawn(entry.Spec{Command: "sh", Args: []string{"-c", "exit 0"}}, lw)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	<-r.ExitChan()
	if err := r.Input([]byte("too late")); err == nil {
		t.Fatal("expected error delivering input after exit")
	}
}

func TestTerminateGracefulThenForced(t *testing.T) {
	requireUnix(t)
	lw := newLog(t)
	r, err := Spawn(entry.Spec{Command: "sleep", Args: []string{"30"}}, lw)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	start := time.Now()
	r.Terminate(200 * time.Millisecond)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("terminate took too long: %v", time.Since(start))
	}
	select {
	case <-r.ExitChan():
	case <-time.After(time.Second):
		t.Fatal("expected exit event after terminate")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (indexOf(s, substr) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
