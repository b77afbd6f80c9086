package lock

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestAcquireThenSecondAcquireFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock semantics differ on windows")
	}
	path := filepath.Join(t.TempDir(), "exeio.lock")

	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer l1.Release()

	if _, err := Acquire(path); err != ErrHeld {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
}

func TestReleaseThenReacquireSucceeds(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock semantics differ on windows")
	}
	path := filepath.Join(t.TempDir(), "exeio.lock")

	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = l2.Release()
}
