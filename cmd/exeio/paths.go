package main

import (
	"os"
	"path/filepath"
	"runtime"
)

// userDataDir resolves the platform's per-user data directory. The standard
// library has no UserDataDir (only UserConfigDir/UserCacheDir), so this
// follows the same XDG convention UserConfigDir itself uses on Unix, with a
// Windows/Darwin fallback to UserCacheDir since a dedicated data root isn't
// exposed there either.
func userDataDir() string {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		if v := os.Getenv("XDG_DATA_HOME"); v != "" {
			return v
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share")
		}
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return "."
}

// defaultDataDir is where the single-instance lock and per-entry log files
// live when the operator doesn't override --data-dir.
func defaultDataDir() string {
	return filepath.Join(userDataDir(), "exeio")
}

// defaultConfigPath is where the persisted entry list is read from and
// written to when the operator doesn't override --config.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "exeio", "config.json")
}

// defaultLogDir is where each entry's own log file is created.
func defaultLogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// defaultLockPath is the well-known path the single-instance lock is
// acquired on.
func defaultLockPath(dataDir string) string {
	return filepath.Join(dataDir, "exeio.lock")
}

// defaultSystemLogPath is the supervisor-wide system log, distinct from any
// single entry's own log.
func defaultSystemLogPath(dataDir string) string {
	return filepath.Join(defaultLogDir(dataDir), "_system.log")
}
