package logio

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestAppendAndReadPage(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "p.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()

	for i := 0; i < 5; i++ {
		if err := w.Append(TagStdout, fmt.Sprintf("line %d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	pg, err := w.ReadPage(1, 2)
	if err != nil {
		t.Fatalf("read_page: %v", err)
	}
	if pg.Total != 5 || len(pg.Lines) != 2 {
		t.Fatalf("unexpected page: %+v", pg)
	}
	if !strings.Contains(pg.Lines[0], "line 0") || !strings.Contains(pg.Lines[0], "STDOUT:") {
		t.Fatalf("unexpected line format: %q", pg.Lines[0])
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "p.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()

	_ = w.Append(TagStdout, "only line")

	pg, err := w.ReadPage(5, 10)
	if err != nil {
		t.Fatalf("read_page: %v", err)
	}
	if pg.Total != 1 || len(pg.Lines) != 0 {
		t.Fatalf("expected empty out-of-range page with correct total, got %+v", pg)
	}
}

func TestPaginationConcatenationEqualsFullLog(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "p.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()

	const n = 37
	for i := 0; i < n; i++ {
		_ = w.Append(TagStdout, fmt.Sprintf("l%d", i))
	}

	var all []string
	for page := 1; ; page++ {
		pg, err := w.ReadPage(page, 10)
		if err != nil {
			t.Fatalf("read_page: %v", err)
		}
		if len(pg.Lines) == 0 {
			break
		}
		all = append(all, pg.Lines...)
	}
	if len(all) != n {
		t.Fatalf("concatenated pages have %d lines, want %d", len(all), n)
	}
}

func TestClearTruncatesAndStaysOpen(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "p.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()

	_ = w.Append(TagStdout, "before clear")
	if err := w.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	pg, err := w.ReadPage(1, 10)
	if err != nil {
		t.Fatalf("read_page after clear: %v", err)
	}
	if pg.Total != 0 {
		t.Fatalf("expected empty log after clear, got total=%d", pg.Total)
	}

	if err := w.Append(TagStdout, "after clear"); err != nil {
		t.Fatalf("append after clear: %v", err)
	}
	pg, _ = w.ReadPage(1, 10)
	if pg.Total != 1 {
		t.Fatalf("expected 1 line after clear+append, got %d", pg.Total)
	}
}

func TestSystemLogBindPrefix(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "system.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()
	w.WithBindPrefix("127.0.0.1:8080")

	_ = w.Append(TagSystem, "supervisor started")
	pg, _ := w.ReadPage(1, 1)
	if len(pg.Lines) != 1 || !strings.Contains(pg.Lines[0], "127.0.0.1:8080: supervisor started") {
		t.Fatalf("missing bind prefix: %q", pg.Lines[0])
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "p.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()

	var wg sync.WaitGroup
	tags := []Tag{TagStdout, TagStderr, TagSystem}
	for g := 0; g < 3; g++ {
		wg.Add(1)
		go func(tag Tag) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = w.Append(tag, strings.Repeat("x", 40))
			}
		}(tags[g])
	}
	wg.Wait()

	pg, err := w.ReadPage(1, MaxPageSize)
	if err != nil {
		t.Fatalf("read_page: %v", err)
	}
	if pg.Total != 150 {
		t.Fatalf("expected 150 lines, got %d", pg.Total)
	}
	for _, line := range pg.Lines {
		if !strings.HasPrefix(line, "[") {
			t.Fatalf("malformed/interleaved line: %q", line)
		}
	}
}
