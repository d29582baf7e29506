package sequence

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"pyralink/logging"
)

func testAllocator(t *testing.T) *Allocator {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "last_number.txt"), 20000, 5*time.Second, logging.Nop())
}

func TestNextStartsAtFloor(t *testing.T) {
	a := testAllocator(t)

	seq, err := a.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if seq != 20000 {
		t.Errorf("first value = %d, want 20000", seq)
	}

	seq, err = a.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if seq != 20001 {
		t.Errorf("second value = %d, want 20001", seq)
	}
}

func TestNextSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_number.txt")

	a := New(path, 20000, 5*time.Second, logging.Nop())
	for i := 0; i < 3; i++ {
		if _, err := a.Next(context.Background()); err != nil {
			t.Fatalf("next: %v", err)
		}
	}

	// A fresh allocator over the same store must continue, not restart.
	b := New(path, 20000, 5*time.Second, logging.Nop())
	seq, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("next after restart: %v", err)
	}
	if seq != 20003 {
		t.Errorf("value after restart = %d, want 20003", seq)
	}
}

func TestNextRecoversFromCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_number.txt")
	if err := os.WriteFile(path, []byte("not-a-number"), 0o644); err != nil {
		t.Fatalf("seed corrupt store: %v", err)
	}

	a := New(path, 20000, 5*time.Second, logging.Nop())
	seq, err := a.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if seq != 20000 {
		t.Errorf("value after corruption = %d, want floor 20000", seq)
	}
}

func TestNextHonorsFloorAboveStoredValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_number.txt")
	if err := os.WriteFile(path, []byte("17"), 0o644); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	a := New(path, 20000, 5*time.Second, logging.Nop())
	seq, err := a.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if seq != 20000 {
		t.Errorf("value = %d, want floor 20000", seq)
	}
}

func TestNextLockTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_number.txt")

	// Hold the lock from a second descriptor to simulate another process.
	holder := flock.New(path + ".lock")
	if err := holder.Lock(); err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer holder.Unlock()

	a := New(path, 20000, 100*time.Millisecond, logging.Nop())
	_, err := a.Next(context.Background())
	if err != ErrLockTimeout {
		t.Errorf("err = %v, want ErrLockTimeout", err)
	}
}

// TestNextConcurrentCallers proves the allocation property: N concurrent
// callers through independent allocator instances (separate descriptors,
// as separate worker processes would hold) receive exactly
// {floor .. floor+N-1} with no duplicates and no gaps.
func TestNextConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_number.txt")

	const (
		workers   = 8
		perWorker = 25
		total     = workers * perWorker
	)

	var mu sync.Mutex
	issued := make(map[int64]int, total)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		a := New(path, 20000, 10*time.Second, logging.Nop())
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				seq, err := a.Next(context.Background())
				if err != nil {
					return err
				}
				mu.Lock()
				issued[seq]++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent next: %v", err)
	}

	if len(issued) != total {
		t.Fatalf("distinct values = %d, want %d", len(issued), total)
	}
	for seq := int64(20000); seq < int64(20000+total); seq++ {
		if issued[seq] != 1 {
			t.Errorf("value %d issued %d times, want exactly once", seq, issued[seq])
		}
	}
}

func TestCurrent(t *testing.T) {
	a := testAllocator(t)

	if _, ok := a.Current(); ok {
		t.Error("Current on empty store should report ok=false")
	}
	if _, err := a.Next(context.Background()); err != nil {
		t.Fatalf("next: %v", err)
	}
	v, ok := a.Current()
	if !ok || v != 20000 {
		t.Errorf("Current = %d, %v, want 20000, true", v, ok)
	}
}
