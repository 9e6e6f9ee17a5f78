package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmit_ReturnsValue(t *testing.T) {
	p := New(2)
	defer p.Close()

	f := Submit(p, func() (string, error) {
		return "secret", nil
	})

	got, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got != "secret" {
		t.Errorf("Expected 'secret', got '%s'", got)
	}
}

func TestSubmit_ReturnsError(t *testing.T) {
	p := New(1)
	defer p.Close()

	want := errors.New("boom")
	f := Submit(p, func() (int, error) {
		return 0, want
	})

	if _, err := f.Wait(context.Background()); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}

func TestSubmit_Panic(t *testing.T) {
	p := New(1)
	defer p.Close()

	f := Submit(p, func() (int, error) {
		panic("bad task")
	})

	_, err := f.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad task") {
		t.Errorf("Expected panic error, got %v", err)
	}

	// The worker must survive the panic
	f2 := Submit(p, func() (int, error) { return 7, nil })
	if got, err := f2.Wait(context.Background()); err != nil || got != 7 {
		t.Errorf("Expected 7, got %d (%v)", got, err)
	}
}

func TestWait_CancelledTaskStillRuns(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	var finished atomic.Bool
	f := Submit(p, func() (bool, error) {
		<-release
		finished.Store(true)
		return true, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	close(release)
	<-f.Done()
	if !finished.Load() {
		t.Error("Expected task to run to completion after cancellation")
	}
}

func TestWait_Timeout(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	defer close(release)
	f := Submit(p, func() (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	const tasks = 30

	p := New(workers)
	defer p.Close()

	var running, peak atomic.Int32
	futures := make([]*Future[int], tasks)
	for i := 0; i < tasks; i++ {
		futures[i] = Submit(p, func() (int, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return i, nil
		})
	}

	for i, f := range futures {
		got, err := f.Wait(context.Background())
		if err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
		if got != i {
			t.Errorf("Expected %d, got %d", i, got)
		}
	}
	if peak.Load() > workers {
		t.Errorf("Expected at most %d concurrent tasks, saw %d", workers, peak.Load())
	}
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(2)

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		f := Submit(p, func() (struct{}, error) {
			time.Sleep(time.Millisecond)
			done.Add(1)
			return struct{}{}, nil
		})
		go func() {
			defer wg.Done()
			<-f.Done()
		}()
	}

	p.Close()
	wg.Wait()
	if done.Load() != 10 {
		t.Errorf("Expected 10 completed tasks, got %d", done.Load())
	}
}

func TestSubmit_AfterClose(t *testing.T) {
	p := New(1)
	p.Close()
	p.Close() // idempotent

	f := Submit(p, func() (int, error) { return 1, nil })
	if _, err := f.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestPool_ShutdownDoesNotWait(t *testing.T) {
	p := New(1)

	release := make(chan struct{})
	f := Submit(p, func() (string, error) {
		<-release
		return "late", nil
	})

	returned := make(chan struct{})
	go func() {
		p.Shutdown()
		p.Shutdown() // idempotent
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Shutdown blocked on a running task")
	}

	if _, err := Submit(p, func() (int, error) { return 1, nil }).Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Shutdown, got %v", err)
	}

	close(release)
	got, err := f.Wait(context.Background())
	if err != nil || got != "late" {
		t.Errorf("Expected running task to finish with 'late', got %q (%v)", got, err)
	}
	p.Close()
}

func TestNew_DefaultWorkers(t *testing.T) {
	p := New(0)
	defer p.Close()
	if p.Workers() != 4 {
		t.Errorf("Expected 4 workers, got %d", p.Workers())
	}
}
