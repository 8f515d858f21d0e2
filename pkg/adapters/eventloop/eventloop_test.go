package eventloop

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := New(16)
	l.Start()
	defer l.Close()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		if err := l.Invoke(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Invoke(%d) failed: %v", i, err)
		}
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
	if s := l.Stats(); s.Queued != 10 || s.Dropped != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLoop_DropsWhenFull(t *testing.T) {
	l := New(2)
	l.Start()
	defer l.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := l.Invoke(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	// Two slots, then full.
	for i := 0; i < 2; i++ {
		if err := l.Invoke(func() {}); err != nil {
			t.Fatalf("Invoke %d failed: %v", i, err)
		}
	}
	if err := l.Invoke(func() {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("error = %v, want ErrQueueFull", err)
	}
	close(release)

	if s := l.Stats(); s.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", s.Dropped)
	}
}

func TestLoop_Close(t *testing.T) {
	l := New(1)
	l.Start()
	l.Close()
	l.Close()

	if err := l.Invoke(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

func TestLoop_CloseWithoutStart(t *testing.T) {
	l := New(1)
	closed := make(chan struct{})
	go func() {
		l.Close()
		l.Run()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close or Run blocked on a loop that never ran")
	}
	if err := l.Invoke(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

func TestLoop_InvokeDoesNotBlock(t *testing.T) {
	l := New(1)
	// Not started: the queue never drains.
	defer func() {
		l.Start()
		l.Close()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			l.Invoke(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Invoke blocked on a full queue")
	}
}
