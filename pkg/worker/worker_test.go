package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerManager_ProcessesJobs(t *testing.T) {
	w := NewWorkerManager(10, 3, nil)
	var sum atomic.Int64
	var wg sync.WaitGroup
	wg.Add(5)
	w.SetWorker(func(_ int, job interface{}) {
		sum.Add(int64(job.(int)))
		wg.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	for i := 1; i <= 5; i++ {
		require.True(t, w.Enqueue(ctx, i))
	}
	wg.Wait()
	assert.Equal(t, int64(15), sum.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop on cancel")
	}
}

func TestWorkerManager_ExitAndPanics(t *testing.T) {
	w := NewWorkerManager(1, 1, nil)
	handled := make(chan struct{}, 2)
	w.SetWorker(func(_ int, job interface{}) {
		defer func() { handled <- struct{}{} }()
		if job == "panic" {
			panic("bad job")
		}
	})

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	w.Enqueue(context.Background(), "panic")
	w.Enqueue(context.Background(), "ok")
	<-handled
	<-handled

	w.Exit()
	w.Exit()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop on Exit")
	}
	assert.False(t, w.Enqueue(context.Background(), "late"))
}
