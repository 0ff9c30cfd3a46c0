package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedLocker(t *testing.T) {
	k := newKeyedLocker()
	a, b := uuid.New(), uuid.New()

	unlockA := k.Lock(a)

	// another key is not blocked
	done := make(chan struct{})
	go func() {
		k.Lock(b)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}

	// same key waits
	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock(a)
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("lock on the same key did not wait")
	case <-time.After(50 * time.Millisecond):
	}
	unlockA()
	<-acquired

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(a)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, k.size())
}

func TestErrors(t *testing.T) {
	err := storeError("op", assert.AnError, uuid.Nil, uuid.Nil)
	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "op", se.Op)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrNotFound)

	ve := invalid("name", "must not be empty")
	assert.Same(t, ve, storeError("op", ve, uuid.Nil, uuid.Nil))
	assert.Equal(t, "invalid name: must not be empty", ve.Error())
}
