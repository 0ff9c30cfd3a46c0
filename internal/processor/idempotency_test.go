package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/ledger-book/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

func newTestIdempotency(t *testing.T) (*miniredis.Miniredis, *IdempotencyService) {
	mr := miniredis.RunT(t)
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "test:", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	if err != nil {
		t.Fatalf("redis adapter: %v", err)
	}
	t.Cleanup(func() { _ = redis.Close(connName) })
	return mr, NewIdempotencyService(adapter, DefaultIdempotencyConfig())
}

func TestIdempotencyService_AcquireProcessingLock_FirstAttempt(t *testing.T) {
	_, service := newTestIdempotency(t)

	procCtx, err := service.AcquireProcessingLock(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if procCtx.EventID != "ev-1" {
		t.Errorf("Expected event ID ev-1, got %s", procCtx.EventID)
	}
	if procCtx.RetryCount != 0 || procCtx.IsRetry {
		t.Errorf("Expected a first attempt, got retry count %d", procCtx.RetryCount)
	}
	if !procCtx.lockAcquired {
		t.Error("Expected lock to be acquired")
	}
}

func TestIdempotencyService_AcquireProcessingLock_Concurrent(t *testing.T) {
	_, service := newTestIdempotency(t)
	ctx := context.Background()

	first, err := service.AcquireProcessingLock(ctx, "ev-2")
	if err != nil {
		t.Fatalf("First lock acquisition failed: %v", err)
	}

	second, err := service.AcquireProcessingLock(ctx, "ev-2")
	if !errors.Is(err, ErrLockAcquireFailed) {
		t.Errorf("Expected ErrLockAcquireFailed, got: %v", err)
	}
	if second != nil {
		t.Error("Expected nil context for second consumer")
	}
	if !first.lockAcquired {
		t.Error("First consumer should still have lock")
	}
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mr, service := newTestIdempotency(t)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "ev-3")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := service.MarkSuccess(ctx, procCtx); err != nil {
		t.Fatalf("MarkSuccess: %v", err)
	}

	if !mr.Exists("test:event:processed:ev-3") {
		t.Error("Expected processed marker")
	}
	if mr.Exists("test:event:lock:ev-3") {
		t.Error("Expected lock to be removed")
	}
	if ttl := mr.TTL("test:event:processed:ev-3"); ttl <= 0 {
		t.Errorf("Expected processed marker to expire, ttl %v", ttl)
	}

	_, err = service.AcquireProcessingLock(ctx, "ev-3")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("Expected ErrAlreadyProcessed, got: %v", err)
	}
}

func TestIdempotencyService_MarkFailure_WithRetry(t *testing.T) {
	mr, service := newTestIdempotency(t)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "ev-4")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := service.MarkFailure(ctx, procCtx, errors.New("boom")); err != nil {
		t.Fatalf("MarkFailure: %v", err)
	}

	if mr.Exists("test:event:lock:ev-4") {
		t.Error("Expected lock to be released after failure")
	}
	if ttl := mr.TTL("test:event:retry:ev-4"); ttl <= 0 {
		t.Errorf("Expected retry counter to expire, ttl %v", ttl)
	}

	retry, err := service.AcquireProcessingLock(ctx, "ev-4")
	if err != nil {
		t.Fatalf("retry lock: %v", err)
	}
	if retry.RetryCount != 1 || !retry.IsRetry {
		t.Errorf("Expected retry count 1, got %d", retry.RetryCount)
	}
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	_, service := newTestIdempotency(t)
	ctx := context.Background()

	for i := 0; i < DefaultIdempotencyConfig().MaxRetries; i++ {
		procCtx, err := service.AcquireProcessingLock(ctx, "ev-5")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if err := service.MarkFailure(ctx, procCtx, errors.New("boom")); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	_, err := service.AcquireProcessingLock(ctx, "ev-5")
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got: %v", err)
	}
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	_, service := newTestIdempotency(t)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "ev-6")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := service.ReleaseLock(ctx, procCtx); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	if procCtx.lockAcquired {
		t.Error("Expected lockAcquired to be false")
	}
	// releasing twice or releasing nil is a no-op
	if err := service.ReleaseLock(ctx, procCtx); err != nil {
		t.Errorf("second release: %v", err)
	}
	if err := service.ReleaseLock(ctx, nil); err != nil {
		t.Errorf("nil release: %v", err)
	}

	if _, err := service.AcquireProcessingLock(ctx, "ev-6"); err != nil {
		t.Errorf("Expected lock to be acquirable again, got: %v", err)
	}
}

func TestIdempotencyService_GetRetryCount(t *testing.T) {
	mr, service := newTestIdempotency(t)
	ctx := context.Background()

	n, err := service.GetRetryCount(ctx, "missing")
	if err != nil || n != 0 {
		t.Errorf("Expected 0 for a missing counter, got %d, %v", n, err)
	}

	if err := mr.Set("test:event:retry:ev-7", "2"); err != nil {
		t.Fatal(err)
	}
	n, err = service.GetRetryCount(ctx, "ev-7")
	if err != nil || n != 2 {
		t.Errorf("Expected 2, got %d, %v", n, err)
	}

	if err := mr.Set("test:event:retry:ev-8", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := service.GetRetryCount(ctx, "ev-8"); err == nil {
		t.Error("Expected an error for a corrupt counter")
	}
}
