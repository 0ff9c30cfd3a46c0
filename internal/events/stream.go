// Package events carries committed ledger mutations over a Redis stream.
//
// The Stream publishes model.LedgerEvent values with XADD and consumes them
// through a consumer group. A handler returning nil acknowledges the entry;
// an error leaves it pending so it is reclaimed after the visibility timeout.
// Entries delivered more than MaxRetries times go to "<stream>:dlq".
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/redis"
)

var ErrNoHandler = errors.New("event handler is required")

// Message is one delivered stream entry.
type Message struct {
	ID          string
	Event       model.LedgerEvent
	Data        []byte
	PublishedAt time.Time
	// Attempts counts deliveries, starting at 1.
	Attempts int64
}

// Handler processes a message. nil acks it, an error leaves it pending.
type Handler func(ctx context.Context, msg *Message) error

type Config struct {
	Stream            string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

type Stats struct {
	Length    int64
	DeadCount int64
	Processed int64
	Failed    int64
	Dead      int64
}

type Stream struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64
	dead      atomic.Int64
}

// NewStream fills config defaults and makes sure the consumer group exists.
func NewStream(ctx context.Context, adapter redis.RedisAdapter, config Config) (*Stream, error) {
	if config.Stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "ledger-consumers"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	if err := adapter.XGroupCreateMkStream(ctx, config.Stream, config.ConsumerGroup, "0"); err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		adapter: adapter,
		config:  config,
		ctx:     sctx,
		cancel:  cancel,
	}, nil
}

func (s *Stream) Config() Config {
	return s.config
}

func (s *Stream) DeadLetterStream() string {
	return s.config.Stream + ":dlq"
}

// Publish appends the event to the stream.
func (s *Stream) Publish(ctx context.Context, ev model.LedgerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	values := map[string]interface{}{
		"data":         string(data),
		"event_id":     ev.ID.String(),
		"kind":         string(ev.Kind),
		"published_at": time.Now().UnixMilli(),
	}
	if _, err := s.adapter.XAdd(ctx, s.config.Stream, s.config.MaxLen, values); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Consume starts the poll loop in the background.
func (s *Stream) Consume(handler Handler) error {
	if handler == nil {
		return ErrNoHandler
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("stream %s is already being consumed", s.config.Stream)
	}

	s.handler = handler
	s.wg.Add(1)
	go s.consumeLoop()

	logger.Info("consuming ledger events", "stream", s.config.Stream, "group", s.config.ConsumerGroup, "consumer", s.config.ConsumerName)
	return nil
}

func (s *Stream) consumeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Poll(s.ctx, s.handler); err != nil && s.ctx.Err() == nil {
				logger.Error("failed to poll ledger events", "stream", s.config.Stream, "error", err)
			}
		}
	}
}

// Poll handles one batch of new entries followed by any reclaimable pending
// ones, returning how many messages were handed to handler.
func (s *Stream) Poll(ctx context.Context, handler Handler) (int, error) {
	n, err := s.readNew(ctx, handler)
	if err != nil {
		return n, err
	}
	m, err := s.claimStuck(ctx, handler)
	return n + m, err
}

func (s *Stream) readNew(ctx context.Context, handler Handler) (int, error) {
	entries, err := s.adapter.XReadGroup(ctx, s.config.ConsumerGroup, s.config.ConsumerName, s.config.Stream, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read group: %w", err)
	}

	handled := 0
	for _, entry := range entries {
		if s.handle(ctx, handler, entry, 1) {
			handled++
		}
	}
	return handled, nil
}

func (s *Stream) claimStuck(ctx context.Context, handler Handler) (int, error) {
	pending, err := s.adapter.XPendingIdle(ctx, s.config.Stream, s.config.ConsumerGroup, s.config.VisibilityTimeout, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	deliveries := make(map[string]int64, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		deliveries[p.ID] = p.RetryCount
		ids = append(ids, p.ID)
	}

	entries, err := s.adapter.XClaim(ctx, s.config.Stream, s.config.ConsumerGroup, s.config.ConsumerName, s.config.VisibilityTimeout, ids...)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending: %w", err)
	}

	handled := 0
	for _, entry := range entries {
		// XCLAIM counts as one more delivery
		if s.handle(ctx, handler, entry, deliveries[entry.ID]+1) {
			handled++
		}
	}
	return handled, nil
}

// handle reports whether the handler was invoked.
func (s *Stream) handle(ctx context.Context, handler Handler, entry redis.StreamMessage, attempts int64) bool {
	msg, err := decode(entry)
	if err != nil {
		logger.Error("undecodable ledger event", "stream", s.config.Stream, "id", entry.ID, "error", err)
		s.deadLetter(ctx, entry, attempts, err)
		return false
	}
	msg.Attempts = attempts

	if attempts > int64(s.config.MaxRetries) {
		logger.Warn("ledger event exceeded retries", "id", entry.ID, "event_id", msg.Event.ID, "attempts", attempts)
		s.deadLetter(ctx, entry, attempts, nil)
		return false
	}

	hctx, cancel := context.WithTimeout(ctx, s.config.VisibilityTimeout)
	defer cancel()

	if err := handler(hctx, msg); err != nil {
		s.failed.Add(1)
		logger.Warn("ledger event handler failed", "id", entry.ID, "kind", msg.Event.Kind, "attempts", attempts, "error", err)
		return true
	}

	s.processed.Add(1)
	s.ack(ctx, entry.ID)
	return true
}

func (s *Stream) ack(ctx context.Context, id string) {
	if err := s.adapter.XAck(ctx, s.config.Stream, s.config.ConsumerGroup, id); err != nil {
		logger.Error("failed to ack ledger event", "id", id, "error", err)
	}
}

// deadLetter copies the entry to the dead letter stream (when enabled) and acks it.
func (s *Stream) deadLetter(ctx context.Context, entry redis.StreamMessage, attempts int64, cause error) {
	s.dead.Add(1)
	if s.config.EnableDLQ {
		values := map[string]interface{}{
			"original_id":     entry.ID,
			"original_stream": s.config.Stream,
			"attempts":        attempts,
			"failed_at":       time.Now().UnixMilli(),
		}
		if data, ok := entry.Values["data"]; ok {
			values["data"] = data
		}
		if cause != nil {
			values["error"] = cause.Error()
		}
		if _, err := s.adapter.XAdd(ctx, s.DeadLetterStream(), 0, values); err != nil {
			logger.Error("failed to dead-letter ledger event", "id", entry.ID, "error", err)
			return
		}
	}
	s.ack(ctx, entry.ID)
}

func decode(entry redis.StreamMessage) (*Message, error) {
	raw, ok := entry.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("entry %s has no data field", entry.ID)
	}

	msg := &Message{ID: entry.ID, Data: []byte(raw)}
	if err := json.Unmarshal(msg.Data, &msg.Event); err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
	}

	if v, ok := entry.Values["published_at"].(string); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.PublishedAt = time.UnixMilli(ms)
		}
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now()
	}
	return msg, nil
}

// Stop ends the poll loop and waits up to timeout for it to return.
func (s *Stream) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for stream %s to stop", s.config.Stream)
	}
}

func (s *Stream) Stats(ctx context.Context) (*Stats, error) {
	length, err := s.adapter.XLen(ctx, s.config.Stream)
	if err != nil {
		return nil, err
	}
	deadLen, err := s.adapter.XLen(ctx, s.DeadLetterStream())
	if err != nil {
		return nil, err
	}
	return &Stats{
		Length:    length,
		DeadCount: deadLen,
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Dead:      s.dead.Load(),
	}, nil
}
