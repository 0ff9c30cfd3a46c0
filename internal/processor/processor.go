package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/ledger-book/internal/events"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/redis"
	"github.com/nimasrn/ledger-book/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

var ErrNoProcessor = errors.New("no processor registered")

// Processor handles one decoded stream message.
type Processor interface {
	Process(ctx context.Context, msg *events.Message) error
	GetType() string
}

type Options struct {
	Stream     events.Config
	Consumers  int
	Workers    int
	BufferSize int
}

// ProcessorService runs stream consumers that hand messages to a worker pool
// and ack them once a worker reports success.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	options   Options
	streams   []*events.Stream
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewProcessorService(adapter redis.RedisAdapter, options Options) *ProcessorService {
	if options.Consumers < 1 {
		options.Consumers = 1
	}
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.BufferSize < 1 {
		options.BufferSize = options.Workers * 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: adapter,
		options: options,
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(options.BufferSize, options.Workers, nil),
	}
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("Registered processor", "type", processor.GetType())
}

func (s *ProcessorService) Metrics() *ServiceMetrics {
	return s.metrics
}

func (s *ProcessorService) Start() error {
	if s.processor == nil {
		return ErrNoProcessor
	}
	logger.Info("Starting Processor Service...")

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker.Start(s.ctx)
	}()

	for i := 0; i < s.options.Consumers; i++ {
		cfg := s.options.Stream
		cfg.ConsumerName = fmt.Sprintf("%s-instance-%d", cfg.ConsumerName, i)

		stream, err := events.NewStream(s.ctx, s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		if err := stream.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.streams = append(s.streams, stream)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("Processor Service started", "consumers", len(s.streams), "workers", s.options.Workers)
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Metrics", "total_processed", stats["total_processed"], "total_failed", stats["total_failed"], "rate_per_second", stats["rate_per_second"], "avg_duration_ms", stats["avg_duration_ms"], "uptime_seconds", stats["uptime_seconds"])

	for i, stream := range s.streams {
		if st, err := stream.Stats(context.Background()); err == nil {
			logger.Info("Stream stats", "consumer", i, "length", st.Length, "dead", st.DeadCount)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Ping(s.ctx); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}
	if backlog := s.worker.GetUnreadCount(); backlog > int64(s.options.BufferSize)/2 {
		logger.Warn("HEALTH CHECK WARNING: worker backlog is high", "backlog", backlog)
	}
	logger.Debug("HEALTH CHECK: OK")
}

// Stop stops the consumers first so no new jobs arrive, then the workers.
func (s *ProcessorService) Stop() {
	logger.Info("Shutting down Processor Service...")

	var wg sync.WaitGroup
	for i, stream := range s.streams {
		wg.Add(1)
		go func(index int, stream *events.Stream) {
			defer wg.Done()
			if err := stream.Stop(ShutdownTimeout); err != nil {
				logger.Error("Error stopping consumer", "consumer", index, "error", err)
			}
		}(i, stream)
	}
	wg.Wait()

	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("Processor Service stopped")
}

type job struct {
	msg    *events.Message
	result chan error
	ctx    context.Context
}

// messageHandler blocks the consumer until a worker has processed msg, so
// the ack decision stays with the stream.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *events.Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	j := &job{msg: msg, result: make(chan error, 1), ctx: jobCtx}
	if !s.worker.Enqueue(jobCtx, j) {
		return fmt.Errorf("worker pool unavailable for %s", msg.ID)
	}

	select {
	case err := <-j.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process %s: %w", msg.ID, jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, payload interface{}) {
	j, ok := payload.(*job)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("Job context cancelled before processing started", "worker", workerIndex)
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("Failed to process event", "worker", workerIndex, "id", j.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(j.msg.Event.Kind, time.Since(start))
	}

	// buffered, never blocks
	j.result <- err
}
