package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/events"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/prom"
)

var ErrMalformedEvent = errors.New("malformed ledger event")

const (
	StatusOK        = "ok"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
	StatusDropped   = "dropped"
	StatusSkipped   = "skipped"
)

// LedgerEventProcessor folds committed ledger events into Prometheus metrics.
type LedgerEventProcessor struct {
	idempotency *IdempotencyService
	clock       func() time.Time
}

func NewLedgerEventProcessor(idempotency *IdempotencyService) *LedgerEventProcessor {
	return &LedgerEventProcessor{
		idempotency: idempotency,
		clock:       time.Now,
	}
}

func (p *LedgerEventProcessor) GetType() string {
	return "ledger"
}

func (p *LedgerEventProcessor) Process(ctx context.Context, msg *events.Message) error {
	ev := msg.Event
	eventID := ev.ID.String()

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, eventID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			p.observe(ev, StatusDuplicate)
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			logger.Error("dropping ledger event after max retries", "event_id", eventID, "kind", ev.Kind)
			p.observe(ev, StatusDropped)
			return nil
		default:
			// someone else holds it, the stream will redeliver
			return err
		}
	}
	defer func() {
		_ = p.idempotency.ReleaseLock(ctx, procCtx)
	}()

	applied, err := apply(ev)
	if err != nil {
		p.observe(ev, StatusFailed)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("failed to mark failure", "event_id", eventID, "error", markErr)
		}
		return err
	}

	if err := p.idempotency.MarkSuccess(ctx, procCtx); err != nil {
		logger.Error("failed to mark success", "event_id", eventID, "error", err)
	}

	status := StatusOK
	if !applied {
		status = StatusSkipped
	}
	p.observe(ev, status)
	logger.Debug("ledger event processed", "event_id", eventID, "kind", ev.Kind, "customer_id", ev.CustomerID, "attempts", msg.Attempts)
	return nil
}

func (p *LedgerEventProcessor) observe(ev model.LedgerEvent, status string) {
	lag := 0.0
	if !ev.At.IsZero() {
		lag = p.clock().Sub(ev.At).Seconds()
	}
	prom.ObserveEvent(string(ev.Kind), status, lag)
}

// apply reports false for kinds it does not know about.
func apply(ev model.LedgerEvent) (bool, error) {
	if ev.CustomerID == uuid.Nil {
		return false, fmt.Errorf("%w: missing customer id", ErrMalformedEvent)
	}
	customerID := ev.CustomerID.String()
	due := ev.TotalDue.Decimal().InexactFloat64()

	switch ev.Kind {
	case model.EventCustomerCreated:
		prom.AddCustomers(1)
		prom.SetOutstanding(customerID, due)
	case model.EventCustomerUpdated:
		prom.SetOutstanding(customerID, due)
	case model.EventCustomerDeleted:
		prom.AddCustomers(-1)
		prom.ForgetOutstanding(customerID)
	case model.EventTransactionAdded, model.EventTransactionDeleted:
		if ev.TransactionID == nil || !ev.Type.Valid() {
			return false, fmt.Errorf("%w: %s without transaction", ErrMalformedEvent, ev.Kind)
		}
		op := "added"
		if ev.Kind == model.EventTransactionDeleted {
			op = "deleted"
		}
		prom.ObserveTransaction(string(ev.Type), op, ev.Amount.Decimal().InexactFloat64())
		prom.SetOutstanding(customerID, due)
	default:
		logger.Warn("unknown ledger event kind", "kind", ev.Kind, "event_id", ev.ID)
		return false, nil
	}
	return true, nil
}
