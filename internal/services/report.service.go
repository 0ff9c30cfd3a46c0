package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
)

type TransactionLister interface {
	ListSince(ctx context.Context, from time.Time) ([]*model.Transaction, error)
}

// ReportService aggregates transactions for a period on demand; nothing is cached.
type ReportService struct {
	transactions TransactionLister
	loc          *time.Location
	clock        func() time.Time
}

type ReportOption func(*ReportService)

// WithLocation sets the timezone period boundaries are computed in.
func WithLocation(loc *time.Location) ReportOption {
	return func(s *ReportService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithReportClock(now func() time.Time) ReportOption {
	return func(s *ReportService) {
		s.clock = now
	}
}

func NewReportService(transactions TransactionLister, opts ...ReportOption) *ReportService {
	s := &ReportService{
		transactions: transactions,
		loc:          time.Local,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PeriodStart returns the first instant of the period containing now, in now's location.
// Weeks start on Monday.
func PeriodStart(p model.Period, now time.Time) (time.Time, error) {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case model.PeriodToday:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case model.PeriodThisWeek:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, loc), nil
	case model.PeriodThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, invalid("period", "must be today, this_week or this_month")
}

// Report sums every transaction dated at or after the period start. There is
// no upper bound.
func (s *ReportService) Report(ctx context.Context, p model.Period) (*model.Report, error) {
	from, err := PeriodStart(p, s.clock().In(s.loc))
	if err != nil {
		return nil, err
	}

	list, err := s.transactions.ListSince(ctx, from)
	if err != nil {
		return nil, storeError("list transactions", err, uuid.Nil, uuid.Nil)
	}

	r := &model.Report{Period: p, From: from, Count: len(list)}
	for _, t := range list {
		switch t.Type {
		case model.TransactionCredit:
			r.TotalCredits = r.TotalCredits.Add(t.Amount)
		case model.TransactionPayment:
			r.TotalPayments = r.TotalPayments.Add(t.Amount)
		}
	}
	r.NetChange = r.TotalCredits.Sub(r.TotalPayments)
	return r, nil
}
