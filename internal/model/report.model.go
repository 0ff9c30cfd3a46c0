package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/ledger-book/pkg/money"
)

type Period string

const (
	PeriodToday     Period = "today"
	PeriodThisWeek  Period = "this_week"
	PeriodThisMonth Period = "this_month"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodThisWeek, PeriodThisMonth:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Report aggregates every transaction dated on or after From.
type Report struct {
	Period        Period       `json:"period"`
	From          time.Time    `json:"from"`
	TotalCredits  money.Amount `json:"total_credits"`
	TotalPayments money.Amount `json:"total_payments"`
	NetChange     money.Amount `json:"net_change"`
	Count         int          `json:"count"`
}
