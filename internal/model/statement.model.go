package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/ledger-book/pkg/money"
)

const StatementDateLayout = "2006-01-02"

type StatementOrder string

const (
	StatementOldestFirst StatementOrder = "asc"
	StatementNewestFirst StatementOrder = "desc"
)

// ParseStatementOrder accepts asc or desc; empty means newest first.
func ParseStatementOrder(s string) (StatementOrder, error) {
	switch o := StatementOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return StatementNewestFirst, nil
	case StatementOldestFirst, StatementNewestFirst:
		return o, nil
	}
	return "", fmt.Errorf("unknown statement order %q", s)
}

type StatementLine struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

// NewStatementLine renders one transaction the way it is printed on a statement.
func NewStatementLine(t *Transaction, loc *time.Location) StatementLine {
	note := "-"
	if t.Note != nil && strings.TrimSpace(*t.Note) != "" {
		note = *t.Note
	}
	return StatementLine{
		Date:   t.Date.In(loc).Format(StatementDateLayout),
		Type:   t.Type.Label(),
		Amount: t.Delta().Signed(),
		Note:   note,
	}
}

type Statement struct {
	CustomerID  string          `json:"customer_id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address,omitempty"`
	TotalDue    money.Amount    `json:"total_due"`
	GeneratedAt time.Time       `json:"generated_at"`
	Lines       []StatementLine `json:"lines"`
}
