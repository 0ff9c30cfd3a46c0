package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
)

type CustomerReader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
}

type CustomerTransactionLister interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID, desc bool) ([]*model.Transaction, error)
}

// StatementService prepares the per-customer statement handed to renderers.
type StatementService struct {
	customers    CustomerReader
	transactions CustomerTransactionLister
	loc          *time.Location
	clock        func() time.Time
}

func NewStatementService(customers CustomerReader, transactions CustomerTransactionLister, loc *time.Location) *StatementService {
	if loc == nil {
		loc = time.Local
	}
	return &StatementService{
		customers:    customers,
		transactions: transactions,
		loc:          loc,
		clock:        time.Now,
	}
}

func (s *StatementService) Statement(ctx context.Context, customerID uuid.UUID, order model.StatementOrder) (*model.Statement, error) {
	order, err := model.ParseStatementOrder(string(order))
	if err != nil {
		return nil, invalid("order", err.Error())
	}

	var (
		c    *model.Customer
		list []*model.Transaction
	)
	// both reads come from the same snapshot when the store supports it
	read := func(ctx context.Context) error {
		var err error
		if c, err = s.customers.Get(ctx, customerID); err != nil {
			return err
		}
		list, err = s.transactions.ListByCustomer(ctx, customerID, order == model.StatementNewestFirst)
		return err
	}
	if runner, ok := s.customers.(TxRunner); ok {
		err = runner.WithinTransaction(ctx, read)
	} else {
		err = read(ctx)
	}
	if err != nil {
		return nil, storeError("statement", err, customerID, uuid.Nil)
	}

	st := &model.Statement{
		CustomerID:  c.ID.String(),
		Name:        c.Name,
		Phone:       c.Phone,
		TotalDue:    c.TotalDue,
		GeneratedAt: s.clock().In(s.loc),
		Lines:       make([]model.StatementLine, 0, len(list)),
	}
	if c.Address != nil {
		st.Address = *c.Address
	}
	for _, t := range list {
		st.Lines = append(st.Lines, model.NewStatementLine(t, s.loc))
	}
	return st, nil
}

// StatementMarkdown renders a statement as a markdown document.
func StatementMarkdown(st *model.Statement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Statement: %s\n\n", mdEscape(st.Name))
	fmt.Fprintf(&b, "- **Phone:** %s\n", mdEscape(st.Phone))
	if st.Address != "" {
		fmt.Fprintf(&b, "- **Address:** %s\n", mdEscape(st.Address))
	}
	fmt.Fprintf(&b, "- **Total due:** %s\n", st.TotalDue.String())
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", st.GeneratedAt.Format(model.StatementDateLayout))

	if len(st.Lines) == 0 {
		b.WriteString("_No transactions._\n")
		return b.String()
	}

	b.WriteString("| Date | Type | Amount | Note |\n")
	b.WriteString("|------|------|-------:|------|\n")
	for _, l := range st.Lines {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", l.Date, l.Type, l.Amount, mdEscape(l.Note))
	}
	return b.String()
}

var mdReplacer = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
