package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/app"
	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/internal/services"
	"github.com/nimasrn/ledger-book/pkg/money"
	"github.com/nimasrn/ledger-book/pkg/pg"
)

// withLedger opens the configured storage, runs fn and closes everything again.
func withLedger(ctx context.Context, fn func(l *app.Ledger) error) subcommands.ExitStatus {
	db, err := app.OpenDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to the database: %v\n", err)
		return subcommands.ExitFailure
	}
	rdb, err := app.OpenRedis()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to redis: %v\n", err)
		_ = db.Close()
		return subcommands.ExitFailure
	}
	l, err := app.NewLedger(ctx, db, rdb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = db.Close()
		return subcommands.ExitFailure
	}
	defer l.Close()

	if err := fn(l); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("-%s must be a customer or transaction id, got %q", name, raw)
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- migrateCmd ---

type migrateCmd struct {
	dir string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "applies the database migrations" }
func (*migrateCmd) Usage() string {
	return `migrate [-dir <migrations_dir>]

Applies every pending goose migration to the configured write database.
`
}
func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "", "migrations directory, defaults to ./migrations/<driver>")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.Get()
	dir := c.dir
	if dir == "" {
		dir = cfg.Migrations()
	}
	if err := pg.Migrate(cfg.WriteDB(), dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Migrations from %s applied.\n", dir)
	return subcommands.ExitSuccess
}

// --- addCustomerCmd ---

type addCustomerCmd struct {
	name    string
	phone   string
	address string
}

func (*addCustomerCmd) Name() string     { return "add-customer" }
func (*addCustomerCmd) Synopsis() string { return "adds a customer with a zero balance" }
func (*addCustomerCmd) Usage() string {
	return `add-customer -name <name> -phone <phone> [-address <address>]
`
}
func (c *addCustomerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "customer name")
	f.StringVar(&c.phone, "phone", "", "customer phone")
	f.StringVar(&c.address, "address", "", "optional address")
}

func (c *addCustomerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(l *app.Ledger) error {
		cust, err := l.Ledger.AddCustomer(ctx, model.CustomerInput{
			Name:    c.name,
			Phone:   c.phone,
			Address: optional(c.address),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Customer %s added with id %s\n", cust.Name, cust.ID)
		return nil
	})
}

// --- customersCmd ---

type customersCmd struct {
	search string
	sort   string
}

func (*customersCmd) Name() string     { return "customers" }
func (*customersCmd) Synopsis() string { return "lists customers and the total outstanding" }
func (*customersCmd) Usage() string {
	return `customers [-search <text>] [-sort most_due|recently_updated|name_asc]
`
}
func (c *customersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.search, "search", "", "case-insensitive name or phone filter")
	f.StringVar(&c.sort, "sort", "", "sort order, defaults to most_due")
}

func (c *customersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	order, err := model.ParseSortOrder(c.sort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(l *app.Ledger) error {
		view, err := l.View.View(ctx, model.ViewQuery{Search: c.search, Sort: order})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ID\tName\tPhone\tDue\t")
		for _, cust := range view.Customers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", cust.ID, cust.Name, cust.Phone, cust.TotalDue)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nTotal outstanding: %s\n", view.TotalOutstanding)
		return nil
	})
}

// --- deleteCustomerCmd ---

type deleteCustomerCmd struct {
	id string
}

func (*deleteCustomerCmd) Name() string     { return "delete-customer" }
func (*deleteCustomerCmd) Synopsis() string { return "deletes a customer and all of their transactions" }
func (*deleteCustomerCmd) Usage() string {
	return `delete-customer -id <customer_id>
`
}
func (c *deleteCustomerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "customer id")
}

func (c *deleteCustomerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := parseID("id", c.id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(l *app.Ledger) error {
		if err := l.Ledger.DeleteCustomer(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Customer %s deleted\n", id)
		return nil
	})
}

// --- addTxCmd ---

type addTxCmd struct {
	customer string
	kind     string
	amount   string
	date     string
	note     string
}

func (*addTxCmd) Name() string     { return "add-tx" }
func (*addTxCmd) Synopsis() string { return "records a credit or a payment" }
func (*addTxCmd) Usage() string {
	return `add-tx -customer <customer_id> -type credit|payment -amount <amount> [-date YYYY-MM-DD] [-note <text>]

A credit raises what the customer owes, a payment lowers it.
`
}
func (c *addTxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.customer, "customer", "", "customer id")
	f.StringVar(&c.kind, "type", "", "credit or payment")
	f.StringVar(&c.amount, "amount", "", "positive amount with at most two decimals")
	f.StringVar(&c.date, "date", "", "RFC3339 time or YYYY-MM-DD, defaults to now")
	f.StringVar(&c.note, "note", "", "optional note")
}

func (c *addTxCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in, err := c.input()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(l *app.Ledger) error {
		tx, err := l.Ledger.AddTransaction(ctx, in)
		if err != nil {
			return err
		}
		cust, err := l.Ledger.GetCustomer(ctx, tx.CustomerID)
		if err != nil {
			return err
		}
		fmt.Printf("%s of %s recorded (%s). %s now owes %s\n", tx.Type.Label(), tx.Amount, tx.ID, cust.Name, cust.TotalDue)
		return nil
	})
}

func (c *addTxCmd) input() (model.TransactionInput, error) {
	customerID, err := parseID("customer", c.customer)
	if err != nil {
		return model.TransactionInput{}, err
	}
	t, err := model.ParseTransactionType(c.kind)
	if err != nil {
		return model.TransactionInput{}, err
	}
	amount, err := money.Parse(c.amount)
	if err != nil {
		return model.TransactionInput{}, err
	}
	in := model.TransactionInput{CustomerID: customerID, Type: t, Amount: amount, Note: optional(c.note)}
	if c.date != "" {
		d, err := parseDate(c.date, config.Get().Location())
		if err != nil {
			return model.TransactionInput{}, err
		}
		in.Date = &d
	}
	return in, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(model.StatementDateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// --- deleteTxCmd ---

type deleteTxCmd struct {
	id string
}

func (*deleteTxCmd) Name() string     { return "delete-tx" }
func (*deleteTxCmd) Synopsis() string { return "deletes a transaction and reverts its effect" }
func (*deleteTxCmd) Usage() string {
	return `delete-tx -id <transaction_id>
`
}
func (c *deleteTxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "transaction id")
}

func (c *deleteTxCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := parseID("id", c.id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(l *app.Ledger) error {
		if err := l.Ledger.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Transaction %s deleted\n", id)
		return nil
	})
}

// --- reportCmd ---

type reportCmd struct {
	period string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "sums credits and payments for a period" }
func (*reportCmd) Usage() string {
	return `report -period today|this_week|this_month
`
}
func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", string(model.PeriodToday), "report period")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, err := model.ParsePeriod(c.period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(l *app.Ledger) error {
		r, err := l.Reports.Report(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("Report %s (since %s)\n", r.Period, r.From.Format(time.RFC3339))
		fmt.Printf("  Transactions:   %d\n", r.Count)
		fmt.Printf("  Total credits:  %s\n", r.TotalCredits)
		fmt.Printf("  Total payments: %s\n", r.TotalPayments)
		fmt.Printf("  Net change:     %s\n", r.NetChange.Signed())
		return nil
	})
}

// --- statementCmd ---

type statementCmd struct {
	customer string
	order    string
	raw      bool
}

func (*statementCmd) Name() string     { return "statement" }
func (*statementCmd) Synopsis() string { return "prints a customer statement" }
func (*statementCmd) Usage() string {
	return `statement -customer <customer_id> [-order asc|desc] [-raw]

Renders the statement as markdown in the terminal. -raw prints the markdown source.
`
}
func (c *statementCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.customer, "customer", "", "customer id")
	f.StringVar(&c.order, "order", "", "asc or desc, defaults to newest first")
	f.BoolVar(&c.raw, "raw", false, "print markdown without terminal styling")
}

func (c *statementCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := parseID("customer", c.customer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	order, err := model.ParseStatementOrder(c.order)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(l *app.Ledger) error {
		st, err := l.Statements.Statement(ctx, id, order)
		if err != nil {
			return err
		}
		md := services.StatementMarkdown(st)
		if c.raw {
			fmt.Print(md)
			return nil
		}
		out, err := renderMarkdown(md)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	})
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render statement: %w", err)
	}
	return strings.TrimLeft(out, "\n"), nil
}
