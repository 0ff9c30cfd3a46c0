package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type CustomerLister interface {
	List(ctx context.Context) ([]*model.Customer, error)
}

// CustomerViewService derives the searchable, sorted customer list.
type CustomerViewService struct {
	customers CustomerLister
	lang      language.Tag
}

type ViewOption func(*CustomerViewService)

// WithLanguage sets the collation used for name ordering.
func WithLanguage(tag language.Tag) ViewOption {
	return func(s *CustomerViewService) {
		s.lang = tag
	}
}

func NewCustomerViewService(customers CustomerLister, opts ...ViewOption) *CustomerViewService {
	s := &CustomerViewService{
		customers: customers,
		lang:      language.English,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View filters by q.Search and orders by q.Sort. TotalOutstanding always
// covers every customer, whatever the search.
func (s *CustomerViewService) View(ctx context.Context, q model.ViewQuery) (*model.CustomerView, error) {
	order, err := model.ParseSortOrder(string(q.Sort))
	if err != nil {
		return nil, invalid("sort", err.Error())
	}

	all, err := s.customers.List(ctx)
	if err != nil {
		return nil, storeError("list customers", err, uuid.Nil, uuid.Nil)
	}

	var total money.Amount
	for _, c := range all {
		total = total.Add(c.TotalDue)
	}

	filtered := filterCustomers(all, q.Search)
	s.sortCustomers(filtered, order)

	return &model.CustomerView{
		Customers:        filtered,
		TotalOutstanding: total,
	}, nil
}

// filterCustomers keeps customers whose name contains search ignoring case,
// or whose phone contains it verbatim. An empty search keeps everyone.
func filterCustomers(all []*model.Customer, search string) []*model.Customer {
	out := make([]*model.Customer, 0, len(all))
	if search == "" {
		return append(out, all...)
	}

	fold := cases.Fold()
	needle := fold.String(search)
	for _, c := range all {
		if strings.Contains(fold.String(c.Name), needle) || strings.Contains(c.Phone, search) {
			out = append(out, c)
		}
	}
	return out
}

func (s *CustomerViewService) sortCustomers(list []*model.Customer, order model.SortOrder) {
	// a Collator is not safe for concurrent use, one per call
	coll := collate.New(s.lang, collate.IgnoreCase)

	byName := func(a, b *model.Customer) int {
		if c := coll.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	}

	var less func(a, b *model.Customer) bool
	switch order {
	case model.SortRecentlyUpdated:
		less = func(a, b *model.Customer) bool {
			if !a.LastUpdated.Equal(b.LastUpdated) {
				return a.LastUpdated.After(b.LastUpdated)
			}
			return byName(a, b) < 0
		}
	case model.SortNameAscending:
		less = func(a, b *model.Customer) bool {
			return byName(a, b) < 0
		}
	default:
		less = func(a, b *model.Customer) bool {
			if a.TotalDue != b.TotalDue {
				return a.TotalDue > b.TotalDue
			}
			return byName(a, b) < 0
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return less(list[i], list[j])
	})
}
