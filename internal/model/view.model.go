package model

import (
	"fmt"
	"strings"

	"github.com/nimasrn/ledger-book/pkg/money"
)

// SortOrder selects how the customer list is ordered.
type SortOrder string

const (
	SortMostDue         SortOrder = "most_due"
	SortRecentlyUpdated SortOrder = "recently_updated"
	SortNameAscending   SortOrder = "name_asc"
)

// ParseSortOrder accepts the wire names; an empty value selects most_due.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortMostDue, nil
	case SortMostDue, SortRecentlyUpdated, SortNameAscending:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

type ViewQuery struct {
	Search string
	Sort   SortOrder
}

// CustomerView is the filtered, ordered customer list. TotalOutstanding is
// summed over every customer, not only the filtered ones.
type CustomerView struct {
	Customers        []*Customer  `json:"customers"`
	TotalOutstanding money.Amount `json:"total_outstanding"`
}
