// Package client implements the admin management of client accounts: list
// filtering and sorting, the edit form and the audited mutations.
package client

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
)

// StatusFilter restricts the list by the blocked flag.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusActive  StatusFilter = "active"
	StatusBlocked StatusFilter = "blocked"
)

// SortField selects the list ordering key.
type SortField string

const (
	SortByName           SortField = "full_name"
	SortByCreatedAt      SortField = "created_at"
	SortByInitialBalance SortField = "initial_balance"
)

// SortOrder is the list direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Query is the admin list view: search text, status filter and ordering.
type Query struct {
	Search    string       `json:"search"`
	Status    StatusFilter `json:"status"`
	SortField SortField    `json:"sort_field"`
	SortOrder SortOrder    `json:"sort_order"`
}

// DefaultQuery lists every client, newest first.
func DefaultQuery() Query {
	return Query{Status: StatusAll, SortField: SortByCreatedAt, SortOrder: OrderDesc}
}

// ParseQuery builds a Query from raw request values. Empty values take the defaults.
func ParseQuery(search, status, field, order string) (Query, error) {
	q := DefaultQuery()
	q.Search = search

	if status != "" {
		q.Status = StatusFilter(status)
	}
	if field != "" {
		q.SortField = SortField(field)
	}
	if order != "" {
		q.SortOrder = SortOrder(order)
	}

	if err := q.Validate(); err != nil {
		return DefaultQuery(), err
	}
	return q, nil
}

// Validate rejects unknown filter and ordering values.
func (q Query) Validate() error {
	switch q.Status {
	case StatusAll, StatusActive, StatusBlocked:
	default:
		return apperrors.NewValidationError(fmt.Sprintf("status inválido: %q", q.Status))
	}

	switch q.SortField {
	case SortByName, SortByCreatedAt, SortByInitialBalance:
	default:
		return apperrors.NewValidationError(fmt.Sprintf("campo de ordenação inválido: %q", q.SortField))
	}

	switch q.SortOrder {
	case OrderAsc, OrderDesc:
	default:
		return apperrors.NewValidationError(fmt.Sprintf("ordem inválida: %q", q.SortOrder))
	}

	return nil
}

// Apply returns a new slice with the clients matching q in q's order. The input is not modified.
func Apply(clients []domain.Client, q Query) []domain.Client {
	out := make([]domain.Client, 0, len(clients))
	for i := range clients {
		if MatchesSearch(&clients[i], q.Search) && MatchesStatus(&clients[i], q.Status) {
			out = append(out, clients[i])
		}
	}

	Sort(out, q.SortField, q.SortOrder)
	return out
}

// MatchesSearch reports whether c matches the free-text search. A blank search
// matches everything. Name and email compare case-insensitively; phone and
// registration number are plain substring matches against the lowercased search.
func MatchesSearch(c *domain.Client, search string) bool {
	if strings.TrimSpace(search) == "" {
		return true
	}

	needle := strings.ToLower(search)

	if c.FullName != nil && strings.Contains(strings.ToLower(*c.FullName), needle) {
		return true
	}
	if c.Email != nil && strings.Contains(strings.ToLower(*c.Email), needle) {
		return true
	}
	if c.Phone != nil && strings.Contains(*c.Phone, needle) {
		return true
	}

	return strings.Contains(strconv.FormatInt(c.Matricula, 10), needle)
}

// MatchesStatus reports whether c passes the status filter.
func MatchesStatus(c *domain.Client, status StatusFilter) bool {
	switch status {
	case StatusActive:
		return !c.Blocked
	case StatusBlocked:
		return c.Blocked
	default:
		return true
	}
}

// Sort orders clients in place. Ties keep their relative order.
func Sort(clients []domain.Client, field SortField, order SortOrder) {
	compare := comparator(field)

	slices.SortStableFunc(clients, func(a, b domain.Client) int {
		c := compare(&a, &b)
		if order == OrderDesc {
			return -c
		}
		return c
	})
}

func comparator(field SortField) func(a, b *domain.Client) int {
	switch field {
	case SortByName:
		// collators keep internal buffers and must not be shared between goroutines
		col := collate.New(language.BrazilianPortuguese)
		return func(a, b *domain.Client) int {
			return col.CompareString(domain.StringOrEmpty(a.FullName), domain.StringOrEmpty(b.FullName))
		}
	case SortByInitialBalance:
		return func(a, b *domain.Client) int {
			return domain.DecimalOrZero(a.InitialBalance).Cmp(domain.DecimalOrZero(b.InitialBalance))
		}
	default:
		return func(a, b *domain.Client) int {
			return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
		}
	}
}
