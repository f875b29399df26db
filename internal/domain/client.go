// Package domain holds the banking records shared by the admin and account views.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client status labels used in listings and exports.
const (
	StatusActive  = "Ativo"
	StatusBlocked = "Bloqueado"
)

// Client is a bank customer's profile and financial configuration.
type Client struct {
	ID             uuid.UUID        `json:"id"`
	Matricula      int64            `json:"matricula"`
	FullName       *string          `json:"full_name"`
	Email          *string          `json:"email"`
	Phone          *string          `json:"phone"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
	SalaryAmount   *decimal.Decimal `json:"salary_amount"`
	SalaryDay      *int             `json:"salary_day"`
	AdvanceAmount  *decimal.Decimal `json:"advance_amount"`
	AdvanceDay     *int             `json:"advance_day"`
	CreditLimit    *decimal.Decimal `json:"credit_limit"`
	CreditUsed     *decimal.Decimal `json:"credit_used"`
	Blocked        bool             `json:"blocked"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Status returns the display label for the blocked flag.
func (c *Client) Status() string {
	if c.Blocked {
		return StatusBlocked
	}
	return StatusActive
}

// DisplayName returns the client's name or fallback when it is unset.
func (c *Client) DisplayName(fallback string) string {
	if c == nil || c.FullName == nil || *c.FullName == "" {
		return fallback
	}
	return *c.FullName
}

// StartingBalance returns the initial balance, treating an unset value as zero.
func (c *Client) StartingBalance() decimal.Decimal {
	return DecimalOrZero(c.InitialBalance)
}

// ClientUpdate is the full set of editable fields. A nil pointer clears the column.
type ClientUpdate struct {
	FullName       *string          `json:"full_name"`
	Email          *string          `json:"email"`
	Phone          *string          `json:"phone"`
	SalaryAmount   *decimal.Decimal `json:"salary_amount"`
	SalaryDay      *int             `json:"salary_day"`
	AdvanceAmount  *decimal.Decimal `json:"advance_amount"`
	AdvanceDay     *int             `json:"advance_day"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit"`
}

// Apply copies the update onto c.
func (u ClientUpdate) Apply(c *Client) {
	c.FullName = u.FullName
	c.Email = u.Email
	c.Phone = u.Phone
	c.SalaryAmount = u.SalaryAmount
	c.SalaryDay = u.SalaryDay
	c.AdvanceAmount = u.AdvanceAmount
	c.AdvanceDay = u.AdvanceDay
	c.InitialBalance = u.InitialBalance
	c.CreditLimit = u.CreditLimit
}

// ClientStats summarises the whole client base.
type ClientStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Blocked int `json:"blocked"`
}

// CountStats counts active and blocked clients.
func CountStats(clients []Client) ClientStats {
	stats := ClientStats{Total: len(clients)}
	for i := range clients {
		if clients[i].Blocked {
			stats.Blocked++
		} else {
			stats.Active++
		}
	}
	return stats
}

// DecimalOrZero dereferences d, treating nil as zero.
func DecimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// StringOrEmpty dereferences s, treating nil as "".
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
