// Package account serves the client-facing views of one account: summary,
// transactions, payment planner and statement.
package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/repository"
)

// Transaction list bounds.
const (
	DefaultTransactionsLimit = 50
	MaxTransactionsLimit     = 500
)

// Credit is the card limit of the account.
type Credit struct {
	Limit     decimal.Decimal `json:"limit"`
	Used      decimal.Decimal `json:"used"`
	Available decimal.Decimal `json:"available"`
}

// Income is a recurring deposit with its next occurrence.
type Income struct {
	Amount  decimal.Decimal `json:"amount"`
	Day     int             `json:"day"`
	NextDue time.Time       `json:"next_due"`
}

// Summary is the account home view.
type Summary struct {
	Client  domain.Client   `json:"client"`
	Balance decimal.Decimal `json:"balance"`
	Credit  Credit          `json:"credit"`
	Salary  *Income         `json:"salary,omitempty"`
	Advance *Income         `json:"advance,omitempty"`
}

// Service reads account views by registration number.
type Service struct {
	clients repository.ClientRepository
	ledger  repository.LedgerRepository
	log     *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(clients repository.ClientRepository, ledger repository.LedgerRepository, log *slog.Logger) *Service {
	return &Service{clients: clients, ledger: ledger, log: log}
}

// Summary returns balance, credit and income schedule of the account.
func (s *Service) Summary(ctx context.Context, matricula int64, now time.Time) (*Summary, error) {
	c, err := s.clients.FindByMatricula(ctx, matricula)
	if err != nil {
		return nil, s.fail(ctx, "summary", matricula, err)
	}

	txs, err := s.ledger.Transactions(ctx, matricula)
	if err != nil {
		return nil, s.fail(ctx, "summary", matricula, err)
	}

	limit := domain.DecimalOrZero(c.CreditLimit)
	used := domain.DecimalOrZero(c.CreditUsed)
	available := limit.Sub(used)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return &Summary{
		Client:  *c,
		Balance: domain.Balance(c.InitialBalance, txs),
		Credit:  Credit{Limit: limit, Used: used, Available: available},
		Salary:  income(c.SalaryAmount, c.SalaryDay, now),
		Advance: income(c.AdvanceAmount, c.AdvanceDay, now),
	}, nil
}

// Transactions returns the most recent movements, newest first. A non-positive
// limit takes the default.
func (s *Service) Transactions(ctx context.Context, matricula int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	if limit > MaxTransactionsLimit {
		limit = MaxTransactionsLimit
	}

	if _, err := s.clients.FindByMatricula(ctx, matricula); err != nil {
		return nil, s.fail(ctx, "transactions", matricula, err)
	}

	txs, err := s.ledger.Transactions(ctx, matricula)
	if err != nil {
		return nil, s.fail(ctx, "transactions", matricula, err)
	}

	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// Planner returns the scheduled payments with their next due date.
func (s *Service) Planner(ctx context.Context, matricula int64, now time.Time) (*Plan, error) {
	if _, err := s.clients.FindByMatricula(ctx, matricula); err != nil {
		return nil, s.fail(ctx, "planner", matricula, err)
	}

	payments, err := s.ledger.ScheduledPayments(ctx, matricula)
	if err != nil {
		return nil, s.fail(ctx, "planner", matricula, err)
	}

	plan := BuildPlan(payments, now)
	return &plan, nil
}

// Statement returns the account movement over [from, to).
func (s *Service) Statement(ctx context.Context, matricula int64, from, to time.Time) (*Statement, error) {
	if !from.Before(to) {
		return nil, apperrors.NewValidationError("o início do período deve ser anterior ao fim")
	}

	c, err := s.clients.FindByMatricula(ctx, matricula)
	if err != nil {
		return nil, s.fail(ctx, "statement", matricula, err)
	}

	txs, err := s.ledger.Transactions(ctx, matricula)
	if err != nil {
		return nil, s.fail(ctx, "statement", matricula, err)
	}

	st := BuildStatement(c.InitialBalance, txs, from, to)
	return &st, nil
}

func (s *Service) fail(ctx context.Context, operation string, matricula int64, err error) error {
	if s.log != nil && !apperrors.HasCode(err, apperrors.CodeNotFound) {
		s.log.ErrorContext(ctx, "account view failed",
			slog.String("operation", operation),
			slog.Int64("matricula", matricula),
			slog.Any("error", err),
		)
	}
	return err
}

func income(amount *decimal.Decimal, day *int, now time.Time) *Income {
	if amount == nil || day == nil {
		return nil
	}
	return &Income{Amount: *amount, Day: *day, NextDue: NextDueDate(*day, now)}
}
