package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
)

// LedgerRepository reads the per-client ledgers keyed by registration number.
type LedgerRepository interface {
	Transactions(ctx context.Context, matricula int64) ([]domain.Transaction, error)
	ScheduledPayments(ctx context.Context, matricula int64) ([]domain.ScheduledPayment, error)
	PaymentLogs(ctx context.Context, matricula int64) ([]domain.PaymentLog, error)
}

type ledgerRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewLedgerRepository creates a new SQL-backed ledger repository.
func NewLedgerRepository(db *sql.DB, log *slog.Logger) LedgerRepository {
	return &ledgerRepository{db: db, log: log}
}

// Transactions returns the client's transactions, most recent first.
func (r *ledgerRepository) Transactions(ctx context.Context, matricula int64) ([]domain.Transaction, error) {
	const query = `
		SELECT id, matricula, type, amount, date, description
		FROM transactions
		WHERE matricula = $1
		ORDER BY date DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, matricula)
	if err != nil {
		return nil, r.fail("select transactions", matricula, err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.Matricula, &tx.Type, &tx.Amount, &tx.Date, &tx.Description); err != nil {
			return nil, r.fail("scan transaction", matricula, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("iterate transactions", matricula, err)
	}

	return txs, nil
}

// ScheduledPayments returns the client's recurring payments ordered by due day.
func (r *ledgerRepository) ScheduledPayments(ctx context.Context, matricula int64) ([]domain.ScheduledPayment, error) {
	const query = `
		SELECT id, matricula, name, amount, due_day
		FROM scheduled_payments
		WHERE matricula = $1
		ORDER BY due_day ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, matricula)
	if err != nil {
		return nil, r.fail("select scheduled payments", matricula, err)
	}
	defer rows.Close()

	payments := make([]domain.ScheduledPayment, 0)
	for rows.Next() {
		var p domain.ScheduledPayment
		if err := rows.Scan(&p.ID, &p.Matricula, &p.Name, &p.Amount, &p.DueDay); err != nil {
			return nil, r.fail("scan scheduled payment", matricula, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("iterate scheduled payments", matricula, err)
	}

	return payments, nil
}

// PaymentLogs returns the client's paid bills, most recent first.
func (r *ledgerRepository) PaymentLogs(ctx context.Context, matricula int64) ([]domain.PaymentLog, error) {
	const query = `
		SELECT id, matricula, name, amount, paid_at
		FROM payment_logs
		WHERE matricula = $1
		ORDER BY paid_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, matricula)
	if err != nil {
		return nil, r.fail("select payment logs", matricula, err)
	}
	defer rows.Close()

	logs := make([]domain.PaymentLog, 0)
	for rows.Next() {
		var l domain.PaymentLog
		if err := rows.Scan(&l.ID, &l.Matricula, &l.Name, &l.Amount, &l.PaidAt); err != nil {
			return nil, r.fail("scan payment log", matricula, err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("iterate payment logs", matricula, err)
	}

	return logs, nil
}

func (r *ledgerRepository) fail(op string, matricula int64, err error) error {
	if r.log != nil {
		r.log.Error("ledger repository: "+op, slog.Int64("matricula", matricula), slog.Any("error", err))
	}
	return apperrors.NewDatabaseError(fmt.Errorf("%s: %w", op, err))
}
