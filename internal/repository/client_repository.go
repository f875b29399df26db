// Package repository implements the PostgreSQL data layer for clients, their ledgers and the admin audit trail.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// ClientRepository defines persistence operations for client records.
type ClientRepository interface {
	List(ctx context.Context) ([]domain.Client, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	FindByMatricula(ctx context.Context, matricula int64) (*domain.Client, error)
	Create(ctx context.Context, update domain.ClientUpdate) (*domain.Client, error)
	Update(ctx context.Context, id uuid.UUID, update domain.ClientUpdate) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	Delete(ctx context.Context, id uuid.UUID, matricula int64) error
}

const clientColumns = `
	id, matricula, full_name, email, phone, initial_balance,
	salary_amount, salary_day, advance_amount, advance_day,
	credit_limit, credit_used, blocked, created_at`

type clientRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewClientRepository creates a new SQL-backed client repository.
func NewClientRepository(db *sql.DB, log *slog.Logger) ClientRepository {
	return &clientRepository{
		db:  db,
		log: log,
	}
}

// List returns every client ordered by creation time, newest first.
func (r *clientRepository) List(ctx context.Context) ([]domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logError("list clients", err)
		return nil, apperrors.NewDatabaseError(fmt.Errorf("select clients: %w", err))
	}
	defer rows.Close()

	clients := make([]domain.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			r.logError("scan client", err)
			return nil, apperrors.NewDatabaseError(fmt.Errorf("scan client: %w", err))
		}
		clients = append(clients, *client)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("iterate clients: %w", err))
	}

	return clients, nil
}

// FindByID retrieves a client by its identifier.
func (r *clientRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("client", ErrNotFound)
		}

		r.logError("find client by id", err, slog.String("client_id", id.String()))
		return nil, apperrors.NewDatabaseError(fmt.Errorf("select client by id: %w", err))
	}

	return client, nil
}

// FindByMatricula retrieves a client by registration number.
func (r *clientRepository) FindByMatricula(ctx context.Context, matricula int64) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE matricula = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, matricula))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("client", ErrNotFound)
		}

		r.logError("find client by matricula", err, slog.Int64("matricula", matricula))
		return nil, apperrors.NewDatabaseError(fmt.Errorf("select client by matricula: %w", err))
	}

	return client, nil
}

// Create inserts a new client; the database assigns id, matricula and created_at.
func (r *clientRepository) Create(ctx context.Context, update domain.ClientUpdate) (*domain.Client, error) {
	query := `
		INSERT INTO clients (
			full_name, email, phone, salary_amount, salary_day,
			advance_amount, advance_day, initial_balance, credit_limit
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + clientColumns

	client, err := scanClient(r.db.QueryRowContext(ctx, query, updateArgs(update)...))
	if err != nil {
		r.logError("create client", err)
		return nil, apperrors.NewDatabaseError(fmt.Errorf("insert client: %w", err))
	}

	return client, nil
}

// Update overwrites the editable columns of the client.
func (r *clientRepository) Update(ctx context.Context, id uuid.UUID, update domain.ClientUpdate) error {
	const query = `
		UPDATE clients SET
			full_name = $1,
			email = $2,
			phone = $3,
			salary_amount = $4,
			salary_day = $5,
			advance_amount = $6,
			advance_day = $7,
			initial_balance = $8,
			credit_limit = $9
		WHERE id = $10
	`

	args := append(updateArgs(update), id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logError("update client", err, slog.String("client_id", id.String()))
		return apperrors.NewDatabaseError(fmt.Errorf("update client: %w", err))
	}

	return expectAffected(res, "client")
}

// SetBlocked stores the blocked flag of the client.
func (r *clientRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	const query = `UPDATE clients SET blocked = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, blocked, id)
	if err != nil {
		r.logError("set client blocked", err, slog.String("client_id", id.String()), slog.Bool("blocked", blocked))
		return apperrors.NewDatabaseError(fmt.Errorf("update client blocked: %w", err))
	}

	return expectAffected(res, "client")
}

// Delete removes the client and every ledger row keyed by its matricula in one transaction.
func (r *clientRepository) Delete(ctx context.Context, id uuid.UUID, matricula int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("begin delete client: %w", err))
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logError("rollback delete client", rbErr, slog.String("client_id", id.String()))
		}
	}()

	for _, table := range []string{"transactions", "scheduled_payments", "payment_logs"} {
		// table names come from the fixed list above
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE matricula = $1`, matricula); err != nil {
			r.logError("delete client ledger", err, slog.String("table", table), slog.Int64("matricula", matricula))
			return apperrors.NewDatabaseError(fmt.Errorf("delete %s: %w", table, err))
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = $1 AND matricula = $2`, id, matricula)
	if err != nil {
		r.logError("delete client", err, slog.String("client_id", id.String()))
		return apperrors.NewDatabaseError(fmt.Errorf("delete client: %w", err))
	}
	if err := expectAffected(res, "client"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("commit delete client: %w", err))
	}

	return nil
}

func (r *clientRepository) logError(msg string, err error, attrs ...any) {
	if r.log == nil {
		return
	}
	r.log.Error("client repository: "+msg, append(attrs, slog.Any("error", err))...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*domain.Client, error) {
	var (
		client        domain.Client
		fullName      sql.NullString
		email         sql.NullString
		phone         sql.NullString
		initial       decimal.NullDecimal
		salaryAmount  decimal.NullDecimal
		salaryDay     sql.NullInt32
		advanceAmount decimal.NullDecimal
		advanceDay    sql.NullInt32
		creditLimit   decimal.NullDecimal
		creditUsed    decimal.NullDecimal
	)

	if err := row.Scan(
		&client.ID,
		&client.Matricula,
		&fullName,
		&email,
		&phone,
		&initial,
		&salaryAmount,
		&salaryDay,
		&advanceAmount,
		&advanceDay,
		&creditLimit,
		&creditUsed,
		&client.Blocked,
		&client.CreatedAt,
	); err != nil {
		return nil, err
	}

	client.FullName = nullString(fullName)
	client.Email = nullString(email)
	client.Phone = nullString(phone)
	client.InitialBalance = nullDecimal(initial)
	client.SalaryAmount = nullDecimal(salaryAmount)
	client.SalaryDay = nullInt(salaryDay)
	client.AdvanceAmount = nullDecimal(advanceAmount)
	client.AdvanceDay = nullInt(advanceDay)
	client.CreditLimit = nullDecimal(creditLimit)
	client.CreditUsed = nullDecimal(creditUsed)

	return &client, nil
}

func updateArgs(u domain.ClientUpdate) []any {
	return []any{
		u.FullName,
		u.Email,
		u.Phone,
		u.SalaryAmount,
		u.SalaryDay,
		u.AdvanceAmount,
		u.AdvanceDay,
		u.InitialBalance,
		u.CreditLimit,
	}
}

func expectAffected(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(entity, ErrNotFound)
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func nullInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}
