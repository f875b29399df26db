package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/inovabank/internal/database"
	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *uuid.UUID:
			*v = r.values[i].(uuid.UUID)
		case *int64:
			*v = r.values[i].(int64)
		case *bool:
			*v = r.values[i].(bool)
		case *time.Time:
			*v = r.values[i].(time.Time)
		case *sql.NullString:
			if s, ok := r.values[i].(string); ok {
				*v = sql.NullString{String: s, Valid: true}
			}
		case *sql.NullInt32:
			if n, ok := r.values[i].(int32); ok {
				*v = sql.NullInt32{Int32: n, Valid: true}
			}
		case *decimal.NullDecimal:
			if s, ok := r.values[i].(string); ok {
				*v = decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
			}
		}
	}
	return nil
}

func TestScanClient_MapsNullableColumns(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	client, err := scanClient(fakeRow{values: []any{
		id, int64(1001), "Ana", nil, "+5511999990000", "1000.50",
		"3000", int32(5), nil, nil,
		"2000", nil, true, created,
	}})
	require.NoError(t, err)

	assert.Equal(t, id, client.ID)
	assert.Equal(t, int64(1001), client.Matricula)
	assert.Equal(t, "Ana", *client.FullName)
	assert.Nil(t, client.Email)
	assert.Equal(t, "1000.5", client.InitialBalance.String())
	assert.Equal(t, 5, *client.SalaryDay)
	assert.Nil(t, client.AdvanceAmount)
	assert.Nil(t, client.AdvanceDay)
	assert.Nil(t, client.CreditUsed)
	assert.True(t, client.Blocked)
	assert.Equal(t, created, client.CreatedAt)

	_, err = scanClient(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

type failingClients struct {
	ClientRepository
	err   error
	calls int
}

func (f *failingClients) List(context.Context) ([]domain.Client, error) {
	f.calls++
	return nil, f.err
}

func (f *failingClients) FindByID(context.Context, uuid.UUID) (*domain.Client, error) {
	f.calls++
	return nil, f.err
}

func TestGuardClients_OpensOnDatabaseErrors(t *testing.T) {
	inner := &failingClients{err: apperrors.NewDatabaseError(errors.New("connection refused"))}
	guarded := GuardClients(inner, NewBreaker("test", nil))

	for i := 0; i < apperrors.MinRequests; i++ {
		_, err := guarded.List(context.Background())
		assert.True(t, apperrors.HasCode(err, apperrors.CodeDatabase))
	}

	_, err := guarded.List(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))
	assert.Equal(t, apperrors.MinRequests, inner.calls)
}

func TestGuardClients_NotFoundKeepsCircuitClosed(t *testing.T) {
	inner := &failingClients{err: apperrors.NewNotFoundError("client", ErrNotFound)}
	cb := NewBreaker("test", nil)
	guarded := GuardClients(inner, cb)

	for i := 0; i < apperrors.MinRequests*2; i++ {
		_, err := guarded.FindByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, apperrors.StateClosed, cb.State())
}

// Runs against a disposable database only.
func TestClientRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = database.NewMigrator(db, nil).ApplyDir(ctx, "../../migrations")
	require.NoError(t, err)

	clients := NewClientRepository(db, nil)
	ledger := NewLedgerRepository(db, nil)
	audit := NewAdminLogRepository(db, nil)

	name := "Integração"
	limit := decimal.RequireFromString("1500")
	created, err := clients.Create(ctx, domain.ClientUpdate{FullName: &name, CreditLimit: &limit})
	require.NoError(t, err)
	t.Cleanup(func() { _ = clients.Delete(context.Background(), created.ID, created.Matricula) })

	assert.Positive(t, created.Matricula)
	assert.False(t, created.Blocked)

	_, err = db.ExecContext(ctx,
		`INSERT INTO transactions (matricula, type, amount, date, description) VALUES ($1, 'income', 10, CURRENT_DATE, 'pix')`,
		created.Matricula)
	require.NoError(t, err)

	require.NoError(t, clients.SetBlocked(ctx, created.ID, true))
	found, err := clients.FindByMatricula(ctx, created.Matricula)
	require.NoError(t, err)
	assert.True(t, found.Blocked)
	assert.Equal(t, "1500", found.CreditLimit.String())

	txs, err := ledger.Transactions(ctx, created.Matricula)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionIncome, txs[0].Type)

	require.NoError(t, audit.Append(ctx, domain.AdminLog{
		AdminID:      "it-admin",
		Action:       domain.ActionBlockUser,
		TargetUserID: created.ID,
		Details:      map[string]any{"blocked": true},
	}))

	require.NoError(t, clients.Delete(ctx, created.ID, created.Matricula))
	_, err = clients.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	txs, err = ledger.Transactions(ctx, created.Matricula)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
