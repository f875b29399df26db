package client

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Proton-105/inovabank/internal/domain"
	"github.com/Proton-105/inovabank/internal/notify"
)

type mockClients struct {
	mock.Mock
}

func (m *mockClients) List(ctx context.Context) ([]domain.Client, error) {
	args := m.Called(ctx)
	clients, _ := args.Get(0).([]domain.Client)
	return clients, args.Error(1)
}

func (m *mockClients) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.Client)
	return c, args.Error(1)
}

func (m *mockClients) FindByMatricula(ctx context.Context, matricula int64) (*domain.Client, error) {
	args := m.Called(ctx, matricula)
	c, _ := args.Get(0).(*domain.Client)
	return c, args.Error(1)
}

func (m *mockClients) Create(ctx context.Context, update domain.ClientUpdate) (*domain.Client, error) {
	args := m.Called(ctx, update)
	c, _ := args.Get(0).(*domain.Client)
	return c, args.Error(1)
}

func (m *mockClients) Update(ctx context.Context, id uuid.UUID, update domain.ClientUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *mockClients) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	return m.Called(ctx, id, blocked).Error(0)
}

func (m *mockClients) Delete(ctx context.Context, id uuid.UUID, matricula int64) error {
	return m.Called(ctx, id, matricula).Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Transactions(ctx context.Context, matricula int64) ([]domain.Transaction, error) {
	args := m.Called(ctx, matricula)
	txs, _ := args.Get(0).([]domain.Transaction)
	return txs, args.Error(1)
}

func (m *mockLedger) ScheduledPayments(ctx context.Context, matricula int64) ([]domain.ScheduledPayment, error) {
	args := m.Called(ctx, matricula)
	payments, _ := args.Get(0).([]domain.ScheduledPayment)
	return payments, args.Error(1)
}

func (m *mockLedger) PaymentLogs(ctx context.Context, matricula int64) ([]domain.PaymentLog, error) {
	args := m.Called(ctx, matricula)
	logs, _ := args.Get(0).([]domain.PaymentLog)
	return logs, args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Append(ctx context.Context, entry domain.AdminLog) error {
	return m.Called(ctx, entry).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context) ([]domain.Client, bool, error) {
	args := m.Called(ctx)
	clients, _ := args.Get(0).([]domain.Client)
	return clients, args.Bool(1), args.Error(2)
}

func (m *mockCache) Generation(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, clients []domain.Client, gen string) (bool, error) {
	args := m.Called(ctx, clients, gen)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, event notify.Event) error {
	return m.Called(ctx, event).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string {
	return &s
}
