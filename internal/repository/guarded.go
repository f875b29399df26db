package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/pkg/metrics"
)

// NewBreaker returns a circuit breaker that only counts data-layer failures,
// so missing rows and rejected input never open the circuit. Transitions are
// logged and exported under name.
func NewBreaker(name string, log *slog.Logger) *apperrors.CircuitBreaker {
	if log == nil {
		log = slog.Default()
	}

	cb := apperrors.NewCircuitBreaker()
	cb.OnStateChange = func(from, to apperrors.State) {
		metrics.SetCircuitState(name, int(to))
		level := slog.LevelInfo
		if to == apperrors.StateOpen {
			level = slog.LevelWarn
		}
		log.Log(context.Background(), level, "circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	cb.IsFailure = func(err error) bool {
		appErr, ok := apperrors.As(err)
		if !ok {
			return true
		}
		return appErr.Code == apperrors.CodeDatabase
	}
	return cb
}

type guardedClients struct {
	next ClientRepository
	cb   *apperrors.CircuitBreaker
}

// GuardClients routes every client repository call through cb.
func GuardClients(next ClientRepository, cb *apperrors.CircuitBreaker) ClientRepository {
	return &guardedClients{next: next, cb: cb}
}

func (g *guardedClients) List(ctx context.Context) (clients []domain.Client, err error) {
	err = g.cb.Call(func() error {
		clients, err = g.next.List(ctx)
		return err
	})
	return clients, err
}

func (g *guardedClients) FindByID(ctx context.Context, id uuid.UUID) (client *domain.Client, err error) {
	err = g.cb.Call(func() error {
		client, err = g.next.FindByID(ctx, id)
		return err
	})
	return client, err
}

func (g *guardedClients) FindByMatricula(ctx context.Context, matricula int64) (client *domain.Client, err error) {
	err = g.cb.Call(func() error {
		client, err = g.next.FindByMatricula(ctx, matricula)
		return err
	})
	return client, err
}

func (g *guardedClients) Create(ctx context.Context, update domain.ClientUpdate) (client *domain.Client, err error) {
	err = g.cb.Call(func() error {
		client, err = g.next.Create(ctx, update)
		return err
	})
	return client, err
}

func (g *guardedClients) Update(ctx context.Context, id uuid.UUID, update domain.ClientUpdate) error {
	return g.cb.Call(func() error {
		return g.next.Update(ctx, id, update)
	})
}

func (g *guardedClients) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	return g.cb.Call(func() error {
		return g.next.SetBlocked(ctx, id, blocked)
	})
}

func (g *guardedClients) Delete(ctx context.Context, id uuid.UUID, matricula int64) error {
	return g.cb.Call(func() error {
		return g.next.Delete(ctx, id, matricula)
	})
}

type guardedLedger struct {
	next LedgerRepository
	cb   *apperrors.CircuitBreaker
}

// GuardLedger routes every ledger repository call through cb.
func GuardLedger(next LedgerRepository, cb *apperrors.CircuitBreaker) LedgerRepository {
	return &guardedLedger{next: next, cb: cb}
}

func (g *guardedLedger) Transactions(ctx context.Context, matricula int64) (txs []domain.Transaction, err error) {
	err = g.cb.Call(func() error {
		txs, err = g.next.Transactions(ctx, matricula)
		return err
	})
	return txs, err
}

func (g *guardedLedger) ScheduledPayments(ctx context.Context, matricula int64) (payments []domain.ScheduledPayment, err error) {
	err = g.cb.Call(func() error {
		payments, err = g.next.ScheduledPayments(ctx, matricula)
		return err
	})
	return payments, err
}

func (g *guardedLedger) PaymentLogs(ctx context.Context, matricula int64) (logs []domain.PaymentLog, err error) {
	err = g.cb.Call(func() error {
		logs, err = g.next.PaymentLogs(ctx, matricula)
		return err
	})
	return logs, err
}
