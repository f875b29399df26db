package client

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/i18n"
	"github.com/Proton-105/inovabank/internal/notify"
	"github.com/Proton-105/inovabank/internal/repository"
	"github.com/Proton-105/inovabank/pkg/metrics"
)

// Display limits of the detail view.
const (
	DetailTransactionsLimit = 20
	DetailPaymentLogsLimit  = 10
)

// ListCache holds the full client list between mutations.
type ListCache interface {
	Get(ctx context.Context) ([]domain.Client, bool, error)
	Generation(ctx context.Context) (string, error)
	Set(ctx context.Context, clients []domain.Client, gen string) (bool, error)
	Invalidate(ctx context.Context) error
}

// ListResult is the filtered list together with the counts of the whole base.
type ListResult struct {
	Clients []domain.Client    `json:"clients"`
	Stats   domain.ClientStats `json:"stats"`
}

// Outcome is the result of an admin mutation. Notification is set on success and failure.
type Outcome struct {
	Client       *domain.Client      `json:"client,omitempty"`
	Notification notify.Notification `json:"notification"`
}

// Service provides the admin operations over client accounts.
type Service struct {
	clients  repository.ClientRepository
	ledger   repository.LedgerRepository
	audit    repository.AdminLogRepository
	cache    ListCache
	notifier notify.Notifier
	messages *i18n.Manager
	log      *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service instance. cache and notifier may be nil.
func NewService(
	clients repository.ClientRepository,
	ledger repository.LedgerRepository,
	audit repository.AdminLogRepository,
	cache ListCache,
	notifier notify.Notifier,
	messages *i18n.Manager,
	log *slog.Logger,
) *Service {
	return &Service{
		clients:  clients,
		ledger:   ledger,
		audit:    audit,
		cache:    cache,
		notifier: notifier,
		messages: messages,
		log:      log,
		now:      time.Now,
	}
}

// All returns every client, from cache when available. A list read while a
// mutation invalidates the cache is returned but not cached.
func (s *Service) All(ctx context.Context) ([]domain.Client, error) {
	var (
		gen       string
		cacheable bool
	)
	if s.cache != nil {
		clients, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logWarn(ctx, "client list cache read failed", err)
		}
		if ok {
			return clients, nil
		}

		if gen, err = s.cache.Generation(ctx); err != nil {
			s.logWarn(ctx, "client list cache generation read failed", err)
		} else {
			cacheable = true
		}
	}

	clients, err := s.clients.List(ctx)
	if err != nil {
		s.logError(ctx, "list", uuid.Nil, err)
		return nil, err
	}

	if cacheable {
		if _, err := s.cache.Set(ctx, clients, gen); err != nil {
			s.logWarn(ctx, "client list cache write failed", err)
		}
	}

	return clients, nil
}

// List applies q to the whole client base.
func (s *Service) List(ctx context.Context, q Query) (*ListResult, error) {
	clients, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Clients: Apply(clients, q),
		Stats:   domain.CountStats(clients),
	}, nil
}

// Stats counts total, active and blocked clients.
func (s *Service) Stats(ctx context.Context) (domain.ClientStats, error) {
	clients, err := s.All(ctx)
	if err != nil {
		return domain.ClientStats{}, err
	}
	return domain.CountStats(clients), nil
}

// Form returns the edit form prefilled from the stored client.
func (s *Service) Form(ctx context.Context, id uuid.UUID) (EditForm, error) {
	c, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return EditForm{}, err
	}
	return FormFromClient(c), nil
}

// Create registers a new client from the form.
func (s *Service) Create(ctx context.Context, adminID string, form EditForm) (Outcome, error) {
	tr := s.translator(ctx)

	update, err := form.Parse()
	if err != nil {
		return s.fail(ctx, domain.ActionCreateUser, uuid.Nil, tr.T("client.create_failed"), err)
	}

	created, err := s.clients.Create(ctx, update)
	if err != nil {
		return s.fail(ctx, domain.ActionCreateUser, uuid.Nil, tr.T("client.create_failed"), err)
	}

	n := notify.Success(
		tr.T("client.created_title"),
		tr.Format("client.created_description", map[string]string{
			"Name":      created.DisplayName(tr.T("common.client_fallback")),
			"Matricula": strconv.FormatInt(created.Matricula, 10),
		}),
	)
	s.succeed(ctx, domain.ActionCreateUser, adminID, created.ID, map[string]any{"matricula": created.Matricula}, n)

	return Outcome{Client: created, Notification: n}, nil
}

// Update replaces the editable fields of the client with the form values.
func (s *Service) Update(ctx context.Context, adminID string, id uuid.UUID, form EditForm) (Outcome, error) {
	tr := s.translator(ctx)

	update, err := form.Parse()
	if err != nil {
		return s.fail(ctx, domain.ActionEditUser, id, tr.T("client.update_failed"), err)
	}

	current, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return s.fail(ctx, domain.ActionEditUser, id, tr.T("client.update_failed"), err)
	}

	if err := s.clients.Update(ctx, id, update); err != nil {
		return s.fail(ctx, domain.ActionEditUser, id, tr.T("client.update_failed"), err)
	}
	update.Apply(current)

	n := notify.Success(tr.T("client.updated_title"), tr.T("client.updated_description"))
	s.succeed(ctx, domain.ActionEditUser, adminID, id, map[string]any{"updates": update}, n)

	return Outcome{Client: current, Notification: n}, nil
}

// ToggleBlock flips the stored blocked flag of the client.
func (s *Service) ToggleBlock(ctx context.Context, adminID string, id uuid.UUID) (Outcome, error) {
	tr := s.translator(ctx)

	current, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return s.fail(ctx, domain.ActionBlockUser, id, tr.T("client.toggle_failed"), err)
	}

	blocked := !current.Blocked
	action := domain.ActionUnblockUser
	if blocked {
		action = domain.ActionBlockUser
	}

	if err := s.clients.SetBlocked(ctx, id, blocked); err != nil {
		return s.fail(ctx, action, id, tr.T("client.toggle_failed"), err)
	}
	current.Blocked = blocked

	vars := map[string]string{"Name": current.DisplayName(tr.T("common.client_fallback"))}
	n := notify.Success(tr.T("client.unblocked_title"), tr.Format("client.unblocked_description", vars))
	if blocked {
		n = notify.Success(tr.T("client.blocked_title"), tr.Format("client.blocked_description", vars))
	}
	s.succeed(ctx, action, adminID, id, nil, n)

	return Outcome{Client: current, Notification: n}, nil
}

// Delete permanently removes the client and its ledgers.
func (s *Service) Delete(ctx context.Context, adminID string, id uuid.UUID) (Outcome, error) {
	tr := s.translator(ctx)

	current, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return s.fail(ctx, domain.ActionDeleteUser, id, tr.T("client.delete_failed"), err)
	}

	if err := s.clients.Delete(ctx, id, current.Matricula); err != nil {
		return s.fail(ctx, domain.ActionDeleteUser, id, tr.T("client.delete_failed"), err)
	}

	n := notify.Success(tr.T("client.deleted_title"), tr.T("client.deleted_description"))
	s.succeed(ctx, domain.ActionDeleteUser, adminID, id, map[string]any{
		"deleted_user": current.FullName,
		"matricula":    current.Matricula,
	}, n)

	return Outcome{Notification: n}, nil
}

// Details loads the client's ledgers concurrently and computes the balance over
// every transaction. Display lists are trimmed to the detail view limits.
func (s *Service) Details(ctx context.Context, id uuid.UUID) (*domain.ClientDetails, error) {
	c, err := s.clients.FindByID(ctx, id)
	if err != nil {
		s.logError(ctx, "details", id, err)
		return nil, err
	}

	var (
		txs      []domain.Transaction
		payments []domain.ScheduledPayment
		logs     []domain.PaymentLog
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.ledger.Transactions(gctx, c.Matricula)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.ledger.ScheduledPayments(gctx, c.Matricula)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = s.ledger.PaymentLogs(gctx, c.Matricula)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logError(ctx, "details", id, err)
		return nil, err
	}

	return &domain.ClientDetails{
		Client:            *c,
		Balance:           domain.Balance(c.InitialBalance, txs),
		Transactions:      head(txs, DetailTransactionsLimit),
		ScheduledPayments: payments,
		PaymentLogs:       head(logs, DetailPaymentLogsLimit),
	}, nil
}

// FailureNotification builds the destructive notification for a failed read.
func (s *Service) FailureNotification(ctx context.Context, key string) notify.Notification {
	tr := s.translator(ctx)
	return notify.Failure(tr.T("common.error_title"), tr.T(key))
}

// ExportNotification is returned once a list export has been produced.
func (s *Service) ExportNotification(ctx context.Context) notify.Notification {
	tr := s.translator(ctx)
	return notify.Success(tr.T("client.exported_title"), tr.T("client.exported_description"))
}

// SnapshotNotification is returned once a background export has been queued.
func (s *Service) SnapshotNotification(ctx context.Context) notify.Notification {
	tr := s.translator(ctx)
	return notify.Success(tr.T("client.snapshot_title"), tr.T("client.snapshot_description"))
}

func (s *Service) succeed(ctx context.Context, action domain.AdminAction, adminID string, id uuid.UUID, details map[string]any, n notify.Notification) {
	metrics.RecordAdminAction(string(action), true)

	if s.audit != nil {
		entry := domain.AdminLog{AdminID: adminID, Action: action, TargetUserID: id, Details: details}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.logWarn(ctx, "admin log append failed", err, slog.String("action", string(action)))
		}
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logWarn(ctx, "client list cache invalidation failed", err)
		}
	}

	if s.notifier != nil {
		event := notify.Event{
			Action:       action,
			AdminID:      adminID,
			ClientID:     id,
			Notification: n,
			OccurredAt:   s.now().UTC(),
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logWarn(ctx, "admin event delivery failed", err, slog.String("action", string(action)))
		}
	}
}

func (s *Service) fail(ctx context.Context, action domain.AdminAction, id uuid.UUID, description string, err error) (Outcome, error) {
	metrics.RecordAdminAction(string(action), false)
	s.logError(ctx, string(action), id, err)

	tr := s.translator(ctx)
	return Outcome{Notification: notify.Failure(tr.T("common.error_title"), description)}, err
}

func (s *Service) translator(ctx context.Context) i18n.Translator {
	return s.messages.Translator(i18n.LangFromContext(ctx))
}

func (s *Service) logError(ctx context.Context, operation string, id uuid.UUID, err error) {
	if s.log == nil || err == nil {
		return
	}

	attrs := []any{slog.String("operation", operation), slog.Any("error", err)}
	if id != uuid.Nil {
		attrs = append(attrs, slog.String("client_id", id.String()))
	}
	// Rejected input and missing clients are caller errors.
	level := slog.LevelError
	if apperrors.HasCode(err, apperrors.CodeValidation) || apperrors.HasCode(err, apperrors.CodeNotFound) {
		level = slog.LevelWarn
	}
	s.log.Log(ctx, level, "client service operation failed", attrs...)
}

func (s *Service) logWarn(ctx context.Context, msg string, err error, attrs ...any) {
	if s.log == nil {
		return
	}
	s.log.WarnContext(ctx, msg, append(attrs, slog.Any("error", err))...)
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
