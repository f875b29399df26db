package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/inovabank/internal/account"
	"github.com/Proton-105/inovabank/internal/client"
	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/i18n"
	"github.com/Proton-105/inovabank/internal/idempotency"
	"github.com/Proton-105/inovabank/internal/middleware"
	"github.com/Proton-105/inovabank/internal/notify"
	"github.com/Proton-105/inovabank/internal/repository"
	"github.com/Proton-105/inovabank/internal/viewstate"
	"github.com/Proton-105/inovabank/pkg/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*domain.Client
	txs     map[int64][]domain.Transaction
	audit   []domain.AdminLog
	next    int64
}

var (
	_ repository.ClientRepository   = (*memStore)(nil)
	_ repository.LedgerRepository   = (*memStore)(nil)
	_ repository.AdminLogRepository = (*memStore)(nil)
)

func newMemStore(clients ...domain.Client) *memStore {
	s := &memStore{clients: map[uuid.UUID]*domain.Client{}, txs: map[int64][]domain.Transaction{}, next: 5000}
	for i := range clients {
		c := clients[i]
		s.clients[c.ID] = &c
	}
	return s
}

func (s *memStore) List(context.Context) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("client", repository.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) FindByMatricula(_ context.Context, matricula int64) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.Matricula == matricula {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("client", repository.ErrNotFound)
}

func (s *memStore) Create(_ context.Context, u domain.ClientUpdate) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	c := &domain.Client{ID: uuid.New(), Matricula: s.next, CreatedAt: time.Now()}
	u.Apply(c)
	s.clients[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, id uuid.UUID, u domain.ClientUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return apperrors.NewNotFoundError("client", repository.ErrNotFound)
	}
	u.Apply(c)
	return nil
}

func (s *memStore) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return apperrors.NewNotFoundError("client", repository.ErrNotFound)
	}
	c.Blocked = blocked
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID, matricula int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return apperrors.NewNotFoundError("client", repository.ErrNotFound)
	}
	delete(s.clients, id)
	delete(s.txs, matricula)
	return nil
}

func (s *memStore) Transactions(_ context.Context, matricula int64) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.txs[matricula]...), nil
}

func (s *memStore) ScheduledPayments(context.Context, int64) ([]domain.ScheduledPayment, error) {
	return nil, nil
}

func (s *memStore) PaymentLogs(context.Context, int64) ([]domain.PaymentLog, error) {
	return nil, nil
}

func (s *memStore) Append(_ context.Context, entry domain.AdminLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *memStore) auditLog() []domain.AdminLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AdminLog(nil), s.audit...)
}

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var (
	anaID   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	brunoID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func fixtures() []domain.Client {
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	return []domain.Client{
		{
			ID: anaID, Matricula: 1001, FullName: strPtr("Ana Lima"), Email: strPtr("ana@inovabank.com"),
			Phone: strPtr("+5511988887777"), InitialBalance: decPtr("1000"), CreatedAt: base,
		},
		{
			ID: brunoID, Matricula: 1002, FullName: strPtr("Bruno Souza"), InitialBalance: decPtr("50"),
			Blocked: true, CreatedAt: base.Add(time.Hour),
		},
	}
}

type fakeSnapshots struct {
	requested []string
}

func (f *fakeSnapshots) RequestSnapshot(_ context.Context, adminID string) (string, error) {
	f.requested = append(f.requested, adminID)
	return "task-1", nil
}

type testServer struct {
	engine *gin.Engine
	store  *memStore
	snaps  *fakeSnapshots
	mr     *miniredis.Miniredis
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := discardLogger()
	store := newMemStore(fixtures()...)
	store.txs[1001] = []domain.Transaction{
		{ID: 1, Matricula: 1001, Type: domain.TransactionIncome, Amount: decimal.RequireFromString("234.56"), Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Matricula: 1001, Type: domain.TransactionExpense, Amount: decimal.RequireFromString("100"), Date: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)},
	}

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	messages, err := i18n.Load(i18n.DefaultLang)
	require.NoError(t, err)

	clients := client.NewService(store, store, store, nil, notify.NewLogNotifier(log), messages, log)
	snaps := &fakeSnapshots{}

	engine := NewRouter(Options{
		Clients:     clients,
		Accounts:    account.NewService(store, store, log),
		Views:       viewstate.NewRedisStorage(redis.Wrap(rdb), log),
		Snapshots:   snaps,
		Errors:      apperrors.NewHandler(log, false),
		Messages:    messages,
		Idempotency: idempotency.NewManager(idempotency.NewRedisStore(rdb, log), log),
		Log:         log,
	})

	return &testServer{engine: engine, store: store, snaps: snaps, mr: mr}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func admin(extra ...string) map[string]string {
	h := map[string]string{middleware.AdminIDHeader: "admin-1"}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", nil, nil).Code)

	rec := s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/nope", nil, nil).Code)
}

func TestListClients(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/clients", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/clients?status=active&q=ANA", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[client.ListResult](t, rec)
	require.Len(t, result.Clients, 1)
	assert.Equal(t, int64(1001), result.Clients[0].Matricula)
	assert.Equal(t, domain.ClientStats{Total: 2, Active: 1, Blocked: 1}, result.Stats)

	rec = s.do(http.MethodGet, "/api/admin/clients?sort=nope", nil, admin())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[middleware.ErrorResponse](t, rec)
	assert.Equal(t, "Não foi possível carregar a lista de clientes.", body.Notification.Description)
}

func TestListClients_UsesStoredView(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPut, "/api/admin/view-state", map[string]any{
		"query": map[string]string{"status": "blocked"},
	}, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[viewstate.ViewState](t, rec)
	assert.Equal(t, client.StatusBlocked, state.Query.Status)
	assert.Equal(t, client.SortByCreatedAt, state.Query.SortField)

	rec = s.do(http.MethodGet, "/api/admin/clients", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[client.ListResult](t, rec)
	require.Len(t, result.Clients, 1)
	assert.Equal(t, int64(1002), result.Clients[0].Matricula)

	rec = s.do(http.MethodDelete, "/api/admin/view-state", nil, admin())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/view-state", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, client.DefaultQuery(), decode[viewStateResponse](t, rec).Query)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/clients/export.csv?sort=full_name&order=asc", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="clientes_`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	raw, err := url.QueryUnescape(rec.Header().Get(NotificationHeader))
	require.NoError(t, err)
	var n notify.Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, "Exportado!", n.Title)

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Matrícula", "Nome", "Email", "Telefone", "Saldo", "Status"}, rows[0])
	assert.Equal(t, []string{"1001", "Ana Lima", "ana@inovabank.com", "+5511988887777", "1000", "Ativo"}, rows[1])
	assert.Equal(t, []string{"1002", "Bruno Souza", "", "", "50", "Bloqueado"}, rows[2])
}

func TestExportXLSX(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/clients/export.xlsx", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestToggleBlock(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/admin/clients/"+anaID.String()+"/toggle-block", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	outcome := decode[client.Outcome](t, rec)
	assert.Equal(t, "Conta bloqueada", outcome.Notification.Title)
	assert.Equal(t, "A conta de Ana Lima foi bloqueada.", outcome.Notification.Description)
	require.NotNil(t, outcome.Client)
	assert.True(t, outcome.Client.Blocked)

	audit := s.store.auditLog()
	require.Len(t, audit, 1)
	assert.Equal(t, domain.ActionBlockUser, audit[0].Action)
	assert.Equal(t, "admin-1", audit[0].AdminID)
}

func TestToggleBlock_EnglishNotification(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/admin/clients/"+brunoID.String()+"/toggle-block", nil, admin("Accept-Language", "en-US"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Account unblocked", decode[client.Outcome](t, rec).Notification.Title)
}

func TestMutations_Failures(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name        string
		method      string
		path        string
		body        any
		status      int
		description string
	}{
		{
			name:        "toggle unknown client",
			method:      http.MethodPost,
			path:        "/api/admin/clients/" + uuid.NewString() + "/toggle-block",
			status:      http.StatusNotFound,
			description: "Não foi possível alterar o status da conta.",
		},
		{
			name:        "delete malformed id",
			method:      http.MethodDelete,
			path:        "/api/admin/clients/not-a-uuid",
			status:      http.StatusBadRequest,
			description: "Não foi possível excluir a conta.",
		},
		{
			name:        "update with invalid email",
			method:      http.MethodPut,
			path:        "/api/admin/clients/" + anaID.String(),
			body:        map[string]any{"full_name": "Ana", "email": "not-an-email"},
			status:      http.StatusBadRequest,
			description: "Não foi possível atualizar o usuário.",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, tc.body, admin())
			require.Equal(t, tc.status, rec.Code)

			body := decode[middleware.ErrorResponse](t, rec)
			assert.Equal(t, "Erro", body.Notification.Title)
			assert.Equal(t, tc.description, body.Notification.Description)
			assert.Equal(t, notify.VariantDestructive, body.Notification.Variant)
		})
	}

	assert.Empty(t, s.store.auditLog())
}

func TestUpdateAndForm(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/clients/"+anaID.String()+"/form", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	form := decode[client.EditForm](t, rec)
	assert.Equal(t, "Ana Lima", form.FullName)
	assert.Equal(t, "1000", form.InitialBalance)

	form.FullName = "Ana Lima Costa"
	form.SalaryDay = "5"
	form.SalaryAmount = "3500.00"

	rec = s.do(http.MethodPut, "/api/admin/clients/"+anaID.String(), form, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Usuário atualizado", decode[client.Outcome](t, rec).Notification.Title)

	stored, err := s.store.FindByID(context.Background(), anaID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima Costa", *stored.FullName)
	require.NotNil(t, stored.SalaryDay)
	assert.Equal(t, 5, *stored.SalaryDay)
}

func TestCreate_IsIdempotent(t *testing.T) {
	s := newTestServer(t)

	headers := admin(middleware.IdempotencyKeyHeader, "create-1")
	body := map[string]any{"full_name": "Carla Dias", "initial_balance": "10"}

	first := s.do(http.MethodPost, "/api/admin/clients", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	created := decode[client.Outcome](t, first)
	require.NotNil(t, created.Client)
	assert.Equal(t, "Cliente criado", created.Notification.Title)

	second := s.do(http.MethodPost, "/api/admin/clients", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(middleware.ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	all, err := s.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteAndDetails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/admin/clients/"+anaID.String()+"/details", nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	var details struct {
		Balance          decimal.Decimal      `json:"balance"`
		FormattedBalance string               `json:"formatted_balance"`
		Transactions     []domain.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "1134.56", details.Balance.String())
	assert.Equal(t, "R$ 1.134,56", details.FormattedBalance)
	assert.Len(t, details.Transactions, 2)

	rec = s.do(http.MethodDelete, "/api/admin/clients/"+anaID.String(), nil, admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Conta excluída", decode[client.Outcome](t, rec).Notification.Title)

	rec = s.do(http.MethodGet, "/api/admin/clients/"+anaID.String()+"/details", nil, admin())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/accounts/1001/summary", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[account.Summary](t, rec)
	assert.Equal(t, "1134.56", summary.Balance.String())

	rec = s.do(http.MethodGet, "/api/accounts/1001/transactions?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[map[string][]domain.Transaction](t, rec)
	assert.Len(t, txs["transactions"], 1)

	rec = s.do(http.MethodGet, "/api/accounts/1001/statement?from=2024-02-01&to=2024-02-01", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[account.Statement](t, rec)
	assert.Equal(t, "1000", st.OpeningBalance.String())
	assert.Equal(t, "1234.56", st.ClosingBalance.String())
	assert.Len(t, st.Transactions, 1)

	rec = s.do(http.MethodGet, "/api/accounts/1001/statement?from=2024-03-01&to=2024-02-01", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/accounts/1001/planner", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/accounts/9999/summary", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/accounts/abc/summary", nil, nil).Code)
}

func TestRequestSnapshot(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/admin/clients/snapshots", nil, admin())
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode[snapshotResponse](t, rec)
	assert.Equal(t, "task-1", body.TaskID)
	assert.Equal(t, "Exportação agendada", body.Notification.Title)
	assert.Equal(t, []string{"admin-1"}, s.snaps.requested)
}

func TestRequestSnapshot_JobsDisabled(t *testing.T) {
	log := discardLogger()
	store := newMemStore(fixtures()...)
	messages, err := i18n.Load(i18n.DefaultLang)
	require.NoError(t, err)

	engine := NewRouter(Options{
		Clients:  client.NewService(store, store, store, nil, nil, messages, log),
		Accounts: account.NewService(store, store, log),
		Errors:   apperrors.NewHandler(log, false),
		Messages: messages,
		Log:      log,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/clients/snapshots", nil)
	req.Header.Set(middleware.AdminIDHeader, "admin-1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[middleware.ErrorResponse](t, rec)
	assert.Equal(t, apperrors.CodeState, body.Error.Code)
	assert.Equal(t, "destructive", string(body.Notification.Variant))
}
