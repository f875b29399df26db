// Package idempotency replays the stored response of a mutating request when
// the same Idempotency-Key is sent again.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LockTTL bounds how long an in-flight request holds its key.
const LockTTL = 5 * time.Minute

var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Response is the stored outcome of an operation.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Operation produces the response to store. When it returns an error the
// response is handed back but not stored, so the request can be retried.
type Operation func(ctx context.Context) (*Response, error)

type Result struct {
	Response  *Response
	FromCache bool
}

type Manager interface {
	Execute(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fn Operation,
	) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Response: record.Response, FromCache: true}, nil
	}

	release, err := m.store.Claim(ctx, key, LockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.log.Warn("idempotency claim release failed", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// The previous holder may have stored its response between Get and Claim.
	record, err = m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Response: record.Response, FromCache: true}, nil
	}

	response, opErr := fn(ctx)
	if opErr != nil {
		return &Result{Response: response}, opErr
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: response,
	}, ttl); err != nil {
		m.log.Error("idempotency record store failed", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Response: response}, nil
}
