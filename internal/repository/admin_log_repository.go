package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
)

// AdminLogRepository appends entries to the admin audit trail.
type AdminLogRepository interface {
	Append(ctx context.Context, entry domain.AdminLog) error
}

type adminLogRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAdminLogRepository creates a new SQL-backed audit log repository.
func NewAdminLogRepository(db *sql.DB, log *slog.Logger) AdminLogRepository {
	return &adminLogRepository{db: db, log: log}
}

// Append stores entry; details are kept as JSONB.
func (r *adminLogRepository) Append(ctx context.Context, entry domain.AdminLog) error {
	const query = `
		INSERT INTO admin_logs (admin_id, action, target_user_id, details)
		VALUES ($1, $2, $3, $4)
	`

	var details []byte
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("encode admin log details: %v", err))
		}
		details = encoded
	}

	var target any
	if entry.TargetUserID != uuid.Nil {
		target = entry.TargetUserID
	}

	if _, err := r.db.ExecContext(ctx, query, entry.AdminID, string(entry.Action), target, details); err != nil {
		if r.log != nil {
			r.log.Error("failed to append admin log",
				slog.String("action", string(entry.Action)),
				slog.String("target_user_id", entry.TargetUserID.String()),
				slog.Any("error", err),
			)
		}
		return apperrors.NewDatabaseError(fmt.Errorf("insert admin log: %w", err))
	}

	return nil
}
