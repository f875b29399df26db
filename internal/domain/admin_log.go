package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdminAction names an audited administrative operation.
type AdminAction string

const (
	ActionEditUser    AdminAction = "edit_user"
	ActionBlockUser   AdminAction = "block_user"
	ActionUnblockUser AdminAction = "unblock_user"
	ActionDeleteUser  AdminAction = "delete_user"
	ActionCreateUser  AdminAction = "create_user"
)

// AdminLog is an audit trail entry of an administrative action.
type AdminLog struct {
	ID           int64          `json:"id"`
	AdminID      string         `json:"admin_id"`
	Action       AdminAction    `json:"action"`
	TargetUserID uuid.UUID      `json:"target_user_id"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
