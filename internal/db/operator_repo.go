package db

import (
	"context"
	"fmt"
	"time"

	"plotwatch/internal/messaging"
	"plotwatch/internal/types"
)

// OperatorRepository mirrors messaging session liveness onto the operator's
// user row. The columns exist for observability only.
type OperatorRepository struct {
	db  DBTX
	now func() time.Time
}

var _ messaging.SessionStore = (*OperatorRepository)(nil)

// NewOperatorRepository creates a new OperatorRepository.
func NewOperatorRepository(db DBTX) *OperatorRepository {
	return &OperatorRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// MarkSessionActive records a connected session.
func (r *OperatorRepository) MarkSessionActive(ctx context.Context, operatorID int64, sessionID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET whatsapp_session_active = TRUE,
		     whatsapp_session_id = $2,
		     whatsapp_last_connected = $3
		 WHERE user_id = $1`,
		operatorID,
		sessionID,
		r.now(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark session active", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundOperator, fmt.Sprintf("operator %d not found", operatorID), nil)
	}
	return nil
}

// MarkSessionInactive records that the operator's session is gone.
func (r *OperatorRepository) MarkSessionInactive(ctx context.Context, operatorID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET whatsapp_session_active = FALSE WHERE user_id = $1`,
		operatorID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark session inactive", err)
	}
	return nil
}

// IsOperator reports whether userID names a user with the operator role.
func (r *OperatorRepository) IsOperator(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1 AND role = $2)`,
		userID,
		string(types.RoleOperator),
	).Scan(&ok)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to look up operator", err)
	}
	return ok, nil
}
