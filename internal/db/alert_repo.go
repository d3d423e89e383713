package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"plotwatch/internal/types"
)

// AlertRepository persists alerts. Alerts are never deleted and their status
// only moves forward.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates a new AlertRepository backed by the given
// database connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `a.alert_id, a.plant_id, a.message, a.type, a.priority, a.status,
	a.scheduled_time, a.created_by_botanist_id, a.created_at`

// Create inserts the alert and fills in ID and CreatedAt.
func (r *AlertRepository) Create(ctx context.Context, a *types.Alert) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO alerts (plant_id, message, type, priority, status, scheduled_time, created_by_botanist_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING alert_id, created_at`,
		a.PlotID,
		a.Message,
		string(a.Type),
		string(a.Priority),
		string(a.Status),
		a.ScheduledTime,
		a.CreatedBy,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	return nil
}

// GetByID returns one alert.
func (r *AlertRepository) GetByID(ctx context.Context, id int64) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts a WHERE a.alert_id = $1`, id)

	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, fmt.Sprintf("alert %d not found", id), err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get alert", err)
	}
	return a, nil
}

// ListByPlot returns a plot's alerts, newest first. An empty status lists
// every status.
func (r *AlertRepository) ListByPlot(ctx context.Context, plotID int64, status types.AlertStatus) ([]*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a WHERE a.plant_id = $1`
	args := []any{plotID}
	if status != "" {
		query += ` AND a.status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY a.created_at DESC, a.alert_id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
	}
	defer rows.Close()

	out := make([]*types.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate alerts", err)
	}
	return out, nil
}

// ListDue returns pending alerts whose scheduled time is at or before now,
// ordered by (scheduled_time, alert_id). Plot and owner are LEFT JOINed so a
// dangling alert still comes back, with a nil Contact.
func (r *AlertRepository) ListDue(ctx context.Context, now time.Time) ([]types.DueAlert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+`,
		        p.plant_id, p.plant_name, p.species, p.user_id, p.assigned_botanist_id,
		        u.user_id, u.full_name, u.whatsapp_number, u.email, u.phone
		 FROM alerts a
		 LEFT JOIN plants p ON p.plant_id = a.plant_id
		 LEFT JOIN users u ON u.user_id = p.user_id
		 WHERE a.status = 'pending'
		   AND a.scheduled_time IS NOT NULL
		   AND a.scheduled_time <= $1
		 ORDER BY a.scheduled_time, a.alert_id`,
		now,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due alerts", err)
	}
	defer rows.Close()

	var out []types.DueAlert
	for rows.Next() {
		var (
			a                     alertRow
			plotID, ownerID, opID *int64
			userID                *int64
			plotName, species     *string
			name, wa, email, ph   *string
		)
		err := rows.Scan(
			&a.id, &a.plotID, &a.message, &a.alertType, &a.priority, &a.status,
			&a.scheduledTime, &a.createdBy, &a.createdAt,
			&plotID, &plotName, &species, &ownerID, &opID,
			&userID, &name, &wa, &email, &ph,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan due alert", err)
		}

		due := types.DueAlert{Alert: a.toAlert()}
		if plotID != nil && userID != nil {
			due.Contact = &types.PlotContact{
				Plot: types.Plot{
					ID:         *plotID,
					Name:       deref(plotName),
					Species:    deref(species),
					OwnerID:    *userID,
					OperatorID: opID,
				},
				Owner: types.RecipientAddresses{
					Name:     deref(name),
					WhatsApp: deref(wa),
					Email:    deref(email),
					Phone:    deref(ph),
				},
			}
		}
		out = append(out, due)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate due alerts", err)
	}
	return out, nil
}

// MarkSent moves a pending alert to sent. It reports false when the alert
// was no longer pending, so concurrent ticks can never mark one twice.
func (r *AlertRepository) MarkSent(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE alerts SET status = 'sent' WHERE alert_id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark alert sent", err)
	}
	return tag.RowsAffected() == 1, nil
}

type alertRow struct {
	id            int64
	plotID        int64
	message       string
	alertType     string
	priority      string
	status        string
	scheduledTime *time.Time
	createdBy     *int64
	createdAt     time.Time
}

func (a alertRow) toAlert() types.Alert {
	return types.Alert{
		ID:            a.id,
		PlotID:        a.plotID,
		Message:       a.message,
		Type:          types.AlertType(a.alertType),
		Priority:      types.Priority(a.priority),
		Status:        types.AlertStatus(a.status),
		ScheduledTime: a.scheduledTime,
		CreatedBy:     a.createdBy,
		CreatedAt:     a.createdAt,
	}
}

func scanAlert(row pgx.Row) (*types.Alert, error) {
	var a alertRow
	if err := row.Scan(
		&a.id, &a.plotID, &a.message, &a.alertType, &a.priority, &a.status,
		&a.scheduledTime, &a.createdBy, &a.createdAt,
	); err != nil {
		return nil, err
	}
	alert := a.toAlert()
	return &alert, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
