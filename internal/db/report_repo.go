package db

import (
	"context"
	"time"

	"plotwatch/internal/types"
)

// ReportScheduleRepository persists recurring report subscriptions.
type ReportScheduleRepository struct {
	db DBTX
}

// NewReportScheduleRepository creates a new ReportScheduleRepository.
func NewReportScheduleRepository(db DBTX) *ReportScheduleRepository {
	return &ReportScheduleRepository{db: db}
}

// DefaultReportFormat is stored when a schedule names no format.
const DefaultReportFormat = "csv"

// Create inserts a schedule and fills in its ID.
func (r *ReportScheduleRepository) Create(ctx context.Context, s *types.ReportSchedule) error {
	if s.Format == "" {
		s.Format = DefaultReportFormat
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO report_schedules (user_id, botanist_id, report_type, format, last_sent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING schedule_id`,
		s.UserID,
		s.OperatorID,
		string(s.ReportType),
		s.Format,
		s.LastSent,
	).Scan(&s.ID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create report schedule", err)
	}
	return nil
}

// ListDue returns schedules due at now joined with the subscriber's
// addresses. The cutoffs mirror ReportSchedule.IsDue: never sent, or last
// sent at least one cadence ago. Unknown report types use the weekly
// cadence. Cutoffs are computed in Go to avoid interval arithmetic in SQL.
func (r *ReportScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]types.ReportRecipient, error) {
	weeklyCutoff := now.Add(-types.WeeklyCadence)
	monthlyCutoff := now.Add(-types.MonthlyCadence)

	rows, err := r.db.Query(ctx,
		`SELECT rs.schedule_id, rs.user_id, rs.botanist_id, rs.report_type, rs.format, rs.last_sent,
		        u.full_name, u.whatsapp_number, u.email, u.phone
		 FROM report_schedules rs
		 JOIN users u ON u.user_id = rs.user_id
		 WHERE rs.last_sent IS NULL
		    OR (rs.report_type = 'monthly' AND rs.last_sent <= $2)
		    OR (rs.report_type <> 'monthly' AND rs.last_sent <= $1)
		 ORDER BY rs.schedule_id`,
		weeklyCutoff,
		monthlyCutoff,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due report schedules", err)
	}
	defer rows.Close()

	var out []types.ReportRecipient
	for rows.Next() {
		var (
			s                   types.ReportSchedule
			reportType, format  string
			name, wa, email, ph *string
		)
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.OperatorID, &reportType, &format, &s.LastSent,
			&name, &wa, &email, &ph,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan report schedule", err)
		}
		s.ReportType = types.ReportType(reportType)
		s.Format = format
		if s.Format == "" {
			s.Format = DefaultReportFormat
		}
		out = append(out, types.ReportRecipient{
			Schedule: s,
			Addresses: types.RecipientAddresses{
				Name:     deref(name),
				WhatsApp: deref(wa),
				Email:    deref(email),
				Phone:    deref(ph),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate report schedules", err)
	}
	return out, nil
}

// UpdateLastSent stamps the schedule as dispatched at sentAt.
func (r *ReportScheduleRepository) UpdateLastSent(ctx context.Context, scheduleID int64, sentAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE report_schedules SET last_sent = $2 WHERE schedule_id = $1`,
		scheduleID,
		sentAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update report last_sent", err)
	}
	return nil
}
