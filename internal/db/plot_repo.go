package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"plotwatch/internal/types"
)

// PlotRepository reads plots and their owners' contact details.
type PlotRepository struct {
	db DBTX
}

// NewPlotRepository creates a new PlotRepository.
func NewPlotRepository(db DBTX) *PlotRepository {
	return &PlotRepository{db: db}
}

// GetContact returns the plot joined with its owner's addresses. A plot
// without an owner row is reported as not found, since it cannot be routed.
func (r *PlotRepository) GetContact(ctx context.Context, plotID int64) (*types.PlotContact, error) {
	var (
		c                   types.PlotContact
		name, wa, email, ph *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT p.plant_id, p.plant_name, p.species, p.user_id, p.assigned_botanist_id,
		        u.full_name, u.whatsapp_number, u.email, u.phone
		 FROM plants p
		 JOIN users u ON u.user_id = p.user_id
		 WHERE p.plant_id = $1`,
		plotID,
	).Scan(
		&c.Plot.ID, &c.Plot.Name, &c.Plot.Species, &c.Plot.OwnerID, &c.Plot.OperatorID,
		&name, &wa, &email, &ph,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlot, fmt.Sprintf("plot %d not found", plotID), err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get plot contact", err)
	}
	c.Owner = types.RecipientAddresses{
		Name:     deref(name),
		WhatsApp: deref(wa),
		Email:    deref(email),
		Phone:    deref(ph),
	}
	return &c, nil
}

// CountByOwner returns how many plots the user owns.
func (r *PlotRepository) CountByOwner(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM plants WHERE user_id = $1`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count plots", err)
	}
	return n, nil
}
