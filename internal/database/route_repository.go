package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/roadpass/booking-backend/internal/models"
)

// RouteRepository handles database operations for the routes table
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// GetByID retrieves a route by ID
func (r *RouteRepository) GetByID(routeID string) (*models.Route, error) {
	query := `
		SELECT id, origin, destination, fare, active, created_at
		FROM routes
		WHERE id = $1
	`

	route := &models.Route{}
	err := r.db.QueryRow(query, routeID).Scan(
		&route.ID, &route.Origin, &route.Destination,
		&route.Fare, &route.Active, &route.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}

	return route, nil
}
