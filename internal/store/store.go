// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/finplan/internal/domain"
)

// Repository persists platform requests. Credentials, inputs, plans and
// conversation history are never stored.
type Repository interface {
	// InsertPlatformRequest stores a free-text platform request.
	InsertPlatformRequest(ctx context.Context, req *domain.PlatformRequest) error

	// TopPlatformRequests returns the most requested names in a category,
	// most requested first.
	TopPlatformRequests(ctx context.Context, category domain.PlatformCategory, limit int) ([]domain.PlatformDemand, error)

	// DeletePlatformRequestsBefore removes requests created before cutoff.
	DeletePlatformRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
