package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/metrics"
	"github.com/ashureev/finplan/internal/store"
	"github.com/google/uuid"
)

// MaxNameLength bounds a requested platform name, in characters.
const MaxNameLength = 120

var (
	ErrEmptyName       = errors.New("platform name is required")
	ErrNameTooLong     = fmt.Errorf("platform name exceeds %d characters", MaxNameLength)
	ErrUnknownCategory = errors.New("unknown platform category")
)

// Service records platform requests.
type Service struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a request service backed by repo.
func NewService(repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Request stores a free-text request for a platform in category.
func (s *Service) Request(ctx context.Context, sessionID string, category domain.PlatformCategory, name string) (domain.PlatformRequest, error) {
	if !category.Valid() {
		return domain.PlatformRequest{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PlatformRequest{}, ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return domain.PlatformRequest{}, ErrNameTooLong
	}

	req := domain.PlatformRequest{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Category:  category,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertPlatformRequest(ctx, &req); err != nil {
		return domain.PlatformRequest{}, err
	}

	metrics.PlatformRequestsTotal.WithLabelValues(string(category)).Inc()
	s.logger.Info("Platform requested", "category", category, "request_id", req.ID)
	return req, nil
}

// Popular lists the most requested unlisted platforms in category.
func (s *Service) Popular(ctx context.Context, category domain.PlatformCategory, limit int) ([]domain.PlatformDemand, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.repo.TopPlatformRequests(ctx, category, limit)
}
