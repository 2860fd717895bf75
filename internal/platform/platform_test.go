package platform

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu       sync.Mutex
	requests []domain.PlatformRequest
	err      error
}

func (m *memRepo) InsertPlatformRequest(_ context.Context, req *domain.PlatformRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, *req)
	return nil
}

func (m *memRepo) TopPlatformRequests(_ context.Context, category domain.PlatformCategory, limit int) ([]domain.PlatformDemand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PlatformDemand
	for _, r := range m.requests {
		if r.Category == category && len(out) < limit {
			out = append(out, domain.PlatformDemand{Name: r.Name, Category: category, Count: 1})
		}
	}
	return out, nil
}

func (m *memRepo) DeletePlatformRequestsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.requests[:0]
	var deleted int64
	for _, r := range m.requests {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.requests = kept
	return deleted, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

func TestListHasBothSections(t *testing.T) {
	dir := List()
	require.Len(t, dir.Sections, 2)
	assert.Equal(t, Disclaimer, dir.Disclaimer)

	trading := dir.Sections[0]
	assert.Equal(t, domain.CategoryTrading, trading.Category)
	var names []string
	for _, p := range trading.Platforms {
		names = append(names, p.Name)
		assert.True(t, strings.HasPrefix(p.LinkURL, "https://"))
		assert.NotEmpty(t, p.LogoURL)
	}
	assert.Equal(t, []string{"Kite by Zerodha", "Upstox", "Groww", "Angel One"}, names)

	crypto := dir.Sections[1]
	assert.Len(t, crypto.Platforms, 3)
	assert.Equal(t, "Binance", crypto.Platforms[2].Name)
}

func TestListReturnsCopies(t *testing.T) {
	dir := List()
	dir.Sections[0].Platforms[0].Name = "changed"
	assert.Equal(t, "Kite by Zerodha", List().Sections[0].Platforms[0].Name)
}

func TestRequestValidatesInput(t *testing.T) {
	svc := NewService(&memRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Request(ctx, "s", domain.PlatformCategory("forex"), "OANDA")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = svc.Request(ctx, "s", domain.CategoryTrading, "   ")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = svc.Request(ctx, "s", domain.CategoryTrading, strings.Repeat("x", MaxNameLength+1))
	assert.ErrorIs(t, err, ErrNameTooLong)

	_, err = svc.Request(ctx, "s", domain.CategoryTrading, strings.Repeat("é", MaxNameLength))
	assert.NoError(t, err)
}

func TestRequestStoresTrimmedName(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, nil)
	fixed := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	req, err := svc.Request(context.Background(), "sess-1", domain.CategoryCrypto, "  WazirX ")
	require.NoError(t, err)
	assert.Equal(t, "WazirX", req.Name)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, fixed, req.CreatedAt)

	require.Len(t, repo.requests, 1)
	assert.Equal(t, "sess-1", repo.requests[0].SessionID)
}

func TestRequestPropagatesStoreError(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	_, err := NewService(repo, nil).Request(context.Background(), "s", domain.CategoryCrypto, "Kraken")
	assert.ErrorIs(t, err, repo.err)
}

func TestPopular(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()
	_, _ = svc.Request(ctx, "s", domain.CategoryCrypto, "Kraken")
	_, _ = svc.Request(ctx, "s", domain.CategoryTrading, "Dhan")

	got, err := svc.Popular(ctx, domain.CategoryCrypto, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kraken", got[0].Name)

	_, err = svc.Popular(ctx, "bonds", 5)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestPruneRequests(t *testing.T) {
	repo := &memRepo{requests: []domain.PlatformRequest{
		{ID: "old", CreatedAt: time.Now().Add(-100 * 24 * time.Hour)},
		{ID: "new", CreatedAt: time.Now()},
	}}
	pruneRequests(context.Background(), repo, 90*24*time.Hour)
	require.Len(t, repo.requests, 1)
	assert.Equal(t, "new", repo.requests[0].ID)
}
