package domain

import "time"

// PlatformCategory groups platforms in the directory.
type PlatformCategory string

const (
	// CategoryTrading covers stock trading platforms.
	CategoryTrading PlatformCategory = "trading"
	// CategoryCrypto covers cryptocurrency exchanges.
	CategoryCrypto PlatformCategory = "crypto"
)

// Valid reports whether c is a known category.
func (c PlatformCategory) Valid() bool {
	return c == CategoryTrading || c == CategoryCrypto
}

// Platform is a static directory entry pointing at an external platform.
type Platform struct {
	Name     string           `json:"name"`
	LogoURL  string           `json:"logo_url"`
	LinkURL  string           `json:"link_url"`
	Category PlatformCategory `json:"category"`
	Color    string           `json:"color"`
}

// PlatformRequest is a free-text request for a platform not in the directory.
type PlatformRequest struct {
	ID        string           `json:"id"`
	SessionID string           `json:"-"`
	Category  PlatformCategory `json:"category"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
}

// PlatformDemand is the number of requests recorded for a platform name.
type PlatformDemand struct {
	Name     string           `json:"name"`
	Category PlatformCategory `json:"category"`
	Count    int64            `json:"count"`
}
