// Package domain contains core domain types for the finance planner.
package domain

import "strings"

// CredentialKind identifies which provider a credential authorizes.
type CredentialKind string

const (
	// CredentialChat authorizes chat-completion and speech recognition calls.
	CredentialChat CredentialKind = "chat"
	// CredentialSearch authorizes web search calls.
	CredentialSearch CredentialKind = "search"
)

// ParseCredentialKind validates a credential kind from user input.
func ParseCredentialKind(s string) (CredentialKind, bool) {
	switch CredentialKind(strings.ToLower(strings.TrimSpace(s))) {
	case CredentialChat:
		return CredentialChat, true
	case CredentialSearch:
		return CredentialSearch, true
	default:
		return "", false
	}
}

// Credentials holds the provider secrets entered for one session.
// They live in memory only and are never written to storage or logs.
type Credentials struct {
	ChatAPIKey   string
	SearchAPIKey string
}

// Present returns true if both credentials are non-empty.
func (c Credentials) Present() bool {
	return c.ChatAPIKey != "" && c.SearchAPIKey != ""
}

// Set replaces the value for the given kind.
func (c *Credentials) Set(kind CredentialKind, value string) {
	switch kind {
	case CredentialChat:
		c.ChatAPIKey = value
	case CredentialSearch:
		c.SearchAPIKey = value
	}
}

// MaskedCredentials is the display form of Credentials.
type MaskedCredentials struct {
	Chat   string `json:"chat"`
	Search string `json:"search"`
}

// Masked returns a representation safe to render or serialize.
func (c Credentials) Masked() MaskedCredentials {
	return MaskedCredentials{
		Chat:   MaskSecret(c.ChatAPIKey),
		Search: MaskSecret(c.SearchAPIKey),
	}
}

// MaskSecret hides a secret entirely, keeping only whether it is set.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
