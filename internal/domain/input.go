package domain

import (
	"fmt"
	"strings"
)

// Field names one of the two free-text inputs.
type Field string

const (
	// FieldGoals is the single-line financial goals input.
	FieldGoals Field = "goals"
	// FieldSituation is the multi-line current situation input.
	FieldSituation Field = "situation"
)

// ParseField validates a field name from user input.
func ParseField(s string) (Field, bool) {
	switch Field(strings.ToLower(strings.TrimSpace(s))) {
	case FieldGoals:
		return FieldGoals, true
	case FieldSituation:
		return FieldSituation, true
	default:
		return "", false
	}
}

// UserInput is the current content of the goals and situation fields.
type UserInput struct {
	FinancialGoals   string `json:"financial_goals"`
	CurrentSituation string `json:"current_situation"`
}

// Set replaces the full value of a field.
func (u *UserInput) Set(field Field, value string) {
	switch field {
	case FieldGoals:
		u.FinancialGoals = value
	case FieldSituation:
		u.CurrentSituation = value
	}
}

// Get returns the value of a field.
func (u UserInput) Get(field Field) string {
	switch field {
	case FieldGoals:
		return u.FinancialGoals
	case FieldSituation:
		return u.CurrentSituation
	default:
		return ""
	}
}

// PlanRequest formats the input as the prompt sent to the planner.
// Empty values are passed through unchanged.
func (u UserInput) PlanRequest() string {
	return fmt.Sprintf("Financial goals: %s, Current situation: %s", u.FinancialGoals, u.CurrentSituation)
}
