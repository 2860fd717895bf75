package domain

import "time"

// FinancialPlan is the free-text plan returned by the planner.
type FinancialPlan struct {
	Markdown    string    `json:"markdown"`
	HTML        string    `json:"html,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
