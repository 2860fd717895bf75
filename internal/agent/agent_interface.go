package agent

import (
	"context"

	"github.com/ashureev/finplan/internal/domain"
)

// Researcher searches the web for material relevant to a user's goals.
type Researcher interface {
	Research(ctx context.Context, goals, situation string) (domain.ResearchResult, error)
}

// Planner drafts a personalized financial plan.
type Planner interface {
	Plan(ctx context.Context, goals, situation string, history []domain.HistoryEntry) (domain.FinancialPlan, error)
}

// Agents is the pair of agents built for one set of credentials.
type Agents struct {
	Researcher Researcher
	Planner    Planner
}

// Factory builds agents from session credentials.
type Factory interface {
	Build(creds domain.Credentials) (*Agents, error)
}

// Ensure the concrete agents implement their interfaces.
var (
	_ Researcher = (*ResearchAgent)(nil)
	_ Planner    = (*PlanningAgent)(nil)
	_ Factory    = (*OpenAIFactory)(nil)
)
