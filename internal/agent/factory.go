package agent

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/finplan/internal/config"
	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/llm"
	"github.com/ashureev/finplan/internal/search"
)

// ErrMissingCredentials is returned when agents are requested without both
// provider credentials.
var ErrMissingCredentials = errors.New("missing credentials")

// OpenAIFactory builds agents backed by OpenAI chat completions and SerpAPI.
type OpenAIFactory struct {
	cfg    config.AgentConfig
	logger *slog.Logger
}

// NewOpenAIFactory creates a factory for the given agent configuration.
func NewOpenAIFactory(cfg config.AgentConfig, logger *slog.Logger) *OpenAIFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIFactory{cfg: cfg, logger: logger}
}

// Build constructs the research and planning agents. Construction is only
// attempted when both credentials are non-empty; key validity is checked
// by the providers at call time.
func (f *OpenAIFactory) Build(creds domain.Credentials) (*Agents, error) {
	if !creds.Present() {
		return nil, ErrMissingCredentials
	}

	chat := llm.NewOpenAIClient(creds.ChatAPIKey, f.cfg.OpenAIBaseURL)
	searcher, err := search.NewClient(search.Config{
		APIKey:     creds.SearchAPIKey,
		BaseURL:    f.cfg.SearchBaseURL,
		Timeout:    f.cfg.SearchTimeout,
		NumResults: f.cfg.ResultsPerTerm,
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	researcher := NewResearchAgent(chat, searcher, ResearchConfig{
		Model:        f.cfg.ChatModel,
		SearchTerms:  f.cfg.SearchTerms,
		Limit:        f.cfg.ResearchLimit,
		MaxToolTurns: f.cfg.MaxToolTurns,
		Logger:       f.logger.With("agent", "researcher"),
	})
	planner := NewPlanningAgent(chat, researcher, PlanningConfig{
		Model:        f.cfg.ChatModel,
		HistoryDepth: f.cfg.HistoryDepth,
		MaxToolTurns: f.cfg.MaxToolTurns,
		Logger:       f.logger.With("agent", "planner"),
	})

	return &Agents{Researcher: researcher, Planner: planner}, nil
}
