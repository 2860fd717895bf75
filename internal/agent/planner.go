package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/llm"
	"github.com/ashureev/finplan/internal/metrics"
)

// ResearchToolName is the tool name the planner may call to run research.
const ResearchToolName = "research_financial_options"

const plannerRole = "Generates a personalized financial plan based on user preferences and research results"

const plannerDescription = `You are a senior financial planner. Given a user's financial goals, current financial situation, and a list of research results,
your goal is to generate a personalized financial plan that meets the user's needs and preferences.`

var plannerInstructions = []string{
	"Given a user's financial goals, current financial situation, and a list of research results, generate a personalized financial plan that includes suggested budgets, investment plans, and savings strategies.",
	fmt.Sprintf("When you need current facts, call `%s` to get ranked research results with sources.", ResearchToolName),
	"Ensure the plan is well-structured, informative, and engaging.",
	"Ensure you provide a nuanced and balanced plan, quoting facts where possible.",
	"Remember: the quality of the plan is important.",
	"Focus on clarity, coherence, and overall quality.",
	"Never make up facts or plagiarize. Always provide proper attribution.",
}

// PlanningConfig configures a PlanningAgent.
type PlanningConfig struct {
	Model        string
	HistoryDepth int
	MaxToolTurns int
	Logger       *slog.Logger
	Now          func() time.Time
}

// PlanningAgent drafts a financial plan from goals, situation and recent
// conversation history. It may call the research agent as a tool.
type PlanningAgent struct {
	assistant *llm.Assistant
	now       func() time.Time
}

// researchArgs are the arguments of the research tool.
type researchArgs struct {
	Goals     string `json:"goals" jsonschema:"description=The user's financial goals"`
	Situation string `json:"situation" jsonschema:"description=The user's current financial situation"`
}

// NewPlanningAgent creates a planning agent. A nil researcher leaves the
// planner without tools.
func NewPlanningAgent(chat llm.ChatClient, researcher Researcher, cfg PlanningConfig) *PlanningAgent {
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = domain.DefaultHistoryDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var tools []llm.Tool
	if researcher != nil {
		tools = append(tools, researchTool(researcher))
	}

	return &PlanningAgent{
		assistant: llm.NewAssistant(chat, llm.AssistantConfig{
			Name:         "Planner",
			Role:         plannerRole,
			Description:  plannerDescription,
			Instructions: plannerInstructions,
			Model:        cfg.Model,
			Tools:        tools,
			Options: llm.Options{
				IncludeDatetime: true,
				IncludeHistory:  true,
				HistoryDepth:    cfg.HistoryDepth,
				MaxToolTurns:    cfg.MaxToolTurns,
			},
			Logger: cfg.Logger,
			Now:    cfg.Now,
		}),
		now: cfg.Now,
	}
}

// researchTool exposes a Researcher to the planner model.
func researchTool(researcher Researcher) llm.Tool {
	return llm.NewFunctionTool(ResearchToolName,
		"Search the web for financial advice, investment opportunities and savings strategies relevant to the user. Returns up to 10 ranked results with sources.",
		func(ctx context.Context, args researchArgs) (string, error) {
			metrics.ToolCallsTotal.WithLabelValues(ResearchToolName).Inc()
			result, err := researcher.Research(ctx, args.Goals, args.Situation)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("encode research result: %w", err)
			}
			return string(b), nil
		})
}

// Plan drafts a plan. Empty goals or situation are passed through as-is.
func (p *PlanningAgent) Plan(ctx context.Context, goals, situation string, history []domain.HistoryEntry) (domain.FinancialPlan, error) {
	input := domain.UserInput{FinancialGoals: goals, CurrentSituation: situation}
	text, err := p.assistant.Run(ctx, input.PlanRequest(), history)
	if err != nil {
		return domain.FinancialPlan{}, fmt.Errorf("plan: %w", err)
	}
	return domain.FinancialPlan{
		Markdown:    text,
		GeneratedAt: p.now(),
	}, nil
}

// SystemPrompt returns the planner's system message, for diagnostics.
func (p *PlanningAgent) SystemPrompt() string {
	return p.assistant.SystemPrompt()
}
