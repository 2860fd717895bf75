package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/llm"
	"github.com/ashureev/finplan/internal/metrics"
	"github.com/ashureev/finplan/internal/search"
	"github.com/xeipuuv/gojsonschema"
)

// SearchToolName is the tool name the researcher calls for web searches.
const SearchToolName = "search_google"

// ErrInvalidResearchOutput is returned when the model's answer does not
// match the research result schema.
var ErrInvalidResearchOutput = errors.New("research output does not match schema")

const researcherRole = "Searches for financial advice, investment opportunities, and savings strategies based on user preferences"

const researcherDescription = `You are a world-class financial researcher. Given a user's financial goals and current financial situation,
generate a list of search terms for finding relevant financial advice, investment opportunities, and savings strategies.
Then search the web for each term, analyze the results, and return the %d most relevant results.`

// ResearchConfig configures a ResearchAgent.
type ResearchConfig struct {
	Model        string
	SearchTerms  int
	Limit        int
	MaxToolTurns int
	Logger       *slog.Logger
	Now          func() time.Time
}

// ResearchAgent derives search terms from the user's input, searches the web
// for each and reduces the findings to a bounded, ranked list.
type ResearchAgent struct {
	chat     llm.ChatClient
	searcher search.Searcher
	cfg      ResearchConfig
	schema   map[string]any
	logger   *slog.Logger
}

// researchOutput is the JSON shape requested from the model.
type researchOutput struct {
	Items []domain.ResearchItem `json:"items" jsonschema:"description=The most relevant results ranked from most to least relevant"`
}

// searchArgs are the arguments of the search tool.
type searchArgs struct {
	Query string `json:"query" jsonschema:"description=The search term to look up on Google"`
}

// NewResearchAgent creates a research agent. Only the search tool is bound.
func NewResearchAgent(chat llm.ChatClient, searcher search.Searcher, cfg ResearchConfig) *ResearchAgent {
	if cfg.SearchTerms <= 0 {
		cfg.SearchTerms = 3
	}
	if cfg.Limit <= 0 {
		cfg.Limit = domain.DefaultResearchLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ResearchAgent{
		chat:     chat,
		searcher: searcher,
		cfg:      cfg,
		schema:   llm.SchemaFor[researchOutput](),
		logger:   logger,
	}
}

func (r *ResearchAgent) instructions() []string {
	return []string{
		fmt.Sprintf("Given a user's financial goals and current financial situation, first generate a list of exactly %d search terms related to those goals.", r.cfg.SearchTerms),
		fmt.Sprintf("For each search term, `%s` and analyze the results.", SearchToolName),
		fmt.Sprintf("From the results of all searches, return the %d most relevant results to the user's preferences, without duplicates.", r.cfg.Limit),
		"Every result must have a title and the URL of its source.",
		"Remember: the quality of the results is important.",
	}
}

// queryLog collects the queries issued during one research run.
type queryLog struct {
	mu      sync.Mutex
	queries []string
}

func (q *queryLog) add(query string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, query)
}

func (q *queryLog) list() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queries...)
}

func (r *ResearchAgent) searchTool(log *queryLog) llm.Tool {
	return llm.NewFunctionTool(SearchToolName,
		"Search Google for a query and return the organic results with title, link and snippet.",
		func(ctx context.Context, args searchArgs) (string, error) {
			metrics.ToolCallsTotal.WithLabelValues(SearchToolName).Inc()
			log.add(args.Query)

			results, err := r.searcher.Search(ctx, args.Query)
			if err != nil {
				metrics.SearchesTotal.WithLabelValues("failure").Inc()
				return "", err
			}
			metrics.SearchesTotal.WithLabelValues("success").Inc()
			r.logger.Info("Search completed", "query_length", len(args.Query), "results", len(results))

			b, err := json.Marshal(results)
			if err != nil {
				return "", fmt.Errorf("encode search results: %w", err)
			}
			return string(b), nil
		})
}

// Research runs the research protocol for the given goals and situation.
func (r *ResearchAgent) Research(ctx context.Context, goals, situation string) (domain.ResearchResult, error) {
	log := &queryLog{}
	assistant := llm.NewAssistant(r.chat, llm.AssistantConfig{
		Name:         "Researcher",
		Role:         researcherRole,
		Description:  fmt.Sprintf(researcherDescription, r.cfg.Limit),
		Instructions: r.instructions(),
		Model:        r.cfg.Model,
		Tools:        []llm.Tool{r.searchTool(log)},
		Options: llm.Options{
			IncludeDatetime: true,
			MaxToolTurns:    r.cfg.MaxToolTurns,
			ResponseFormat:  llm.JSONSchemaFormat("research_results", r.schema),
		},
		Logger: r.logger,
		Now:    r.cfg.Now,
	})

	prompt := fmt.Sprintf("Financial goals: %s\nCurrent situation: %s", goals, situation)
	out, err := assistant.Run(ctx, prompt, nil)
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("research: %w", err)
	}

	result, err := r.parse(out)
	if err != nil {
		return domain.ResearchResult{}, err
	}
	result.Queries = log.list()
	result.RetrievedAt = r.cfg.Now()
	result.Normalize(r.cfg.Limit)
	return result, nil
}

func (r *ResearchAgent) parse(out string) (domain.ResearchResult, error) {
	out = strings.TrimSpace(out)
	validation, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(r.schema),
		gojsonschema.NewStringLoader(out),
	)
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("%w: %v", ErrInvalidResearchOutput, err)
	}
	if !validation.Valid() {
		msgs := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.ResearchResult{}, fmt.Errorf("%w: %s", ErrInvalidResearchOutput, strings.Join(msgs, "; "))
	}

	var parsed researchOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return domain.ResearchResult{}, fmt.Errorf("%w: %v", ErrInvalidResearchOutput, err)
	}
	return domain.ResearchResult{Items: parsed.Items}, nil
}
