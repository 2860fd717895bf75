// Package session holds per-browser planner state and orchestrates
// credential intake, voice input and plan generation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/finplan/internal/agent"
	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/metrics"
	"github.com/ashureev/finplan/internal/render"
	"github.com/ashureev/finplan/internal/speech"
)

// State is the orchestrator state of a session.
type State int

const (
	AwaitingCredentials State = iota
	Ready
	Generating
)

func (s State) String() string {
	switch s {
	case AwaitingCredentials:
		return "awaiting_credentials"
	case Ready:
		return "ready"
	case Generating:
		return "generating"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in API responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "awaiting_credentials":
		*s = AwaitingCredentials
	case "ready":
		*s = Ready
	case "generating":
		*s = Generating
	default:
		return fmt.Errorf("unknown session state %q", text)
	}
	return nil
}

var (
	// ErrMissingCredentials is returned when an action needs both credentials.
	ErrMissingCredentials = agent.ErrMissingCredentials
	// ErrBusy is returned when a plan is already being generated for the session.
	ErrBusy = errors.New("generation in progress")
	// ErrRecording is returned when a recording is already running for the session.
	ErrRecording = errors.New("recording in progress")
	// ErrUnknownCredential is returned for credential kinds other than chat and search.
	ErrUnknownCredential = errors.New("unknown credential kind")
	// ErrUnknownField is returned for fields other than goals and situation.
	ErrUnknownField = errors.New("unknown field")
)

// RecognizerFactory builds a speech recognizer authorized by the chat credential.
type RecognizerFactory func(chatAPIKey string) speech.Recognizer

// Deps are the collaborators shared by every session.
type Deps struct {
	Agents       agent.Factory
	Recognizers  RecognizerFactory
	HistoryDepth int
	PlanTimeout  time.Duration
	SpeechWait   time.Duration
	Logger       *slog.Logger
}

func (d *Deps) withDefaults() {
	if d.HistoryDepth <= 0 {
		d.HistoryDepth = domain.DefaultHistoryDepth
	}
	if d.PlanTimeout <= 0 {
		d.PlanTimeout = 3 * time.Minute
	}
	if d.SpeechWait <= 0 {
		d.SpeechWait = 5 * time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
}

// Session is the state of one browser session. All methods are safe for
// concurrent use.
type Session struct {
	id     string
	deps   *Deps
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	creds     domain.Credentials
	agents    *agent.Agents
	input     domain.UserInput
	history   *domain.ConversationHistory
	plan      *domain.FinancialPlan
	lastError string
	recording bool
	createdAt time.Time
}

// New creates a session awaiting credentials.
func New(id string, deps *Deps) *Session {
	deps.withDefaults()
	return &Session{
		id:        id,
		deps:      deps,
		logger:    deps.Logger.With("session_id", id),
		state:     AwaitingCredentials,
		history:   domain.NewConversationHistory(deps.HistoryDepth),
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current orchestrator state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetCredential stores a credential and rebuilds the agents when both are
// present. Clearing either one drops the agents.
func (s *Session) SetCredential(kind domain.CredentialKind, value string) error {
	if kind != domain.CredentialChat && kind != domain.CredentialSearch {
		return fmt.Errorf("%w: %q", ErrUnknownCredential, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds.Set(kind, value)
	s.agents = nil
	if s.creds.Present() {
		agents, err := s.deps.Agents.Build(s.creds)
		if err != nil {
			s.logger.Warn("Failed to build agents", "error", err)
		} else {
			s.agents = agents
		}
	}
	s.settle()

	s.logger.Info("Credential updated", "kind", kind, "set", value != "", "state", s.state)
	return nil
}

// settle moves the session out of AwaitingCredentials/Ready according to
// whether agents exist. A running generation keeps its state. Caller holds mu.
func (s *Session) settle() {
	if s.state == Generating {
		return
	}
	if s.agents != nil {
		s.state = Ready
	} else {
		s.state = AwaitingCredentials
	}
}

// SetField replaces the full value of an input field.
func (s *Session) SetField(field domain.Field, value string) error {
	if field != domain.FieldGoals && field != domain.FieldSituation {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input.Set(field, value)
	return nil
}

// Record captures a phrase and writes its transcript into field. On
// failure the field is left unchanged and the error is returned.
func (s *Session) Record(ctx context.Context, field domain.Field, capturer speech.Capturer) (string, error) {
	if field != domain.FieldGoals && field != domain.FieldSituation {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	s.mu.Lock()
	if !s.creds.Present() {
		s.mu.Unlock()
		return "", ErrMissingCredentials
	}
	if s.recording {
		s.mu.Unlock()
		return "", ErrRecording
	}
	s.recording = true
	chatKey := s.creds.ChatAPIKey
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.recording = false
		s.mu.Unlock()
	}()

	transcriber := speech.NewTranscriber(s.deps.Recognizers(chatKey), s.deps.SpeechWait, s.logger)
	text, err := transcriber.Transcribe(ctx, capturer)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.input.Set(field, text)
	s.mu.Unlock()

	s.logger.Info("Voice input transcribed", "field", field, "chars", len(text))
	return text, nil
}

// Generate runs the planner on the current input. Only one generation may
// run at a time per session. The provider call is detached from ctx
// cancellation and bounded by the plan timeout.
func (s *Session) Generate(ctx context.Context) (domain.FinancialPlan, error) {
	s.mu.Lock()
	if s.state == Generating {
		s.mu.Unlock()
		return domain.FinancialPlan{}, ErrBusy
	}
	if s.agents == nil {
		s.mu.Unlock()
		return domain.FinancialPlan{}, ErrMissingCredentials
	}
	s.state = Generating
	planner := s.agents.Planner
	input := s.input
	history := s.history.Entries()
	s.mu.Unlock()

	start := time.Now()
	plan, err := s.runPlanner(ctx, planner, input, history)
	metrics.PlanDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Ready
	s.settle()

	if err != nil {
		metrics.PlansTotal.WithLabelValues("failure").Inc()
		s.lastError = err.Error()
		s.logger.Error("Plan generation failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return domain.FinancialPlan{}, err
	}

	metrics.PlansTotal.WithLabelValues("success").Inc()
	s.history.Append(domain.HistoryEntry{Request: input.PlanRequest(), Response: plan.Markdown})
	s.plan = &plan
	s.lastError = ""
	s.logger.Info("Plan generated", "duration_ms", time.Since(start).Milliseconds(), "history", s.history.Len())
	return plan, nil
}

func (s *Session) runPlanner(ctx context.Context, planner agent.Planner, input domain.UserInput, history []domain.HistoryEntry) (domain.FinancialPlan, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.PlanTimeout)
	defer cancel()

	plan, err := planner.Plan(ctx, input.FinancialGoals, input.CurrentSituation, history)
	if err != nil {
		return domain.FinancialPlan{}, err
	}
	html, err := render.Markdown(plan.Markdown)
	if err != nil {
		return domain.FinancialPlan{}, err
	}
	plan.HTML = html
	return plan, nil
}

// History returns the retained exchanges, oldest first.
func (s *Session) History() []domain.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// View is the client-visible state of a session. Credentials are masked.
type View struct {
	ID          string                   `json:"id"`
	State       State                    `json:"state"`
	Credentials domain.MaskedCredentials `json:"credentials"`
	Input       domain.UserInput         `json:"input"`
	Plan        *domain.FinancialPlan    `json:"plan,omitempty"`
	LastError   string                   `json:"last_error,omitempty"`
	HistoryLen  int                      `json:"history_len"`
	Recording   bool                     `json:"recording"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:          s.id,
		State:       s.state,
		Credentials: s.creds.Masked(),
		Input:       s.input,
		LastError:   s.lastError,
		HistoryLen:  s.history.Len(),
		Recording:   s.recording,
	}
	if s.plan != nil {
		p := *s.plan
		v.Plan = &p
	}
	return v
}

// wipe drops credentials and everything derived from them.
func (s *Session) wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = domain.Credentials{}
	s.agents = nil
	s.input = domain.UserInput{}
	s.history.Reset()
	s.plan = nil
	s.lastError = ""
	s.settle()
}
