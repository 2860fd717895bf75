package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/finplan/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const defaultMaxToolTurns = 8

var (
	// ErrNoChoices is returned when the provider answers without any choice.
	ErrNoChoices = errors.New("chat completion returned no choices")
	// ErrMaxTurnsExceeded is returned when the model keeps calling tools.
	ErrMaxTurnsExceeded = errors.New("max tool turns exceeded")
	// ErrEmptyResponse is returned when the final answer has no content.
	ErrEmptyResponse = errors.New("chat completion returned empty content")
)

// Options tune how an Assistant assembles its prompt.
type Options struct {
	// IncludeDatetime appends the current date and time to the instructions.
	IncludeDatetime bool
	// IncludeHistory sends prior exchanges as conversation turns.
	IncludeHistory bool
	// HistoryDepth bounds how many prior exchanges are sent.
	HistoryDepth int
	// MaxToolTurns bounds the number of model round trips that request tools.
	MaxToolTurns int
	// ResponseFormat optionally constrains the final answer format.
	ResponseFormat *openai.ChatCompletionResponseFormat
}

// AssistantConfig describes a configured assistant.
type AssistantConfig struct {
	Name         string
	Role         string
	Description  string
	Instructions []string
	Model        string
	Tools        []Tool
	Options      Options
	Logger       *slog.Logger
	// Now overrides the clock used for datetime context.
	Now func() time.Time
}

// Assistant wraps chat-completion calls with a fixed persona, instructions
// and optional tools.
type Assistant struct {
	cfg    AssistantConfig
	client ChatClient
	tools  map[string]Tool
	logger *slog.Logger
	now    func() time.Time
}

// NewAssistant creates an assistant backed by client.
func NewAssistant(client ChatClient, cfg AssistantConfig) *Assistant {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Options.MaxToolTurns <= 0 {
		cfg.Options.MaxToolTurns = defaultMaxToolTurns
	}

	tools := make(map[string]Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools[t.Name] = t
	}

	return &Assistant{
		cfg:    cfg,
		client: client,
		tools:  tools,
		logger: logger.With("assistant", cfg.Name),
		now:    now,
	}
}

// Name returns the assistant name.
func (a *Assistant) Name() string {
	return a.cfg.Name
}

// SystemPrompt builds the system message from description, role and instructions.
func (a *Assistant) SystemPrompt() string {
	var b strings.Builder
	if desc := strings.TrimSpace(a.cfg.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n")
	}
	if a.cfg.Role != "" {
		b.WriteString("Your role is: ")
		b.WriteString(a.cfg.Role)
		b.WriteString("\n")
	}

	instructions := append([]string(nil), a.cfg.Instructions...)
	if a.cfg.Options.IncludeDatetime {
		instructions = append(instructions, "The current time is "+a.now().Format(time.RFC1123)+".")
	}
	if len(instructions) > 0 {
		b.WriteString("\n## Instructions\n")
		for _, ins := range instructions {
			b.WriteString("- ")
			b.WriteString(ins)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// Messages assembles the conversation sent for a prompt.
func (a *Assistant) Messages(prompt string, history []domain.HistoryEntry) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.SystemPrompt()},
	}

	if a.cfg.Options.IncludeHistory {
		if depth := a.cfg.Options.HistoryDepth; depth > 0 && len(history) > depth {
			history = history[len(history)-depth:]
		}
		for _, h := range history {
			msgs = append(msgs,
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: h.Request},
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: h.Response},
			)
		}
	}

	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

// Run sends prompt and resolves tool calls until the model returns text.
func (a *Assistant) Run(ctx context.Context, prompt string, history []domain.HistoryEntry) (string, error) {
	messages := a.Messages(prompt, history)

	var toolDefs []openai.Tool
	for _, t := range a.cfg.Tools {
		toolDefs = append(toolDefs, t.definition())
	}

	for turn := 0; turn < a.cfg.Options.MaxToolTurns; turn++ {
		req := openai.ChatCompletionRequest{
			Model:          a.cfg.Model,
			Messages:       messages,
			Tools:          toolDefs,
			ResponseFormat: a.cfg.Options.ResponseFormat,
		}

		start := time.Now()
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("%s chat completion: %w", a.cfg.Name, err)
		}
		a.logger.Debug("Chat completion finished",
			"turn", turn,
			"duration_ms", time.Since(start).Milliseconds(),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		)
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(msg.Content) == "" {
				return "", ErrEmptyResponse
			}
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    a.invoke(ctx, call),
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("%s: %w (%d)", a.cfg.Name, ErrMaxTurnsExceeded, a.cfg.Options.MaxToolTurns)
}

func (a *Assistant) invoke(ctx context.Context, call openai.ToolCall) string {
	tool, ok := a.tools[call.Function.Name]
	if !ok {
		a.logger.Warn("Model requested unknown tool", "tool", call.Function.Name)
		return toolErrorMessage(fmt.Errorf("unknown tool %q", call.Function.Name))
	}

	a.logger.Info("Invoking tool", "tool", tool.Name, "call_id", call.ID)
	out, err := tool.Invoke(ctx, call.Function.Arguments)
	if err != nil {
		a.logger.Warn("Tool invocation failed", "tool", tool.Name, "error", err)
		return toolErrorMessage(err)
	}
	return out
}
