package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ashureev/finplan/internal/agent"
	"github.com/ashureev/finplan/internal/config"
	"github.com/ashureev/finplan/internal/domain"
	"github.com/ashureev/finplan/internal/platform"
	"github.com/ashureev/finplan/internal/session"
	"github.com/ashureev/finplan/internal/speech"
	"github.com/ashureev/finplan/internal/speech/mic"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a financial plan",
	Long: `Generate a personalized financial plan. Fields not given as flags are
recorded from the microphone when --voice is set.`,
	RunE: runPlan,
}

var recordCmd = &cobra.Command{
	Use:       "record <goals|situation>",
	Short:     "Transcribe one spoken phrase",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(domain.FieldGoals), string(domain.FieldSituation)},
	RunE:      runRecord,
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List trading and cryptocurrency platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		printDirectory(cmd.OutOrStdout(), platform.List())
		return nil
	},
}

func init() {
	planCmd.Flags().String("goals", "", "Your financial goals")
	planCmd.Flags().String("situation", "", "Your current financial situation")
	planCmd.Flags().Bool("voice", false, "Record missing fields from the microphone")
}

// newSession builds a single session wired to the configured providers and
// loads the credentials from flags or the environment.
func newSession(cmd *cobra.Command) (*session.Session, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	sess := session.New("cli", &session.Deps{
		Agents: agent.NewOpenAIFactory(cfg.Agent, slog.Default()),
		Recognizers: func(chatAPIKey string) speech.Recognizer {
			return speech.NewWhisperRecognizer(chatAPIKey, cfg.Agent.OpenAIBaseURL, cfg.Speech.TranscriptionModel)
		},
		HistoryDepth: cfg.Agent.HistoryDepth,
		PlanTimeout:  cfg.PlanTimeout,
		SpeechWait:   cfg.Speech.WaitTimeout,
		Logger:       slog.Default(),
	})

	creds := []struct {
		kind domain.CredentialKind
		flag string
		env  string
	}{
		{domain.CredentialChat, "openai-key", "OPENAI_API_KEY"},
		{domain.CredentialSearch, "serpapi-key", "SERPAPI_API_KEY"},
	}
	for _, c := range creds {
		value, _ := cmd.Flags().GetString(c.flag)
		if value == "" {
			value = os.Getenv(c.env)
		}
		if err := sess.SetCredential(c.kind, strings.TrimSpace(value)); err != nil {
			return nil, nil, err
		}
	}
	if sess.State() == session.AwaitingCredentials {
		return nil, nil, fmt.Errorf("%w: set OPENAI_API_KEY and SERPAPI_API_KEY", session.ErrMissingCredentials)
	}
	return sess, cfg, nil
}

func newMic(cfg *config.Config) *mic.Capturer {
	return mic.New(mic.Config{
		MaxPhrase:       cfg.Speech.MaxPhrase,
		EnergyThreshold: float64(cfg.Speech.EnergyThreshold),
	})
}

func recordField(ctx context.Context, w io.Writer, sess *session.Session, capturer speech.Capturer, field domain.Field) (string, error) {
	fmt.Fprintf(w, "Listening for %s... Speak now!\n", field)
	text, err := sess.Record(ctx, field, capturer)
	if err != nil {
		if kind, ok := speech.KindOf(err); ok {
			return "", errors.New(kind.Message())
		}
		return "", err
	}
	fmt.Fprintf(w, "Transcribed: %s\n", text)
	return text, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sess, cfg, err := newSession(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	voice, _ := cmd.Flags().GetBool("voice")

	for _, field := range []domain.Field{domain.FieldGoals, domain.FieldSituation} {
		value, _ := cmd.Flags().GetString(string(field))
		if value == "" && voice {
			if _, err := recordField(ctx, out, sess, newMic(cfg), field); err != nil {
				return err
			}
			continue
		}
		if err := sess.SetField(field, value); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Generating your personalized financial plan...")
	plan, err := sess.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, plan.Markdown)
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	field, ok := domain.ParseField(args[0])
	if !ok {
		return session.ErrUnknownField
	}
	sess, cfg, err := newSession(cmd)
	if err != nil {
		return err
	}
	_, err = recordField(ctx, cmd.OutOrStdout(), sess, newMic(cfg), field)
	return err
}

func printDirectory(w io.Writer, dir platform.Directory) {
	for _, section := range dir.Sections {
		fmt.Fprintln(w, section.Title)
		for _, p := range section.Platforms {
			fmt.Fprintf(w, "  %-16s %s\n", p.Name, p.LinkURL)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, dir.Disclaimer)
}
