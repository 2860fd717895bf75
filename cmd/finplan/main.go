// finplan plans personal finances from the terminal, with typed or spoken input.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
var Version = "0.0.0-dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "finplan",
	Short: "AI personal finance planner",
	Long: `finplan researches financial options on the web and drafts a personalized
financial plan from your goals and current situation.

Credentials are read from OPENAI_API_KEY and SERPAPI_API_KEY (a .env file in
the working directory is loaded first) or from the --openai-key and
--serpapi-key flags.

Examples:
  finplan plan --goals "Retire by 55" --situation "Age 35, $120k income"
  finplan plan --voice                # speak both fields
  finplan record goals                # transcribe one phrase
  finplan platforms                   # list trading and crypto platforms`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("openai-key", "", "OpenAI API key (default $OPENAI_API_KEY)")
	rootCmd.PersistentFlags().String("serpapi-key", "", "SerpAPI key (default $SERPAPI_API_KEY)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(platformsCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
