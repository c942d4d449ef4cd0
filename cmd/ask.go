package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/System-AI-Assistants/FocusML/internal/config"
)

var (
	askTopK  int
	askModel string
)

var askCmd = &cobra.Command{
	Use:   "ask <collection-id> <question>",
	Short: "Ask a question against an ingested collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, args)
	},
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of sources to retrieve")
	askCmd.Flags().StringVar(&askModel, "model", "", "chat model override")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	collectionID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || collectionID <= 0 {
		return fmt.Errorf("invalid collection id %q", args[0])
	}
	question := strings.Join(args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := buildLogger(cfg)

	ctx := context.Background()
	a, err := setupApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.engine.Ask(ctx, collectionID, question, askTopK, askModel, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\nSources (%s):\n", answer.Model)
		for i, src := range answer.Sources {
			fmt.Fprintf(out, "%d. (distance %.4f)\n%s\n", i+1, src.Distance, indent(src.Content))
		}
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "   " + line
	}
	return strings.Join(lines, "\n")
}
