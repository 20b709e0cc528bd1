package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skillcards",
	Short: "Skill assessment interview server",
	Long: "Skillcards plans per-skill interview questions, scores candidate responses, " +
		"rolls scores up into star ratings and renders one skill card per rated skill.",
	SilenceUsage: true,
}

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
