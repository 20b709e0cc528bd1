package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/skillcards/backend/repository"
	"github.com/krshsl/skillcards/backend/services"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := services.LoadConfig()

		db, closeDB, err := repository.Open(cmd.Context(), databaseOptions(config))
		if err != nil {
			return err
		}
		defer closeDB()

		if err := repository.NewGORMRepository(db).AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		slog.Info("Database migrated")
		return nil
	},
}

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := services.LoadConfig()
		if config.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}

		token, err := services.NewAuthService(config.JWT.Secret).IssueToken(tokenSubject, tokenRole, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "interviewer", "Token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "interviewer", "Role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(migrateCmd, tokenCmd)
}
