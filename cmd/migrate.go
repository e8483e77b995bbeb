package cmd

import (
	"fmt"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/database"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations to create or update the approval schema.
This command will:
- Create approval_requests, approval_actions, approval_events, audit_logs and users
- Create composite indexes used by the pending and history views

The command uses the database configuration from the config file or environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out := cmd.OutOrStdout()
		if cfg.Database.Driver == "sqlite" {
			fmt.Fprintf(out, "Connecting to sqlite database: %s\n", cfg.Database.Path)
		} else {
			fmt.Fprintf(out, "Connecting to database: %s@%s:%d/%s\n",
				cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer database.Close(db)

		fmt.Fprintln(out, "Running database migrations...")
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		fmt.Fprintln(out, "Database migrations completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
