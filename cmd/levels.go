package cmd

import (
	"fmt"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// levelsCmd represents the levels command
var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the effective approval level table",
	Long: `Validate the approval level table from the config file or defaults
and print it as YAML. With --role the command prints the chain that a
request created by that role would follow.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		table, err := workflow.NewLevelTable(cfg.Approval)
		if err != nil {
			return fmt.Errorf("invalid approval level table: %w", err)
		}

		var doc interface{} = table.Snapshot()
		if role, _ := cmd.Flags().GetString("role"); role != "" {
			levels, err := table.Resolve(role)
			if err != nil {
				return err
			}
			doc = config.ChainConfig{Role: role, Levels: levels}
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode level table: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(levelsCmd)

	levelsCmd.Flags().String("role", "", "Only print the chain for this requester role")
}
