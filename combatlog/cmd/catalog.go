package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/catalog"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse catalogued combat logs and their reports",
}

var catalogListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List combat logs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		repo, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer repo.Close()

		game, _ := cmd.Flags().GetString("game")
		limit, _ := cmd.Flags().GetInt("limit")
		logs, err := repo.ListCombatLogs(commandContext(cmd), game, limit)
		if err != nil {
			return err
		}
		return p.Print(logs, func() *output.Table {
			table := output.NewTable("PARTITION", "GAME", "START", "OWNER", "FINALIZED")
			for _, cl := range logs {
				finalized := ""
				if cl.FinalizedAt != nil {
					finalized = cl.FinalizedAt.Format(time.RFC3339)
				}
				table.AddRow(cl.PartitionID, cl.Game, cl.StartTime.Format(time.RFC3339), cl.OwnerID, finalized)
			}
			return table
		})
	},
}

var catalogReportsCmd = &cobra.Command{
	Use:   "reports <partition-id>",
	Short: "List the stored reports of a combat log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		repo, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx := commandContext(cmd)
		if _, err := repo.GetCombatLog(ctx, args[0]); err != nil {
			return err
		}
		reports, err := repo.ListReports(ctx, args[0])
		if err != nil {
			return err
		}
		return p.Print(reports, func() *output.Table {
			table := output.NewTable("REPORT", "CANONICAL", "SIZE", "KEY")
			for _, r := range reports {
				table.AddRow(r.KeyName, strconv.Itoa(r.CanonicalType), strconv.FormatInt(r.SizeBytes, 10), r.ObjectKey)
			}
			return table
		})
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogReportsCmd)

	catalogCmd.PersistentFlags().String("database-url", "", "postgres URL (default from config.yaml)")
	catalogListCmd.Flags().String("game", "", "only list this game")
	catalogListCmd.Flags().Int("limit", 50, "maximum number of combat logs")
}

func openCatalog(cmd *cobra.Command) (*catalog.PostgresRepository, error) {
	dbURL, err := databaseURL(cmd)
	if err != nil {
		return nil, err
	}
	return catalog.NewPostgresRepository(commandContext(cmd), dbURL)
}
