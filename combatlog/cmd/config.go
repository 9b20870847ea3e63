package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change CLI defaults",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the CLI defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		c := cli()
		return p.Print(c, func() *output.Table {
			table := output.NewTable("SETTING", "VALUE")
			table.AddRow("output", c.Output)
			table.AddRow("work_dir", c.WorkDir)
			table.AddRow("bucket", c.Bucket)
			table.AddRow("file", c.Path())
			return table
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Change a CLI default",
	Example: `  combatlog config set output json
  combatlog config set bucket my-reports`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cli()
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := c.Save(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q in %s\n", args[0], args[1], c.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
