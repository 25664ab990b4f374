package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var requirementsCmd = &cobra.Command{
	Use:   "requirements",
	Short: "Print the effective requirements catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("requirements")
		if path == "" {
			path = os.Getenv("PROBECHECK_REQUIREMENTS")
		}

		catalog, err := loadCatalog(path)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(catalog.All())
	},
}

func init() {
	rootCmd.AddCommand(requirementsCmd)
	requirementsCmd.Flags().String("requirements", "", "YAML requirements catalog merged over the built-ins (or PROBECHECK_REQUIREMENTS env)")
}
