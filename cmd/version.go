package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/database"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version  string   `json:"version"`
	Commit   string   `json:"commit"`
	Built    string   `json:"built"`
	Backends []string `json:"storage_backends"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and compiled-in storage backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:  Version,
			Commit:   CommitSHA,
			Built:    BuildDate,
			Backends: database.Backends(),
		}
		if mustGetBool(cmd, "json") {
			return outputJSON(info)
		}
		fmt.Printf("face-auth %s\n", info.Version)
		fmt.Printf("  Commit:   %s\n", info.Commit)
		fmt.Printf("  Built:    %s\n", info.Built)
		fmt.Printf("  Backends: %s\n", strings.Join(info.Backends, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}
