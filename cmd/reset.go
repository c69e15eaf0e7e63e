package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all enrolled identities",
	Long: `Remove all enrolled identities from storage.

This cannot be undone. Use "face-auth export" first to keep a copy.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("yes", false, "Confirm removing every identity")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "yes") {
		return errors.New("refusing to reset without --yes")
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	count := a.repo.Len()
	if err := a.repo.Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Removed %d identities\n", count)
	return nil
}
