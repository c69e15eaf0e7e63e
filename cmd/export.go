package cmd

import (
	"fmt"
	"os"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/database"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export enrolled identities as JSON",
	Long: `Export enrolled identities, including descriptors, as a JSON array.
Writes to stdout when no file is given.

Examples:
  face-auth export users.json
  face-auth export > users.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	identities := a.repo.List()
	stored := make([]database.StoredIdentity, len(identities))
	for i, ident := range identities {
		stored[i] = database.StoredIdentity(ident)
	}

	data, err := database.EncodeDocument(stored)
	if err != nil {
		return fmt.Errorf("encoding identities: %w", err)
	}

	if len(args) == 0 {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := renameio.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d identities to %s\n", len(stored), args[0])
	return nil
}
