package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/identity"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import identities from a JSON export",
	Long: `Import identities from a JSON array of {"name", "descriptor"} records,
as written by "face-auth export" or by the browser version of the app.

Records with a corrupt descriptor are skipped with a warning. Names that
are already enrolled are skipped too; duplicates are never merged.

Examples:
  face-auth import users.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("dry-run", false, "Only report what would be imported")
}

// importResult counts what happened to each record
type importResult struct {
	Imported int
	Skipped  int
	Corrupt  int
}

// importIdentities adds records in order, skipping names that are already
// enrolled or appeared earlier in records. With dryRun nothing is written.
func importIdentities(ctx context.Context, repo *identity.Repository, records []database.StoredIdentity, dryRun bool, progress func()) (importResult, error) {
	var result importResult
	seen := make(map[string]struct{}, len(records))
	for _, stored := range records {
		name := identity.NormalizeName(stored.Name)
		_, dup := seen[name]
		seen[name] = struct{}{}

		switch {
		case name == "":
			result.Corrupt++
		case dup || repo.Contains(name):
			result.Skipped++
		case dryRun:
			result.Imported++
		default:
			err := repo.Add(ctx, identity.Identity(stored))
			switch {
			case err == nil:
				result.Imported++
			case errors.Is(err, identity.ErrNameExists):
				result.Skipped++
			default:
				return result, fmt.Errorf("importing %q: %w", stored.Name, err)
			}
		}
		if progress != nil {
			progress()
		}
	}
	return result, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun := mustGetBool(cmd, "dry-run")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc := database.DecodeDocument(data, a.repo.DescriptorSize())
	result := importResult{Corrupt: len(doc.Warnings)}
	for _, w := range doc.Warnings {
		fmt.Printf("Warning: %v\n", w)
	}

	bar := progressbar.NewOptions(len(doc.Identities),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	counts, err := importIdentities(ctx, a.repo, doc.Identities, dryRun, func() { bar.Add(1) })
	if err != nil {
		bar.Exit()
		return err
	}
	result.Imported, result.Skipped = counts.Imported, counts.Skipped
	result.Corrupt += counts.Corrupt
	bar.Finish()

	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Printf("\n%s %d, skipped %d existing, %d corrupt (%d identities registered)\n",
		verb, result.Imported, result.Skipped, result.Corrupt, a.repo.Len())
	return nil
}
