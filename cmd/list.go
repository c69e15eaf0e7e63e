package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/identity"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Long: `List enrolled identities in enrollment order.

Examples:
  # List everyone
  face-auth list

  # Filter by name, ignoring case and diacritics
  face-auth list --query jiri

  # Output as JSON
  face-auth list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("query", "", "Filter by name")
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

type listedIdentity struct {
	Name       string     `json:"name"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	identities := identity.Filter(a.repo.List(), mustGetString(cmd, "query"))

	if mustGetBool(cmd, "json") {
		out := make([]listedIdentity, 0, len(identities))
		for _, ident := range identities {
			item := listedIdentity{Name: ident.Name}
			if !ident.EnrolledAt.IsZero() {
				t := ident.EnrolledAt
				item.EnrolledAt = &t
			}
			out = append(out, item)
		}
		return outputJSON(out)
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENROLLED")
	for _, ident := range identities {
		enrolled := "-"
		if !ident.EnrolledAt.IsZero() {
			enrolled = ident.EnrolledAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\n", ident.Name, enrolled)
	}
	w.Flush()
	fmt.Printf("\n%d of %d identities\n", len(identities), a.repo.Len())
	return nil
}
