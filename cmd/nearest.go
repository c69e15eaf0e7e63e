package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Show the identities closest to a face",
	Long: `Show the k identities closest to a face with their distances.

This is a diagnostic for choosing MATCH_THRESHOLD; it uses an approximate
index and never authenticates anyone.

Examples:
  face-auth nearest --image probe.jpg --k 10`,
	Args: cobra.NoArgs,
	RunE: runNearest,
}

func init() {
	rootCmd.AddCommand(nearestCmd)
	addFaceFlags(nearestCmd)
	nearestCmd.Flags().Int("k", constants.DefaultNearestLimit, "Number of identities to show")
}

func runNearest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	probe, err := readFaceFlags(ctx, cmd, a)
	if err != nil {
		return err
	}
	if err := descriptor.Validate(probe, a.repo.DescriptorSize()); err != nil {
		if errors.Is(err, descriptor.ErrNoFace) {
			return errors.New("no face detected")
		}
		return err
	}

	matcher := facematch.NewMatcher(a.cfg.Matcher.Threshold)
	identities, revision := a.repo.Snapshot()
	neighbors := facematch.NewIndex(identities, revision).Nearest(probe, mustGetInt(cmd, "k"))
	if len(neighbors) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISTANCE\tMATCH")
	for _, n := range neighbors {
		match := "no"
		if matcher.Accepts(n.Distance) {
			match = "yes"
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\n", n.Name, n.Distance, match)
	}
	w.Flush()
	fmt.Printf("\nThreshold: %.2f\n", matcher.Threshold())
	return nil
}
