package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/authentication"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate",
	Short: "Identify a face against the enrolled identities",
	Long: `Identify a face against the enrolled identities.

Exits with an error when no face is detected. A face that matches nobody
is reported as "not recognized" together with the nearest distance.

Examples:
  face-auth authenticate --image probe.jpg
  face-auth authenticate --descriptor-file probe.json --json`,
	Args: cobra.NoArgs,
	RunE: runAuthenticate,
}

func init() {
	rootCmd.AddCommand(authenticateCmd)
	addFaceFlags(authenticateCmd)
	authenticateCmd.Flags().Bool("json", false, "Output as JSON")
}

type authenticateOutput struct {
	Accepted  bool     `json:"accepted"`
	Name      string   `json:"name,omitempty"`
	Distance  *float64 `json:"distance"`
	Threshold float64  `json:"threshold"`
}

func runAuthenticate(cmd *cobra.Command, args []string) error {
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

	matcher := facematch.NewMatcher(a.cfg.Matcher.Threshold)
	outcome, err := authentication.New(a.repo, matcher, a.log).Authenticate(ctx, probe)
	if errors.Is(err, authentication.ErrNoFaceDetected) {
		return errors.New("no face detected")
	}
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		out := authenticateOutput{Accepted: outcome.Accepted, Name: outcome.Name, Threshold: matcher.Threshold()}
		if a.repo.Len() > 0 {
			out.Distance = &outcome.Distance
		}
		return outputJSON(out)
	}

	switch {
	case outcome.Accepted:
		fmt.Printf("Welcome, %s (distance %.4f)\n", outcome.Name, outcome.Distance)
	case a.repo.Len() == 0:
		fmt.Println("Not recognized: no identities enrolled")
	default:
		fmt.Printf("Not recognized (nearest distance %.4f, threshold %.2f)\n", outcome.Distance, matcher.Threshold())
	}
	return nil
}
