package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/enrollment"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name>",
	Short: "Enroll a new identity",
	Long: `Enroll a new identity from a name and one face.

The name is checked before the face is processed. If no face is found in
the image, nothing is stored and the command can simply be repeated.

Examples:
  # Enroll from a photo (requires DETECTOR_URL)
  face-auth enroll "Jan Novák" --image jan.jpg

  # Enroll from a descriptor exported by another tool
  face-auth enroll alice --descriptor-file alice.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	addFaceFlags(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w := enrollment.New(a.repo, a.log)
	if err := w.SubmitName(args[0]); err != nil {
		return fmt.Errorf("name rejected: %w", err)
	}

	d, err := readFaceFlags(ctx, cmd, a)
	if err != nil {
		return err
	}

	if err := w.SubmitFace(ctx, d); err != nil {
		if errors.Is(err, enrollment.ErrNoFaceDetected) {
			return errors.New("no face detected, try again with another image")
		}
		return fmt.Errorf("enrollment failed: %w", err)
	}

	committed := w.State().(enrollment.Committed)
	fmt.Printf("Enrolled %s (%d identities registered)\n", committed.Identity.Name, a.repo.Len())
	return nil
}
