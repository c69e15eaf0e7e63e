package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-auth",
	Short: "Enroll faces and authenticate people by face descriptor",
	Long: `Face Auth keeps a store of enrolled identities (a name and a face
descriptor) and authenticates a probe face against them using Euclidean
distance with a configurable threshold.

Descriptors come either from an external face-embedding server (--image)
or are supplied directly as numbers (--descriptor, --descriptor-file).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
