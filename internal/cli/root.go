// Package cli is the facefind command line: the same matching pipeline as the
// API, run against a local folder or ZIP file.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "facefind",
		Short: "Find the photos that contain a given face",
		Long: `Facefind compares the face in a reference photo against every photo in a
folder or ZIP file and reports the ones that contain the same person.`,
		SilenceUsage: true,
	}

	root.AddCommand(newMatchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func Execute() {
	cobra.OnInitialize(initConfig)
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
