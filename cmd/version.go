package cmd

import (
	"runtime"

	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/spf13/cobra"
)

// Version is the CLI version, injected at build time:
//
//	go build -ldflags "-X github.com/sparkvibe/sparkvibe/cmd.Version=1.2.3"
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Show the CLI version",
	Annotations: map[string]string{noMirror: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			output.JSON(map[string]string{"version": Version, "go": runtime.Version()})
			return nil
		}
		output.Println("sparkvibe %s (%s)", Version, runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
