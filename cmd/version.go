package cmd

import (
	"fmt"

	"github.com/diodeinc/pcb-layout-lens/internal/version"
	"github.com/spf13/cobra"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of pcblens",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pcblens v%s@%s %s %s\n", version.Version(), GitCommit, platform(), BuildDate)
	},
}
