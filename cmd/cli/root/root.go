package root

import (
	"github.com/spf13/cobra"
)

// RootCmd is the alloc8 command; subcommand packages register themselves on it.
var RootCmd = &cobra.Command{
	Use:           "alloc8",
	Short:         "alloc8 asset lifecycle CLI",
	Long:          "Command line interface for the alloc8 asset lifecycle API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func GetRoot() *cobra.Command {
	return RootCmd
}
